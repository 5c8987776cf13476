package geometry

import (
	"math"

	"cogentcore.org/core/math32"
)

// Solid kinds understood by the loader.
const (
	KindBox          = "box"
	KindTube         = "tube"
	KindCone         = "cone"
	KindSphere       = "sphere"
	KindTrd          = "trd"
	KindPolycone     = "polycone"
	KindEltube       = "eltube"
	KindTorus        = "torus"
	KindUnion        = "union"
	KindSubtraction  = "subtraction"
	KindIntersection = "intersection"
)

// segments is the number of samples per full circle in outlines.
const segments = 24

// Solid is a shape reduced to what the display needs: its kind, the
// evaluated parameters and a vertex cloud enclosing it in the local frame.
// Boolean solids take the outline of their first operand.
type Solid struct {
	Name    string             `json:"name"`
	Kind    string             `json:"kind"`
	Params  map[string]float64 `json:"params,omitempty"`
	Outline []math32.Vector3   `json:"outline"`
}

// Bounds returns the local bounding box of the outline.
func (s *Solid) Bounds() math32.Box3 {
	b := math32.B3Empty()
	if s == nil {
		return b
	}
	for _, p := range s.Outline {
		b.ExpandByPoint(p)
	}
	return b
}

func boxOutline(dx, dy, dz float64) []math32.Vector3 {
	var pts []math32.Vector3
	for _, sz := range []float64{-dz, dz} {
		pts = append(pts, rect(dx, dy, sz)...)
	}
	return pts
}

func trdOutline(dx1, dx2, dy1, dy2, dz float64) []math32.Vector3 {
	return append(rect(dx1, dy1, -dz), rect(dx2, dy2, dz)...)
}

func rect(dx, dy, z float64) []math32.Vector3 {
	return []math32.Vector3{
		vec(-dx, -dy, z), vec(dx, -dy, z), vec(dx, dy, z), vec(-dx, dy, z),
	}
}

// arc samples a circle segment of radius r at height z. A partial segment
// also contributes its axis point so that the hull keeps the wedge shape.
func arc(r, z, phi0, dphi float64) []math32.Vector3 {
	if r <= 0 {
		return []math32.Vector3{vec(0, 0, z)}
	}
	full := dphi <= 0 || dphi >= 2*math.Pi-1e-9
	if full {
		dphi = 2 * math.Pi
	}
	n := int(math.Ceil(segments * dphi / (2 * math.Pi)))
	if n < 2 {
		n = 2
	}
	pts := make([]math32.Vector3, 0, n+2)
	steps := n
	if !full {
		steps = n + 1
	}
	for i := 0; i < steps; i++ {
		a := phi0 + dphi*float64(i)/float64(n)
		pts = append(pts, vec(r*math.Cos(a), r*math.Sin(a), z))
	}
	if !full {
		pts = append(pts, vec(0, 0, z))
	}
	return pts
}

func coneOutline(rmax1, rmax2, dz, phi0, dphi float64) []math32.Vector3 {
	return append(arc(rmax1, -dz, phi0, dphi), arc(rmax2, dz, phi0, dphi)...)
}

func ellipseOutline(dx, dy, dz float64) []math32.Vector3 {
	var pts []math32.Vector3
	for _, z := range []float64{-dz, dz} {
		for i := 0; i < segments; i++ {
			a := 2 * math.Pi * float64(i) / segments
			pts = append(pts, vec(dx*math.Cos(a), dy*math.Sin(a), z))
		}
	}
	return pts
}

func sphereOutline(rmax, phi0, dphi, theta0, dtheta float64) []math32.Vector3 {
	if dtheta <= 0 {
		dtheta = math.Pi
	}
	const rings = 12
	var pts []math32.Vector3
	for i := 0; i <= rings; i++ {
		th := theta0 + dtheta*float64(i)/rings
		r := rmax * math.Sin(th)
		z := rmax * math.Cos(th)
		pts = append(pts, arc(r, z, phi0, dphi)...)
	}
	return pts
}

func torusOutline(rmax, rtor, phi0, dphi float64) []math32.Vector3 {
	var pts []math32.Vector3
	for _, z := range []float64{-rmax, rmax} {
		pts = append(pts, arc(rtor+rmax, z, phi0, dphi)...)
	}
	pts = append(pts, arc(rtor+rmax, 0, phi0, dphi)...)
	return pts
}

func vec(x, y, z float64) math32.Vector3 {
	return math32.Vec3(float32(x), float32(y), float32(z))
}
