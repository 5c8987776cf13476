package geometry

import "cogentcore.org/core/math32"

// Transform is a rigid transform p' = R·p + T.
type Transform struct {
	R [3][3]float32
	T math32.Vector3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{R: [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Placement builds the transform of a GDML physvol. GDML rotations are
// passive (they rotate the frame), so the placed solid is rotated by the
// inverse: Rx(-x)·Ry(-y)·Rz(-z).
func Placement(pos, rot math32.Vector3) Transform {
	r := mul3(mul3(rotX(-rot.X), rotY(-rot.Y)), rotZ(-rot.Z))
	return Transform{R: r, T: pos}
}

// Apply transforms a point.
func (t Transform) Apply(p math32.Vector3) math32.Vector3 {
	return math32.Vec3(
		t.R[0][0]*p.X+t.R[0][1]*p.Y+t.R[0][2]*p.Z+t.T.X,
		t.R[1][0]*p.X+t.R[1][1]*p.Y+t.R[1][2]*p.Z+t.T.Y,
		t.R[2][0]*p.X+t.R[2][1]*p.Y+t.R[2][2]*p.Z+t.T.Z,
	)
}

// Then returns the transform that applies local first and then t.
// Walking down the tree, global = parent.Then(child.Local()).
func (t Transform) Then(local Transform) Transform {
	return Transform{
		R: mul3(t.R, local.R),
		T: t.Apply(local.T),
	}
}

func mul3(a, b [3][3]float32) [3][3]float32 {
	var m [3][3]float32
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j] + a[i][2]*b[2][j]
		}
	}
	return m
}

func rotX(a float32) [3][3]float32 {
	c, s := math32.Cos(a), math32.Sin(a)
	return [3][3]float32{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

func rotY(a float32) [3][3]float32 {
	c, s := math32.Cos(a), math32.Sin(a)
	return [3][3]float32{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

func rotZ(a float32) [3][3]float32 {
	c, s := math32.Cos(a), math32.Sin(a)
	return [3][3]float32{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}
