// Package trajectory indexes and filters simulated particle tracks stored
// per event in a columnar source (ROOT tree, SQLite table, MongoDB
// collection or memory).
//
// A Store keeps the sorted distinct event ids of the open source and a
// current event. Navigation moves to exactly current±1; ids with gaps
// therefore dead-end, which is the documented behaviour.
package trajectory

import (
	"fmt"
	"math"
)

// Table and field names expected in every source.
const (
	Table        = "trk"
	FieldEvent   = "evtID"
	FieldTrack   = "trackTID"
	FieldParent  = "trackPID"
	FieldPDG     = "trackPDG"
	FieldKinE    = "trackKinE"
	FieldNPoints = "trackNPoints"
	FieldX       = "trackPointX"
	FieldY       = "trackPointY"
	FieldZ       = "trackPointZ"
)

// Fields lists the expected fields in source order.
var Fields = []string{
	FieldEvent, FieldTrack, FieldParent, FieldPDG, FieldKinE,
	FieldNPoints, FieldX, FieldY, FieldZ,
}

// MMToCm converts source lengths to centimetres.
const MMToCm = 0.1

// Record is one track of one event. Coordinates are in millimetres.
type Record struct {
	EventID  int64
	TrackID  int64
	ParentID int64
	PDG      int32
	KinE     float64 // MeV
	NPoints  int
	X, Y, Z  []float64
}

// Primary reports whether the track has no parent.
func (r *Record) Primary() bool { return r.ParentID == 0 }

// Points returns the usable number of points: NPoints clamped to the
// shortest coordinate array.
func (r *Record) Points() int {
	n := r.NPoints
	for _, l := range []int{len(r.X), len(r.Y), len(r.Z)} {
		if l < n {
			n = l
		}
	}
	if n < 0 {
		return 0
	}
	return n
}

// LengthCm returns the straight distance between the first and last point
// in centimetres. Tracks with fewer than two points have zero length.
func (r *Record) LengthCm() float64 {
	n := r.Points()
	if n < 2 {
		return 0
	}
	dx := r.X[n-1] - r.X[0]
	dy := r.Y[n-1] - r.Y[0]
	dz := r.Z[n-1] - r.Z[0]
	return math.Sqrt(dx*dx+dy*dy+dz*dz) * MMToCm
}

// Name returns the display name of the track.
func (r *Record) Name() string {
	return fmt.Sprintf("Track %d", r.TrackID)
}

// clone copies r including its coordinate slices, so that sources may
// reuse buffers between records.
func (r *Record) clone() Record {
	c := *r
	n := r.Points()
	c.X = append([]float64(nil), r.X[:n]...)
	c.Y = append([]float64(nil), r.Y[:n]...)
	c.Z = append([]float64(nil), r.Z[:n]...)
	c.NPoints = n
	return c
}

// Filter is the track selection. Primaries always pass; other tracks need
// both KinE >= KinECutMeV and LengthCm >= LengthCutCm.
type Filter struct {
	KinECutMeV  float64 `json:"kine_mev"`
	LengthCutCm float64 `json:"length_cm"`
}

// Accept applies the filter to r.
func (f Filter) Accept(r *Record) bool {
	if r.Primary() {
		return true
	}
	return r.KinE >= f.KinECutMeV && r.LengthCm() >= f.LengthCutCm
}
