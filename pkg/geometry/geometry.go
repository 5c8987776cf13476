// Package geometry loads a detector description (GDML) into an in-memory
// placement tree and offers the lookups the viewer needs: the experimental
// hall, its detector subsystems, bounded-depth traversal and a diagnostic
// dump.
//
// A Volume is shared by all of its placements; a Node is one placement of a
// volume inside its mother. Because daughters hang off the volume, the tree
// is a DAG when volumes are reused. Walk it through Traverse rather than by
// caching parent pointers.
//
// Lengths are kept in millimetres and angles in radians, as in GDML.
package geometry

import (
	"cogentcore.org/core/math32"
)

// Attr holds the mutable display attributes of a node.
type Attr struct {
	Visible          bool   `json:"visible"`
	VisibleDaughters bool   `json:"visible_daughters"`
	Transparency     int    `json:"transparency"` // 0 (opaque) to 100
	Color            string `json:"color,omitempty"`
}

// DefaultAttr is the attribute set every node starts with.
func DefaultAttr() Attr {
	return Attr{Visible: true, VisibleDaughters: true}
}

// Volume is a logical volume: a solid plus its ordered daughter placements.
// Assemblies have no solid of their own and are never drawn.
type Volume struct {
	Name      string
	Material  string
	Solid     *Solid
	Assembly  bool
	Daughters []*Node
	Aux       map[string]string
}

// Node is one placement of a Volume.
type Node struct {
	Name     string
	Copy     int
	Volume   *Volume
	Position math32.Vector3 // mm, in the mother frame
	Rotation math32.Vector3 // rad, GDML x/y/z rotation angles
	Attr     Attr
}

// Children returns the ordered daughter placements of n.
func (n *Node) Children() []*Node {
	if n == nil || n.Volume == nil {
		return nil
	}
	return n.Volume.Daughters
}

// IsAssembly reports whether n places an assembly.
func (n *Node) IsAssembly() bool {
	return n != nil && n.Volume != nil && n.Volume.Assembly
}

// VolumeName returns the name of the placed volume, or "" when unset.
func (n *Node) VolumeName() string {
	if n == nil || n.Volume == nil {
		return ""
	}
	return n.Volume.Name
}

// Local returns the transform from n's frame into its mother's frame.
func (n *Node) Local() Transform {
	return Placement(n.Position, n.Rotation)
}
