// Package render turns scene snapshots and geometry hierarchies into files.
//
// # Views
//
// [RenderView] draws one projection (Z-X or Z-Y) as SVG: geometry hulls
// first, then event tracks, framed by the view's axes. [Render3D] draws the
// unprojected scenes with an oblique camera, and [RenderJSON] dumps them
// for external viewers.
//
//	snap := set.Snapshot()
//	zx, _ := snap.View("zx")
//	svg := render.RenderView(zx, render.WithSize(1200, 800))
//
// # Format Conversion
//
// [ToPDF] and [ToPNG] convert any SVG using the external rsvg-convert tool
// (from librsvg). [Render] picks the right path for a view name and format.
//
// # Hierarchy Graphs
//
// [HierarchyDOT] writes the placement tree as Graphviz DOT, and
// [RenderDOT] lays it out with the embedded Graphviz.
package render
