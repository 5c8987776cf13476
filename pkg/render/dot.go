package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/geometry"
)

// DOTOptions configures hierarchy graphs.
type DOTOptions struct {
	// MaxDepth limits the tree depth below the root.
	MaxDepth int
	// Hall names the placement whose daughters are highlighted as detectors.
	Hall string
	// Detailed adds volume and copy number to node labels.
	Detailed bool
}

// HierarchyDOT converts the placement tree of h to Graphviz DOT. Assembly
// contents are not expanded; assemblies are drawn dashed.
func HierarchyDOT(h *geometry.Hierarchy, opts DOTOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.2;\n")
	buf.WriteString("\n")

	detectors := make(map[*geometry.Node]bool)
	if h.Loaded() && opts.Hall != "" {
		for _, d := range h.Detectors(opts.Hall) {
			detectors[d] = true
		}
	}

	var edges []string
	var stack []string
	next := 0
	h.Traverse(h.Root(), opts.MaxDepth, true, func(n *geometry.Node, depth int) {
		id := fmt.Sprintf("n%d", next)
		next++
		fmt.Fprintf(&buf, "  %s [%s];\n", id, strings.Join(nodeAttrs(n, opts.Detailed, detectors[n]), ", "))

		stack = append(stack[:depth], id)
		if depth > 0 {
			edges = append(edges, fmt.Sprintf("  %s -> %s;\n", stack[depth-1], id))
		}
	})

	buf.WriteString("\n")
	for _, e := range edges {
		buf.WriteString(e)
	}
	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n *geometry.Node, detailed, detector bool) []string {
	label := n.Name
	if detailed {
		label = fmt.Sprintf("%s\nvol: %s\ncopy: %d", n.Name, n.VolumeName(), n.Copy)
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case n.IsAssembly():
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	case detector:
		attrs = append(attrs, "fillcolor=\"#d6eaf8\"")
	}
	return attrs
}

// RenderDOT lays out a DOT graph with Graphviz. Format is "svg", "png" or
// "dot" (the input is returned unchanged).
func RenderDOT(ctx context.Context, dot, format string) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case "dot":
		return []byte(dot), nil
	case "svg":
		gvFormat = graphviz.SVG
	case "png":
		gvFormat = graphviz.PNG
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "hierarchy graphs support dot, svg and png (got %q)", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
