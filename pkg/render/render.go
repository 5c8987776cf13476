package render

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/scene"
)

// Views lists the view names in display order.
var Views = []string{errors.View3D, errors.ViewZX, errors.ViewZY}

// DefaultPNGScale is the rsvg-convert zoom used for PNG output.
const DefaultPNGScale = 2.0

// Render produces one view of snap in the given format (svg, png, pdf or
// json). View is "3d", "zx" or "zy".
func Render(ctx context.Context, snap scene.Snapshot, view, format string, opts ...SVGOption) ([]byte, error) {
	view = strings.ToLower(view)
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if err := errors.ValidateViewName(view); err != nil {
		return nil, err
	}
	if err := errors.ValidateImageFormat(format); err != nil {
		return nil, err
	}

	if format == "json" {
		if view == errors.View3D {
			return RenderJSON(snap, WithIndent())
		}
		v, ok := snap.View(view)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidView, "view %q is not part of the scene", view)
		}
		return json.MarshalIndent(v, "", "  ")
	}

	svg, err := RenderSVG(snap, view, opts...)
	if err != nil {
		return nil, err
	}
	switch format {
	case "png":
		return ToPNG(ctx, svg, DefaultPNGScale)
	case "pdf":
		return ToPDF(ctx, svg)
	default:
		return svg, nil
	}
}

// RenderSVG draws one view of snap as SVG.
func RenderSVG(snap scene.Snapshot, view string, opts ...SVGOption) ([]byte, error) {
	if view == errors.View3D {
		return Render3D(snap, opts...), nil
	}
	v, ok := snap.View(view)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidView, "view %q is not part of the scene", view)
	}
	return RenderView(v, opts...), nil
}
