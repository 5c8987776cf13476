package viewer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/render"
)

// DefaultSaveFormat is used when an output base has no extension.
const DefaultSaveFormat = "svg"

// SplitOutput splits "out/run.png" into ("out/run", "png"). Without a
// known extension the whole argument is the base and the format is svg.
func SplitOutput(arg string) (base, ext string) {
	ext = strings.TrimPrefix(filepath.Ext(arg), ".")
	if ext == "" || errors.ValidateImageFormat(ext) != nil {
		return arg, DefaultSaveFormat
	}
	return strings.TrimSuffix(arg, "."+ext), strings.ToLower(ext)
}

// SaveDisplays writes every view as <base>_<view>.<ext> and returns the
// written paths. All views are rendered from one snapshot.
func (o *Orchestrator) SaveDisplays(ctx context.Context, base, ext string) ([]string, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if err := errors.ValidateOutputBase(base); err != nil {
		return nil, err
	}
	if err := errors.ValidateImageFormat(ext); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(base); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	snap := o.Snapshot()
	var written []string
	for _, view := range render.Views {
		data, err := render.Render(ctx, snap, view, ext)
		if err != nil {
			return written, fmt.Errorf("render %s view: %w", view, err)
		}
		path := fmt.Sprintf("%s_%s.%s", base, view, ext)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		o.logger.Info("saved display", "view", view, "path", path)
	}
	return written, nil
}
