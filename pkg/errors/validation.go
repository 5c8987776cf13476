package errors

import (
	"math"
	"strings"
	"unicode"
)

// View names accepted by the renderers and the HTTP viewer.
const (
	View3D = "3d"
	ViewZX = "zx"
	ViewZY = "zy"
)

// ValidateViewName checks that name is one of the rendered views.
func ValidateViewName(name string) error {
	switch strings.ToLower(name) {
	case View3D, ViewZX, ViewZY:
		return nil
	case "":
		return New(ErrCodeInvalidView, "view name cannot be empty")
	default:
		return New(ErrCodeInvalidView, "unknown view %q (must be one of: 3d, zx, zy)", name)
	}
}

// ValidateImageFormat checks that an output extension is supported.
// A leading dot is accepted.
func ValidateImageFormat(ext string) error {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "svg", "png", "pdf", "json":
		return nil
	case "":
		return New(ErrCodeInvalidFormat, "format cannot be empty")
	default:
		return New(ErrCodeInvalidFormat, "invalid format %q (must be one of: svg, png, pdf, json)", ext)
	}
}

// ValidateCut validates a selection threshold.
// Cuts must be finite and non-negative.
func ValidateCut(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(ErrCodeInvalidConfig, "%s must be a finite number", name)
	}
	if v < 0 {
		return New(ErrCodeInvalidConfig, "%s must not be negative (got %g)", name, v)
	}
	return nil
}

// ValidatePattern validates a node-name pattern used by the attribute rules.
//
// The validation rules are intentionally conservative:
//   - No empty patterns
//   - No control characters
//   - Maximum length of 256 characters
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return New(ErrCodeInvalidConfig, "rule pattern cannot be empty")
	}
	if len(pattern) > 256 {
		return New(ErrCodeInvalidConfig, "rule pattern too long (max 256 characters)")
	}
	for _, r := range pattern {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidConfig, "rule pattern contains invalid control characters")
		}
	}
	return nil
}

// ValidateOutputBase validates the base path used for saved displays.
func ValidateOutputBase(base string) error {
	if base == "" {
		return New(ErrCodeInvalidInput, "output base cannot be empty")
	}
	for _, r := range base {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "output base contains invalid characters")
		}
	}
	if strings.HasSuffix(base, "/") {
		return New(ErrCodeInvalidInput, "output base must name a file, not a directory")
	}
	return nil
}
