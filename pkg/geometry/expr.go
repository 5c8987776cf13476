package geometry

import (
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
)

// units maps GDML unit names onto the internal units (mm, rad).
var units = map[string]float64{
	"nm": 1e-6, "um": 1e-3, "mm": 1, "cm": 10, "m": 1000, "km": 1e6,
	"nanometer": 1e-6, "micrometer": 1e-3, "millimeter": 1, "centimeter": 10, "meter": 1000, "kilometer": 1e6,
	"rad": 1, "mrad": 1e-3, "deg": math.Pi / 180,
	"radian": 1, "milliradian": 1e-3, "degree": math.Pi / 180,
}

// evaluator resolves GDML expressions against the constants and variables
// declared so far in the <define> section.
type evaluator struct {
	env       map[string]any
	positions map[string][3]float64
	rotations map[string][3]float64
}

func newEvaluator() *evaluator {
	env := map[string]any{
		"pi":     math.Pi,
		"twopi":  2 * math.Pi,
		"halfpi": math.Pi / 2,
		"sin":    math.Sin,
		"cos":    math.Cos,
		"tan":    math.Tan,
		"asin":   math.Asin,
		"acos":   math.Acos,
		"atan":   math.Atan,
		"sqrt":   math.Sqrt,
		"exp":    math.Exp,
		"log":    math.Log,
		"pow":    math.Pow,
	}
	for k, v := range units {
		env[k] = v
	}
	return &evaluator{
		env:       env,
		positions: make(map[string][3]float64),
		rotations: make(map[string][3]float64),
	}
}

// define binds name to a value usable in later expressions.
func (ev *evaluator) define(name string, v float64) {
	ev.env[name] = v
}

// eval evaluates s. An empty string evaluates to zero, which matches the
// GDML default for omitted numeric attributes.
func (ev *evaluator) eval(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	out, err := expr.Eval(s, ev.env)
	if err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", s, err)
	}
	switch v := out.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		return 0, fmt.Errorf("evaluate %q: boolean result", s)
	default:
		return 0, fmt.Errorf("evaluate %q: unexpected result %T", s, out)
	}
}

// unit returns the scale of a unit name; an empty name yields def.
func unit(name, def string) (float64, error) {
	if name == "" {
		name = def
	}
	u, ok := units[name]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", name)
	}
	return u, nil
}
