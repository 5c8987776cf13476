package trajectory

// LineStyle is the drawing style of a track.
type LineStyle struct {
	Color  string
	Width  float32
	Dashed bool
}

// defaultWidth is used where the style leaves the width unset.
const defaultWidth = 2

// StyleFor returns the line style for a PDG particle code.
func StyleFor(pdg int32) LineStyle {
	switch pdg {
	case 22: // gamma
		return LineStyle{Color: "#cccccc", Width: 1, Dashed: true}
	case 11, -11: // e-, e+
		return LineStyle{Color: "#ff0000", Width: defaultWidth}
	case 13, -13: // mu-, mu+
		return LineStyle{Color: "#3333cc", Width: 1}
	case 2212: // proton
		return LineStyle{Color: "#000000", Width: 1}
	case 2112: // neutron
		return LineStyle{Color: "#ffcc00", Width: 1, Dashed: true}
	case 111: // pi0
		return LineStyle{Color: "#ff00ff", Width: defaultWidth, Dashed: true}
	case 211, -211: // pi+, pi-
		return LineStyle{Color: "#00ffff", Width: defaultWidth}
	default:
		return LineStyle{Color: "#59d454", Width: 1}
	}
}

// ParticleName returns a short label for common PDG codes, or "".
func ParticleName(pdg int32) string {
	switch pdg {
	case 22:
		return "gamma"
	case 11:
		return "e-"
	case -11:
		return "e+"
	case 13:
		return "mu-"
	case -13:
		return "mu+"
	case 2212:
		return "p"
	case 2112:
		return "n"
	case 111:
		return "pi0"
	case 211:
		return "pi+"
	case -211:
		return "pi-"
	case 12, 14, 16:
		return "nu"
	case -12, -14, -16:
		return "anti-nu"
	default:
		return ""
	}
}
