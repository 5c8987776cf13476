package cli

import (
	"github.com/spf13/pflag"

	"github.com/matzehuels/evdisplay/pkg/config"
)

// displayFlags are the selection and geometry flags shared by the commands
// that open a viewer. Only flags set on the command line override config.
type displayFlags struct {
	kine        float64
	length      float64
	depth       float64
	visLevel    int
	hall        string
	suffix      string
	useDefaults bool
	noCache     bool
	noResume    bool
}

func (f *displayFlags) register(fs *pflag.FlagSet) {
	fs.Float64Var(&f.kine, "kine", config.DefaultKinECutMeV, "minimum initial kinetic energy of secondary tracks (MeV)")
	fs.Float64Var(&f.length, "length", config.DefaultLengthCutCm, "minimum length of secondary tracks (cm)")
	fs.Float64Var(&f.depth, "depth", config.DefaultDepth, "projection depth")
	fs.IntVar(&f.visLevel, "vis-level", config.DefaultVisLevel, "hierarchy depth of the display extract")
	fs.StringVar(&f.hall, "hall", config.DefaultHall, "name of the experimental hall placement")
	fs.StringVar(&f.suffix, "extract-suffix", config.DefaultExtractSuffix, "suffix of the extract file written next to the geometry")
	fs.BoolVar(&f.useDefaults, "use-defaults", false, "apply the built-in attribute rules")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable the extract and index cache")
	fs.BoolVar(&f.noResume, "no-resume", false, "start at the first event instead of the last viewed one")
}

// apply returns a copy of cfg with the flags that were set on fs applied.
func (f *displayFlags) apply(cfg *config.Config, fs *pflag.FlagSet) (*config.Config, error) {
	out := *cfg
	if fs.Changed("kine") {
		out.Cuts.KinEMeV = f.kine
	}
	if fs.Changed("length") {
		out.Cuts.LengthCm = f.length
	}
	if fs.Changed("depth") {
		out.Projection.Depth = f.depth
	}
	if fs.Changed("vis-level") {
		out.Geometry.VisLevel = f.visLevel
	}
	if fs.Changed("hall") {
		out.Geometry.Hall = f.hall
	}
	if fs.Changed("extract-suffix") {
		out.Geometry.ExtractSuffix = f.suffix
	}
	if fs.Changed("use-defaults") {
		out.Geometry.UseDefaults = f.useDefaults
	}
	if f.noCache {
		out.Cache.Backend = "none"
	}
	if f.noResume {
		out.State.Resume = false
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}
