package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/geometry"
	"github.com/matzehuels/evdisplay/pkg/gentle"
	"github.com/matzehuels/evdisplay/pkg/render"
	"github.com/matzehuels/evdisplay/pkg/scene"
)

// geometryCommand groups the geometry inspection commands.
func (c *CLI) geometryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geometry",
		Short: "Inspect a GDML geometry",
	}
	cmd.AddCommand(c.geometryTreeCommand())
	cmd.AddCommand(c.geometryExtractCommand())
	return cmd
}

func (c *CLI) loadHierarchy(cmd *cobra.Command, path string) (*geometry.Hierarchy, error) {
	h := geometry.New(geometry.WithLogger(c.Logger))
	prog := newProgress(c.Logger)
	if err := h.Load(cmd.Context(), path); err != nil {
		return nil, err
	}
	placements, volumes, solids := h.Stats()
	prog.done(fmt.Sprintf("Loaded %s (%s placements, %s volumes, %s solids)", path,
		humanize.Comma(int64(placements)), humanize.Comma(int64(volumes)), humanize.Comma(int64(solids))))
	return h, nil
}

// geometryTreeCommand prints the placement tree or draws it with Graphviz.
func (c *CLI) geometryTreeCommand() *cobra.Command {
	var (
		depth    int
		hall     string
		format   string
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "tree <geometry>",
		Short: "Show the placement hierarchy and the detector subsystems",
		Long: `Print the placement tree down to --depth, followed by the detectors (the
direct daughters of the hall). With --format dot, svg or png the tree is
written as a Graphviz graph instead.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completePositional(geometryExts),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("hall") {
				hall = c.config().Geometry.Hall
			}
			h, err := c.loadHierarchy(cmd, args[0])
			if err != nil {
				return err
			}

			if format == "text" {
				h.Print(os.Stdout, depth)
				printNewline()
				printDetectors(h, hall)
				return nil
			}

			dot := render.HierarchyDOT(h, render.DOTOptions{MaxDepth: depth, Hall: hall, Detailed: detailed})
			data, err := render.RenderDOT(cmd.Context(), dot, format)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printSuccess("Hierarchy graph written")
			printFile(output)
			return nil
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", 3, "maximum tree depth")
	cmd.Flags().StringVar(&hall, "hall", "", "hall placement whose daughters are detectors")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, dot, svg, png")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include volume and copy number in graph labels")
	return cmd
}

func printDetectors(h *geometry.Hierarchy, hall string) {
	dets := h.Detectors(hall)
	if len(dets) == 0 {
		printWarning("No detectors below %s", hall)
		return
	}
	fmt.Println(StyleTitle.Render("Detectors") + StyleDim.Render(" in "+hall))
	for _, d := range dets {
		kind := d.VolumeName()
		if d.IsAssembly() {
			kind += ", assembly"
		}
		printKeyValue(d.Name, kind+", "+strconv.Itoa(len(d.Children()))+" daughters")
	}
}

// geometryExtractCommand generates the display extract next to the geometry.
func (c *CLI) geometryExtractCommand() *cobra.Command {
	var (
		flags   displayFlags
		refresh bool
		top     string
	)

	cmd := &cobra.Command{
		Use:   "extract <geometry>",
		Short: "Generate the simplified display geometry",
		Long: `Simplify the hall subtree to --vis-level and write the extract file
(<geometry minus extension><suffix>). With --top the unprojected top node,
built at the top-node vis level, is also drawn as a 3D SVG.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completePositional(geometryExts),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.apply(c.config(), cmd.Flags())
			if err != nil {
				return err
			}
			h, err := c.loadHierarchy(cmd, args[0])
			if err != nil {
				return err
			}
			ch, keyer, err := c.openCache(cmd.Context(), cfg.Cache)
			if err != nil {
				return err
			}
			defer ch.Close()

			opts := gentle.Options{
				VisLevel:    cfg.Geometry.VisLevel,
				UseDefaults: cfg.Geometry.UseDefaults,
				Rules:       gentle.RulesFromConfig(cfg.Geometry.Rules),
			}
			runner := gentle.NewRunner(ch, keyer, c.Logger)
			res, err := runner.Generate(cmd.Context(), h, gentle.Request{
				Hall:    cfg.Geometry.Hall,
				Path:    cfg.ExtractPath(args[0]),
				Options: opts,
				Refresh: refresh,
			})
			if err != nil {
				return err
			}

			status := iconFresh
			if res.CacheHit {
				status = iconCached
			}
			printSuccess("Extract written (%s)", status)
			printKeyValue("File", cfg.ExtractPath(args[0]))
			printKeyValue("Shapes", humanize.Comma(int64(res.Shapes)))
			printKeyValue("Vis level", strconv.Itoa(cfg.Geometry.VisLevel))
			printKeyValue("Elapsed", res.Duration.String())

			if top == "" {
				return nil
			}
			opts.VisLevel = cfg.Geometry.TopVisLevel
			return writeTopNode(h, cfg.Geometry.Hall, opts, top)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore cached extracts")
	cmd.Flags().StringVar(&top, "top", "", "also draw the top node as a 3D SVG to this file")
	return cmd
}

func writeTopNode(h *geometry.Hierarchy, hall string, opts gentle.Options, path string) error {
	node := h.LocateHall(hall)
	if node == nil {
		return errors.New(errors.ErrCodeGeometryLoad, "hall %q not found", hall)
	}
	el := gentle.Import(gentle.Build(h, node, opts))
	snap := scene.Snapshot{Global: scene.Scene{Name: "Top node", Elements: []*scene.Element{el}}}
	if err := os.WriteFile(path, render.Render3D(snap), 0o644); err != nil {
		return err
	}
	printKeyValue("Top node", fmt.Sprintf("%s shapes at vis level %d", humanize.Comma(int64(el.Count(scene.KindShape))), opts.VisLevel))
	printFile(path)
	return nil
}
