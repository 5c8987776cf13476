package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/viewer"
)

// snapshotCommand saves the displays of one event without any UI.
func (c *CLI) snapshotCommand() *cobra.Command {
	var (
		flags  displayFlags
		output string
		event  string
	)

	cmd := &cobra.Command{
		Use:   "snapshot <geometry> [data]",
		Short: "Save the 3D, Z-X and Z-Y displays of an event",
		Long: `Write one file per view, named <base>_<view>.<ext>. The extension of
--output selects the format (svg, png, pdf or json); svg is the default.`,
		Example:           `  evdisplay snapshot detector.gdml events.root --event 42 -o out/evt42.png`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completePositional(geometryExts, dataExts),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.apply(c.config(), cmd.Flags())
			if err != nil {
				return err
			}
			base, ext := viewer.SplitOutput(output)
			if err := errors.ValidateOutputBase(base); err != nil {
				return err
			}
			if err := errors.ValidateImageFormat(ext); err != nil {
				return err
			}

			ctx := cmd.Context()
			o, cleanup, err := c.newOrchestrator(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := c.start(ctx, o, args); err != nil {
				return err
			}
			if event != "" {
				id, err := strconv.ParseInt(event, 10, 64)
				if err != nil {
					return errors.New(errors.ErrCodeInvalidInput, "invalid event id %q", event)
				}
				if err := o.Select(ctx, id); err != nil {
					return err
				}
			}

			st := startStatus(ctx, os.Stderr, fmt.Sprintf("Rendering %s displays...", strings.ToUpper(ext)))
			paths, err := o.SaveDisplays(ctx, base, ext)
			if err := st.finish(err, firstLine(o.Summary().String())); err != nil {
				return err
			}
			for _, p := range paths {
				printFile(p)
			}
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "display", "output base path; the extension selects the format")
	cmd.Flags().StringVarP(&event, "event", "e", "", "event id (default: first or last viewed event)")
	return cmd
}
