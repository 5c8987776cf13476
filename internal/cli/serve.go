package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/evdisplay/pkg/server"
	"github.com/matzehuels/evdisplay/pkg/viewer"
)

// serveCommand creates the HTTP viewer command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		flags displayFlags
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve <geometry> [data]",
		Short: "Serve the event display over HTTP",
		Long: `Serve the 3D, Z-X and Z-Y displays and the event controls to a browser.
Connected pages redraw after every change, including geometry reloads
triggered by --watch.`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completePositional(geometryExts, dataExts),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.apply(c.config(), cmd.Flags())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
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
			d := viewer.NewDispatcher()
			o.Bind(d)

			if watch {
				go func() {
					if err := o.Watch(ctx); err != nil {
						c.Logger.Warn("geometry watch stopped", "error", err)
					}
				}()
			}

			srv := server.New(o, d, c.Logger)
			printInfo("Open %s", StyleLink.Render("http://"+cfg.Server.Addr))
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the geometry when the file changes")
	return cmd
}
