package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matzehuels/evdisplay/pkg/trajectory"
)

// eventCount is one row of the events table.
type eventCount struct {
	ID       int64
	Tracks   int
	Accepted int
	Points   int
}

// countEvents scans src once and tallies tracks per event.
func countEvents(ctx context.Context, src trajectory.Source, f trajectory.Filter) ([]eventCount, error) {
	byID := make(map[int64]*eventCount)
	err := src.Scan(ctx, func(r *trajectory.Record) error {
		ec := byID[r.EventID]
		if ec == nil {
			ec = &eventCount{ID: r.EventID}
			byID[r.EventID] = ec
		}
		ec.Tracks++
		ec.Points += r.Points()
		if f.Accept(r) {
			ec.Accepted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]eventCount, 0, len(byID))
	for _, ec := range byID {
		out = append(out, *ec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// eventsCommand lists the events of a data source.
func (c *CLI) eventsCommand() *cobra.Command {
	var (
		flags displayFlags
		limit int
	)

	cmd := &cobra.Command{
		Use:   "events <data>",
		Short: "List events with their track counts",
		Long: `Scan an event data file (.root, .db/.sqlite or a mongodb:// URI) and list
every event with its total and accepted track counts under the active cuts.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completePositional(dataExts),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.apply(c.config(), cmd.Flags())
			if err != nil {
				return err
			}
			src, err := trajectory.OpenSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			prog := newProgress(c.Logger)
			f := trajectory.Filter{KinECutMeV: cfg.Cuts.KinEMeV, LengthCutCm: cfg.Cuts.LengthCm}
			counts, err := countEvents(cmd.Context(), src, f)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Scanned %s", src.Name()))

			fmt.Println(eventsTable(counts, limit))
			printEventTotals(counts, f)
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of rows (0 for all)")
	return cmd
}

func eventsTable(counts []eventCount, limit int) string {
	rows := make([][]string, 0, len(counts))
	for i, ec := range counts {
		if limit > 0 && i >= limit {
			break
		}
		rows = append(rows, []string{
			strconv.FormatInt(ec.ID, 10),
			humanize.Comma(int64(ec.Tracks)),
			humanize.Comma(int64(ec.Accepted)),
			humanize.Comma(int64(ec.Points)),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Event", "Tracks", "Accepted", "Points").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle.Padding(0, 1)
			}
			if col == 2 {
				return cellStyle.Foreground(colorCyan)
			}
			return cellStyle
		}).
		Render()
}

func printEventTotals(counts []eventCount, f trajectory.Filter) {
	var tracks, accepted int64
	for _, ec := range counts {
		tracks += int64(ec.Tracks)
		accepted += int64(ec.Accepted)
	}
	printKeyValue("Events", humanize.Comma(int64(len(counts))))
	printKeyValue("Tracks", humanize.Comma(tracks))
	printKeyValue("Accepted", fmt.Sprintf("%s (above %g MeV, longer than %g cm)",
		humanize.Comma(accepted), f.KinECutMeV, f.LengthCutCm))
}
