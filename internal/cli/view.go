package cli

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/server"
	"github.com/matzehuels/evdisplay/pkg/viewer"
)

// viewCommand creates the interactive event display.
func (c *CLI) viewCommand() *cobra.Command {
	var (
		flags    displayFlags
		saveBase string
		serve    string
		watch    bool
	)

	cmd := &cobra.Command{
		Use:   "view <geometry> [data]",
		Short: "Browse events interactively in the terminal",
		Long: `Load a geometry and an optional event data file and step through the
events. The summary panel shows the current event; "s" saves the 3D, Z-X
and Z-Y displays. With --serve the displays are also served over HTTP.`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completePositional(geometryExts, dataExts),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.apply(c.config(), cmd.Flags())
			if err != nil {
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

			d := viewer.NewDispatcher()
			o.Bind(d)

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			if watch {
				go o.Watch(ctx)
			}
			if serve != "" {
				srv := server.New(o, d, c.Logger)
				go func() {
					if err := srv.ListenAndServe(ctx, serve); err != nil {
						c.Logger.Error("http viewer stopped", "error", err)
					}
				}()
			}
			return c.runTUI(ctx, o, d, saveBase)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&saveBase, "save", "display", "base path for saved displays (<base>_<view>.<ext>)")
	cmd.Flags().StringVar(&serve, "serve", "", "also serve the HTTP viewer on this address")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the geometry when the file changes")
	return cmd
}

// start loads geometry and data, reporting progress on the log.
func (c *CLI) start(ctx context.Context, o *viewer.Orchestrator, args []string) error {
	var data string
	if len(args) > 1 {
		data = args[1]
	}
	prog := newProgress(c.Logger)
	if err := o.Start(ctx, args[0], data); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Loaded %s", args[0]))
	return nil
}

func (c *CLI) runTUI(ctx context.Context, o *viewer.Orchestrator, d *viewer.Dispatcher, saveBase string) error {
	m := newViewModel(ctx, o, d, saveBase)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Updates from the watcher or the HTTP viewer.
	unsub := o.Subscribe(func(u viewer.Update) { p.Send(updateMsg(u)) })
	defer unsub()

	// The TUI owns the terminal; keep the log out of it.
	c.Logger.SetOutput(&m.log)
	defer c.Logger.SetOutput(c.logOut)

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// =============================================================================
// Key bindings
// =============================================================================

type viewKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Goto   key.Binding
	Save   key.Binding
	Reload key.Binding
	Help   key.Binding
	Quit   key.Binding
	Enter  key.Binding
	Esc    key.Binding
}

var viewKeys = viewKeyMap{
	Next:   key.NewBinding(key.WithKeys("n", "right", "l"), key.WithHelp("n/→", "next event")),
	Prev:   key.NewBinding(key.WithKeys("p", "left", "h"), key.WithHelp("p/←", "previous event")),
	Goto:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "go to event")),
	Save:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save displays")),
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload geometry")),
	Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
	Esc:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
}

func (k viewKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Save, k.Help, k.Quit}
}

func (k viewKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.Goto},
		{k.Save, k.Reload},
		{k.Help, k.Quit},
	}
}

// =============================================================================
// Model
// =============================================================================

type (
	updateMsg viewer.Update

	actionMsg struct {
		action  viewer.Action
		changed bool
		err     error
	}

	savedMsg struct {
		paths []string
		err   error
	}
)

// logBuffer keeps the last lines written by the logger while the TUI runs.
type logBuffer struct {
	mu    sync.Mutex
	lines []string
}

const logLines = 4

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, strings.Split(strings.TrimRight(string(p), "\n"), "\n")...)
	if len(b.lines) > logLines {
		b.lines = b.lines[len(b.lines)-logLines:]
	}
	return len(p), nil
}

func (b *logBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

type viewModel struct {
	ctx        context.Context
	orch       *viewer.Orchestrator
	dispatcher *viewer.Dispatcher
	saveBase   string

	summary   string
	status    string
	detectors []viewer.Detector
	busy      bool
	prompting bool

	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	log     logBuffer
	width   int
}

func newViewModel(ctx context.Context, o *viewer.Orchestrator, d *viewer.Dispatcher, saveBase string) *viewModel {
	in := textinput.New()
	in.Placeholder = "event id"
	in.CharLimit = 20
	in.Width = 20

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleIconSpinner

	return &viewModel{
		ctx:        ctx,
		orch:       o,
		dispatcher: d,
		saveBase:   saveBase,
		summary:    o.Summary().String(),
		detectors:  o.Detectors(),
		input:      in,
		spinner:    sp,
		help:       help.New(),
	}
}

func (m *viewModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.prompting {
			return m.updatePrompt(msg)
		}
		switch {
		case key.Matches(msg, viewKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, viewKeys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case m.busy:
			return m, nil
		case key.Matches(msg, viewKeys.Next):
			return m, m.dispatch(viewer.ActionNext, "")
		case key.Matches(msg, viewKeys.Prev):
			return m, m.dispatch(viewer.ActionPrevious, "")
		case key.Matches(msg, viewKeys.Reload):
			return m, m.dispatch(viewer.ActionReload, "")
		case key.Matches(msg, viewKeys.Save):
			return m, m.save()
		case key.Matches(msg, viewKeys.Goto):
			m.prompting = true
			m.input.SetValue("")
			return m, m.input.Focus()
		}

	case actionMsg:
		m.busy = false
		m.status = actionStatus(msg)
		m.refresh()

	case savedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = styleIconError.Render(iconError) + " " + errors.UserMessage(msg.err)
		} else {
			m.status = styleIconSuccess.Render(iconSuccess) + " saved " + strings.Join(msg.paths, ", ")
		}

	case updateMsg:
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
	}
	return m, nil
}

func (m *viewModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, viewKeys.Esc):
		m.prompting = false
		m.input.Blur()
		return m, nil
	case key.Matches(msg, viewKeys.Enter):
		m.prompting = false
		m.input.Blur()
		id := strings.TrimSpace(m.input.Value())
		if id == "" {
			return m, nil
		}
		return m, m.dispatch(viewer.ActionSelect, id)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *viewModel) refresh() {
	m.summary = m.orch.Summary().String()
	m.detectors = m.orch.Detectors()
}

func (m *viewModel) dispatch(a viewer.Action, arg string) tea.Cmd {
	m.busy = true
	ctx, d := m.ctx, m.dispatcher
	return func() tea.Msg {
		changed, err := d.Dispatch(ctx, a, arg)
		return actionMsg{action: a, changed: changed, err: err}
	}
}

func (m *viewModel) save() tea.Cmd {
	m.busy = true
	ctx, o, base := m.ctx, m.orch, m.saveBase
	return func() tea.Msg {
		b, ext := viewer.SplitOutput(base)
		paths, err := o.SaveDisplays(ctx, b, ext)
		return savedMsg{paths: paths, err: err}
	}
}

func actionStatus(msg actionMsg) string {
	switch {
	case msg.err != nil:
		return styleIconError.Render(iconError) + " " + errors.UserMessage(msg.err)
	case msg.changed:
		return ""
	case msg.action == viewer.ActionNext:
		return styleIconWarning.Render(iconWarning) + " Already at last event."
	case msg.action == viewer.ActionPrevious:
		return styleIconWarning.Render(iconWarning) + " Already at first event."
	}
	return ""
}

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
	detectorStyle = lipgloss.NewStyle().Foreground(colorGray)
)

func (m *viewModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Event Control"))
	b.WriteString("  ")
	b.WriteString(StyleDim.Render(m.orch.GeometryPath()))
	b.WriteString("\n\n")

	summary := panelStyle.Render(m.summary)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, summary, " ", m.detectorPanel()))
	b.WriteString("\n\n")

	switch {
	case m.prompting:
		b.WriteString("Go to event: " + m.input.View())
	case m.busy:
		b.WriteString(m.spinner.View() + StyleDim.Render(" working..."))
	default:
		b.WriteString(m.status)
	}
	b.WriteString("\n\n")

	for _, l := range m.log.Lines() {
		b.WriteString(StyleDim.Render(l))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(viewKeys))
	return b.String()
}

func (m *viewModel) detectorPanel() string {
	if len(m.detectors) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(StyleHighlight.Render("Detectors"))
	for _, d := range m.detectors {
		name := d.Name
		if d.Assembly {
			name += " (assembly)"
		}
		b.WriteString("\n" + detectorStyle.Render(name))
	}
	return panelStyle.Render(b.String())
}
