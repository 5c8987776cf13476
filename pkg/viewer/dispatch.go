package viewer

import (
	"context"
	"sort"
	"sync"

	"github.com/matzehuels/evdisplay/pkg/errors"
)

// Action names a control-surface command.
type Action string

// Actions understood by an Orchestrator bound to a Dispatcher.
const (
	ActionNext     Action = "next"
	ActionPrevious Action = "prev"
	ActionSelect   Action = "select" // arg: event id
	ActionReload   Action = "reload"
	ActionSave     Action = "save" // arg: output base, optionally with extension
)

// Handler runs an action. changed reports whether the displayed content
// changed; a navigation boundary is (false, nil).
type Handler func(ctx context.Context, arg string) (changed bool, err error)

// Dispatcher maps actions to handlers. Control surfaces (TUI keys, HTTP
// routes) dispatch by name instead of calling the orchestrator directly.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Action]Handler
}

// NewDispatcher returns an empty dispatch table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Action]Handler)}
}

// Register binds h to a, replacing any previous handler.
func (d *Dispatcher) Register(a Action, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[a] = h
}

// Dispatch runs the handler of a.
func (d *Dispatcher) Dispatch(ctx context.Context, a Action, arg string) (bool, error) {
	d.mu.RLock()
	h, ok := d.handlers[a]
	d.mu.RUnlock()
	if !ok {
		return false, errors.New(errors.ErrCodeUnsupported, "no handler for action %q", a)
	}
	return h(ctx, arg)
}

// Actions lists the registered actions in name order.
func (d *Dispatcher) Actions() []Action {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Action, 0, len(d.handlers))
	for a := range d.handlers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
