package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// status animates a spinner next to a message on one line of w while a
// blocking call runs. It stops on finish or when ctx ends.
type status struct {
	w      io.Writer
	line   string
	frames spinner.Spinner

	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

// startStatus draws the first frame and starts the animation.
func startStatus(ctx context.Context, w io.Writer, msg string) *status {
	ctx, cancel := context.WithCancel(ctx)
	s := &status{
		w:       w,
		line:    StyleDim.Render(msg),
		frames:  spinner.Dot,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

func (s *status) run(ctx context.Context) {
	defer close(s.stopped)
	ticker := time.NewTicker(s.frames.FPS)
	defer ticker.Stop()

	width := 0
	for i := 0; ; i++ {
		frame := styleIconSpinner.Render(s.frames.Frames[i%len(s.frames.Frames)])
		out := frame + " " + s.line
		width = max(width, lipgloss.Width(out))
		fmt.Fprint(s.w, "\r"+out)

		select {
		case <-ctx.Done():
			fmt.Fprint(s.w, "\r"+strings.Repeat(" ", width)+"\r")
			return
		case <-ticker.C:
		}
	}
}

// finish stops the animation, clears the line and reports the outcome of
// the call. It returns err unchanged.
func (s *status) finish(err error, success string) error {
	s.once.Do(func() {
		s.cancel()
		<-s.stopped
		if err != nil {
			printError("Rendering failed")
			return
		}
		printSuccess("%s", success)
	})
	return err
}
