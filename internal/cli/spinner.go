package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// spinnerFrames is the braille animation cycle.
var spinnerFrames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner animates a progress indicator on stderr while a resolution or
// network operation runs. It stops on Stop or when its context is cancelled.
type Spinner struct {
	message string
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

// newSpinnerWithContext creates a spinner bound to ctx. Call Start to begin
// the animation.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	ctx, cancel := context.WithCancel(ctx)
	return &Spinner{
		message: message,
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

func (s *Spinner) run(ctx context.Context) {
	defer close(s.stopped)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-ctx.Done():
			s.clearLine()
			return
		case <-ticker.C:
			glyph := spinnerFrames[frame%len(spinnerFrames)]
			fmt.Fprintf(os.Stderr, "\r%s %s", styleIconSpinner.Render(glyph), StyleDim.Render(s.message))
		}
	}
}

// Start begins the animation.
func (s *Spinner) Start() { go s.run(s.ctx) }

// Stop ends the animation and clears the line. Safe to call more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.stopped
	})
}

// StopWithSuccess stops the spinner and prints a success line.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	printSuccess("%s", message)
}

// StopWithError stops the spinner and prints an error line.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

func (s *Spinner) clearLine() {
	fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
}
