package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srg/blepoll/internal/groutine"
	"github.com/srg/blepoll/session"
	"golang.org/x/term"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

var phaseLabels = map[session.State]string{
	session.Idle:                   "Starting",
	session.AdapterAcquired:        "Adapter ready",
	session.Scanning:               "Scanning",
	session.PeripheralFound:        "Connecting",
	session.Connected:              "Discovering services",
	session.ServicesResolved:       "Resolving characteristic",
	session.CharacteristicResolved: "Resolving characteristic",
}

// ProgressPrinter shows the current phase of a run with elapsed seconds.
//
// Usage:
//
//	p := NewProgressPrinter(w, "Polling ChoiceMMed")
//	p.Start()
//	defer p.Stop()
//
// A ProgressPrinter is single-use. Polling, Done and Failed stop it
// automatically so that read results are never interleaved with the
// progress line.
type ProgressPrinter struct {
	w         io.Writer
	prefix    string
	state     atomic.Int32
	startTime time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewProgressPrinter creates a progress printer writing to w.
func NewProgressPrinter(w io.Writer, prefix string) *ProgressPrinter {
	return &ProgressPrinter{
		w:      w,
		prefix: prefix,
		done:   make(chan struct{}),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressPrinter) Start() {
	p.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		p.startTime = time.Now()
		p.printProgress()

		groutine.Go(ctx, "progress", func(ctx context.Context) {
			defer close(p.done)

			ticker := time.NewTicker(progressUpdateInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.printProgress()
				}
			}
		})
	})
}

func (p *ProgressPrinter) printProgress() {
	phase := phaseLabels[session.State(p.state.Load())]
	if seconds := int(time.Since(p.startTime).Seconds()); seconds > 0 {
		fmt.Fprintf(p.w, "\r%s (%s %ds)   ", p.prefix, phase, seconds)
		return
	}
	fmt.Fprintf(p.w, "\r%s (%s...)   ", p.prefix, phase)
}

// Callback returns a session progress callback that updates the phase.
func (p *ProgressPrinter) Callback() session.ProgressCallback {
	return func(state session.State) {
		p.state.Store(int32(state))
		if state >= session.Polling {
			p.Stop()
		}
	}
}

// Stop stops the progress display and clears the line. It is safe to call
// more than once and before Start.
func (p *ProgressPrinter) Stop() {
	// A stopped printer cannot be started.
	p.startOnce.Do(func() {})

	p.stopOnce.Do(func() {
		if p.cancel == nil {
			return
		}
		p.cancel()
		<-p.done
		fmt.Fprint(p.w, clearLineSequence)
	})
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
