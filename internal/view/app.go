package view

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"minivt/internal/term"
)

// DefaultQuitKey detaches the viewer without touching the child, like the
// telnet escape.
const DefaultQuitKey = tcell.KeyCtrlRightSq

type ViewerOptions struct {
	Logger  *log.Logger
	QuitKey tcell.Key
	// Screen replaces the real terminal, for tests.
	Screen tcell.Screen
	// OnReady runs after each redraw request, on the engine worker.
	OnReady func()
}

// Viewer runs a full screen tview application around a Pane.
type Viewer struct {
	app     *tview.Application
	pane    *Pane
	handle  term.Handle
	logger  *log.Logger
	quitKey tcell.Key
	onReady func()

	redraw chan struct{}
	stop   chan struct{}
}

func NewViewer(handle term.Handle, opts ViewerOptions) *Viewer {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	quit := opts.QuitKey
	if quit == 0 {
		quit = DefaultQuitKey
	}
	v := &Viewer{
		app:     tview.NewApplication(),
		pane:    NewPane(handle, logger),
		handle:  handle,
		logger:  logger,
		quitKey: quit,
		onReady: opts.OnReady,
		redraw:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	if opts.Screen != nil {
		v.app.SetScreen(opts.Screen)
	}
	v.app.SetRoot(v.pane, true).SetFocus(v.pane)
	v.app.EnablePaste(true)
	v.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == v.quitKey {
			v.app.Stop()
			return nil
		}
		return event
	})
	return v
}

func (v *Viewer) Pane() *Pane { return v.pane }

// Run blocks until the child exits, ctx ends or the quit key is pressed.
// It does not close the engine.
func (v *Viewer) Run(ctx context.Context) error {
	v.handle.OnReady(func() {
		select {
		case v.redraw <- struct{}{}:
		default:
		}
		if v.onReady != nil {
			v.onReady()
		}
	})
	defer v.handle.OnReady(v.onReady)
	defer close(v.stop)

	go v.forward(ctx)

	v.logger.Debug("viewer started")
	err := v.app.Run()
	v.logger.Debug("viewer stopped", "err", err)
	return err
}

// forward turns ready notifications into redraws and stops the app when
// the engine or ctx is done.
func (v *Viewer) forward(ctx context.Context) {
	for {
		select {
		case <-v.stop:
			return
		case <-v.redraw:
			v.app.QueueUpdateDraw(func() {})
		case <-v.handle.Done():
			v.app.QueueUpdate(v.app.Stop)
			return
		case <-ctx.Done():
			v.app.QueueUpdate(v.app.Stop)
			return
		}
	}
}
