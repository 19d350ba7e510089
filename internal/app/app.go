package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	xterm "golang.org/x/term"

	"minivt/internal/config"
	"minivt/internal/replay"
	"minivt/internal/state"
	"minivt/internal/telemetry"
	"minivt/internal/term"
	"minivt/internal/view"
)

const journalCloseTimeout = 5 * time.Second

type Options struct {
	Config config.Config
	Mode   Mode
	Logger *log.Logger
	// Stdout receives printed frames. Defaults to os.Stdout.
	Stdout io.Writer
}

// App wires one engine to its front end, the trace and the journal.
type App struct {
	cfg    config.Config
	mode   Mode
	logger *log.Logger
	stdout io.Writer

	sessionID string
	trace     *telemetry.Trace
	store     *state.SQLiteStore
	journal   Journal

	frameMu sync.Mutex
	frames  int
}

func New(opts Options) (*App, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	sessionID := uuid.NewString()
	trace, err := telemetry.NewTrace(cfg.Output.TracePath, sessionID)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}

	a := &App{
		cfg:       cfg,
		mode:      opts.Mode,
		logger:    logger,
		stdout:    stdout,
		sessionID: sessionID,
		trace:     trace,
	}
	if cfg.Output.JournalPath != "" {
		store, err := state.NewSQLite(cfg.Output.JournalPath)
		if err != nil {
			_ = trace.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		if err := store.EnsureSchema(context.Background()); err != nil {
			_ = store.Close()
			_ = trace.Close()
			return nil, err
		}
		a.store = store
	}
	return a, nil
}

func (a *App) SessionID() string { return a.sessionID }

// FramesPrinted counts frames written to stdout.
func (a *App) FramesPrinted() int {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	return a.frames
}

func (a *App) Close() error {
	var errs []error
	if a.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalCloseTimeout)
		errs = append(errs, a.journal.Close(ctx))
		cancel()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	a.trace.Info("app.stop", map[string]any{"frames": a.FramesPrinted()})
	errs = append(errs, a.trace.Close())
	return errors.Join(errs...)
}

func (a *App) engineOptions() []term.Option {
	return []term.Option{
		term.WithLogger(a.logger),
		term.WithTracer(a.trace),
	}
}

// open spawns the configured command and starts journaling it.
func (a *App) open(ctx context.Context) (*term.Engine, error) {
	tc := a.cfg.TermConfig()
	e, err := term.Open(tc, a.engineOptions()...)
	if err != nil {
		a.trace.Error("session.spawn_failed", map[string]any{"error": err.Error()})
		return nil, err
	}
	command := tc.Command
	if len(command) == 0 {
		command = term.DefaultCommand()
	}
	a.trace.Info("session.start", map[string]any{"pid": e.Session().PID(), "command": strings.Join(command, " ")})
	if err := a.startJournal(ctx, strings.Join(command, " ")); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (a *App) startJournal(ctx context.Context, command string) error {
	if a.store == nil {
		return nil
	}
	id, err := a.store.StartSession(ctx, state.Session{
		ID:      a.sessionID,
		Command: command,
		Width:   a.cfg.Width,
		Height:  a.cfg.Height,
		StartTS: time.Now(),
	})
	if err != nil {
		return err
	}
	a.journal = state.NewRecorder(a.store, id, a.logger, 0)
	return nil
}

func (a *App) finishJournal(e *term.Engine) {
	if a.store == nil {
		return
	}
	exitCode := -1
	if s := e.Session(); s != nil {
		exitCode = s.ExitCode()
	}
	if err := a.store.EndSession(context.Background(), a.sessionID, exitCode, time.Now()); err != nil {
		a.logger.Warn("journal end failed", "err", err)
	}
}

// readyHandler returns the callback run on every notification: record the
// snapshot and, unless silent, print it to w.
func (a *App) readyHandler(e *term.Engine, w io.Writer) func() {
	return func() {
		snap, err := e.Snapshot()
		if err != nil {
			return
		}
		if a.journal != nil {
			if err := a.journal.Record(snap); err != nil {
				a.logger.Debug("journal record skipped", "err", err)
			}
		}
		if a.cfg.Silent || w == nil {
			return
		}
		a.printFrame(w, snap)
	}
}

func (a *App) printFrame(w io.Writer, snap term.Snapshot) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	if err := view.WriteFrame(w, snap, a.frameOptions()); err != nil {
		a.logger.Warn("write frame failed", "err", err)
		return
	}
	a.frames++
}

func (a *App) frameOptions() view.FrameOptions {
	glyph := []rune(a.cfg.Output.CursorGlyph)
	opts := view.FrameOptions{}
	if len(glyph) == 1 {
		opts.CursorGlyph = glyph[0]
	}
	return opts
}

// Print runs the print front end: bytes from in go to the child, every
// notification prints a frame. It returns when the child exits or ctx
// ends. A terminal on in is switched to raw mode for the duration.
func (a *App) Print(ctx context.Context, in io.Reader) error {
	e, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer a.finishJournal(e)
	defer e.Close()

	out := a.stdout
	if f, ok := in.(*os.File); ok && xterm.IsTerminal(int(f.Fd())) {
		restore, err := makeRaw(f)
		if err != nil {
			return err
		}
		defer restore()
		out = newCRLFWriter(out)
	}
	e.OnReady(a.readyHandler(e, out))

	go a.pumpInput(in, e)
	return a.wait(ctx, e)
}

func (a *App) pumpInput(in io.Reader, e *term.Engine) {
	buf := make([]byte, 1024)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			serr := e.SendInput(buf[:n])
			if errors.Is(serr, term.ErrClosed) {
				return
			}
			if serr != nil {
				a.logger.Warn("input dropped", "bytes", n, "err", serr)
			}
		}
		if err != nil {
			if !isClosedRead(err) {
				a.logger.Debug("input reader stopped", "err", err)
			}
			return
		}
	}
}

func (a *App) wait(ctx context.Context, e *term.Engine) error {
	select {
	case <-e.Done():
		a.logger.Info("child exited", "err", e.Err())
		a.trace.Info("session.exit", map[string]any{"updates": e.Updates()})
	case <-ctx.Done():
		a.logger.Info("interrupted")
	}
	return nil
}

// View runs the full screen viewer around a freshly spawned child.
func (a *App) View(ctx context.Context, opts view.ViewerOptions) error {
	e, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer a.finishJournal(e)
	defer e.Close()

	opts.Logger = a.logger
	opts.OnReady = a.readyHandler(e, nil)
	return view.NewViewer(e, opts).Run(ctx)
}

// Replay plays a recording into an engine over a pty pair, printing a
// frame per notification. In silent mode only the final screen is
// printed.
func (a *App) Replay(ctx context.Context, frames []replay.Frame, opts replay.Options) error {
	pair, err := replay.OpenPair(a.cfg.TermConfig(), a.engineOptions()...)
	if err != nil {
		return err
	}
	defer pair.Close()
	if err := a.startJournal(ctx, "replay"); err != nil {
		return err
	}
	defer a.finishJournal(pair.Engine)

	pair.Engine.OnReady(a.readyHandler(pair.Engine, a.stdout))
	a.trace.Info("replay.start", map[string]any{"frames": len(frames), "duration_ms": replay.Duration(frames).Milliseconds()})
	if err := pair.Play(ctx, frames, opts); err != nil {
		return err
	}

	// Let the last burst settle before the final frame.
	select {
	case <-time.After(2 * a.cfg.TermConfig().Debounce):
	case <-ctx.Done():
		return ctx.Err()
	}
	snap, err := pair.Engine.Snapshot()
	if err != nil {
		return err
	}
	a.trace.Info("replay.done", map[string]any{"updates": snap.State.Updates})
	if a.cfg.Silent {
		// Silent replays still show where the recording ended.
		a.printFrame(a.stdout, snap)
	}
	return nil
}
