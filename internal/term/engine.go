package term

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultWidth           = 80
	DefaultHeight          = 24
	DefaultDebounce        = 25 * time.Millisecond
	DefaultInputQueueBytes = 1 << 20

	readChunkSize = 4096

	bracketedPasteOnSeq  = "\x1b[?2004h"
	bracketedPasteOffSeq = "\x1b[?2004l"
	modeTailMaxLen       = 64
)

// Config controls a single engine instance.
type Config struct {
	Width    int
	Height   int
	Command  []string
	Dir      string
	Env      []string
	TermName string

	// Debounce is the quiet period after the first character of a burst
	// before the ready callback fires.
	Debounce time.Duration

	// MaxRunBytes bounds a malformed UTF-8 run before it is dropped.
	MaxRunBytes int

	// InputQueueBytes bounds input accepted by SendInput but not yet
	// written to the child. Zero means DefaultInputQueueBytes.
	InputQueueBytes int

	ReapTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.MaxRunBytes <= 0 {
		c.MaxRunBytes = DefaultMaxRunBytes
	}
	if c.InputQueueBytes <= 0 {
		c.InputQueueBytes = DefaultInputQueueBytes
	}
	if c.TermName == "" {
		c.TermName = DefaultTermName
	}
	return c
}

// Option customizes an engine.
type Option func(*Engine)

func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithReadyFunc(fn func()) Option {
	return func(e *Engine) { e.ready = fn }
}

func WithTracer(t Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// Engine runs the terminal: one worker goroutine owns the screen, the
// parser and the pty master; callers talk to it through SendInput,
// Snapshot, OnReady and Close.
type Engine struct {
	cfg     Config
	logger  *log.Logger
	tracer  Tracer
	session *Session
	master  *os.File

	// mu is held by the worker while it applies a chunk and by Snapshot
	// while it copies, so a snapshot never observes half a chunk.
	mu             sync.Mutex
	screen         *Screen
	parser         *Parser
	decoder        *Decoder
	updates        uint64
	modeTail       string
	bracketedPaste bool

	readyMu sync.Mutex
	ready   func()

	inMu         sync.Mutex
	pending      [][]byte
	pendingBytes int
	wake         chan struct{}

	output  chan []byte
	readErr chan error
	done    chan struct{}
	exited  chan struct{}

	// pumped is closed once the read pump has returned.
	pumped chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	errMu     sync.Mutex
	err       error

	totalOutputBytes atomic.Int64
}

// Open spawns the configured command on a new pty and starts the engine
// on its master. Spawn errors are returned synchronously.
func Open(cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, ErrInvalidSize
	}
	session, err := StartSession(SessionConfig{
		Command:     cfg.Command,
		Dir:         cfg.Dir,
		Env:         cfg.Env,
		TermName:    cfg.TermName,
		Width:       cfg.Width,
		Height:      cfg.Height,
		ReapTimeout: cfg.ReapTimeout,
	})
	if err != nil {
		return nil, err
	}
	e := newEngine(session.Master(), cfg, opts...)
	e.session = session
	e.logger.Info("terminal opened", "pid", session.PID(), "width", cfg.Width, "height", cfg.Height)
	e.start()
	return e, nil
}

// Attach runs an engine on an existing pty master, for example one end of
// a pty pair fed by a recording. The engine takes ownership of master; the
// caller keeps the slave side. Nothing may have called master.Fd: that
// puts the file in blocking mode and Close could no longer stop the read
// pump until the slave side hangs up.
func Attach(master *os.File, cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, ErrInvalidSize
	}
	e := newEngine(master, cfg, opts...)
	e.logger.Debug("terminal attached", "width", cfg.Width, "height", cfg.Height)
	e.start()
	return e, nil
}

func newEngine(master *os.File, cfg Config, opts ...Option) *Engine {
	screen := NewScreen(cfg.Width, cfg.Height)
	e := &Engine{
		cfg:     cfg,
		logger:  log.New(io.Discard),
		master:  master,
		screen:  screen,
		parser:  NewParser(screen),
		decoder: NewDecoder(cfg.MaxRunBytes),
		wake:    make(chan struct{}, 1),
		output:  make(chan []byte),
		readErr: make(chan error, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
		pumped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.parser.SetUnknownCallback(func(seq string) {
		e.logger.Debug("unrecognized escape", "seq", "ESC["+seq)
	})
	return e
}

func (e *Engine) start() {
	go e.pump()
	go e.run()
}

// OnReady registers the callback fired once per output burst. It runs on
// the worker goroutine and must not call Close.
func (e *Engine) OnReady(fn func()) {
	e.readyMu.Lock()
	defer e.readyMu.Unlock()
	e.ready = fn
}

// SendInput queues data for the child. It never waits for the worker.
func (e *Engine) SendInput(data []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if len(data) == 0 {
		return nil
	}

	e.inMu.Lock()
	if e.pendingBytes+len(data) > e.cfg.InputQueueBytes {
		e.inMu.Unlock()
		return ErrInputOverflow
	}
	e.pending = append(e.pending, append([]byte(nil), data...))
	e.pendingBytes += len(data)
	e.inMu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// Snapshot returns a deep copy of the grid and the current state record.
func (e *Engine) Snapshot() (Snapshot, error) {
	if e.closed.Load() {
		return Snapshot{}, ErrClosed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	row, col := e.screen.Cursor()
	return Snapshot{
		Rows: e.screen.Rows(),
		State: State{
			Updates:   e.updates,
			CursorRow: row,
			CursorCol: col,
			Mode:      e.parser.Mode(),
		},
	}, nil
}

// BracketedPasteEnabled reports whether the child last asked for
// bracketed paste (DECSET 2004).
func (e *Engine) BracketedPasteEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bracketedPaste
}

// TotalOutputBytes returns a monotonic counter of pty output bytes read.
func (e *Engine) TotalOutputBytes() int64 {
	return e.totalOutputBytes.Load()
}

// Done is closed when the worker has exited, for any reason.
func (e *Engine) Done() <-chan struct{} { return e.exited }

// Err returns the fatal error that stopped the worker, if any.
func (e *Engine) Err() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// Session returns the spawned session, or nil for attached engines.
func (e *Engine) Session() *Session { return e.session }

// Close stops the worker, waits for it to exit and reaps the child.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
		<-e.exited
		if e.session != nil {
			e.closeErr = e.session.Reap()
		}
		e.logger.Info("terminal closed", "updates", e.Updates(), "output_bytes", e.TotalOutputBytes())
	})
	return e.closeErr
}

// Updates returns the notification counter. Unlike Snapshot it keeps
// answering after the engine is closed.
func (e *Engine) Updates() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updates
}

// pump turns blocking master reads into ChildOutputReady events. It never
// touches engine state; decoding happens on the worker.
func (e *Engine) pump() {
	defer close(e.pumped)
	buf := make([]byte, readChunkSize)
	for {
		n, err := e.master.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case e.output <- chunk:
			case <-e.exited:
				return
			}
		}
		if err != nil {
			select {
			case e.readErr <- err:
			case <-e.exited:
			}
			return
		}
	}
}

// run is the worker loop. It waits on child output, queued input, the
// debounce deadline and shutdown.
func (e *Engine) run() {
	defer close(e.exited)
	defer e.releaseMaster()

	timer := time.NewTimer(e.cfg.Debounce)
	timer.Stop()
	var (
		deadline   <-chan time.Time
		burstStart time.Time
		burstChars int
	)

	for {
		select {
		case chunk := <-e.output:
			chars := e.consume(chunk)
			if chars == 0 {
				continue
			}
			if deadline == nil {
				burstStart = time.Now()
				timer.Reset(e.cfg.Debounce)
				deadline = timer.C
			}
			burstChars += chars
		case <-e.wake:
			if err := e.flushInput(); err != nil {
				e.fail(err)
				return
			}
		case <-deadline:
			deadline = nil
			e.notify(burstChars, time.Since(burstStart))
			burstChars = 0
		case err := <-e.readErr:
			e.fail(err)
			return
		case <-e.done:
			if err := e.flushInput(); err != nil {
				e.logger.Debug("dropping queued input on close", "err", err)
			}
			return
		}
	}
}

// consume applies one chunk of child output and reports how many
// characters it decoded.
func (e *Engine) consume(chunk []byte) int {
	e.totalOutputBytes.Add(int64(len(chunk)))

	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateModesLocked(chunk)
	chars := 0
	for _, b := range chunk {
		r, ok := e.decoder.Feed(b)
		if !ok {
			continue
		}
		e.parser.Handle(r)
		chars++
	}
	return chars
}

func (e *Engine) notify(chars int, elapsed time.Duration) {
	e.mu.Lock()
	e.updates++
	updates := e.updates
	e.mu.Unlock()

	if e.tracer != nil {
		e.tracer.Info("burst", map[string]any{
			"updates":      updates,
			"chars":        chars,
			"elapsed_ms":   elapsed.Milliseconds(),
			"output_bytes": e.TotalOutputBytes(),
		})
	}

	e.readyMu.Lock()
	fn := e.ready
	e.readyMu.Unlock()
	if fn != nil {
		fn()
	}
}

// flushInput writes every queued input buffer to the master in order.
func (e *Engine) flushInput() error {
	e.inMu.Lock()
	pending := e.pending
	e.pending = nil
	e.pendingBytes = 0
	e.inMu.Unlock()

	for _, data := range pending {
		if _, err := e.master.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) fail(err error) {
	e.closed.Store(true)
	e.errMu.Lock()
	e.err = err
	e.errMu.Unlock()
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || isHangup(err) {
		e.logger.Info("terminal hung up", "err", err)
		return
	}
	e.logger.Error("terminal worker stopped", "err", err)
}

func (e *Engine) releaseMaster() {
	e.closed.Store(true)
	if err := e.master.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		e.logger.Debug("close pty master", "err", err)
	}
}

// updateModesLocked tracks DECSET/DECRST 2004 across chunk boundaries.
func (e *Engine) updateModesLocked(chunk []byte) {
	state := e.modeTail + string(chunk)
	lastOn := strings.LastIndex(state, bracketedPasteOnSeq)
	lastOff := strings.LastIndex(state, bracketedPasteOffSeq)
	if lastOn >= 0 || lastOff >= 0 {
		e.bracketedPaste = lastOn > lastOff
	}
	if len(state) > modeTailMaxLen {
		state = state[len(state)-modeTailMaxLen:]
	}
	e.modeTail = state
}
