package state

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"minivt/internal/term"
)

const defaultRecorderBuffer = 64

// FrameFromSnapshot flattens a snapshot into a journal row.
func FrameFromSnapshot(sessionID string, snap term.Snapshot, at time.Time) Frame {
	return Frame{
		SessionID:  sessionID,
		Updates:    snap.State.Updates,
		CursorRow:  snap.State.CursorRow,
		CursorCol:  snap.State.CursorCol,
		Mode:       snap.State.Mode.String(),
		Text:       snap.Text(),
		CapturedTS: at,
	}
}

// Recorder moves frame writes off the terminal worker. Record never
// blocks; frames arriving while the buffer is full are counted and
// dropped.
type Recorder struct {
	store     Store
	sessionID string
	logger    *log.Logger

	mu      sync.Mutex
	closed  bool
	dropped int
	frames  chan Frame
	done    chan struct{}
}

func NewRecorder(store Store, sessionID string, logger *log.Logger, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultRecorderBuffer
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	r := &Recorder{
		store:     store,
		sessionID: sessionID,
		logger:    logger,
		frames:    make(chan Frame, buffer),
		done:      make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Recorder) SessionID() string { return r.sessionID }

func (r *Recorder) Record(snap term.Snapshot) error {
	frame := FrameFromSnapshot(r.sessionID, snap, time.Now())
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.frames <- frame:
	default:
		r.dropped++
	}
	return nil
}

// Dropped reports frames discarded because the writer fell behind.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting frames and waits until queued ones are written
// or ctx ends.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.frames)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for frame := range r.frames {
		if err := r.store.RecordFrame(context.Background(), frame); err != nil {
			r.logger.Warn("journal write failed", "session", r.sessionID, "updates", frame.Updates, "err", err)
		}
	}
}
