package telemetry

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Trace writes one JSON object per line. Each entry carries the session
// it belongs to and a sequence number so bursts can be ordered after the
// fact.
type Trace struct {
	mu      sync.Mutex
	w       io.WriteCloser
	enc     *json.Encoder
	session string
	seq     uint64
	now     func() time.Time
}

// NewTrace opens path for writing. An empty path discards every entry and
// "-" writes to stderr.
func NewTrace(path, session string) (*Trace, error) {
	switch path {
	case "":
		return newTrace(nopCloser{Writer: io.Discard}, session), nil
	case "-":
		return newTrace(nopCloser{Writer: os.Stderr}, session), nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return newTrace(f, session), nil
}

func newTrace(w io.WriteCloser, session string) *Trace {
	return &Trace{
		w:       w,
		enc:     json.NewEncoder(w),
		session: session,
		now:     time.Now,
	}
}

func (t *Trace) Info(msg string, fields map[string]any) {
	t.write("info", msg, fields)
}

func (t *Trace) Error(msg string, fields map[string]any) {
	t.write("error", msg, fields)
}

// Entries returns how many entries have been written.
func (t *Trace) Entries() uint64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

func (t *Trace) write(level, msg string, fields map[string]any) {
	if t == nil || t.w == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	entry := make(map[string]any, len(fields)+5)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = t.now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level
	entry["msg"] = msg
	entry["seq"] = t.seq
	if t.session != "" {
		entry["session"] = t.session
	}
	_ = t.enc.Encode(entry)
}

func (t *Trace) Close() error {
	if t == nil || t.w == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
