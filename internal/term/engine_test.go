package term

import (
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creack/pty"
	xterm "golang.org/x/term"
)

// attachTestEngine runs an engine on the master of a raw pty pair and
// returns the slave, which plays the part of the child.
func attachTestEngine(t *testing.T, cfg Config, opts ...Option) (*Engine, *os.File) {
	t.Helper()
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	if _, err := xterm.MakeRaw(int(slave.Fd())); err != nil {
		_ = master.Close()
		_ = slave.Close()
		t.Fatalf("make slave raw: %v", err)
	}
	e, err := Attach(master, cfg, opts...)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	t.Cleanup(func() {
		_ = e.Close()
		_ = slave.Close()
	})
	return e, slave
}

func waitReady(t *testing.T, ready <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ready:
	case <-time.After(timeout):
		t.Fatalf("no ready notification within %s", timeout)
	}
}

func readyChan() (chan struct{}, Option) {
	ch := make(chan struct{}, 16)
	return ch, WithReadyFunc(func() { ch <- struct{}{} })
}

func TestEngineHelloSnapshot(t *testing.T) {
	ready, opt := readyChan()
	e, slave := attachTestEngine(t, Config{Width: 20, Height: 4}, opt)

	if _, err := slave.Write([]byte("Hello")); err != nil {
		t.Fatalf("write slave: %v", err)
	}
	waitReady(t, ready, 2*time.Second)

	snap, err := e.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got, want := snap.Line(0), "Hello"+strings.Repeat(" ", 15); got != want {
		t.Fatalf("row 0: got %q, want %q", got, want)
	}
	if snap.State.CursorRow != 0 || snap.State.CursorCol != 5 {
		t.Fatalf("expected cursor (0,5), got (%d,%d)", snap.State.CursorRow, snap.State.CursorCol)
	}
	if snap.State.Updates != 1 {
		t.Fatalf("expected 1 update, got %d", snap.State.Updates)
	}
	if snap.State.Mode != ModeNormal {
		t.Fatalf("expected NORMAL mode, got %s", snap.State.Mode)
	}
}

func TestEngineDebounceCoalescesBurst(t *testing.T) {
	var calls atomic.Int32
	ready := make(chan time.Time, 16)
	e, slave := attachTestEngine(t, Config{Width: 20, Height: 4}, WithReadyFunc(func() {
		calls.Add(1)
		ready <- time.Now()
	}))

	var first, last time.Time
	for i := 0; i < 10; i++ {
		if i == 0 {
			first = time.Now()
		}
		if _, err := slave.Write([]byte{byte('0' + i)}); err != nil {
			t.Fatalf("write slave: %v", err)
		}
		last = time.Now()
		time.Sleep(time.Millisecond)
	}

	var fired time.Time
	select {
	case fired = <-ready:
	case <-time.After(2 * time.Second):
		t.Fatalf("no notification for burst")
	}
	if fired.Before(last) {
		t.Fatalf("notification fired before the burst ended")
	}
	if waited := fired.Sub(first); waited < DefaultDebounce-5*time.Millisecond {
		t.Fatalf("notification after %s, want at least %s", waited, DefaultDebounce)
	}
	if late := fired.Sub(last); late > DefaultDebounce+500*time.Millisecond {
		t.Fatalf("notification %s after the last character", late)
	}

	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected exactly one notification, got %d", n)
	}

	snap, err := e.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State.Updates != 1 {
		t.Fatalf("expected update counter 1, got %d", snap.State.Updates)
	}
	if got := strings.TrimRight(snap.Line(0), " "); got != "0123456789" {
		t.Fatalf("row 0: got %q", got)
	}
}

func TestEngineCloseStopsReadPump(t *testing.T) {
	e, slave := attachTestEngine(t, Config{Width: 20, Height: 4})
	if _, err := slave.Write([]byte("x")); err != nil {
		t.Fatalf("write slave: %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// The slave stays open, so only closing the master can end the read.
	select {
	case <-e.pumped:
	case <-time.After(2 * time.Second):
		t.Fatalf("read pump still running after close")
	}
}

func TestOpenKeepsMasterPollable(t *testing.T) {
	requireShell(t)
	e, err := Open(Config{Width: 20, Height: 4, Command: []string{"/bin/sh", "-c", "sleep 30"}, ReapTimeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := e.master.SetReadDeadline(time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("master lost non-blocking mode: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-e.pumped:
	case <-time.After(2 * time.Second):
		t.Fatalf("read pump still running after close")
	}
}

func TestEngineSeparateBurstsNotifySeparately(t *testing.T) {
	ready, opt := readyChan()
	e, slave := attachTestEngine(t, Config{Width: 20, Height: 4, Debounce: 10 * time.Millisecond}, opt)

	for _, chunk := range []string{"one", "two"} {
		if _, err := slave.Write([]byte(chunk)); err != nil {
			t.Fatalf("write slave: %v", err)
		}
		waitReady(t, ready, 2*time.Second)
	}

	snap, err := e.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State.Updates != 2 {
		t.Fatalf("expected 2 updates, got %d", snap.State.Updates)
	}
}

func TestEngineSendInputReachesChild(t *testing.T) {
	e, slave := attachTestEngine(t, Config{Width: 20, Height: 4})

	for _, part := range []string{"ec", "ho ", "hi\r"} {
		if err := e.SendInput([]byte(part)); err != nil {
			t.Fatalf("send input: %v", err)
		}
	}

	want := "echo hi\r"
	got := make([]byte, 0, len(want))
	buf := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < len(want) && time.Now().Before(deadline) {
		_ = slave.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _ := slave.Read(buf)
		got = append(got, buf[:n]...)
	}
	if string(got) != want {
		t.Fatalf("child read %q, want %q", got, want)
	}
}

func TestEngineSendInputOverflow(t *testing.T) {
	e := newEngine(nil, Config{InputQueueBytes: 4}.withDefaults())
	if err := e.SendInput([]byte("abc")); err != nil {
		t.Fatalf("send input: %v", err)
	}
	if err := e.SendInput([]byte("de")); !errors.Is(err, ErrInputOverflow) {
		t.Fatalf("expected ErrInputOverflow, got %v", err)
	}
}

func TestEngineSnapshotIsIndependent(t *testing.T) {
	ready, opt := readyChan()
	e, slave := attachTestEngine(t, Config{Width: 10, Height: 2}, opt)

	if _, err := slave.Write([]byte("abc")); err != nil {
		t.Fatalf("write slave: %v", err)
	}
	waitReady(t, ready, 2*time.Second)

	first, err := e.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	first.Rows[0][0] = 'Z'

	second, err := e.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if second.Rows[0][0] != 'a' {
		t.Fatalf("snapshot mutation leaked into engine state: %q", second.Line(0))
	}
}

func TestEngineProtocolOverPty(t *testing.T) {
	ready, opt := readyChan()
	e, slave := attachTestEngine(t, Config{Width: 10, Height: 3}, opt)

	stream := "top\r\nmid\r\nbot\nX\x1b[1;2H\x1b[K\x1b[3;1H€"
	if _, err := slave.Write([]byte(stream)); err != nil {
		t.Fatalf("write slave: %v", err)
	}
	waitReady(t, ready, 2*time.Second)

	snap, err := e.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	want := []string{"m", "bot", "€  X"}
	for i, w := range want {
		if got := strings.TrimRight(snap.Line(i), " "); got != w {
			t.Fatalf("row %d: got %q, want %q", i, got, w)
		}
	}
	if snap.State.CursorRow != 2 || snap.State.CursorCol != 1 {
		t.Fatalf("expected cursor (2,1), got (%d,%d)", snap.State.CursorRow, snap.State.CursorCol)
	}
}

func TestEngineClosedOperations(t *testing.T) {
	e, _ := attachTestEngine(t, Config{Width: 10, Height: 2})

	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := e.Snapshot(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Snapshot, got %v", err)
	}
	if err := e.SendInput([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from SendInput, got %v", err)
	}
	select {
	case <-e.Done():
	default:
		t.Fatalf("worker still running after Close")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestEngineHangupIsFatal(t *testing.T) {
	e, slave := attachTestEngine(t, Config{Width: 10, Height: 2})

	if err := slave.Close(); err != nil {
		t.Fatalf("close slave: %v", err)
	}
	select {
	case <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop after hangup")
	}
	if e.Err() == nil {
		t.Fatalf("expected the fatal read error to be recorded")
	}
	if _, err := e.Snapshot(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after hangup, got %v", err)
	}
}

func TestAttachRejectsInvalidSize(t *testing.T) {
	if _, err := Attach(nil, Config{Width: -1, Height: 5}); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Width != DefaultWidth || cfg.Height != DefaultHeight {
		t.Fatalf("unexpected default size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Debounce != DefaultDebounce {
		t.Fatalf("unexpected default debounce %s", cfg.Debounce)
	}
	if cfg.TermName != DefaultTermName {
		t.Fatalf("unexpected default term name %q", cfg.TermName)
	}
}
