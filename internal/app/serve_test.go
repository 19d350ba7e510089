package app

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

// lineWriter hands every write to a channel.
type lineWriter chan string

func (w lineWriter) Write(p []byte) (int, error) {
	w <- string(p)
	return len(p), nil
}

func TestServeRoundTrip(t *testing.T) {
	a, _ := newTestApp(t, testConfig("/bin/sh", "-c", `read line; printf "<%s>" "$line"; sleep 2`), ModeServe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	announce := make(lineWriter, 1)
	errc := make(chan error, 1)
	go func() { errc <- a.Serve(ctx, announce) }()

	var path string
	select {
	case line := <-announce:
		path = strings.TrimSpace(strings.TrimPrefix(line, "slave pty:"))
	case err := <-errc:
		t.Skipf("serve unavailable: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("serve never announced its pty")
	}

	client, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer client.Close()
	if _, err := client.Write([]byte("hi\r")); err != nil {
		t.Fatalf("client write: %v", err)
	}

	var seen strings.Builder
	buf := make([]byte, 4096)
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(seen.String(), "<hi>") {
		if time.Now().After(deadline) {
			t.Fatalf("no frame with the answer, got:\n%s", seen.String())
		}
		_ = client.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, _ := client.Read(buf)
		seen.Write(buf[:n])
	}
	if !strings.Contains(seen.String(), "TOP ") || !strings.Contains(seen.String(), "\r\n") {
		t.Fatalf("frames should be CRLF framed blocks:\n%q", seen.String())
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop after cancel")
	}
}
