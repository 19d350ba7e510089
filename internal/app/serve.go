package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/creack/pty"
	xterm "golang.org/x/term"
)

// Serve exposes the engine through a second pseudo-terminal: keystrokes
// written to its slave (by `screen`, `cu` or a plain `cat`) reach the
// child, and every notification writes a frame back. The slave path is
// written to announce before serving starts.
func (a *App) Serve(ctx context.Context, announce io.Writer) error {
	master, slave, err := pty.Open()
	if err != nil {
		return fmt.Errorf("open serving pty: %w", err)
	}
	defer slave.Close()
	defer master.Close()
	if _, err := xterm.MakeRaw(int(slave.Fd())); err != nil {
		return fmt.Errorf("raw serving pty: %w", err)
	}

	e, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer a.finishJournal(e)
	defer e.Close()

	e.OnReady(a.readyHandler(e, newCRLFWriter(master)))
	a.logger.Info("serving", "pts", slave.Name(), "session", a.sessionID)
	a.trace.Info("serve.start", map[string]any{"pts": slave.Name()})
	if announce != nil {
		fmt.Fprintf(announce, "slave pty: %s\n", slave.Name())
	}

	go a.pumpInput(master, e)
	return a.wait(ctx, e)
}

// isClosedRead reports errors that just mean the serving pty went away.
func isClosedRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed)
}
