package replay

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/creack/pty"
	xterm "golang.org/x/term"

	"minivt/internal/term"
)

// Options tune playback timing.
type Options struct {
	// Speed divides every delay. Zero or negative means real time.
	Speed float64
	// MaxDelay caps a single pause. Zero means no cap.
	MaxDelay time.Duration
}

func (o Options) delay(d time.Duration) time.Duration {
	if o.Speed > 0 && o.Speed != 1 {
		d = time.Duration(float64(d) / o.Speed)
	}
	if o.MaxDelay > 0 && d > o.MaxDelay {
		d = o.MaxDelay
	}
	return d
}

// Play writes frames to w honoring their delays until the recording ends
// or ctx is cancelled.
func Play(ctx context.Context, w io.Writer, frames []Frame, opts Options) error {
	for _, frame := range frames {
		if d := opts.delay(frame.After); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if len(frame.Data) == 0 {
			continue
		}
		if _, err := w.Write(frame.Data); err != nil {
			return err
		}
	}
	return nil
}

// Pair is an engine attached to the master of a fresh pty pair. Whatever
// is written to Slave reaches the engine as child output.
type Pair struct {
	Engine *term.Engine
	Slave  *os.File
}

// OpenPair allocates a pty pair sized like cfg, puts the slave in raw mode
// so recorded bytes pass through untranslated, and attaches an engine to
// the master.
func OpenPair(cfg term.Config, opts ...term.Option) (*Pair, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Pair, error) {
		_ = master.Close()
		_ = slave.Close()
		return nil, err
	}

	width, height := cfg.Width, cfg.Height
	if width == 0 {
		width = term.DefaultWidth
	}
	if height == 0 {
		height = term.DefaultHeight
	}
	if width > 0 && height > 0 {
		if err := pty.Setsize(slave, &pty.Winsize{Cols: uint16(width), Rows: uint16(height)}); err != nil {
			return fail(err)
		}
	}
	if _, err := xterm.MakeRaw(int(slave.Fd())); err != nil {
		return fail(err)
	}

	engine, err := term.Attach(master, cfg, opts...)
	if err != nil {
		return fail(err)
	}
	return &Pair{Engine: engine, Slave: slave}, nil
}

// Play replays frames into the slave.
func (p *Pair) Play(ctx context.Context, frames []Frame, opts Options) error {
	return Play(ctx, p.Slave, frames, opts)
}

// Close stops the engine, then releases the slave.
func (p *Pair) Close() error {
	err := p.Engine.Close()
	if cerr := p.Slave.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
