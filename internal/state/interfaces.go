package state

import (
	"context"
	"time"
)

// Store persists terminal sessions and the frames captured at each ready
// notification.
type Store interface {
	EnsureSchema(ctx context.Context) error
	StartSession(ctx context.Context, session Session) (string, error)
	EndSession(ctx context.Context, sessionID string, exitCode int, at time.Time) error
	RecordFrame(ctx context.Context, frame Frame) error
	ListSessions(ctx context.Context) ([]SessionSummary, error)
	ListFrames(ctx context.Context, sessionID string) ([]Frame, error)
	LastFrame(ctx context.Context, sessionID string) (*Frame, error)
	Close() error
}

type Session struct {
	ID      string
	Command string
	Width   int
	Height  int
	StartTS time.Time
}

type SessionSummary struct {
	Session
	EndTS    time.Time
	ExitCode int
	Frames   int
}

type Frame struct {
	SessionID  string
	Updates    uint64
	CursorRow  int
	CursorCol  int
	Mode       string
	Text       string
	CapturedTS time.Time
}
