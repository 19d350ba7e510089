package app

import (
	"context"

	"minivt/internal/term"
)

// Journal is the part of the snapshot store the app writes to.
type Journal interface {
	Record(snap term.Snapshot) error
	SessionID() string
	Close(ctx context.Context) error
}
