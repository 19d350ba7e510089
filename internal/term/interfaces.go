package term

// Handle is what front ends need from a running engine.
type Handle interface {
	SendInput(data []byte) error
	Snapshot() (Snapshot, error)
	OnReady(fn func())
	BracketedPasteEnabled() bool
	Done() <-chan struct{}
	Close() error
}

// Tracer receives one structured record per notification burst.
type Tracer interface {
	Info(msg string, fields map[string]any)
}
