package term

import "errors"

var (
	// ErrClosed is returned by SendInput and Snapshot once the engine has terminated,
	// either through Close or because the worker hit a fatal descriptor error.
	ErrClosed = errors.New("terminal engine is closed")

	// ErrInputOverflow is returned when the pending input queue is over budget.
	ErrInputOverflow = errors.New("terminal input queue is full")

	ErrEmptyCommand = errors.New("terminal command is empty")
	ErrInvalidSize  = errors.New("invalid terminal size")
)
