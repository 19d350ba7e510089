package state

import "errors"

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrRecorderClosed = errors.New("recorder closed")
)
