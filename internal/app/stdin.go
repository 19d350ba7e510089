package app

import (
	"os"

	xterm "golang.org/x/term"
)

// makeRaw puts a host terminal in raw mode so every key reaches the child
// unchanged, including ^C.
func makeRaw(f *os.File) (func(), error) {
	fd := int(f.Fd())
	old, err := xterm.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = xterm.Restore(fd, old) }, nil
}
