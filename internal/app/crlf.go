package app

import (
	"bytes"
	"io"
)

// crlfWriter expands LF to CR LF for writers backed by a raw terminal,
// where the line discipline no longer does it.
type crlfWriter struct {
	w io.Writer
}

func newCRLFWriter(w io.Writer) io.Writer { return crlfWriter{w: w} }

func (c crlfWriter) Write(p []byte) (int, error) {
	if bytes.IndexByte(p, '\n') < 0 {
		return c.w.Write(p)
	}
	out := make([]byte, 0, len(p)+bytes.Count(p, []byte{'\n'}))
	for i, b := range p {
		if b == '\n' && (i == 0 || p[i-1] != '\r') {
			out = append(out, '\r')
		}
		out = append(out, b)
	}
	if _, err := c.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
