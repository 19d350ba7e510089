package replay

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const headerSize = 12

var (
	ErrTooShort         = errors.New("ttyrec data too short")
	ErrTruncatedHeader  = errors.New("truncated ttyrec header")
	ErrTruncatedPayload = errors.New("truncated ttyrec payload")
	ErrNoFrames         = errors.New("no frames in ttyrec")
)

// Frame is one recorded write: Data is emitted After the previous frame.
type Frame struct {
	After time.Duration
	Data  []byte
}

// Duration is the sum of all frame delays.
func Duration(frames []Frame) time.Duration {
	var total time.Duration
	for _, f := range frames {
		total += f.After
	}
	return total
}

// Decode parses a ttyrec stream: a sequence of 12-byte little endian
// headers (seconds, microseconds, length) each followed by its payload.
// Delays are derived from consecutive timestamps; a clock going backwards
// yields a zero delay.
func Decode(data []byte) ([]Frame, error) {
	if len(data) < headerSize {
		return nil, ErrTooShort
	}

	frames := make([]Frame, 0, 16)
	offset := 0
	var lastTS int64
	first := true

	for offset < len(data) {
		if offset+headerSize > len(data) {
			return nil, fmt.Errorf("frame %d: %w", len(frames), ErrTruncatedHeader)
		}
		sec := binary.LittleEndian.Uint32(data[offset : offset+4])
		usec := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		size := binary.LittleEndian.Uint32(data[offset+8 : offset+12])
		offset += headerSize

		if size > uint32(len(data)-offset) {
			return nil, fmt.Errorf("frame %d: %w", len(frames), ErrTruncatedPayload)
		}
		chunk := append([]byte(nil), data[offset:offset+int(size)]...)
		offset += int(size)

		ts := int64(sec)*1_000_000 + int64(usec)
		var delay time.Duration
		if !first && ts > lastTS {
			delay = time.Duration(ts-lastTS) * time.Microsecond
		}
		first = false
		lastTS = ts

		frames = append(frames, Frame{After: delay, Data: chunk})
	}

	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	return frames, nil
}

func DecodeBase64(s string) ([]Frame, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode base64 ttyrec: %w", err)
	}
	return Decode(data)
}

// ReadFile loads a recording. With encoded set the file holds the base64
// form of the recording.
func ReadFile(path string, encoded bool) ([]Frame, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if encoded {
		return DecodeBase64(string(b))
	}
	return Decode(b)
}
