package replay

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type recorded struct {
	at   time.Duration
	data string
}

func encodeTTYRec(base time.Time, records []recorded) []byte {
	var out []byte
	for _, r := range records {
		ts := base.Add(r.at)
		header := make([]byte, headerSize)
		binary.LittleEndian.PutUint32(header[0:4], uint32(ts.Unix()))
		binary.LittleEndian.PutUint32(header[4:8], uint32(ts.Nanosecond()/1000))
		binary.LittleEndian.PutUint32(header[8:12], uint32(len(r.data)))
		out = append(out, header...)
		out = append(out, r.data...)
	}
	return out
}

var sampleBase = time.Unix(1_700_000_000, 0)

func TestDecodeDelays(t *testing.T) {
	data := encodeTTYRec(sampleBase, []recorded{
		{at: 0, data: "\x1b[2J\x1b[Hminivt"},
		{at: 40 * time.Millisecond, data: "\r\n$ "},
		{at: 1500 * time.Millisecond, data: "ls\r\n"},
	})
	frames, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if frames[0].After != 0 {
		t.Fatalf("first frame must not wait, got %s", frames[0].After)
	}
	if frames[1].After != 40*time.Millisecond {
		t.Fatalf("unexpected second delay %s", frames[1].After)
	}
	if frames[2].After != 1460*time.Millisecond {
		t.Fatalf("unexpected third delay %s", frames[2].After)
	}
	if string(frames[2].Data) != "ls\r\n" {
		t.Fatalf("unexpected payload %q", frames[2].Data)
	}
	if got := Duration(frames); got != 1500*time.Millisecond {
		t.Fatalf("unexpected duration %s", got)
	}
}

func TestDecodeClockGoingBackwards(t *testing.T) {
	data := encodeTTYRec(sampleBase, []recorded{
		{at: time.Second, data: "a"},
		{at: 0, data: "b"},
	})
	frames, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frames[1].After != 0 {
		t.Fatalf("expected zero delay, got %s", frames[1].After)
	}
}

func TestDecodeErrors(t *testing.T) {
	valid := encodeTTYRec(sampleBase, []recorded{{at: 0, data: "hello"}})
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "too short", data: []byte{1, 2, 3}, want: ErrTooShort},
		{name: "truncated header", data: append(append([]byte(nil), valid...), 0, 0, 0), want: ErrTruncatedHeader},
		{name: "truncated payload", data: valid[:len(valid)-2], want: ErrTruncatedPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	data := encodeTTYRec(sampleBase, []recorded{{at: 0, data: "x"}, {at: time.Millisecond, data: "y"}})

	raw := filepath.Join(dir, "session.ttyrec")
	if err := os.WriteFile(raw, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames, err := ReadFile(raw, false)
	if err != nil || len(frames) != 2 {
		t.Fatalf("read raw: %v (%d frames)", err, len(frames))
	}

	encoded := filepath.Join(dir, "session.b64")
	if err := os.WriteFile(encoded, []byte(base64.StdEncoding.EncodeToString(data)+"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames, err = ReadFile(encoded, true)
	if err != nil || len(frames) != 2 {
		t.Fatalf("read base64: %v (%d frames)", err, len(frames))
	}

	if _, err := DecodeBase64("not base64!"); err == nil {
		t.Fatalf("expected base64 error")
	}
}
