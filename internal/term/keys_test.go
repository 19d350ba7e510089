package term

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestEncodeEventToBytes(t *testing.T) {
	tests := []struct {
		name string
		ev   *tcell.EventKey
		want string
	}{
		{name: "rune", ev: tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), want: "x"},
		{name: "multibyte rune", ev: tcell.NewEventKey(tcell.KeyRune, 'é', tcell.ModNone), want: "é"},
		{name: "enter", ev: tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), want: "\r"},
		{name: "tab", ev: tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone), want: "\t"},
		{name: "shift tab", ev: tcell.NewEventKey(tcell.KeyBacktab, 0, tcell.ModNone), want: "\x1b[Z"},
		{name: "alt rune", ev: tcell.NewEventKey(tcell.KeyRune, 'b', tcell.ModAlt), want: "\x1bb"},
		{name: "up", ev: tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), want: "\x1b[A"},
		{name: "ctrl left", ev: tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModCtrl), want: "\x1b[1;5D"},
		{name: "alt right", ev: tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModAlt), want: "\x1b[1;3C"},
		{name: "shift up", ev: tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModShift), want: "\x1b[1;2A"},
		{name: "page down", ev: tcell.NewEventKey(tcell.KeyPgDn, 0, tcell.ModNone), want: "\x1b[6~"},
		{name: "ctrl delete", ev: tcell.NewEventKey(tcell.KeyDelete, 0, tcell.ModCtrl), want: "\x1b[3;5~"},
		{name: "ctrl c", ev: tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), want: "\x03"},
		{name: "f5", ev: tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone), want: "\x1b[15~"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeEventToBytes(tt.ev)
			if string(got) != tt.want {
				t.Fatalf("got %q, want %q", string(got), tt.want)
			}
		})
	}
}

func TestEncodeEventToBytesNil(t *testing.T) {
	if got := EncodeEventToBytes(nil); got != nil {
		t.Fatalf("expected nil for nil event, got %q", got)
	}
}
