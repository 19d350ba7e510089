package term

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// EncodeEventToBytes converts a host key event into the bytes an xterm
// would send to the child. Unknown keys encode to nil.
func EncodeEventToBytes(ev *tcell.EventKey) []byte {
	if ev == nil {
		return nil
	}
	mod := ev.Modifiers()

	switch ev.Key() {
	case tcell.KeyRune:
		out := []byte(string(ev.Rune()))
		if mod&tcell.ModAlt != 0 {
			return append([]byte{asciiESC}, out...)
		}
		return out
	case tcell.KeyEnter:
		return []byte("\r")
	case tcell.KeyTab:
		return []byte("\t")
	case tcell.KeyBacktab:
		return []byte("\x1b[Z")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return []byte{0x7f}
	case tcell.KeyEsc:
		return []byte{asciiESC}
	case tcell.KeyUp:
		return csiWithModifier('A', mod)
	case tcell.KeyDown:
		return csiWithModifier('B', mod)
	case tcell.KeyRight:
		return csiWithModifier('C', mod)
	case tcell.KeyLeft:
		return csiWithModifier('D', mod)
	case tcell.KeyHome:
		return csiWithModifier('H', mod)
	case tcell.KeyEnd:
		return csiWithModifier('F', mod)
	case tcell.KeyPgUp:
		return tildeWithModifier(5, mod)
	case tcell.KeyPgDn:
		return tildeWithModifier(6, mod)
	case tcell.KeyDelete:
		return tildeWithModifier(3, mod)
	case tcell.KeyInsert:
		return tildeWithModifier(2, mod)
	}

	// KeyCtrlSpace..KeyCtrlUnderscore share their values with the C0 codes.
	if k := ev.Key(); k <= tcell.KeyCtrlUnderscore {
		return []byte{byte(k)}
	}
	if f := functionKey(ev.Key()); f != "" {
		return []byte(f)
	}
	return nil
}

func csiWithModifier(final byte, mod tcell.ModMask) []byte {
	if m := xtermModifier(mod); m != 1 {
		return []byte(fmt.Sprintf("\x1b[1;%d%c", m, final))
	}
	return []byte{asciiESC, '[', final}
}

func tildeWithModifier(n int, mod tcell.ModMask) []byte {
	if m := xtermModifier(mod); m != 1 {
		return []byte(fmt.Sprintf("\x1b[%d;%d~", n, m))
	}
	return []byte(fmt.Sprintf("\x1b[%d~", n))
}

// xtermModifier returns the 1-based xterm modifier parameter.
func xtermModifier(mod tcell.ModMask) int {
	m := 1
	if mod&tcell.ModShift != 0 {
		m++
	}
	if mod&tcell.ModAlt != 0 {
		m += 2
	}
	if mod&tcell.ModCtrl != 0 {
		m += 4
	}
	return m
}

var functionKeys = map[tcell.Key]string{
	tcell.KeyF1:  "\x1bOP",
	tcell.KeyF2:  "\x1bOQ",
	tcell.KeyF3:  "\x1bOR",
	tcell.KeyF4:  "\x1bOS",
	tcell.KeyF5:  "\x1b[15~",
	tcell.KeyF6:  "\x1b[17~",
	tcell.KeyF7:  "\x1b[18~",
	tcell.KeyF8:  "\x1b[19~",
	tcell.KeyF9:  "\x1b[20~",
	tcell.KeyF10: "\x1b[21~",
	tcell.KeyF11: "\x1b[23~",
	tcell.KeyF12: "\x1b[24~",
}

func functionKey(k tcell.Key) string {
	return functionKeys[k]
}
