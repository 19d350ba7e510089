package app

import "strings"

// Mode selects the front end that consumes engine notifications.
type Mode string

const (
	ModePrint  Mode = "print"
	ModeView   Mode = "view"
	ModeServe  Mode = "serve"
	ModeReplay Mode = "replay"
)

func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeView), "run", "tui":
		return ModeView
	case string(ModeServe), "pts":
		return ModeServe
	case string(ModeReplay):
		return ModeReplay
	default:
		return ModePrint
	}
}

// Interactive reports whether the mode owns the host terminal screen, in
// which case logs must not go to stderr.
func (m Mode) Interactive() bool { return m == ModeView }
