package term

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Mode is the escape parser state.
type Mode int

const (
	ModeNormal Mode = iota
	ModeEsc
	ModeBracket
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeEsc:
		return "ESC"
	case ModeBracket:
		return "BRACKET"
	default:
		return "UNKNOWN"
	}
}

// Command is a CSI final letter understood by the parser.
type Command byte

const (
	CmdUnknown       Command = 0
	CmdCursorUp      Command = 'A'
	CmdCursorDown    Command = 'B'
	CmdCursorForward Command = 'C'
	CmdCursorBack    Command = 'D'
	CmdCursorPos     Command = 'H'
	CmdEraseLine     Command = 'K'
	CmdEraseDisplay  Command = 'J'
)

// commandFor maps a final character to its command. 'f' is an alias of 'H'.
func commandFor(r rune) Command {
	switch r {
	case 'A', 'B', 'C', 'D', 'H', 'K', 'J':
		return Command(r)
	case 'f':
		return CmdCursorPos
	default:
		return CmdUnknown
	}
}

const (
	asciiBEL = 0x07
	asciiESC = 0x1b
)

// Parser drives a Screen from decoded characters using a three-state
// machine: NORMAL, ESC and BRACKET (inside "ESC [").
type Parser struct {
	screen *Screen
	mode   Mode
	params strings.Builder

	onUnknown func(seq string)
}

func NewParser(screen *Screen) *Parser {
	return &Parser{screen: screen}
}

// SetUnknownCallback registers a hook for CSI sequences with an
// unrecognized final character. The sequence is still consumed.
func (p *Parser) SetUnknownCallback(fn func(seq string)) {
	p.onUnknown = fn
}

func (p *Parser) Mode() Mode { return p.mode }

// Params returns the pending CSI parameter text.
func (p *Parser) Params() string { return p.params.String() }

// Reset returns the parser to NORMAL and drops pending parameters.
func (p *Parser) Reset() {
	p.mode = ModeNormal
	p.params.Reset()
}

// Handle feeds one decoded character.
func (p *Parser) Handle(r rune) {
	switch p.mode {
	case ModeNormal:
		p.handleNormal(r)
	case ModeEsc:
		p.handleEsc(r)
	case ModeBracket:
		p.handleBracket(r)
	}
}

// HandleString feeds every rune of s.
func (p *Parser) HandleString(s string) {
	for _, r := range s {
		p.Handle(r)
	}
}

func (p *Parser) handleNormal(r rune) {
	switch r {
	case asciiESC:
		p.mode = ModeEsc
	case asciiBEL:
	case '\n':
		p.screen.Newline()
	case '\t':
		p.screen.Tab()
	case '\r':
		p.screen.CarriageReturn()
	case '\b':
		p.screen.Backspace()
	default:
		p.screen.Write(r)
	}
}

// handleEsc only knows CSI. Any other introducer is printed literally.
func (p *Parser) handleEsc(r rune) {
	if r == '[' {
		p.params.Reset()
		p.mode = ModeBracket
		return
	}
	p.screen.Write(r)
	p.mode = ModeNormal
}

func (p *Parser) handleBracket(r rune) {
	if isParamChar(r) {
		p.params.WriteRune(r)
		return
	}
	p.dispatch(r, strings.Split(p.params.String(), ";"))
	p.params.Reset()
	p.mode = ModeNormal
}

func isParamChar(r rune) bool {
	return (r >= '0' && r <= '9') || r == ';' || r == '='
}

func (p *Parser) dispatch(final rune, args []string) {
	s := p.screen
	switch commandFor(final) {
	case CmdCursorUp:
		s.MoveRow(-countParam(args))
	case CmdCursorDown:
		s.MoveRow(countParam(args))
	case CmdCursorForward:
		s.MoveCol(countParam(args))
	case CmdCursorBack:
		s.MoveCol(-countParam(args))
	case CmdCursorPos:
		pos := parsePosition(args)
		if !pos.ok {
			s.SetCursor(0, 0)
			return
		}
		s.SetCursor(pos.row-1, pos.col-1)
	case CmdEraseLine:
		s.EraseLine()
	case CmdEraseDisplay:
		s.Clear()
	default:
		if p.onUnknown != nil {
			p.onUnknown(p.params.String() + string(final))
		}
	}
}

// countParam returns the first parameter as a repeat count. Missing or
// unparsable values count as 1, and the result is never below 1.
func countParam(args []string) int {
	if len(args) == 0 {
		return 1
	}
	n, ok := parseParam(args[0])
	if !ok {
		return 1
	}
	return max(1, n)
}

// parseParam reads one decimal parameter. Values too large for an int
// saturate to math.MaxInt so the clamping mutators pin the cursor to the
// far edge.
func parseParam(raw string) (int, bool) {
	n, err := strconv.ParseInt(raw, 10, 0)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt, true
	}
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// position is the parsed "row;col" argument of H/f. Values are 1-indexed.
type position struct {
	row, col int
	ok       bool
}

// parsePosition accepts exactly two integer parameters. Anything else,
// including an empty parameter list, yields ok=false and the caller homes
// the cursor.
func parsePosition(args []string) position {
	if len(args) != 2 {
		return position{}
	}
	row, ok := parseParam(args[0])
	if !ok {
		return position{}
	}
	col, ok := parseParam(args[1])
	if !ok {
		return position{}
	}
	return position{row: row, col: col, ok: true}
}
