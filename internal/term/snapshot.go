package term

import (
	"fmt"
	"strings"
)

// State is the immutable record that accompanies a snapshot grid.
type State struct {
	Updates   uint64
	CursorRow int
	CursorCol int
	Mode      Mode
}

func (s State) String() string {
	return fmt.Sprintf("updates=%d row=%d col=%d mode=%s", s.Updates, s.CursorRow, s.CursorCol, s.Mode)
}

// Snapshot is an independent copy of the engine grid. Callers may keep or
// modify it freely.
type Snapshot struct {
	Rows  [][]rune
	State State
}

func (s Snapshot) Width() int {
	if len(s.Rows) == 0 {
		return 0
	}
	return len(s.Rows[0])
}

func (s Snapshot) Height() int { return len(s.Rows) }

// Line returns row i as a string, or "" when out of range.
func (s Snapshot) Line(i int) string {
	if i < 0 || i >= len(s.Rows) {
		return ""
	}
	return string(s.Rows[i])
}

func (s Snapshot) Lines() []string {
	lines := make([]string, len(s.Rows))
	for i, row := range s.Rows {
		lines[i] = string(row)
	}
	return lines
}

// Text joins the rows with newlines, trailing blanks trimmed per row.
func (s Snapshot) Text() string {
	lines := s.Lines()
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}
