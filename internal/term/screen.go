package term

// TabWidth is the fixed distance between tab stops.
const TabWidth = 8

const blank = ' '

// Screen is the fixed-size character grid and cursor. It is not safe for
// concurrent use; the engine worker is its only mutator.
//
// col may equal width right after a write into the last column. The next
// write wraps first; Cursor always reports the clamped position.
type Screen struct {
	width  int
	height int
	rows   [][]rune
	row    int
	col    int
}

func NewScreen(width, height int) *Screen {
	s := &Screen{width: max(1, width), height: max(1, height)}
	s.Clear()
	return s
}

func (s *Screen) Width() int  { return s.width }
func (s *Screen) Height() int { return s.height }

// Cursor returns the cursor position clamped to the grid.
func (s *Screen) Cursor() (row, col int) {
	return clampIndex(s.row, s.height), clampIndex(s.col, s.width)
}

// Cell returns the rune at (row, col), or a blank when out of range.
func (s *Screen) Cell(row, col int) rune {
	if row < 0 || row >= s.height || col < 0 || col >= s.width {
		return blank
	}
	return s.rows[row][col]
}

// Write stores r at the cursor and advances one column, wrapping to the
// next line first when the previous write filled the row.
func (s *Screen) Write(r rune) {
	if s.col >= s.width {
		s.wrap()
	}
	s.rows[s.row][s.col] = r
	s.col++
}

// Newline moves down one row, scrolling the grid up when the cursor is on
// the last row. The column is left alone.
func (s *Screen) Newline() {
	if s.row < s.height-1 {
		s.MoveRow(1)
		return
	}
	s.shiftRows()
}

// Tab writes one blank and keeps writing blanks until the column reaches a
// multiple of TabWidth.
func (s *Screen) Tab() {
	s.Write(blank)
	for s.col%TabWidth != 0 {
		s.Write(blank)
	}
}

func (s *Screen) CarriageReturn() { s.col = 0 }

func (s *Screen) Backspace() { s.MoveCol(-1) }

// EraseLine blanks the current row from the cursor column to the end. The
// cursor does not move.
func (s *Screen) EraseLine() {
	if s.col >= s.width {
		return
	}
	line := s.rows[s.row]
	for c := s.col; c < s.width; c++ {
		line[c] = blank
	}
}

// Clear blanks the grid and homes the cursor.
func (s *Screen) Clear() {
	rows := make([][]rune, s.height)
	for i := range rows {
		rows[i] = blankRow(s.width)
	}
	s.rows = rows
	s.row, s.col = 0, 0
}

func (s *Screen) SetRow(n int) { s.row = clampIndex(n, s.height) }
func (s *Screen) SetCol(n int) { s.col = clampIndex(n, s.width) }

// MoveRow and MoveCol bound the delta by the grid size first, so huge
// counts stop at the edge instead of overflowing.
func (s *Screen) MoveRow(n int) { s.SetRow(s.row + saturate(n, s.height)) }
func (s *Screen) MoveCol(n int) { s.SetCol(s.col + saturate(n, s.width)) }

func (s *Screen) SetCursor(row, col int) {
	s.SetRow(row)
	s.SetCol(col)
}

// Rows returns a deep copy of the grid.
func (s *Screen) Rows() [][]rune {
	out := make([][]rune, len(s.rows))
	for i, line := range s.rows {
		out[i] = append([]rune(nil), line...)
	}
	return out
}

func (s *Screen) wrap() {
	s.Newline()
	s.col = 0
}

// shiftRows drops row 0 and appends a blank row at the bottom.
func (s *Screen) shiftRows() {
	copy(s.rows, s.rows[1:])
	s.rows[s.height-1] = blankRow(s.width)
}

func blankRow(width int) []rune {
	line := make([]rune, width)
	for i := range line {
		line[i] = blank
	}
	return line
}

func saturate(n, limit int) int {
	return max(-limit, min(n, limit))
}

func clampIndex(n, size int) int {
	return max(0, min(n, size-1))
}
