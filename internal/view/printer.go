package view

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"

	"minivt/internal/term"
)

const DefaultCursorGlyph = '_'

// FrameOptions controls WriteFrame.
type FrameOptions struct {
	// CursorGlyph replaces the cell under the cursor. Zero means '_'.
	CursorGlyph rune
	// HideCursor leaves the cursor cell untouched.
	HideCursor bool
	// HideState drops the trailing state line.
	HideState bool
}

// WriteFrame prints a snapshot as a numbered, framed block:
//
//	TOP -------
//	 1 |Hello_ |
//	BOT -------
//	updates=1 row=0 col=5 mode=NORMAL
func WriteFrame(w io.Writer, snap term.Snapshot, opts FrameOptions) error {
	glyph := opts.CursorGlyph
	if glyph == 0 {
		glyph = DefaultCursorGlyph
	}

	lines := make([]string, len(snap.Rows))
	width := snap.Width()
	for i, row := range snap.Rows {
		var b strings.Builder
		for col, ch := range row {
			if !opts.HideCursor && i == snap.State.CursorRow && col == snap.State.CursorCol {
				ch = glyph
			}
			b.WriteRune(printable(ch))
		}
		lines[i] = b.String()
		width = max(width, ansi.StringWidth(lines[i]))
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, ruler("TOP ", width+4))
	for i, line := range lines {
		fmt.Fprintf(bw, "%2d |%s|\n", i+1, line)
	}
	fmt.Fprintln(bw, ruler("BOT ", width+4))
	if !opts.HideState {
		fmt.Fprintln(bw, snap.State.String())
	}
	return bw.Flush()
}

func ruler(label string, width int) string {
	if width <= len(label) {
		return label
	}
	return label + strings.Repeat("-", width-len(label))
}

// printable maps cells that would corrupt the host terminal to blanks.
func printable(ch rune) rune {
	if ch == 0 || ch == utf8.RuneError || !utf8.ValidRune(ch) {
		return ' '
	}
	if ch < 0x20 || ch == 0x7f || unicode.IsControl(ch) {
		return ' '
	}
	return ch
}
