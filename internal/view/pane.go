package view

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"minivt/internal/term"
)

// Pane is a tview primitive that shows the latest engine snapshot and
// forwards keys and pastes to the child.
type Pane struct {
	*tview.Box

	handle term.Handle
	logger *log.Logger
	last   term.State
}

func NewPane(handle term.Handle, logger *log.Logger) *Pane {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	p := &Pane{
		Box:    tview.NewBox(),
		handle: handle,
		logger: logger,
	}
	p.SetBorder(true)
	p.SetTitle(" minivt ")
	return p
}

func (p *Pane) Draw(screen tcell.Screen) {
	p.Box.DrawForSubclass(screen, p)
	x, y, width, height := p.GetInnerRect()
	if width <= 0 || height <= 0 {
		return
	}

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			screen.SetContent(x+col, y+row, ' ', nil, tcell.StyleDefault)
		}
	}

	if p.handle == nil {
		drawTextLine(screen, x, y, width, "No terminal session", tcell.StyleDefault.Foreground(tcell.ColorYellow))
		return
	}
	snap, err := p.handle.Snapshot()
	if err != nil {
		drawTextLine(screen, x, y, width, "Terminal closed", tcell.StyleDefault.Foreground(tcell.ColorYellow))
		return
	}
	p.last = snap.State
	p.SetTitle(fmt.Sprintf(" minivt %dx%d  updates %d ", snap.Width(), snap.Height(), snap.State.Updates))

	drawW := min(width, snap.Width())
	drawH := min(height, snap.Height())
	for row := 0; row < drawH; row++ {
		for col := 0; col < drawW; col++ {
			screen.SetContent(x+col, y+row, printable(snap.Rows[row][col]), nil, tcell.StyleDefault)
		}
	}

	cur := snap.State
	if cur.CursorRow < drawH && cur.CursorCol < drawW {
		ch := printable(snap.Rows[cur.CursorRow][cur.CursorCol])
		screen.SetContent(x+cur.CursorCol, y+cur.CursorRow, ch, nil, tcell.StyleDefault.Reverse(true))
	}
}

// LastState is the state of the most recently drawn snapshot.
func (p *Pane) LastState() term.State { return p.last }

func (p *Pane) InputHandler() func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
	return p.WrapInputHandler(func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
		p.send(term.EncodeEventToBytes(event))
	})
}

func (p *Pane) PasteHandler() func(text string, setFocus func(p tview.Primitive)) {
	return p.WrapPasteHandler(func(text string, setFocus func(p tview.Primitive)) {
		if p.handle == nil {
			return
		}
		p.send(term.EncodePasteToBytes(text, p.handle.BracketedPasteEnabled()))
	})
}

func (p *Pane) send(data []byte) {
	if p.handle == nil || len(data) == 0 {
		return
	}
	if err := p.handle.SendInput(data); err != nil {
		p.logger.Warn("input dropped", "bytes", len(data), "err", err)
	}
}

func drawTextLine(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	if width <= 0 {
		return
	}
	runes := []rune(text)
	for i := 0; i < width; i++ {
		ch := ' '
		if i < len(runes) {
			ch = runes[i]
		}
		screen.SetContent(x+i, y, ch, nil, style)
	}
}
