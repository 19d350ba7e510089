package app

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/dustin/go-humanize"

	"minivt/internal/state"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5EEBFF"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A94A6"))
)

type JournalQuery struct {
	Path      string
	SessionID string
	// LastOnly prints only the most recent frame of SessionID.
	LastOnly bool
}

// ListJournal prints the sessions stored in a journal or, with a session
// id, the frames captured for it.
func ListJournal(ctx context.Context, q JournalQuery, w io.Writer) error {
	store, err := state.NewSQLite(q.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	if q.SessionID == "" {
		sessions, err := store.ListSessions(ctx)
		if err != nil {
			return err
		}
		return writeSessions(w, sessions)
	}

	if q.LastOnly {
		frame, err := store.LastFrame(ctx, q.SessionID)
		if err != nil {
			return err
		}
		if frame == nil {
			return fmt.Errorf("session %q: %w", q.SessionID, state.ErrUnknownSession)
		}
		return writeFrames(w, []state.Frame{*frame})
	}
	frames, err := store.ListFrames(ctx, q.SessionID)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("session %q: %w", q.SessionID, state.ErrUnknownSession)
	}
	return writeFrames(w, frames)
}

func writeSessions(w io.Writer, sessions []state.SessionSummary) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, mutedStyle.Render("no sessions recorded"))
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SESSION", "COMMAND", "SIZE", "STARTED", "FRAMES", "EXIT")
	for _, s := range sessions {
		exit := "-"
		if !s.EndTS.IsZero() {
			exit = strconv.Itoa(s.ExitCode)
		}
		t.Row(
			s.ID,
			s.Command,
			fmt.Sprintf("%dx%d", s.Width, s.Height),
			humanize.Time(s.StartTS),
			strconv.Itoa(s.Frames),
			exit,
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func writeFrames(w io.Writer, frames []state.Frame) error {
	for _, f := range frames {
		heading := fmt.Sprintf("updates=%d row=%d col=%d mode=%s", f.Updates, f.CursorRow, f.CursorCol, f.Mode)
		if _, err := fmt.Fprintf(w, "%s %s\n", headerStyle.Render(heading), mutedStyle.Render(humanize.Time(f.CapturedTS))); err != nil {
			return err
		}
		for _, line := range strings.Split(f.Text, "\n") {
			if _, err := fmt.Fprintf(w, "  %s\n", line); err != nil {
				return err
			}
		}
	}
	return nil
}
