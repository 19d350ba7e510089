package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; the recorder is the only producer anyway.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL DEFAULT '',
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			start_ts TEXT NOT NULL,
			end_ts TEXT NOT NULL DEFAULT '',
			exit_code INTEGER NOT NULL DEFAULT -1
		);`,
		`CREATE TABLE IF NOT EXISTS frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			updates INTEGER NOT NULL,
			cursor_row INTEGER NOT NULL,
			cursor_col INTEGER NOT NULL,
			mode TEXT NOT NULL,
			screen_text TEXT NOT NULL,
			captured_ts TEXT NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id)
		);`,
		`CREATE INDEX IF NOT EXISTS frames_session_idx ON frames(session_id, updates);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// StartSession records a new session. A missing ID is filled with a fresh
// UUID; the ID actually stored is returned.
func (s *SQLiteStore) StartSession(ctx context.Context, session Session) (string, error) {
	id := strings.TrimSpace(session.ID)
	if id == "" {
		id = uuid.NewString()
	}
	start := session.StartTS
	if start.IsZero() {
		start = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, command, width, height, start_ts) VALUES(?,?,?,?,?)`,
		id,
		session.Command,
		session.Width,
		session.Height,
		start.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) EndSession(ctx context.Context, sessionID string, exitCode int, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET end_ts = ?, exit_code = ? WHERE id = ?`,
		at.UTC().Format(timeLayout), exitCode, sessionID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("end session %q: %w", sessionID, ErrUnknownSession)
	}
	return nil
}

func (s *SQLiteStore) RecordFrame(ctx context.Context, frame Frame) error {
	captured := frame.CapturedTS
	if captured.IsZero() {
		captured = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO frames(session_id, updates, cursor_row, cursor_col, mode, screen_text, captured_ts)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`,
		frame.SessionID,
		int64(frame.Updates),
		frame.CursorRow,
		frame.CursorCol,
		frame.Mode,
		frame.Text,
		captured.UTC().Format(timeLayout),
	)
	return err
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.command, s.width, s.height, s.start_ts, s.end_ts, s.exit_code,
			(SELECT COUNT(*) FROM frames f WHERE f.session_id = s.id)
		FROM sessions s
		ORDER BY s.start_ts, s.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]SessionSummary, 0)
	for rows.Next() {
		var (
			sum      SessionSummary
			startRaw string
			endRaw   string
		)
		if err := rows.Scan(&sum.ID, &sum.Command, &sum.Width, &sum.Height, &startRaw, &endRaw, &sum.ExitCode, &sum.Frames); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeLayout, startRaw); err == nil {
			sum.StartTS = t
		}
		if t, err := time.Parse(timeLayout, endRaw); err == nil {
			sum.EndTS = t
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) ListFrames(ctx context.Context, sessionID string) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, updates, cursor_row, cursor_col, mode, screen_text, captured_ts
		FROM frames
		WHERE session_id = ?
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Frame, 0)
	for rows.Next() {
		frame, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, frame)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) LastFrame(ctx context.Context, sessionID string) (*Frame, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, updates, cursor_row, cursor_col, mode, screen_text, captured_ts
		FROM frames
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, sessionID)
	frame, err := scanFrame(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &frame, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFrame(sc scanner) (Frame, error) {
	var (
		frame       Frame
		updates     int64
		capturedRaw string
	)
	if err := sc.Scan(&frame.SessionID, &updates, &frame.CursorRow, &frame.CursorCol, &frame.Mode, &frame.Text, &capturedRaw); err != nil {
		return Frame{}, err
	}
	frame.Updates = uint64(max(0, updates))
	if t, err := time.Parse(timeLayout, capturedRaw); err == nil {
		frame.CapturedTS = t
	}
	return frame, nil
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"
