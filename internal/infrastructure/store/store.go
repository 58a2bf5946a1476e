// Package store keeps a SQLite log of played matches.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/younwookim/fightsquares/internal/domain/fight"
)

//go:embed schema.sql
var schema string

var (
	// ErrNotFound is returned for an unknown match ID
	ErrNotFound = errors.New("match not found")
	// ErrAlreadyExists is returned when a match ID is reused
	ErrAlreadyExists = errors.New("match already exists")
)

// Match is one row of the match log
type Match struct {
	ID        string
	Mode      string
	Player    fight.Player // local seat
	Transport string
	Peer      string
	StartedAt time.Time
	EndedAt   time.Time // zero while the match runs
	Frames    int
	Winner    fight.Player
	Final     *fight.SimState
	EndError  string
}

// Finished reports whether the match has an end time
func (m Match) Finished() bool {
	return !m.EndedAt.IsZero()
}

// Store persists matches in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite match log and creates its tables.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// StartMatch inserts a running match.
func (s *Store) StartMatch(ctx context.Context, m Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := strings.TrimSpace(m.ID)
	if id == "" {
		return fmt.Errorf("match id is required")
	}
	if !m.Player.Valid() {
		return fmt.Errorf("invalid player %d", m.Player)
	}
	startedAt := m.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO matches (id, mode, player, transport, peer, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		m.Mode,
		int(m.Player),
		m.Transport,
		m.Peer,
		toMillis(startedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("start match: %w", err)
	}
	return nil
}

// FinishMatch records how a match ended. endErr is nil for a clean finish.
func (s *Store) FinishMatch(ctx context.Context, id string, frames int, final fight.SimState, endErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := json.Marshal(final)
	if err != nil {
		return fmt.Errorf("encode final state: %w", err)
	}
	var reason string
	if endErr != nil {
		reason = endErr.Error()
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE matches
		 SET ended_at = ?, frames = ?, winner = ?, final_state = ?, end_error = ?
		 WHERE id = ?`,
		toMillis(time.Now()),
		frames,
		int(final.Winner()),
		string(state),
		reason,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish match: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordDesync stores one early-input event for a match.
func (s *Store) RecordDesync(ctx context.Context, matchID string, localFrame, remoteFrame int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO desync_events (match_id, local_frame, remote_frame, recorded_at)
		 VALUES (?, ?, ?, ?)`,
		matchID,
		localFrame,
		remoteFrame,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record desync: %w", err)
	}
	return nil
}

// FrameRow is one simulated frame of a match
type FrameRow struct {
	Frame int
	P1    fight.ControlState
	P2    fight.ControlState
	State fight.SimState
}

// RecordFrames writes frames for a match in one transaction. A frame already
// logged is overwritten, so a corrected history can be written again.
func (s *Store) RecordFrames(ctx context.Context, matchID string, frames []FrameRow) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(frames) == 0 {
		return nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin frames tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO match_frames (match_id, frame, p1, p2, state) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(match_id, frame) DO UPDATE SET p1 = excluded.p1, p2 = excluded.p2, state = excluded.state`,
	)
	if err != nil {
		return fmt.Errorf("prepare frames insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, f := range frames {
		state, err := json.Marshal(f.State)
		if err != nil {
			return fmt.Errorf("encode frame %d state: %w", f.Frame, err)
		}
		if _, err := stmt.ExecContext(ctx, matchID, f.Frame, f.P1.String(), f.P2.String(), string(state)); err != nil {
			return fmt.Errorf("record frame %d: %w", f.Frame, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit frames: %w", err)
	}
	return nil
}

// FrameState returns the logged state of one frame
func (s *Store) FrameState(ctx context.Context, matchID string, frame int) (fight.SimState, error) {
	var raw string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT state FROM match_frames WHERE match_id = ? AND frame = ?`, matchID, frame,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fight.SimState{}, ErrNotFound
	}
	if err != nil {
		return fight.SimState{}, fmt.Errorf("load frame %d: %w", frame, err)
	}
	var st fight.SimState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return fight.SimState{}, fmt.Errorf("decode frame %d state: %w", frame, err)
	}
	return st, nil
}

// CountFrames returns how many frames a match logged
func (s *Store) CountFrames(ctx context.Context, matchID string) (int, error) {
	var n int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM match_frames WHERE match_id = ?`, matchID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return n, nil
}

// CountDesyncs returns how many desync events a match logged.
func (s *Store) CountDesyncs(ctx context.Context, matchID string) (int, error) {
	var n int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM desync_events WHERE match_id = ?`, matchID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count desyncs: %w", err)
	}
	return n, nil
}

const matchColumns = `id, mode, player, transport, peer, started_at, ended_at, frames, winner, final_state, end_error`

// GetMatch returns one match by ID.
func (s *Store) GetMatch(ctx context.Context, id string) (Match, error) {
	if err := ctx.Err(); err != nil {
		return Match{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Match{}, ErrNotFound
	}
	return m, err
}

// ListMatches returns up to limit matches, newest first.
func (s *Store) ListMatches(ctx context.Context, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY started_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return matches, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (Match, error) {
	var (
		m         Match
		player    int
		winner    int
		startedAt int64
		endedAt   sql.NullInt64
		final     sql.NullString
	)
	err := row.Scan(&m.ID, &m.Mode, &player, &m.Transport, &m.Peer, &startedAt, &endedAt, &m.Frames, &winner, &final, &m.EndError)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Match{}, err
		}
		return Match{}, fmt.Errorf("scan match: %w", err)
	}
	m.Player = fight.Player(player)
	m.Winner = fight.Player(winner)
	m.StartedAt = fromMillis(startedAt)
	if endedAt.Valid {
		m.EndedAt = fromMillis(endedAt.Int64)
	}
	if final.Valid {
		var st fight.SimState
		if err := json.Unmarshal([]byte(final.String), &st); err != nil {
			return Match{}, fmt.Errorf("decode final state: %w", err)
		}
		m.Final = &st
	}
	return m, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
