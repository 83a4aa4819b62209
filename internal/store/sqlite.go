package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"todolists/internal/model"

	_ "modernc.org/sqlite"
)

// SQLite stores each session as one JSON row so sessions survive restarts.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func OpenSQLite(ctx context.Context, path string, ttl time.Duration) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: sqlite path is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir: %w", err)
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps the per-connection pragmas in effect for every query.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", strings.TrimSuffix(p, ";"), err)
		}
	}
	s := &SQLite{db: db, ttl: ttl, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLite) cutoff() int64 {
	return s.now().Add(-s.ttl).UnixNano()
}

func (s *SQLite) Get(ctx context.Context, id string) (*model.Session, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM sessions WHERE id = ? AND updated_at >= ?`, id, s.cutoff(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get session: %w", err)
	}
	var st model.Session
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, false, fmt.Errorf("store: decode session: %w", err)
	}
	st.Normalize()
	return &st, true, nil
}

func (s *SQLite) Set(ctx context.Context, id string, st *model.Session) error {
	if id == "" {
		return errEmptyID
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, state, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		id, string(b), s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: set session: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	return nil
}

func (s *SQLite) Prune(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLite) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, updated_at FROM sessions WHERE updated_at >= ? ORDER BY updated_at DESC`, s.cutoff())
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			id, raw string
			at      int64
		)
		if err := rows.Scan(&id, &raw, &at); err != nil {
			return nil, err
		}
		var st model.Session
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, fmt.Errorf("store: decode session %s: %w", id, err)
		}
		out = append(out, summarize(id, &st, time.Unix(0, at)))
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
