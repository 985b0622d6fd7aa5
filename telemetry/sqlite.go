// Package telemetry persists run lifecycle records in a local SQLite
// database. It implements [quill.Recorder]; because telemetry is a side
// channel, write failures are logged and swallowed — they never reach the
// pipeline.
package telemetry

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/quillab/quill"
)

// Interface compliance check.
var _ quill.Recorder = (*Store)(nil)

// Store records run telemetry in SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	mu     sync.Mutex
}

// Open creates (or opens) the database at path, creating parent directories
// as needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, logger: logger}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT,
		app TEXT,
		outcome TEXT,
		tokens INTEGER,
		reply_chars INTEGER,
		started_at TEXT,
		ended_at TEXT
	);`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunStarted inserts a new run row with an empty outcome.
func (s *Store) RunStarted(id string, mode quill.Mode, app string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO runs (id, mode, app, started_at) VALUES (?, ?, ?, ?)`,
		id, string(mode), app, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		s.logger.Warn("telemetry: recording run start failed", zap.Error(err))
	}
}

// RunEnded stamps the run row with its terminal outcome.
func (s *Store) RunEnded(id string, outcome quill.Outcome, tokens, replyChars int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE runs SET outcome = ?, tokens = ?, reply_chars = ?, ended_at = ? WHERE id = ?`,
		string(outcome), tokens, replyChars, at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		s.logger.Warn("telemetry: recording run end failed", zap.Error(err))
	}
}

// Recent returns the most recently started runs, newest first.
func (s *Store) Recent(limit int) ([]quill.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT id, mode, app, COALESCE(outcome, ''), COALESCE(tokens, 0),
		COALESCE(reply_chars, 0), started_at, COALESCE(ended_at, '')
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []quill.RunRecord
	for rows.Next() {
		var (
			rec            quill.RunRecord
			mode           string
			started, ended string
		)
		if err := rows.Scan(&rec.ID, &mode, &rec.App, (*string)(&rec.Outcome), &rec.Tokens, &rec.ReplyChars, &started, &ended); err != nil {
			return nil, err
		}
		rec.Mode = quill.Mode(mode)
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			rec.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, ended); err == nil {
			rec.EndedAt = t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
