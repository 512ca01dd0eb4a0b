// Package history archives finished tasks in SQLite so they outlive the
// in-memory registry and its expiry.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/autobrr/botmon/pkg/task"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const DefaultLimit = 50

type Entry struct {
	Task       task.Task `json:"task"`
	FinishedAt time.Time `json:"finished_at"`
}

// Summary counts archived tasks per status token.
type Summary struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	Bytes    int64          `json:"bytes"`
}

type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates the database file and its parent directory when missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "could not create history dir for %q", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open history db %q", path)
	}

	// sqlite allows one writer, keep database/sql from opening more
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "could not open history db %q", path)
	}

	s := &Store{
		db:  db,
		log: log.With().Str("module", "history").Logger(),
	}

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA journal_mode = WAL;`); err != nil {
		s.log.Debug().Err(err).Msg("could not set pragmas")
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS finished_tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		downloaded INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		progress REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		start_unix INTEGER NOT NULL,
		finished_unix INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_finished_tasks_finished ON finished_tasks(finished_unix);
	`
	if _, err := s.db.Exec(query); err != nil {
		return errors.Wrap(err, "could not migrate history db")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one finished task. Non terminal tasks are rejected.
func (s *Store) Record(ctx context.Context, t task.Task, finishedAt time.Time) error {
	if !t.Status.Terminal() {
		return errors.Errorf("task %s is not finished: %s", t.ID, t.Status)
	}

	query := `INSERT INTO finished_tasks (task_id, filename, downloaded, total, progress, status, start_unix, finished_unix) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		t.ID,
		t.Filename,
		t.Downloaded,
		t.Total,
		t.Progress,
		t.Status.String(),
		t.StartTime.UnixMilli(),
		finishedAt.UnixMilli(),
	)
	if err != nil {
		return errors.Wrapf(err, "could not record task %s", t.ID)
	}

	s.log.Trace().Str("task_id", t.ID).Msgf("archived task with status %s", t.Status)

	return nil
}

// List returns the most recently finished tasks first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT task_id, filename, downloaded, total, progress, status, start_unix, finished_unix FROM finished_tasks ORDER BY finished_unix DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "could not list history")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e        Entry
			status   string
			start    int64
			finished int64
		)
		if err := rows.Scan(&e.Task.ID, &e.Task.Filename, &e.Task.Downloaded, &e.Task.Total, &e.Task.Progress, &status, &start, &finished); err != nil {
			return nil, errors.Wrap(err, "could not scan history row")
		}
		if err := e.Task.Status.UnmarshalText([]byte(status)); err != nil {
			return nil, errors.Wrapf(err, "bad status in history: %q", status)
		}
		e.Task.StartTime = time.UnixMilli(start)
		e.FinishedAt = time.UnixMilli(finished)

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *Store) Summary(ctx context.Context) (*Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*), COALESCE(SUM(downloaded), 0) FROM finished_tasks GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "could not summarize history")
	}
	defer rows.Close()

	sum := &Summary{ByStatus: map[string]int{}}
	for rows.Next() {
		var (
			status string
			count  int
			bytes  int64
		)
		if err := rows.Scan(&status, &count, &bytes); err != nil {
			return nil, errors.Wrap(err, "could not scan summary row")
		}
		sum.ByStatus[status] = count
		sum.Total += count
		sum.Bytes += bytes
	}

	return sum, rows.Err()
}

// Prune deletes entries finished before cutoff and returns how many went away.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM finished_tasks WHERE finished_unix < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "could not prune history")
	}
	return res.RowsAffected()
}
