// Package report persists end-of-run summaries to SQLite so consecutive
// load runs against the same service can be compared offline.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// RunRecord is one completed run.
type RunRecord struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      time.Time
	Rooms           int
	StudentsPerRoom int
	QuizCount       int
	TeachersOK      int
	StudentsOK      int
	StudentsFailed  int
}

// MetricSummary is the stored aggregate of one recorded metric.
type MetricSummary struct {
	Name  string
	Count int
	Sum   float64
	Min   float64
	Max   float64
}

// Store writes run summaries through a single writer goroutine; SQLite
// serializes writes anyway, funneling them avoids lock contention under
// concurrent room teardown.
type Store struct {
	db     *sql.DB
	writes chan writeOp
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	log    *logrus.Entry
}

type writeOp struct {
	fn     func(*sql.DB) error
	result chan error
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	started_at        TIMESTAMP NOT NULL,
	finished_at       TIMESTAMP NOT NULL,
	rooms             INTEGER NOT NULL,
	students_per_room INTEGER NOT NULL,
	quiz_count        INTEGER NOT NULL,
	teachers_ok       INTEGER NOT NULL,
	students_ok       INTEGER NOT NULL,
	students_failed   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_metrics (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name   TEXT NOT NULL,
	count  INTEGER NOT NULL,
	sum    REAL NOT NULL,
	min    REAL NOT NULL,
	max    REAL NOT NULL,
	PRIMARY KEY (run_id, name)
);`

// Open creates or opens the store at path and ensures the schema.
func Open(path string, log *logrus.Entry) (*Store, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create report schema: %w", err)
	}

	s := &Store{
		db:     db,
		writes: make(chan writeOp, 16),
		done:   make(chan struct{}),
		log:    log,
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writes:
			op.result <- op.fn(s.db)
		case <-s.done:
			return
		}
	}
}

func (s *Store) write(fn func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writes <- writeOp{fn: fn, result: result}:
		return <-result
	case <-s.done:
		return ErrStoreClosed
	}
}

// SaveRun persists one run and its metric aggregates atomically.
func (s *Store) SaveRun(ctx context.Context, run RunRecord, metrics map[string][]float64) error {
	return s.write(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin run save: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO runs (id, started_at, finished_at, rooms, students_per_room,
				quiz_count, teachers_ok, students_ok, students_failed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.StartedAt, run.FinishedAt, run.Rooms, run.StudentsPerRoom,
			run.QuizCount, run.TeachersOK, run.StudentsOK, run.StudentsFailed,
		)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", run.ID, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO run_metrics (run_id, name, count, sum, min, max)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare metric insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for name, values := range metrics {
			sum := summarize(name, values)
			if _, err := stmt.ExecContext(ctx, run.ID, sum.Name, sum.Count, sum.Sum, sum.Min, sum.Max); err != nil {
				return fmt.Errorf("insert metric %s: %w", name, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit run save: %w", err)
		}

		s.log.WithFields(logrus.Fields{
			"run_id":  run.ID,
			"metrics": len(metrics),
		}).Info("run saved")
		return nil
	})
}

// Run loads one stored run by id.
func (s *Store) Run(ctx context.Context, id string) (*RunRecord, error) {
	var run RunRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, rooms, students_per_room,
			quiz_count, teachers_ok, students_ok, students_failed
		FROM runs WHERE id = ?`, id).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &run.Rooms, &run.StudentsPerRoom,
		&run.QuizCount, &run.TeachersOK, &run.StudentsOK, &run.StudentsFailed,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return &run, nil
}

// Metrics loads the stored aggregates for one run, ordered by name.
func (s *Store) Metrics(ctx context.Context, runID string) ([]MetricSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, count, sum, min, max
		FROM run_metrics WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("load metrics for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []MetricSummary
	for rows.Next() {
		var m MetricSummary
		if err := rows.Scan(&m.Name, &m.Count, &m.Sum, &m.Min, &m.Max); err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close stops the writer and closes the database. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

func summarize(name string, values []float64) MetricSummary {
	sum := MetricSummary{Name: name, Count: len(values)}
	for i, v := range values {
		sum.Sum += v
		if i == 0 || v < sum.Min {
			sum.Min = v
		}
		if i == 0 || v > sum.Max {
			sum.Max = v
		}
	}
	return sum
}
