// Package store handles SQLite persistence.
package store

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

	"github.com/verte-zerg/grind/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrRunNotFound is returned when a run name or id does not resolve.
var ErrRunNotFound = errors.New("run not found")

// Store wraps SQLite access for runs, segments and attempts.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS segments (
			run_id TEXT NOT NULL,
			segment_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			duration_s REAL NOT NULL,
			PRIMARY KEY (run_id, segment_id)
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY,
			run_id TEXT NOT NULL,
			segment_id TEXT NOT NULL,
			success INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_run_segment ON attempts(run_id, segment_id, id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateRun stores a new run with a generated id.
func (s *Store) CreateRun(ctx context.Context, name string) (model.Run, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Run{}, fmt.Errorf("run name is empty")
	}
	run := model.Run{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, created_at) VALUES (?, ?, ?)`,
		run.ID, run.Name, run.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

// ListRuns returns all runs ordered by creation time.
func (s *Store) ListRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM runs ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ResolveRun finds a run by name or id.
func (s *Store) ResolveRun(ctx context.Context, nameOrID string) (model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM runs WHERE name = ? OR id = ? LIMIT 1`, nameOrID, nameOrID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, nameOrID)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.Run, error) {
	var run model.Run
	var createdAt string
	if err := row.Scan(&run.ID, &run.Name, &createdAt); err != nil {
		return model.Run{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return model.Run{}, err
	}
	run.CreatedAt = parsed
	return run, nil
}

// SetSegments replaces a run's segment order and durations. Attempts of
// segments that remain in the run are kept.
func (s *Store) SetSegments(ctx context.Context, runID string, segments []model.Segment) (err error) {
	seen := make(map[model.SegmentID]struct{}, len(segments))
	for _, seg := range segments {
		if seg.ID == "" {
			return fmt.Errorf("segment id is empty")
		}
		if !(seg.Duration > 0) {
			return fmt.Errorf("segment %s: duration must be > 0", seg.ID)
		}
		if _, dup := seen[seg.ID]; dup {
			return fmt.Errorf("segment %s listed twice", seg.ID)
		}
		seen[seg.ID] = struct{}{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM segments WHERE run_id = ?`, runID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO segments (run_id, segment_id, position, duration_s) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for i, seg := range segments {
		if _, err = stmt.ExecContext(ctx, runID, string(seg.ID), i, seg.Duration); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SegmentDurations returns a run's traversal order and durations.
// ok is false when the run has no segments.
func (s *Store) SegmentDurations(ctx context.Context, runID string) (model.Durations, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT segment_id, duration_s FROM segments WHERE run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return model.Durations{}, false, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	d := model.Durations{Seconds: map[model.SegmentID]float64{}}
	for rows.Next() {
		var id string
		var seconds float64
		if err := rows.Scan(&id, &seconds); err != nil {
			return model.Durations{}, false, err
		}
		d.Order = append(d.Order, model.SegmentID(id))
		d.Seconds[model.SegmentID(id)] = seconds
	}
	if err := rows.Err(); err != nil {
		return model.Durations{}, false, err
	}
	if len(d.Order) == 0 {
		return model.Durations{}, false, nil
	}
	return d, true, nil
}

// AppendOutcome records one attempt.
func (s *Store) AppendOutcome(ctx context.Context, runID string, segment model.SegmentID, success bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (run_id, segment_id, success, recorded_at) VALUES (?, ?, ?, ?)`,
		runID, string(segment), success, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// OutcomeHistory returns a segment's outcomes in insertion order.
// ok is false when the segment has no attempts.
func (s *Store) OutcomeHistory(ctx context.Context, runID string, segment model.SegmentID) ([]bool, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT success FROM attempts WHERE run_id = ? AND segment_id = ? ORDER BY id ASC`, runID, string(segment))
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var outcomes []bool
	for rows.Next() {
		var success bool
		if err := rows.Scan(&success); err != nil {
			return nil, false, err
		}
		outcomes = append(outcomes, success)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return outcomes, len(outcomes) > 0, nil
}

// ClearOutcomes deletes a segment's attempts, or every attempt of the run
// when segment is empty.
func (s *Store) ClearOutcomes(ctx context.Context, runID string, segment model.SegmentID) error {
	if segment == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM attempts WHERE run_id = ?`, runID)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM attempts WHERE run_id = ? AND segment_id = ?`, runID, string(segment))
	return err
}

// Tally counts a segment's attempts.
type Tally struct {
	Attempts  int
	Successes int
}

// AttemptCounts returns the number of attempts and successes per segment.
func (s *Store) AttemptCounts(ctx context.Context, runID string) (map[model.SegmentID]Tally, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT segment_id, COUNT(*), COALESCE(SUM(success), 0) FROM attempts WHERE run_id = ? GROUP BY segment_id`, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := map[model.SegmentID]Tally{}
	for rows.Next() {
		var id string
		var tally Tally
		if err := rows.Scan(&id, &tally.Attempts, &tally.Successes); err != nil {
			return nil, err
		}
		result[model.SegmentID(id)] = tally
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
