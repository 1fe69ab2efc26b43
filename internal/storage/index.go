package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// IndexFile is the name of the trial index inside an output directory.
const IndexFile = "index.db"

// fixed width so created_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS trials (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	sweep_id            TEXT NOT NULL,
	trial_num           INTEGER NOT NULL,
	target_max_speed    REAL NOT NULL,
	stiffness           REAL NOT NULL,
	damping_ratio       REAL NOT NULL,
	damping             REAL NOT NULL,
	herder_offset       REAL NOT NULL,
	seed                INTEGER NOT NULL,
	samples             INTEGER NOT NULL,
	contained_fraction  REAL NOT NULL,
	time_to_containment REAL NOT NULL,
	mean_spread         REAL NOT NULL,
	ended_early         INTEGER NOT NULL DEFAULT 0,
	end_reason          TEXT NOT NULL DEFAULT '',
	file                TEXT NOT NULL,
	created_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trials_sweep ON trials(sweep_id);
`

// Summary is one row of the trial index.
type Summary struct {
	SweepID string
	Params
	Seed              int64
	Samples           int
	ContainedFraction float64
	// TimeToContainment is negative when the flock was never contained.
	TimeToContainment float64
	MeanSpread        float64
	EndedEarly        bool
	EndReason         string
	File              string
	CreatedAt         time.Time
}

// SweepInfo aggregates the trials of one sweep.
type SweepInfo struct {
	ID            string
	Trials        int
	MeanContained float64
	Started       time.Time
}

// Index is a SQLite table of trial summaries, shared by all sweep workers.
type Index struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// OpenIndex opens (creating if needed) the index database in dir.
func OpenIndex(ctx context.Context, dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	dbPath := filepath.Join(dir, IndexFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Index{db: db, dbPath: dbPath}, nil
}

func (ix *Index) Path() string { return ix.dbPath }

func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.db.Close()
}

// Insert adds one trial summary.
func (ix *Index) Insert(ctx context.Context, s Summary) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	_, err := ix.db.ExecContext(ctx, `
		INSERT INTO trials (
			sweep_id, trial_num, target_max_speed, stiffness, damping_ratio,
			damping, herder_offset, seed, samples, contained_fraction,
			time_to_containment, mean_spread, ended_early, end_reason, file, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SweepID, s.TrialNum, s.TargetMaxSpeed, s.Stiffness, s.DampingRatio,
		s.Damping, s.Offset, s.Seed, s.Samples, s.ContainedFraction,
		s.TimeToContainment, s.MeanSpread, boolToInt(s.EndedEarly), s.EndReason, s.File,
		s.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trial: %w", err)
	}
	return nil
}

// Trials returns the summaries of a sweep ordered by insertion. An empty
// sweepID returns every trial.
func (ix *Index) Trials(ctx context.Context, sweepID string) ([]Summary, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	query := `
		SELECT sweep_id, trial_num, target_max_speed, stiffness, damping_ratio,
			damping, herder_offset, seed, samples, contained_fraction,
			time_to_containment, mean_spread, ended_early, end_reason, file, created_at
		FROM trials`
	var args []any
	if sweepID != "" {
		query += ` WHERE sweep_id = ?`
		args = append(args, sweepID)
	}
	query += ` ORDER BY id`

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var early int
		var created string
		if err := rows.Scan(
			&s.SweepID, &s.TrialNum, &s.TargetMaxSpeed, &s.Stiffness, &s.DampingRatio,
			&s.Damping, &s.Offset, &s.Seed, &s.Samples, &s.ContainedFraction,
			&s.TimeToContainment, &s.MeanSpread, &early, &s.EndReason, &s.File, &created,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		s.EndedEarly = early != 0
		s.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Sweeps lists every sweep in the index, oldest first.
func (ix *Index) Sweeps(ctx context.Context) ([]SweepInfo, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rows, err := ix.db.QueryContext(ctx, `
		SELECT sweep_id, COUNT(*), AVG(contained_fraction), MIN(created_at)
		FROM trials
		GROUP BY sweep_id
		ORDER BY MIN(created_at)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweeps: %w", err)
	}
	defer rows.Close()

	var out []SweepInfo
	for rows.Next() {
		var info SweepInfo
		var started string
		if err := rows.Scan(&info.ID, &info.Trials, &info.MeanContained, &started); err != nil {
			return nil, fmt.Errorf("failed to scan sweep: %w", err)
		}
		info.Started, _ = time.Parse(timeLayout, started)
		out = append(out, info)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
