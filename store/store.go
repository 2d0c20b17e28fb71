// Package store - SQLite persistence of tracking runs: run metadata and the
// per-frame trajectory, so rectangle measurements can be repeated without
// reprocessing the video.
package store

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/nvr-ai/go-track/detector"
	"github.com/nvr-ai/go-track/tracking"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("store: run not found")

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one persisted tracking run.
type Run struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	Source       string
	FrameRate    float64
	CmPerPixel   float64
	Width        int
	Height       int
	GapPolicy    tracking.GapPolicy
	RegionPixels int
	// Config is the serialized configuration the run was made with.
	Config     string
	Trajectory tracking.Trajectory
}

// Maps rebuilds the run's occupancy-time and distance maps.
func (r *Run) Maps() (*tracking.Maps, error) {
	return tracking.NewMaps(r.Trajectory, r.Height, r.Width, r.GapPolicy)
}

// RunInfo is the listing view of a run, without its trajectory.
type RunInfo struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	Source     string
	Frames     int
	Detections int
}

// Store wraps the run database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path and migrates its schema.
//
// Arguments:
//   - path: SQLite file path.
//   - logger: Destination for store logs; nil uses slog.Default().
//
// Returns:
//   - *Store: The store.
//   - error: An open or migration failure.
//
// @example
// s, err := store.Open("runs.db", logger)
// defer s.Close()
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "store: open %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "store: ping %s", path)
	}
	s := &Store{db: db, logger: logger}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a run and its trajectory in one transaction. A nil ID is
// replaced with a new random UUID and a zero CreatedAt with the current time.
//
// Arguments:
//   - ctx: Cancellation for the write.
//   - run: The run; ID and CreatedAt are filled in place.
//
// Returns:
//   - uuid.UUID: The run ID.
//   - error: A write failure.
func (s *Store) SaveRun(ctx context.Context, run *Run) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "store: begin")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, created_at, source, frame_rate, cm_per_pixel, width, height,
			gap_policy, region_pixels, frames, detections, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.CreatedAt.UTC().Format(timeLayout), run.Source, run.FrameRate, run.CmPerPixel,
		run.Width, run.Height, run.GapPolicy.String(), run.RegionPixels,
		len(run.Trajectory), run.Trajectory.Detections(), run.Config)
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "store: insert run %s", run.ID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO centroids (run_id, frame, row, col, present) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "store: prepare centroid insert")
	}
	defer stmt.Close()
	for i, c := range run.Trajectory {
		var row, col sql.NullInt64
		if c.Present {
			row = sql.NullInt64{Int64: int64(c.Row), Valid: true}
			col = sql.NullInt64{Int64: int64(c.Col), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID.String(), i, row, col, c.Present); err != nil {
			return uuid.Nil, errors.Wrapf(err, "store: insert centroid %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, errors.Wrap(err, "store: commit")
	}
	s.logger.Debug("run saved", slog.String("run", run.ID.String()), slog.Int("frames", len(run.Trajectory)))
	return run.ID, nil
}

// LoadRun reads a run and its trajectory.
//
// Arguments:
//   - ctx: Cancellation for the read.
//   - id: The run ID.
//
// Returns:
//   - *Run: The run.
//   - error: ErrRunNotFound or a read failure.
func (s *Store) LoadRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var (
		run     = &Run{ID: id}
		created string
		policy  string
		frames  int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at, source, frame_rate, cm_per_pixel, width, height, gap_policy, region_pixels, frames, config
		FROM runs WHERE run_id = ?`, id.String()).
		Scan(&created, &run.Source, &run.FrameRate, &run.CmPerPixel, &run.Width, &run.Height,
			&policy, &run.RegionPixels, &frames, &run.Config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRunNotFound, "%s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "store: read run %s", id)
	}
	if run.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, errors.Wrapf(err, "store: run %s created_at", id)
	}
	if err := run.GapPolicy.UnmarshalText([]byte(policy)); err != nil {
		return nil, errors.Wrapf(err, "store: run %s", id)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT frame, row, col, present FROM centroids WHERE run_id = ? ORDER BY frame`, id.String())
	if err != nil {
		return nil, errors.Wrapf(err, "store: read centroids of %s", id)
	}
	defer rows.Close()

	run.Trajectory = make(tracking.Trajectory, 0, frames)
	for rows.Next() {
		var (
			frame    int
			row, col sql.NullInt64
			present  bool
		)
		if err := rows.Scan(&frame, &row, &col, &present); err != nil {
			return nil, errors.Wrapf(err, "store: scan centroid of %s", id)
		}
		if frame != len(run.Trajectory) {
			return nil, errors.Errorf("store: run %s is missing frame %d", id, len(run.Trajectory))
		}
		c := detector.Absent
		if present {
			c = detector.At(int(row.Int64), int(col.Int64))
		}
		run.Trajectory = append(run.Trajectory, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "store: read centroids of %s", id)
	}
	if len(run.Trajectory) != frames {
		return nil, errors.Errorf("store: run %s has %d of %d frames", id, len(run.Trajectory), frames)
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, created_at, source, frames, detections FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			info        RunInfo
			id, created string
		)
		if err := rows.Scan(&id, &created, &info.Source, &info.Frames, &info.Detections); err != nil {
			return nil, errors.Wrap(err, "store: scan run")
		}
		if info.ID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "store: run id %q", id)
		}
		if info.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, errors.Wrapf(err, "store: run %s created_at", id)
		}
		out = append(out, info)
	}
	return out, errors.Wrap(rows.Err(), "store: list runs")
}

// DeleteRun removes a run and its trajectory.
func (s *Store) DeleteRun(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id.String())
	if err != nil {
		return errors.Wrapf(err, "store: delete run %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "store: delete run %s", id)
	}
	if n == 0 {
		return errors.Wrapf(ErrRunNotFound, "%s", id)
	}
	return nil
}

// ResolveID parses a full run ID or finds the single run whose ID starts with
// the given prefix.
func (s *Store) ResolveID(ctx context.Context, text string) (uuid.UUID, error) {
	if id, err := uuid.Parse(text); err == nil {
		return id, nil
	}
	prefix := strings.ToLower(strings.TrimSpace(text))
	if prefix == "" {
		return uuid.Nil, errors.Wrap(ErrRunNotFound, "empty run id")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs WHERE run_id LIKE ? || '%'`, prefix)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "store: resolve run id")
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return uuid.Nil, errors.Wrap(err, "store: resolve run id")
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return uuid.Nil, errors.Wrap(err, "store: resolve run id")
	}
	switch len(matches) {
	case 0:
		return uuid.Nil, errors.Wrapf(ErrRunNotFound, "prefix %q", prefix)
	case 1:
		return uuid.Parse(matches[0])
	default:
		return uuid.Nil, errors.Errorf("store: prefix %q matches %d runs", prefix, len(matches))
	}
}
