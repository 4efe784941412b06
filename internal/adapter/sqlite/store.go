package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
	"github.com/couchcryptid/biobasis-merge/internal/pipeline"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/insert-run.sql
var insertRunSQL string

//go:embed sql/upsert-observation.sql
var upsertObservationSQL string

//go:embed sql/upsert-column.sql
var upsertColumnSQL string

//go:embed sql/get-observations.sql
var getObservationsSQL string

//go:embed sql/get-latest-run.sql
var getLatestRunSQL string

// ErrNoRuns is returned by LatestRun when a station has no stored run.
var ErrNoRuns = errors.New("no runs stored for station")

// observation is one stored field value.
type observation struct {
	Timestamp time.Time
	Value     domain.Value
}

// RunRecord is the stored summary of a run.
type RunRecord struct {
	ID              string
	Station         string
	DateStart       string
	DateEnd         string
	Interval        time.Duration
	TimestampField  string
	TotalRows       int
	ExpectedRows    int
	MissingRows     int
	CoveragePercent float64
	CreatedAt       time.Time
}

// Store persists merged runs in long format: one row per station, timestamp
// and field. Re-running a range replaces the stored values.
// It implements pipeline.Sink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return "file::memory:?_foreign_keys=on", nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	params := []string{"_foreign_keys=on", "_busy_timeout=5000", "_journal_mode=WAL"}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

func (s *Store) Name() string { return "sqlite" }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Write stores run in a single transaction.
func (s *Store) Write(ctx context.Context, run *pipeline.Run) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sum := run.Summary
	if _, err = tx.ExecContext(ctx, insertRunSQL,
		run.ID, run.Station,
		run.Range.Start.Format(time.DateOnly), run.Range.End.Format(time.DateOnly),
		int64(run.Interval/time.Second), run.TimestampField,
		sum.TotalRows, sum.ExpectedRows, sum.MissingRows, sum.CoveragePercent,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	colStmt, err := tx.PrepareContext(ctx, upsertColumnSQL)
	if err != nil {
		return fmt.Errorf("prepare column upsert: %w", err)
	}
	defer colStmt.Close()
	for _, r := range run.Metadata {
		if _, err = colStmt.ExecContext(ctx, run.Station, r.Column, r.Unit, r.Statistic); err != nil {
			return fmt.Errorf("upsert column %s: %w", r.Column, err)
		}
	}

	obsStmt, err := tx.PrepareContext(ctx, upsertObservationSQL)
	if err != nil {
		return fmt.Errorf("prepare observation upsert: %w", err)
	}
	defer obsStmt.Close()

	fields := run.Series.DataColumns(run.TimestampField)
	for _, rec := range run.Series.Records {
		ts := rec.Timestamp.Format(domain.TimestampLayout)
		for _, f := range fields {
			var value any
			if v, ok := rec.Get(f).Get(); ok {
				value = v
			}
			if _, err = obsStmt.ExecContext(ctx, run.Station, ts, f, value, run.ID); err != nil {
				return fmt.Errorf("upsert observation %s %s: %w", ts, f, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("stored run in sqlite", "run_id", run.ID, "rows", run.Series.Len(), "fields", len(fields))
	return nil
}

// observations returns stored values of field for station in [from, to).
func (s *Store) observations(ctx context.Context, station, field string, from, to time.Time) ([]observation, error) {
	rows, err := s.db.QueryContext(ctx, getObservationsSQL, station, field,
		from.Format(domain.TimestampLayout), to.Format(domain.TimestampLayout))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close observation rows", "error", err)
		}
	}()

	var out []observation
	for rows.Next() {
		var ts string
		var v sql.NullFloat64
		if err := rows.Scan(&ts, &v); err != nil {
			return nil, err
		}
		t, err := time.ParseInLocation(domain.TimestampLayout, ts, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		obs := observation{Timestamp: t}
		if v.Valid {
			obs.Value = domain.Num(v.Float64)
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// LatestRun returns the most recently created run for station.
func (s *Store) LatestRun(ctx context.Context, station string) (RunRecord, error) {
	var r RunRecord
	var intervalSec int64
	var created string
	err := s.db.QueryRowContext(ctx, getLatestRunSQL, station).Scan(
		&r.ID, &r.Station, &r.DateStart, &r.DateEnd, &intervalSec, &r.TimestampField,
		&r.TotalRows, &r.ExpectedRows, &r.MissingRows, &r.CoveragePercent, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrNoRuns
	}
	if err != nil {
		return RunRecord{}, err
	}
	r.Interval = time.Duration(intervalSec) * time.Second
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return RunRecord{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return r, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
