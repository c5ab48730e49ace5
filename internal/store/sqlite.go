package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"yaticker/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ SeriesStore = (*SQLiteStore)(nil)
var _ SummaryStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS series (
	symbol     TEXT    NOT NULL,
	period     TEXT    NOT NULL,
	interval   TEXT    NOT NULL,
	fetched_at INTEGER NOT NULL,
	bars       TEXT    NOT NULL,
	PRIMARY KEY (symbol, period, interval)
);
CREATE TABLE IF NOT EXISTS summaries (
	symbol         TEXT PRIMARY KEY,
	previous_close REAL,
	fetched_at     INTEGER NOT NULL
);
`

// SQLiteStore implements SeriesStore and SummaryStore backed by a SQLite
// database. Bars are stored as a JSON document per series.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a ready-to-use SQLiteStore. ":memory:" gives a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// SeriesStore implementation
// ---------------------------------------------------------------------------

// PutSeries upserts the snapshot of s.
func (s *SQLiteStore) PutSeries(ctx context.Context, series domain.Series, fetchedAt time.Time) error {
	bars, err := json.Marshal(series.Bars)
	if err != nil {
		return fmt.Errorf("encoding bars: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO series (symbol, period, interval, fetched_at, bars)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (symbol, period, interval)
		DO UPDATE SET fetched_at = excluded.fetched_at, bars = excluded.bars`,
		strings.ToUpper(series.Symbol), series.Period, series.Interval, fetchedAt.UnixMilli(), string(bars))
	if err != nil {
		return fmt.Errorf("storing series %s: %w", series.Symbol, err)
	}
	return nil
}

// GetSeries returns the stored snapshot for key.
func (s *SQLiteStore) GetSeries(ctx context.Context, key SeriesKey) (Snapshot, error) {
	var (
		fetched int64
		raw     string
	)
	sym := strings.ToUpper(key.Symbol)
	err := s.db.QueryRowContext(ctx, `
		SELECT fetched_at, bars FROM series
		WHERE symbol = ? AND period = ? AND interval = ?`,
		sym, key.Period, key.Interval).Scan(&fetched, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading series %s: %w", sym, err)
	}

	var bars []domain.Bar
	if err := json.Unmarshal([]byte(raw), &bars); err != nil {
		return Snapshot{}, fmt.Errorf("decoding bars of %s: %w", sym, err)
	}
	return Snapshot{
		Series: domain.Series{
			Symbol:   sym,
			Period:   key.Period,
			Interval: key.Interval,
			Bars:     bars,
		},
		FetchedAt: time.UnixMilli(fetched),
	}, nil
}

// DeleteBefore removes series snapshots fetched before cutoff.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE fetched_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("pruning series: %w", err)
	}
	return res.RowsAffected()
}

// ---------------------------------------------------------------------------
// SummaryStore implementation
// ---------------------------------------------------------------------------

// PutSummary upserts the summary of a symbol.
func (s *SQLiteStore) PutSummary(ctx context.Context, sum domain.Summary, fetchedAt time.Time) error {
	var pc sql.NullFloat64
	if sum.PreviousClose != nil {
		pc = sql.NullFloat64{Float64: *sum.PreviousClose, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (symbol, previous_close, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT (symbol)
		DO UPDATE SET previous_close = excluded.previous_close, fetched_at = excluded.fetched_at`,
		strings.ToUpper(sum.Symbol), pc, fetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("storing summary %s: %w", sum.Symbol, err)
	}
	return nil
}

// GetSummary returns the stored summary of symbol.
func (s *SQLiteStore) GetSummary(ctx context.Context, symbol string) (domain.Summary, time.Time, error) {
	var (
		pc      sql.NullFloat64
		fetched int64
	)
	sym := strings.ToUpper(symbol)
	err := s.db.QueryRowContext(ctx, `
		SELECT previous_close, fetched_at FROM summaries WHERE symbol = ?`, sym).Scan(&pc, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Summary{}, time.Time{}, ErrNotFound
	}
	if err != nil {
		return domain.Summary{}, time.Time{}, fmt.Errorf("loading summary %s: %w", sym, err)
	}

	sum := domain.Summary{Symbol: sym}
	if pc.Valid {
		v := pc.Float64
		sum.PreviousClose = &v
	}
	return sum, time.UnixMilli(fetched), nil
}
