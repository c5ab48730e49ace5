// Package store persists fetched market data so the dashboard can avoid
// hitting the vendors on every render.
package store

import (
	"context"
	"errors"
	"time"

	"yaticker/internal/domain"
)

// ErrNotFound is returned when no snapshot exists for a key.
var ErrNotFound = errors.New("not found")

// SeriesKey identifies a cached series.
type SeriesKey struct {
	Symbol   string
	Period   string
	Interval string
}

// Snapshot is a stored series together with the time it was fetched.
type Snapshot struct {
	Series    domain.Series
	FetchedAt time.Time
}

// SeriesStore persists and retrieves series snapshots.
type SeriesStore interface {
	// PutSeries stores s under its symbol/period/interval, replacing any
	// previous snapshot.
	PutSeries(ctx context.Context, s domain.Series, fetchedAt time.Time) error

	// GetSeries returns the snapshot for key or ErrNotFound.
	GetSeries(ctx context.Context, key SeriesKey) (Snapshot, error)

	// DeleteBefore removes snapshots fetched before cutoff and returns how
	// many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SummaryStore persists and retrieves symbol summaries.
type SummaryStore interface {
	// PutSummary stores sum, replacing any previous one for the symbol.
	PutSummary(ctx context.Context, sum domain.Summary, fetchedAt time.Time) error

	// GetSummary returns the stored summary of symbol and its fetch time,
	// or ErrNotFound.
	GetSummary(ctx context.Context, symbol string) (domain.Summary, time.Time, error)
}
