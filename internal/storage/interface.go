package storage

import (
	"context"
	"time"

	"github.com/scholarship-tracker/finder/pkg/scholarship"
)

// Store defines the persistence interface for scholarship records
type Store interface {
	// Upsert inserts the record or updates the row sharing its URL, returning
	// the stored state.
	Upsert(ctx context.Context, s *scholarship.Scholarship) (*scholarship.Scholarship, error)
	// FindByChecksum returns the record with the given identity fingerprint,
	// or nil when absent.
	FindByChecksum(ctx context.Context, checksum string) (*scholarship.Scholarship, error)
	// FindByURL returns the record stored under the URL, or nil when absent.
	FindByURL(ctx context.Context, url string) (*scholarship.Scholarship, error)
	// FindSimilar returns records discovered since the cutoff whose
	// organization resembles the given one, newest first, capped at limit.
	FindSimilar(ctx context.Context, organization string, since time.Time, limit int) ([]*scholarship.Scholarship, error)
	// Recent returns the most recently updated records, newest first.
	Recent(ctx context.Context, limit int) ([]*scholarship.Scholarship, error)
	// Count returns the total number of stored records.
	Count(ctx context.Context) (int64, error)
	Health(ctx context.Context) error
	Close()
}

// StoreMetrics provides telemetry for store operations
type StoreMetrics struct {
	OperationType string
	Duration      int64 // nanoseconds
	Success       bool
	Backend       string
	Error         error
}

// MetricsCollector receives store operation metrics
type MetricsCollector interface {
	RecordMetric(metric StoreMetrics)
}
