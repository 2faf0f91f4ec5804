package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/scholarship-tracker/finder/pkg/scholarship"
)

const schema = `
CREATE TABLE IF NOT EXISTS scholarships (
	id                      BIGSERIAL PRIMARY KEY,
	title                   TEXT NOT NULL,
	organization            TEXT NOT NULL DEFAULT '',
	description             TEXT NOT NULL DEFAULT '',
	url                     TEXT NOT NULL UNIQUE,
	application_url         TEXT NOT NULL DEFAULT '',
	min_award               DOUBLE PRECISION,
	max_award               DOUBLE PRECISION,
	deadline                TIMESTAMPTZ,
	eligibility             TEXT NOT NULL DEFAULT '',
	requirements            TEXT[] NOT NULL DEFAULT '{}',
	academic_level          TEXT NOT NULL DEFAULT '',
	geographic_restrictions TEXT NOT NULL DEFAULT '',
	contact_info            TEXT NOT NULL DEFAULT '',
	category                TEXT NOT NULL DEFAULT '',
	source                  TEXT NOT NULL DEFAULT '',
	checksum                TEXT NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'active',
	verified                BOOLEAN NOT NULL DEFAULT FALSE,
	confidence              DOUBLE PRECISION NOT NULL DEFAULT 0,
	discovered_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_verified_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_scholarships_checksum ON scholarships (checksum);
CREATE INDEX IF NOT EXISTS idx_scholarships_discovered_at ON scholarships (discovered_at);
`

const scholarshipColumns = `id, title, organization, description, url, application_url,
	min_award, max_award, deadline, eligibility, requirements, academic_level,
	geographic_restrictions, contact_info, category, source, checksum, status,
	verified, confidence, discovered_at, last_verified_at, updated_at`

// PostgresStore persists scholarships in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool    *pgxpool.Pool
	metrics MetricsCollector
}

// NewPostgresStore connects to the database, ensures the schema exists, and
// returns the store. metrics may be nil.
func NewPostgresStore(ctx context.Context, databaseURL string, metrics MetricsCollector) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	log.Info().Msg("Connected to PostgreSQL store")
	return &PostgresStore{pool: pool, metrics: metrics}, nil
}

func (ps *PostgresStore) record(op string, start time.Time, err error) {
	if ps.metrics == nil {
		return
	}
	ps.metrics.RecordMetric(StoreMetrics{
		OperationType: op,
		Duration:      time.Since(start).Nanoseconds(),
		Success:       err == nil,
		Backend:       "postgres",
		Error:         err,
	})
}

// Upsert inserts the record, or updates the row already holding its URL.
func (ps *PostgresStore) Upsert(ctx context.Context, s *scholarship.Scholarship) (*scholarship.Scholarship, error) {
	start := time.Now()

	if s.Checksum == "" {
		s.Checksum = s.Fingerprint()
	}
	if s.DiscoveredAt.IsZero() {
		s.DiscoveredAt = time.Now().UTC()
	}

	row := ps.pool.QueryRow(ctx, `
		INSERT INTO scholarships (
			title, organization, description, url, application_url,
			min_award, max_award, deadline, eligibility, requirements,
			academic_level, geographic_restrictions, contact_info, category,
			source, checksum, status, verified, confidence,
			discovered_at, last_verified_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, NOW(), NOW()
		)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			organization = EXCLUDED.organization,
			description = EXCLUDED.description,
			application_url = EXCLUDED.application_url,
			min_award = EXCLUDED.min_award,
			max_award = EXCLUDED.max_award,
			deadline = EXCLUDED.deadline,
			eligibility = EXCLUDED.eligibility,
			requirements = EXCLUDED.requirements,
			academic_level = EXCLUDED.academic_level,
			geographic_restrictions = EXCLUDED.geographic_restrictions,
			contact_info = EXCLUDED.contact_info,
			category = EXCLUDED.category,
			source = EXCLUDED.source,
			checksum = EXCLUDED.checksum,
			status = EXCLUDED.status,
			verified = EXCLUDED.verified,
			confidence = EXCLUDED.confidence,
			last_verified_at = NOW(),
			updated_at = NOW()
		RETURNING `+scholarshipColumns,
		s.Title, s.Organization, s.Description, s.URL, s.ApplicationURL,
		s.MinAward, s.MaxAward, s.Deadline, s.Eligibility, s.Requirements,
		s.AcademicLevel, s.GeographicRestrictions, s.ContactInfo, s.Category,
		s.Source, s.Checksum, string(s.Status), s.Verified, s.Confidence,
		s.DiscoveredAt,
	)

	stored, err := scanScholarship(row)
	ps.record("upsert", start, err)
	if err != nil {
		return nil, fmt.Errorf("upserting scholarship: %w", err)
	}
	return stored, nil
}

// FindByChecksum returns the record with the fingerprint, or nil.
func (ps *PostgresStore) FindByChecksum(ctx context.Context, checksum string) (*scholarship.Scholarship, error) {
	start := time.Now()
	row := ps.pool.QueryRow(ctx,
		`SELECT `+scholarshipColumns+` FROM scholarships WHERE checksum = $1 AND status <> 'invalid' LIMIT 1`, checksum)
	s, err := scanScholarship(row)
	if errors.Is(err, pgx.ErrNoRows) {
		ps.record("find_by_checksum", start, nil)
		return nil, nil
	}
	ps.record("find_by_checksum", start, err)
	return s, err
}

// FindByURL returns the record stored under the URL, or nil.
func (ps *PostgresStore) FindByURL(ctx context.Context, url string) (*scholarship.Scholarship, error) {
	start := time.Now()
	row := ps.pool.QueryRow(ctx,
		`SELECT `+scholarshipColumns+` FROM scholarships WHERE url = $1 AND status <> 'invalid' LIMIT 1`, url)
	s, err := scanScholarship(row)
	if errors.Is(err, pgx.ErrNoRows) {
		ps.record("find_by_url", start, nil)
		return nil, nil
	}
	ps.record("find_by_url", start, err)
	return s, err
}

// FindSimilar returns recent records whose organization resembles the given
// one. An empty organization matches all recent records.
func (ps *PostgresStore) FindSimilar(ctx context.Context, organization string, since time.Time, limit int) ([]*scholarship.Scholarship, error) {
	start := time.Now()
	rows, err := ps.pool.Query(ctx, `
		SELECT `+scholarshipColumns+`
		FROM scholarships
		WHERE discovered_at >= $1
		  AND status <> 'invalid'
		  AND ($2 = '' OR organization ILIKE '%' || $2 || '%' OR $2 ILIKE '%' || organization || '%')
		ORDER BY discovered_at DESC
		LIMIT $3`, since, organization, limit)
	if err != nil {
		ps.record("find_similar", start, err)
		return nil, err
	}
	defer rows.Close()

	results, err := scanScholarships(rows)
	ps.record("find_similar", start, err)
	return results, err
}

// Recent returns the most recently updated records.
func (ps *PostgresStore) Recent(ctx context.Context, limit int) ([]*scholarship.Scholarship, error) {
	start := time.Now()
	rows, err := ps.pool.Query(ctx,
		`SELECT `+scholarshipColumns+` FROM scholarships ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		ps.record("recent", start, err)
		return nil, err
	}
	defer rows.Close()

	results, err := scanScholarships(rows)
	ps.record("recent", start, err)
	return results, err
}

// Count returns the total number of stored records.
func (ps *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := ps.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scholarships`).Scan(&n)
	return n, err
}

// Health checks database connectivity.
func (ps *PostgresStore) Health(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close releases the connection pool.
func (ps *PostgresStore) Close() {
	ps.pool.Close()
}

func scanScholarship(row pgx.Row) (*scholarship.Scholarship, error) {
	var s scholarship.Scholarship
	var status string
	err := row.Scan(
		&s.ID, &s.Title, &s.Organization, &s.Description, &s.URL, &s.ApplicationURL,
		&s.MinAward, &s.MaxAward, &s.Deadline, &s.Eligibility, &s.Requirements,
		&s.AcademicLevel, &s.GeographicRestrictions, &s.ContactInfo, &s.Category,
		&s.Source, &s.Checksum, &status, &s.Verified, &s.Confidence,
		&s.DiscoveredAt, &s.LastVerifiedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = scholarship.Status(status)
	return &s, nil
}

func scanScholarships(rows pgx.Rows) ([]*scholarship.Scholarship, error) {
	var results []*scholarship.Scholarship
	for rows.Next() {
		s, err := scanScholarship(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}
