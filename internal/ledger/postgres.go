package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/jobscout/internal/dedup"
	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/metrics"
)

const queryTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS seen_jobs (
	id          BIGSERIAL PRIMARY KEY,
	url         TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	title_hash  TEXT NOT NULL,
	company     TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	first_seen  DATE NOT NULL DEFAULT CURRENT_DATE,
	score       DOUBLE PRECISION NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'new'
);
CREATE UNIQUE INDEX IF NOT EXISTS seen_jobs_company_title_hash_idx ON seen_jobs (company, title_hash);
`

const wasDeliveredQuery = `
SELECT EXISTS (
	SELECT 1 FROM seen_jobs
	WHERE url = $1 OR (company = $2 AND title_hash = $3)
)`

const recordDeliveredQuery = `
INSERT INTO seen_jobs (url, title, title_hash, company, source, score)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT DO NOTHING`

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore keeps the ledger in the seen_jobs table.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open pool or connection.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Connect creates a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse ledger dsn: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

func (s *PostgresStore) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, queryTimeout)
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := s.db.Exec(ctx, schema)
	metrics.ObserveLedger(DriverPostgres, "ensure_schema", start, err)
	if err != nil {
		return fmt.Errorf("create seen_jobs: %w", err)
	}
	return nil
}

func (s *PostgresStore) WasDelivered(ctx context.Context, l *listing.Listing) (bool, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := s.db.QueryRow(ctx, wasDeliveredQuery, l.URL, l.Company, dedup.Fingerprint(l.Title)).Scan(&exists)
	metrics.ObserveLedger(DriverPostgres, "was_delivered", start, err)
	if err != nil {
		return false, fmt.Errorf("lookup %q: %w", l.URL, err)
	}
	return exists, nil
}

// RecordAll inserts the entries in one transaction. Any failed insert rolls
// back the whole batch.
func (s *PostgresStore) RecordAll(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		for _, e := range entries {
			if _, err := tx.Exec(ctx, recordDeliveredQuery,
				e.URL, e.Title, e.TitleHash, e.Company, e.Source, e.Score); err != nil {
				return fmt.Errorf("record %q: %w", e.URL, err)
			}
		}
		return nil
	})
	metrics.ObserveLedger(DriverPostgres, "record_all", start, err)
	if err != nil {
		return fmt.Errorf("record delivered batch: %w", err)
	}
	return nil
}
