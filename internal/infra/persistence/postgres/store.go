// Package postgres provides a Postgres-backed snapshot store that keeps the
// catalog as JSONB payloads, one row per record kind.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"grimoire/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ domain.SnapshotStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/grimoire?sslmode=disable"

	createBucketsTable = `CREATE TABLE IF NOT EXISTS catalog_buckets (
		kind TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		record_count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	)`
	selectBuckets = `SELECT kind, payload FROM catalog_buckets`
	upsertBucket  = `INSERT INTO catalog_buckets (kind, payload, record_count, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind) DO UPDATE SET payload = EXCLUDED.payload, record_count = EXCLUDED.record_count, updated_at = EXCLUDED.updated_at`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists catalog snapshots to Postgres.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewStore opens a Postgres-backed store using dsn (defaultDSN when empty),
// verifies connectivity and ensures the bucket table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createBucketsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure catalog_buckets table: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Load reads the persisted buckets. Rows for kinds the catalog no longer
// knows are skipped.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	rows, err := s.db.QueryContext(ctx, selectBuckets)
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("select buckets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot domain.Snapshot
	found := false
	for rows.Next() {
		var kind string
		var payload []byte
		if err := rows.Scan(&kind, &payload); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("scan bucket: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		if err := snapshot.DecodeBucket(domain.Kind(kind), payload); err != nil {
			return domain.Snapshot{}, false, err
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("iterate buckets: %w", err)
	}
	return snapshot, found, nil
}

// Save upserts all buckets within one transaction.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	buckets, err := snapshot.EncodeBuckets()
	if err != nil {
		return err
	}
	counts := snapshot.Counts()

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	at := s.now().UTC()
	for _, kind := range domain.Kinds() {
		if _, err := tx.ExecContext(ctx, upsertBucket, string(kind), buckets[kind], int64(counts[kind]), at); err != nil {
			return fmt.Errorf("upsert %s: %w", kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
