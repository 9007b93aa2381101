// Package sqlite persists catalog snapshots to an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"grimoire/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.SnapshotStore = (*Store)(nil)

const (
	defaultPath = "grimoire.db"

	createBucketsTable = `CREATE TABLE IF NOT EXISTS catalog_buckets (
		kind TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		record_count INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	)`
	upsertBucket = `INSERT INTO catalog_buckets(kind, payload, record_count, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET payload=excluded.payload, record_count=excluded.record_count, updated_at=excluded.updated_at`
)

// Store persists the catalog as one JSON payload per kind. Every Save
// rewrites all buckets inside one transaction.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStore opens (creating if needed) the SQLite database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite admits a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createBucketsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create catalog_buckets table: %w", err)
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Load reads every bucket row into a snapshot.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, payload FROM catalog_buckets ORDER BY kind`)
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("select buckets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot domain.Snapshot
	found := false
	for rows.Next() {
		var (
			kind    string
			payload []byte
		)
		if err := rows.Scan(&kind, &payload); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("scan: %w", err)
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

// Save upserts every bucket of the snapshot.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) (retErr error) {
	buckets, err := snapshot.EncodeBuckets()
	if err != nil {
		return err
	}
	counts := snapshot.Counts()
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	at := s.now().UTC().Format(time.RFC3339Nano)
	for _, kind := range domain.Kinds() {
		if _, err = tx.ExecContext(ctx, upsertBucket, string(kind), buckets[kind], counts[kind], at); err != nil {
			return fmt.Errorf("upsert %s: %w", kind, err)
		}
	}
	return tx.Commit()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
