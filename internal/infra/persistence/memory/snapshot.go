package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"grimoire/pkg/domain"
)

// Compile-time contract assertion ensuring SnapshotStore adheres to the domain persistence interface.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore keeps the last saved snapshot in process memory. Snapshots
// round-trip through JSON so callers never share slices with the store.
type SnapshotStore struct {
	mu      sync.Mutex
	payload []byte
	saves   int
}

// NewSnapshotStore returns an empty in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore { return &SnapshotStore{} }

// Load returns the last saved snapshot, reporting false when none exists.
func (s *SnapshotStore) Load(_ context.Context) (domain.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payload == nil {
		return domain.Snapshot{}, false, nil
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(s.payload, &snapshot); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, true, nil
}

// Save replaces the stored snapshot.
func (s *SnapshotStore) Save(_ context.Context, snapshot domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	s.mu.Lock()
	s.payload = data
	s.saves++
	s.mu.Unlock()
	return nil
}

// Saves reports how many snapshots have been written.
func (s *SnapshotStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Close is a no-op for the memory driver.
func (s *SnapshotStore) Close() error { return nil }
