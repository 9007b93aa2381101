// Package memory provides the in-memory record store that owns each catalog
// collection, plus an in-process snapshot store used for tests and ephemeral
// environments.
package memory

import (
	"fmt"
	"slices"
	"sync"

	"grimoire/pkg/domain"
)

type (
	// ID aliases domain.ID for in-memory persistence operations.
	ID = domain.ID
	// Kind aliases domain.Kind.
	Kind = domain.Kind
)

// Store holds the authoritative ordered list of records of one kind. The
// sequence counter only moves forward so identifiers are never reused, even
// after the highest record is removed.
type Store[T domain.Record[T]] struct {
	mu          sync.RWMutex
	kind        Kind
	records     []T
	index       map[ID]int
	next        ID
	subscribers map[int]func(domain.Change[T])
	subSeq      int
}

// NewStore constructs an empty store for kind, optionally populated with seed
// records. Seeds keep their identifiers when set; zero ids are assigned.
func NewStore[T domain.Record[T]](kind Kind, seed ...T) *Store[T] {
	s := &Store[T]{
		kind:        kind,
		index:       make(map[ID]int),
		next:        1,
		subscribers: make(map[int]func(domain.Change[T])),
	}
	s.resetLocked(seed, 0)
	return s
}

// Kind returns the collection kind served by the store.
func (s *Store[T]) Kind() Kind { return s.kind }

// Add assigns a fresh identifier to record and appends it. It always succeeds.
func (s *Store[T]) Add(record T) T {
	s.mu.Lock()
	record = record.WithRecordID(s.next)
	s.next++
	s.index[record.RecordID()] = len(s.records)
	s.records = append(s.records, record)
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, domain.Change[T]{Kind: s.kind, Action: domain.ActionCreate, After: record})
	return record
}

// Remove deletes the record with the given id. Removing an absent id is a
// no-op and reports false.
func (s *Store[T]) Remove(id ID) bool {
	s.mu.Lock()
	pos, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	before := s.records[pos]
	s.records = slices.Delete(s.records, pos, pos+1)
	s.reindexLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, domain.Change[T]{Kind: s.kind, Action: domain.ActionDelete, Before: before})
	return true
}

// Replace swaps the stored record sharing record's id, keeping its position.
func (s *Store[T]) Replace(record T) error {
	s.mu.Lock()
	pos, ok := s.index[record.RecordID()]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s %s: %w", s.kind, record.RecordID(), domain.ErrNotFound)
	}
	before := s.records[pos]
	s.records[pos] = record
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, domain.Change[T]{Kind: s.kind, Action: domain.ActionUpdate, Before: before, After: record})
	return nil
}

// Get returns the record with the given id.
func (s *Store[T]) Get(id ID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.records[pos], true
}

// List returns a copy of the current ordered sequence.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// Len reports the number of stored records.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Reset replaces the full contents, typically with fetched or seeded data.
// Records without an id are assigned one; records with duplicate ids keep
// only the first occurrence so the uniqueness invariant holds.
func (s *Store[T]) Reset(records []T) {
	s.mu.Lock()
	s.resetLocked(records, s.next)
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, domain.Change[T]{Kind: s.kind, Action: domain.ActionReset})
}

// Export clones the store into its persisted bucket form.
func (s *Store[T]) Export() domain.Bucket[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Bucket[T]{Records: slices.Clone(s.records), NextID: s.next}
}

// Import replaces the store state with a persisted bucket.
func (s *Store[T]) Import(bucket domain.Bucket[T]) {
	s.mu.Lock()
	s.resetLocked(bucket.Records, bucket.NextID)
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, domain.Change[T]{Kind: s.kind, Action: domain.ActionReset})
}

// Subscribe registers fn for change notifications and returns a function
// that removes the subscription. Notifications run after the store lock is
// released, on the goroutine that performed the mutation.
func (s *Store[T]) Subscribe(fn func(domain.Change[T])) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subSeq++
	id := s.subSeq
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// resetLocked rebuilds records and index. The counter ends up past both
// floor and the highest id present.
func (s *Store[T]) resetLocked(records []T, floor ID) {
	next := max(floor, 1)
	for _, r := range records {
		if r.RecordID() >= next {
			next = r.RecordID() + 1
		}
	}
	out := make([]T, 0, len(records))
	seen := make(map[ID]struct{}, len(records))
	for _, r := range records {
		if r.RecordID() <= 0 {
			r = r.WithRecordID(next)
			next++
		}
		if _, dup := seen[r.RecordID()]; dup {
			continue
		}
		seen[r.RecordID()] = struct{}{}
		out = append(out, r)
	}
	s.records = out
	s.next = next
	s.reindexLocked()
}

func (s *Store[T]) reindexLocked() {
	clear(s.index)
	for i, r := range s.records {
		s.index[r.RecordID()] = i
	}
}

func (s *Store[T]) subscribersLocked() []func(domain.Change[T]) {
	if len(s.subscribers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(domain.Change[T]), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subscribers[id])
	}
	return out
}

func notify[T any](subs []func(domain.Change[T]), change domain.Change[T]) {
	for _, fn := range subs {
		fn(change)
	}
}
