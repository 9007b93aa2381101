package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record lookup by id fails.
var ErrNotFound = errors.New("domain: record not found")

// Action classifies a store mutation.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionReset  Action = "reset"
)

// Change captures a single store mutation. Before is the zero value for
// creates, After is the zero value for deletes; resets carry neither.
type Change[T any] struct {
	Kind   Kind
	Action Action
	Before T
	After  T
}

// Bucket is the persisted form of one store: its ordered records plus the
// next identifier the counter will hand out.
type Bucket[T any] struct {
	Records []T `json:"records" yaml:"records"`
	NextID  ID  `json:"next_id,omitempty" yaml:"next_id,omitempty"`
}

// Snapshot captures every collection of the catalog.
type Snapshot struct {
	Spells    Bucket[Spell]    `json:"spells" yaml:"spells"`
	Students  Bucket[Student]  `json:"students" yaml:"students"`
	Creatures Bucket[Creature] `json:"creatures" yaml:"creatures"`
	Quests    Bucket[Quest]    `json:"quests" yaml:"quests"`
}

// Empty reports whether the snapshot carries no records at all.
func (s Snapshot) Empty() bool {
	return len(s.Spells.Records) == 0 && len(s.Students.Records) == 0 &&
		len(s.Creatures.Records) == 0 && len(s.Quests.Records) == 0
}

// Counts reports the number of records held per kind.
func (s Snapshot) Counts() map[Kind]int {
	return map[Kind]int{
		KindSpell:    len(s.Spells.Records),
		KindStudent:  len(s.Students.Records),
		KindCreature: len(s.Creatures.Records),
		KindQuest:    len(s.Quests.Records),
	}
}

// EncodeBuckets marshals every bucket to JSON keyed by kind, the layout used
// by the SQL snapshot stores.
func (s Snapshot) EncodeBuckets() (map[Kind][]byte, error) {
	out := make(map[Kind][]byte, 4)
	for _, kind := range Kinds() {
		var (
			data []byte
			err  error
		)
		switch kind {
		case KindSpell:
			data, err = json.Marshal(s.Spells)
		case KindStudent:
			data, err = json.Marshal(s.Students)
		case KindCreature:
			data, err = json.Marshal(s.Creatures)
		case KindQuest:
			data, err = json.Marshal(s.Quests)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", kind, err)
		}
		out[kind] = data
	}
	return out, nil
}

// DecodeBucket unmarshals payload into the bucket for kind. Unknown kinds are
// ignored so older tables with extra rows still load.
func (s *Snapshot) DecodeBucket(kind Kind, payload []byte) error {
	var target any
	switch kind {
	case KindSpell:
		target = &s.Spells
	case KindStudent:
		target = &s.Students
	case KindCreature:
		target = &s.Creatures
	case KindQuest:
		target = &s.Quests
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

// SnapshotStore is a minimal abstraction over durable backends. Load reports
// false when nothing has been persisted yet.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, snapshot Snapshot) error
	Close() error
}
