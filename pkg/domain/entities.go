// Package domain defines the record types, field schemas and filter criteria
// shared by every catalog collection. Infra and adapter layers depend on this
// package; it depends on nothing inside the module.
package domain

import "strconv"

// ID uniquely identifies a record within a single store. Identifiers are
// handed out by a monotonic counter and never reused for the store lifetime.
type ID int64

// String renders the identifier in base 10.
func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseID converts a textual identifier back into an ID.
func ParseID(raw string) (ID, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// Kind names a record collection.
type Kind string

const (
	KindSpell    Kind = "spells"
	KindStudent  Kind = "students"
	KindCreature Kind = "creatures"
	KindQuest    Kind = "quests"
)

// Kinds returns the supported collection kinds in canonical order.
func Kinds() []Kind {
	return []Kind{KindSpell, KindStudent, KindCreature, KindQuest}
}

// Record is implemented by every catalog entity. WithRecordID returns a copy
// carrying the supplied identifier so stores can assign ids without
// reflection.
type Record[T any] interface {
	RecordID() ID
	WithRecordID(ID) T
}

// Spell is a grimoire entry.
type Spell struct {
	ID          ID     `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	School      string `json:"school" yaml:"school"`
	Level       int    `json:"level" yaml:"level"`
	Power       int    `json:"power" yaml:"power"`
	Mana        int    `json:"mana" yaml:"mana"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

func (s Spell) RecordID() ID { return s.ID }

func (s Spell) WithRecordID(id ID) Spell {
	s.ID = id
	return s
}

// Student is an academy student ranked by house points.
type Student struct {
	ID     ID     `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	House  string `json:"house" yaml:"house"`
	Year   int    `json:"year" yaml:"year"`
	Points int    `json:"points" yaml:"points"`
}

func (s Student) RecordID() ID { return s.ID }

func (s Student) WithRecordID(id ID) Student {
	s.ID = id
	return s
}

// Creature is a bestiary entry.
type Creature struct {
	ID      ID     `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Habitat string `json:"habitat" yaml:"habitat"`
	Danger  int    `json:"danger" yaml:"danger"`
}

func (c Creature) RecordID() ID { return c.ID }

func (c Creature) WithRecordID(id ID) Creature {
	c.ID = id
	return c
}

// Quest is a board posting adventurers can take on.
type Quest struct {
	ID         ID     `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	Region     string `json:"region" yaml:"region"`
	Difficulty string `json:"difficulty" yaml:"difficulty"`
	Reward     int    `json:"reward" yaml:"reward"`
	Completed  bool   `json:"completed" yaml:"completed"`
}

func (q Quest) RecordID() ID { return q.ID }

func (q Quest) WithRecordID(id ID) Quest {
	q.ID = id
	return q
}

// Compile-time assertions that the entities satisfy Record.
var (
	_ Record[Spell]    = Spell{}
	_ Record[Student]  = Student{}
	_ Record[Creature] = Creature{}
	_ Record[Quest]    = Quest{}
)
