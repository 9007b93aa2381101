package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"grimoire/pkg/domain"
)

func scenarioSpells() []domain.Spell {
	return []domain.Spell{
		{ID: 1, Name: "Fireball", School: "fire", Level: 3, Power: 80, Mana: 40},
		{ID: 2, Name: "Ice Shard", School: "ice", Level: 2, Power: 45, Mana: 20},
		{ID: 3, Name: "Heal", School: "healing", Level: 2, Power: 30, Mana: 25},
	}
}

func syntheticSpells(n int) []domain.Spell {
	out := make([]domain.Spell, n)
	for i := range out {
		out[i] = domain.Spell{
			ID:     domain.ID(i + 1),
			Name:   fmt.Sprintf("Spell %02d", i+1),
			School: domain.SpellSchools[i%len(domain.SpellSchools)],
			Level:  i%5 + 1,
			Power:  (i * 7) % 101,
		}
	}
	return out
}

func spellIDs(spells []domain.Spell) []domain.ID {
	ids := make([]domain.ID, len(spells))
	for i, s := range spells {
		ids[i] = s.ID
	}
	return ids
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) record(level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, level+":"+msg)
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.record("d", msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.record("i", msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.record("w", msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.record("e", msg) }

func (c *captureLogger) has(entry string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call == entry {
			return true
		}
	}
	return false
}

type observation struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu   sync.Mutex
	seen []observation
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, observation{op: op, success: success})
}

func (c *captureMetrics) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.seen {
		if o.op == op && o.success == success {
			return true
		}
	}
	return false
}

// steppingClock advances by step on every reading.
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

var errSaveFailed = errors.New("disk full")

type failingSnapshots struct {
	load bool
}

func (f failingSnapshots) Load(context.Context) (domain.Snapshot, bool, error) {
	if f.load {
		return domain.Snapshot{}, false, errors.New("corrupt snapshot")
	}
	return domain.Snapshot{}, false, nil
}

func (failingSnapshots) Save(context.Context, domain.Snapshot) error { return errSaveFailed }
func (failingSnapshots) Close() error                                { return nil }
