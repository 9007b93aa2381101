package core

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"grimoire/internal/infra/persistence/memory"
	"grimoire/pkg/domain"
)

// Catalog owns one collection per kind and persists the whole snapshot after
// every successful mutation.
type Catalog struct {
	Spells    *Collection[domain.Spell]
	Students  *Collection[domain.Student]
	Creatures *Collection[domain.Creature]
	Quests    *Collection[domain.Quest]

	snapshots domain.SnapshotStore
	obs       observability
	saveMu    sync.Mutex
}

// NewCatalog returns an empty catalog writing to snapshots. A nil store keeps
// snapshots in memory.
func NewCatalog(snapshots domain.SnapshotStore, opts ...Option) *Catalog {
	if snapshots == nil {
		snapshots = memory.NewSnapshotStore()
	}
	obs := defaultObservability()
	for _, opt := range opts {
		opt(&obs)
	}
	c := &Catalog{snapshots: snapshots, obs: obs}
	c.Spells = newCollection(domain.SpellSchema(), memory.NewStore[domain.Spell](domain.KindSpell), obs, c.Save)
	c.Students = newCollection(domain.StudentSchema(), memory.NewStore[domain.Student](domain.KindStudent), obs, c.Save)
	c.Creatures = newCollection(domain.CreatureSchema(), memory.NewStore[domain.Creature](domain.KindCreature), obs, c.Save)
	c.Quests = newCollection(domain.QuestSchema(), memory.NewStore[domain.Quest](domain.KindQuest), obs, c.Save)
	return c
}

// Resources returns every collection in canonical kind order.
func (c *Catalog) Resources() []Resource {
	return []Resource{c.Spells, c.Students, c.Creatures, c.Quests}
}

// Resource returns the collection serving kind.
func (c *Catalog) Resource(kind domain.Kind) (Resource, bool) {
	for _, r := range c.Resources() {
		if r.Kind() == kind {
			return r, true
		}
	}
	return nil, false
}

// Snapshot captures every collection, including id counters.
func (c *Catalog) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		Spells:    c.Spells.store.Export(),
		Students:  c.Students.store.Export(),
		Creatures: c.Creatures.store.Export(),
		Quests:    c.Quests.store.Export(),
	}
}

// Save writes the current snapshot. Saves are serialised so an older
// snapshot never overwrites a newer one.
func (c *Catalog) Save(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if err := c.snapshots.Save(ctx, c.Snapshot()); err != nil {
		return fmt.Errorf("persist catalog: %w", err)
	}
	return nil
}

// Load restores the persisted snapshot, reporting false when nothing was
// persisted yet.
func (c *Catalog) Load(ctx context.Context) (bool, error) {
	var found bool
	err := c.obs.run(ctx, "catalog.load", func(ctx context.Context) error {
		snapshot, ok, err := c.snapshots.Load(ctx)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		if found = ok; ok {
			c.restore(snapshot)
		}
		return nil
	})
	return found, err
}

func (c *Catalog) restore(s domain.Snapshot) {
	c.Spells.store.Import(s.Spells)
	c.Students.store.Import(s.Students)
	c.Creatures.store.Import(s.Creatures)
	c.Quests.store.Import(s.Quests)
}

// Seed validates and installs every non-empty bucket of seed, replacing the
// contents of those kinds, then persists once. Nothing is installed when any
// record fails validation.
func (c *Catalog) Seed(ctx context.Context, seed domain.Snapshot) error {
	return c.obs.run(ctx, "catalog.seed", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return checkBucket(gctx, c.Spells.schema, seed.Spells) })
		g.Go(func() error { return checkBucket(gctx, c.Students.schema, seed.Students) })
		g.Go(func() error { return checkBucket(gctx, c.Creatures.schema, seed.Creatures) })
		g.Go(func() error { return checkBucket(gctx, c.Quests.schema, seed.Quests) })
		if err := g.Wait(); err != nil {
			return err
		}
		installBucket(c.Spells.store, seed.Spells)
		installBucket(c.Students.store, seed.Students)
		installBucket(c.Creatures.store, seed.Creatures)
		installBucket(c.Quests.store, seed.Quests)
		c.obs.logger.Info("catalog seeded",
			"spells", len(seed.Spells.Records), "students", len(seed.Students.Records),
			"creatures", len(seed.Creatures.Records), "quests", len(seed.Quests.Records))
		return c.Save(ctx)
	})
}

// Bootstrap loads the persisted snapshot and falls back to seed when nothing
// has been persisted or the persisted catalog is empty.
func (c *Catalog) Bootstrap(ctx context.Context, seed domain.Snapshot) (bool, error) {
	found, err := c.Load(ctx)
	if err != nil {
		return false, err
	}
	if found && !c.Snapshot().Empty() {
		return false, nil
	}
	if err := c.Seed(ctx, seed); err != nil {
		return false, err
	}
	return true, nil
}

// Close releases the snapshot store.
func (c *Catalog) Close() error {
	for _, col := range []interface{ Close() }{c.Spells, c.Students, c.Creatures, c.Quests} {
		col.Close()
	}
	return c.snapshots.Close()
}

func checkBucket[T any](ctx context.Context, schema domain.Schema[T], bucket domain.Bucket[T]) error {
	for i, r := range bucket.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if problems := schema.Check(r); len(problems) > 0 {
			return fmt.Errorf("seed %s[%d]: %w", schema.Kind, i, &ValidationError{Kind: schema.Kind, Fields: problems})
		}
	}
	return nil
}

func installBucket[T domain.Record[T]](store *memory.Store[T], bucket domain.Bucket[T]) {
	if len(bucket.Records) == 0 {
		return
	}
	store.Import(bucket)
}
