package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"grimoire/pkg/domain"
)

func names(spells []domain.Spell) []string {
	out := make([]string, 0, len(spells))
	for _, s := range spells {
		out = append(out, s.Name)
	}
	return out
}

func TestAddAssignsFreshIDsAndKeepsOrder(t *testing.T) {
	store := NewStore[domain.Spell](domain.KindSpell)
	a := store.Add(domain.Spell{Name: "Fireball", ID: 99})
	b := store.Add(domain.Spell{Name: "Ice Shard"})
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("ids = %d, %d", a.ID, b.ID)
	}
	if diff := cmp.Diff([]string{"Fireball", "Ice Shard"}, names(store.List())); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if store.Kind() != domain.KindSpell || store.Len() != 2 {
		t.Fatalf("kind/len = %s/%d", store.Kind(), store.Len())
	}
}

func TestRemoveIsIdempotentAndNeverReusesIDs(t *testing.T) {
	store := NewStore[domain.Spell](domain.KindSpell)
	store.Add(domain.Spell{Name: "Fireball"})
	second := store.Add(domain.Spell{Name: "Heal"})

	if !store.Remove(second.ID) {
		t.Fatalf("expected remove to report existing record")
	}
	if store.Remove(second.ID) {
		t.Fatalf("expected second remove to be a no-op")
	}
	if store.Remove(404) {
		t.Fatalf("expected absent id to be a no-op")
	}
	third := store.Add(domain.Spell{Name: "Frost Nova"})
	if third.ID != 3 {
		t.Fatalf("expected id 3 after removal, got %d", third.ID)
	}
	if _, ok := store.Get(second.ID); ok {
		t.Fatalf("removed record still retrievable")
	}
	got, ok := store.Get(third.ID)
	if !ok || got.Name != "Frost Nova" {
		t.Fatalf("get = %+v %v", got, ok)
	}
}

func TestListReturnsCopy(t *testing.T) {
	store := NewStore(domain.KindSpell, domain.Spell{Name: "Fireball"})
	list := store.List()
	list[0].Name = "mutated"
	if store.List()[0].Name != "Fireball" {
		t.Fatalf("store shares its backing slice")
	}
}

func TestReplaceKeepsPosition(t *testing.T) {
	store := NewStore(domain.KindQuest,
		domain.Quest{Title: "Slay"},
		domain.Quest{Title: "Escort"},
	)
	if err := store.Replace(domain.Quest{ID: 1, Title: "Slay the wyrm", Completed: true}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	list := store.List()
	if list[0].Title != "Slay the wyrm" || !list[0].Completed || list[1].Title != "Escort" {
		t.Fatalf("unexpected list %+v", list)
	}
	if err := store.Replace(domain.Quest{ID: 7}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResetAssignsMissingIDsAndDropsDuplicates(t *testing.T) {
	store := NewStore[domain.Creature](domain.KindCreature)
	store.Reset([]domain.Creature{
		{ID: 5, Name: "Basilisk"},
		{Name: "Wisp"},
		{ID: 5, Name: "Duplicate"},
	})
	list := store.List()
	if len(list) != 2 || list[0].ID != 5 || list[1].ID != 6 {
		t.Fatalf("unexpected reset result %+v", list)
	}
	if next := store.Add(domain.Creature{Name: "Golem"}); next.ID != 7 {
		t.Fatalf("expected id 7, got %d", next.ID)
	}
}

func TestExportImportPreservesCounter(t *testing.T) {
	store := NewStore(domain.KindStudent, domain.Student{Name: "Ayla"}, domain.Student{Name: "Bram"})
	store.Remove(2)
	bucket := store.Export()
	if bucket.NextID != 3 || len(bucket.Records) != 1 {
		t.Fatalf("unexpected bucket %+v", bucket)
	}

	restored := NewStore[domain.Student](domain.KindStudent)
	restored.Import(bucket)
	if got := restored.Add(domain.Student{Name: "Cato"}); got.ID != 3 {
		t.Fatalf("expected counter to survive import, got %d", got.ID)
	}
}

func TestSubscribeReceivesChangesUntilCancelled(t *testing.T) {
	store := NewStore[domain.Spell](domain.KindSpell)
	var actions []domain.Action
	cancel := store.Subscribe(func(c domain.Change[domain.Spell]) {
		if c.Kind != domain.KindSpell {
			t.Errorf("unexpected kind %s", c.Kind)
		}
		actions = append(actions, c.Action)
	})

	added := store.Add(domain.Spell{Name: "Fireball"})
	_ = store.Replace(added)
	store.Remove(added.ID)
	store.Reset(nil)
	cancel()
	store.Add(domain.Spell{Name: "ignored"})

	want := []domain.Action{domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete, domain.ActionReset}
	if diff := cmp.Diff(want, actions); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
}

func TestSubscriberMayReadStore(t *testing.T) {
	store := NewStore[domain.Spell](domain.KindSpell)
	var seen int
	store.Subscribe(func(domain.Change[domain.Spell]) { seen = store.Len() })
	store.Add(domain.Spell{Name: "Fireball"})
	if seen != 1 {
		t.Fatalf("subscriber observed len %d", seen)
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	snapshots := NewSnapshotStore()
	if _, found, err := snapshots.Load(ctx); err != nil || found {
		t.Fatalf("expected empty store, got found=%v err=%v", found, err)
	}
	want := domain.Snapshot{Spells: domain.Bucket[domain.Spell]{
		Records: []domain.Spell{{ID: 1, Name: "Fireball", School: "fire", Level: 3}},
		NextID:  2,
	}}
	if err := snapshots.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, found, err := snapshots.Load(ctx)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if snapshots.Saves() != 1 || snapshots.Close() != nil {
		t.Fatalf("unexpected saves %d", snapshots.Saves())
	}
}
