package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"grimoire/internal/blob/core"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("driver = %s", s.Driver())
	}
	meta := map[string]string{"kind": "quests"}
	info, err := s.Put(ctx, "exports/1/quests.json", strings.NewReader(`[{"id":1}]`), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["kind"] = "mutated"
	if info.Size != 10 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "exports/1/quests.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	head, err := s.Head(ctx, "exports/1/quests.json")
	if err != nil || head.Metadata["kind"] != "quests" {
		t.Fatalf("head = %+v %v", head, err)
	}
	_, rc, err := s.Get(ctx, "exports/1/quests.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != `[{"id":1}]` {
		t.Fatalf("body = %q", body)
	}

	url, err := s.PresignURL(ctx, "exports/1/quests.json", core.SignedURLOptions{})
	if err != nil || url != "memory://exports/1/quests.json" {
		t.Fatalf("presign = %q %v", url, err)
	}
	if _, err := s.PresignURL(ctx, "exports/1/quests.json", core.SignedURLOptions{Method: "POST"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}

	_, _ = s.Put(ctx, "exports/0/spells.csv", strings.NewReader("a"), core.PutOptions{})
	_, _ = s.Put(ctx, "other", strings.NewReader("b"), core.PutOptions{})
	list, _ := s.List(ctx, "exports/")
	if len(list) != 2 || list[0].Key != "exports/0/spells.csv" {
		t.Fatalf("unexpected list %+v", list)
	}

	if ok, _ := s.Delete(ctx, "other"); !ok {
		t.Fatalf("expected delete to report existing key")
	}
	if ok, _ := s.Delete(ctx, "other"); ok {
		t.Fatalf("expected second delete to report absent key")
	}
	if _, err := s.Head(ctx, "other"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "other"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStorePutErrors(t *testing.T) {
	s := New()
	if _, err := s.Put(context.Background(), "", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
	if _, err := s.Put(context.Background(), "k", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected read error")
	}
}
