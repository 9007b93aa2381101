package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"grimoire/internal/blob/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s
}

func TestStorePutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if s.Driver() != core.DriverFilesystem {
		t.Fatalf("driver = %s", s.Driver())
	}

	info, err := s.Put(ctx, "exports/a/spells.csv", strings.NewReader("id,name\n1,Fireball\n"), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"kind": "spells"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 19 || info.ETag == "" || info.URL != "http://local.blob/exports/a/spells.csv" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "exports/a/spells.csv", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := s.Get(ctx, "exports/a/spells.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "id,name\n1,Fireball\n" || got.Metadata["kind"] != "spells" || got.ContentType != "text/csv" {
		t.Fatalf("unexpected get %+v %q", got, body)
	}

	if _, err := s.Put(ctx, "exports/b/quests.json", strings.NewReader("[]"), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if _, err := s.Put(ctx, "seeds/catalog.yaml", strings.NewReader("spells: {}"), core.PutOptions{}); err != nil {
		t.Fatalf("put third: %v", err)
	}
	list, err := s.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "exports/a/spells.csv" || list[1].Key != "exports/b/quests.json" {
		t.Fatalf("unexpected list %+v", list)
	}

	existed, err := s.Delete(ctx, "exports/a/spells.csv")
	if err != nil || !existed {
		t.Fatalf("delete: %v %v", existed, err)
	}
	existed, err = s.Delete(ctx, "exports/a/spells.csv")
	if err != nil || existed {
		t.Fatalf("second delete: %v %v", existed, err)
	}
	if _, err := s.Head(ctx, "exports/a/spells.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on get, got %v", err)
	}
}

func TestStoreRejectsUnsafeKeys(t *testing.T) {
	s := newStore(t)
	for _, key := range []string{"", "  ", "/etc/passwd", "../escape", "a/../../b", "x.meta"} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestStorePresign(t *testing.T) {
	s := newStore(t)
	url, err := s.PresignURL(context.Background(), "exports/x.csv", core.SignedURLOptions{})
	if err != nil || url != "http://local.blob/exports/x.csv" {
		t.Fatalf("presign = %q %v", url, err)
	}
	if _, err := s.PresignURL(context.Background(), "exports/x.csv", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestListSurfacesCorruptSidecar(t *testing.T) {
	s := newStore(t)
	if err := os.WriteFile(filepath.Join(s.Root(), "broken"+metaSuffix), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.List(context.Background(), ""); err == nil {
		t.Fatalf("expected corrupt sidecar error")
	}
}

func TestSidecarMarshalFailure(t *testing.T) {
	orig := marshalSidecar
	marshalSidecar = func(sidecar) ([]byte, error) { return nil, errors.New("boom") }
	t.Cleanup(func() { marshalSidecar = orig })

	s := newStore(t)
	if _, err := s.Put(context.Background(), "k", strings.NewReader("v"), core.PutOptions{}); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestNewRejectsFileRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(filepath.Join(file, "nested")); err == nil {
		t.Fatalf("expected error for root under a file")
	}
}
