package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStubDBUpsertsAndSelects(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	t.Cleanup(func() { _ = db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	upsert := "INSERT INTO catalog_buckets (kind, payload) VALUES ($1, $2) ON CONFLICT (kind) DO UPDATE SET payload = EXCLUDED.payload"
	for _, payload := range []string{`{"records":[]}`, `{"records":[{"id":1}]}`} {
		if _, err := db.ExecContext(ctx, upsert, "spells", payload); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if _, err := db.ExecContext(ctx, upsert, "quests", `{}`); err != nil {
		t.Fatalf("upsert quests: %v", err)
	}

	want := []map[string]any{
		{"kind": "spells", "payload": `{"records":[{"id":1}]}`},
		{"kind": "quests", "payload": `{}`},
	}
	if diff := cmp.Diff(want, conn.Rows("catalog_buckets")); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	rows, err := db.QueryContext(ctx, "SELECT kind, payload FROM catalog_buckets")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var kinds []string
	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			t.Fatalf("scan: %v", err)
		}
		kinds = append(kinds, kind)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if diff := cmp.Diff([]string{"spells", "quests"}, kinds); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
	if got := len(conn.Execs()); got != 3 {
		t.Fatalf("expected 3 recorded execs, got %d", got)
	}
}

func TestStubDBFailures(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	t.Cleanup(func() { _ = db.Close() })
	boom := errors.New("boom")

	conn.FailOn(OpExec, boom)
	if _, err := db.ExecContext(ctx, "CREATE TABLE x (a TEXT)"); !errors.Is(err, boom) {
		t.Fatalf("expected exec failure, got %v", err)
	}
	conn.FailOn(OpExec, nil)
	if _, err := db.ExecContext(ctx, "CREATE TABLE x (a TEXT)"); err != nil {
		t.Fatalf("cleared failure still reported: %v", err)
	}

	conn.FailOn(OpBegin, boom)
	if _, err := db.BeginTx(ctx, nil); !errors.Is(err, boom) {
		t.Fatalf("expected begin failure, got %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO t (a, b) VALUES ($1)", 1); err == nil {
		t.Fatalf("expected column/arg mismatch")
	}
	if _, err := db.QueryContext(ctx, "DELETE FROM t"); err == nil {
		t.Fatalf("expected unparsable select")
	}
}
