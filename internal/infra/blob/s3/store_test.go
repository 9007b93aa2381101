package s3

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"grimoire/internal/blob/core"
)

func TestMockedStoreFlow(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if s.Driver() != core.DriverS3 || s.Bucket() != "grimoire-test" {
		t.Fatalf("unexpected store identity %s %s", s.Driver(), s.Bucket())
	}

	info, err := s.Put(ctx, "exports/1/spells.csv", strings.NewReader("id,name\n"), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"kind": "spells"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 8 || info.ContentType != "text/csv" || info.Metadata["kind"] != "spells" || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "exports/1/spells.csv", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	_, rc, err := s.Get(ctx, "exports/1/spells.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "id,name\n" {
		t.Fatalf("body = %q", body)
	}

	for _, key := range []string{"exports/1/quests.json", "exports/2/students.csv", "seeds/x.json"} {
		if _, err := s.Put(ctx, key, strings.NewReader("{}"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := s.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var keys []string
	for _, i := range list {
		keys = append(keys, i.Key)
	}
	if strings.Join(keys, ",") != "exports/1/quests.json,exports/1/spells.csv,exports/2/students.csv" {
		t.Fatalf("unexpected keys %v", keys)
	}

	existed, err := s.Delete(ctx, "seeds/x.json")
	if err != nil || !existed {
		t.Fatalf("delete: %v %v", existed, err)
	}
	existed, err = s.Delete(ctx, "seeds/x.json")
	if err != nil || existed {
		t.Fatalf("second delete: %v %v", existed, err)
	}
	if _, err := s.Head(ctx, "seeds/x.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "seeds/x.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on get, got %v", err)
	}
}

func TestPresign(t *testing.T) {
	s := NewMockForTests()
	raw, err := s.PresignURL(context.Background(), "exports/1/spells.csv", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Query().Get("X-Amz-Expires") != "60" || !strings.HasSuffix(u.Path, "/grimoire-test/exports/1/spells.csv") {
		t.Fatalf("unexpected presigned url %s", raw)
	}
	if _, err := s.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestOpenFromEnv(t *testing.T) {
	t.Setenv("GRIMOIRE_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	t.Setenv("GRIMOIRE_BLOB_S3_BUCKET", "grimoire")
	t.Setenv("GRIMOIRE_BLOB_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("GRIMOIRE_BLOB_S3_PATH_STYLE", "true")
	s, err := OpenFromEnv(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Bucket() != "grimoire" {
		t.Fatalf("bucket = %s", s.Bucket())
	}
}

func TestDecodeChunked(t *testing.T) {
	framed := []byte("5;chunk-signature=abc\r\nhello\r\n3\r\nabc\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n")
	if got := string(decodeChunked(framed)); got != "helloabc" {
		t.Fatalf("decoded %q", got)
	}
}
