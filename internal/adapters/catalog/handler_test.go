package catalog_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"grimoire/internal/adapters/catalog"
	"grimoire/internal/adapters/exports"
	"grimoire/internal/blob"
	"grimoire/internal/core"
	"grimoire/pkg/domain"
)

func setupHandler(t *testing.T, spells int) (*core.Catalog, *catalog.Handler) {
	t.Helper()
	svc := core.NewCatalog(nil)
	t.Cleanup(func() { _ = svc.Close() })
	seed := domain.Snapshot{Spells: domain.Bucket[domain.Spell]{Records: []domain.Spell{
		{ID: 1, Name: "Fireball", School: "fire", Level: 3, Power: 80, Mana: 40},
		{ID: 2, Name: "Ice Shard", School: "ice", Level: 2, Power: 45, Mana: 20},
		{ID: 3, Name: "Heal", School: "healing", Level: 2, Power: 30, Mana: 25},
	}}}
	for i := 3; i < spells; i++ {
		seed.Spells.Records = append(seed.Spells.Records, domain.Spell{
			ID: domain.ID(i + 1), Name: fmt.Sprintf("Spell %02d", i+1), School: "arcane", Level: 1, Power: 10, Mana: 5,
		})
	}
	if err := svc.Seed(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	handler := catalog.NewHandler(svc)
	handler.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, handler
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

type pageResponse struct {
	Kind       domain.Kind    `json:"kind"`
	Items      []domain.Spell `json:"items"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalItems int            `json:"total_items"`
	TotalPages int            `json:"total_pages"`
	Requested  int            `json:"requested_page"`
	Clamped    bool           `json:"clamped"`
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
	return out
}

func names(spells []domain.Spell) []string {
	out := make([]string, len(spells))
	for i, s := range spells {
		out[i] = s.Name
	}
	return out
}

func TestHandlerListKinds(t *testing.T) {
	_, handler := setupHandler(t, 3)
	resp := do(t, handler, http.MethodGet, "/api/v1/kinds", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.Code)
	}
	body := decode[struct {
		Kinds []struct {
			Schema domain.SchemaDescriptor `json:"schema"`
			Count  int                     `json:"count"`
		} `json:"kinds"`
	}](t, resp)
	if len(body.Kinds) != 4 {
		t.Fatalf("expected 4 kinds, got %d", len(body.Kinds))
	}
	if body.Kinds[0].Schema.Kind != domain.KindSpell || body.Kinds[0].Count != 3 {
		t.Fatalf("unexpected first kind %+v", body.Kinds[0])
	}
	if resp := do(t, handler, http.MethodPost, "/api/v1/kinds", nil); resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

func TestHandlerQueryFiltersAndSorts(t *testing.T) {
	_, handler := setupHandler(t, 3)

	cases := []struct {
		name   string
		target string
		want   []string
	}{
		{"neutral", "/api/v1/spells", []string{"Fireball", "Ice Shard", "Heal"}},
		{"min level 2", "/api/v1/spells?min.level=2", []string{"Fireball", "Ice Shard", "Heal"}},
		{"min level 3", "/api/v1/spells?min.level=3", []string{"Fireball"}},
		{"search", "/api/v1/spells?search=ICE", []string{"Ice Shard"}},
		{"category", "/api/v1/spells?category=healing", []string{"Heal"}},
		{"all category", "/api/v1/spells?category=all", []string{"Fireball", "Ice Shard", "Heal"}},
		{"sort desc", "/api/v1/spells?sort=name&dir=desc", []string{"Ice Shard", "Heal", "Fireball"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, handler, http.MethodGet, tc.target, nil)
			if resp.Code != http.StatusOK {
				t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
			}
			page := decode[pageResponse](t, resp)
			if diff := cmp.Diff(tc.want, names(page.Items)); diff != "" {
				t.Fatalf("items mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandlerQueryPaginates(t *testing.T) {
	_, handler := setupHandler(t, 50)

	page := decode[pageResponse](t, do(t, handler, http.MethodGet, "/api/v1/spells?page=7", nil))
	if page.TotalPages != 7 || len(page.Items) != 2 || page.Page != 7 || page.Clamped {
		t.Fatalf("unexpected last page %+v", page)
	}

	clamped := decode[pageResponse](t, do(t, handler, http.MethodGet, "/api/v1/spells?page=9", nil))
	if !clamped.Clamped || clamped.Page != 7 || clamped.Requested != 9 {
		t.Fatalf("expected clamped page, got %+v", clamped)
	}

	sized := decode[pageResponse](t, do(t, handler, http.MethodGet, "/api/v1/spells?page_size=25", nil))
	if sized.TotalPages != 2 || sized.PageSize != 25 {
		t.Fatalf("unexpected sized page %+v", sized)
	}
}

func TestHandlerQueryRejectsBadInput(t *testing.T) {
	_, handler := setupHandler(t, 3)
	for _, target := range []string{
		"/api/v1/spells?page=two",
		"/api/v1/spells?page_size=x",
		"/api/v1/spells?min.level=high",
		"/api/v1/spells?min.level=NaN",
		"/api/v1/spells?min.colour=3",
		"/api/v1/spells?sort=colour",
		"/api/v1/spells?dir=sideways",
	} {
		if resp := do(t, handler, http.MethodGet, target, nil); resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, resp.Code)
		}
	}
	if resp := do(t, handler, http.MethodGet, "/api/v1/spells?format=xml", nil); resp.Code != http.StatusNotAcceptable {
		t.Fatalf("expected 406, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodGet, "/api/v1/wands", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown kind, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodGet, "/elsewhere", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside the api, got %d", resp.Code)
	}
}

func TestHandlerQueryStreamsCSV(t *testing.T) {
	_, handler := setupHandler(t, 3)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/spells?min.level=3", nil)
	req.Header.Set("Accept", "text/csv")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if ct := resp.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "spells-20260102T030405Z.csv") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	want := [][]string{
		{"id", "name", "school", "description", "level", "power", "mana"},
		{"1", "Fireball", "fire", "", "3", "80", "40"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlerCreateGetDelete(t *testing.T) {
	svc, handler := setupHandler(t, 3)

	resp := do(t, handler, http.MethodPost, "/api/v1/spells", map[string]any{
		"id": 99, "name": "Frost Nova", "school": "ice", "level": 4, "power": 60, "mana": 50,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	created := decode[struct {
		Record domain.Spell `json:"record"`
	}](t, resp).Record
	if created.ID != 4 || created.Name != "Frost Nova" {
		t.Fatalf("unexpected created record %+v", created)
	}

	got := decode[struct {
		Record domain.Spell `json:"record"`
	}](t, do(t, handler, http.MethodGet, "/api/v1/spells/4", nil)).Record
	if diff := cmp.Diff(created, got); diff != "" {
		t.Fatalf("lookup mismatch (-want +got):\n%s", diff)
	}

	if resp := do(t, handler, http.MethodDelete, "/api/v1/spells/4", nil); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodDelete, "/api/v1/spells/4", nil); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for absent id, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodGet, "/api/v1/spells/4", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodGet, "/api/v1/spells/abc", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp.Code)
	}
	if svc.Spells.Len() != 3 {
		t.Fatalf("expected 3 spells, got %d", svc.Spells.Len())
	}
}

func TestHandlerCreateReportsFieldErrors(t *testing.T) {
	svc, handler := setupHandler(t, 3)

	resp := do(t, handler, http.MethodPost, "/api/v1/spells", map[string]any{"name": "", "school": "fire", "level": 9})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	body := decode[struct {
		Errors []domain.FieldError `json:"errors"`
	}](t, resp)
	fields := make([]string, len(body.Errors))
	for i, e := range body.Errors {
		fields[i] = e.Field
	}
	if diff := cmp.Diff([]string{"name", "level"}, fields); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}

	if resp := do(t, handler, http.MethodPost, "/api/v1/spells", "{not json"); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed payload, got %d", resp.Code)
	}
	if svc.Spells.Len() != 3 {
		t.Fatalf("rejected submissions must not change the store")
	}
}

func TestHandlerResidentView(t *testing.T) {
	svc, handler := setupHandler(t, 3)

	resp := do(t, handler, http.MethodPatch, "/api/v1/spells/view", domain.Criteria{Search: "ice"})
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	view := decode[struct {
		Criteria domain.Criteria `json:"criteria"`
		Count    int             `json:"count"`
		Items    []domain.Spell  `json:"items"`
	}](t, resp)
	if view.Count != 1 || view.Items[0].Name != "Ice Shard" || view.Criteria.Search != "ice" {
		t.Fatalf("unexpected view %+v", view)
	}
	if got := svc.Spells.Visible(); len(got) != 1 {
		t.Fatalf("expected resident view to hold 1 record, got %d", len(got))
	}

	// removing a visible record refreshes the resident view
	if resp := do(t, handler, http.MethodDelete, "/api/v1/spells/2", nil); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	view = decode[struct {
		Criteria domain.Criteria `json:"criteria"`
		Count    int             `json:"count"`
		Items    []domain.Spell  `json:"items"`
	}](t, do(t, handler, http.MethodGet, "/api/v1/spells/view", nil))
	if view.Count != 0 {
		t.Fatalf("expected empty view, got %+v", view)
	}

	if resp := do(t, handler, http.MethodPatch, "/api/v1/spells/view", domain.Criteria{SortField: "colour"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort field, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodPut, "/api/v1/spells/view", nil); resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

func TestHandlerExports(t *testing.T) {
	svc, handler := setupHandler(t, 3)

	if resp := do(t, handler, http.MethodPost, "/api/v1/exports", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without scheduler, got %d", resp.Code)
	}

	worker := exports.NewWorker(svc, blob.NewMemory())
	worker.Start()
	t.Cleanup(func() { _ = worker.Stop(context.Background()) })
	handler.Exports = worker

	resp := do(t, handler, http.MethodPost, "/api/v1/exports", map[string]any{
		"kind":     "spells",
		"criteria": map[string]any{"search": "fire"},
		"formats":  []string{"csv"},
	})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	queued := decode[struct {
		Export exports.Record `json:"export"`
	}](t, resp).Export

	deadline := time.Now().Add(2 * time.Second)
	var record exports.Record
	for time.Now().Before(deadline) {
		record = decode[struct {
			Export exports.Record `json:"export"`
		}](t, do(t, handler, http.MethodGet, "/api/v1/exports/"+queued.ID, nil)).Export
		if record.Done() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if record.Status != exports.StatusSucceeded || len(record.Artifacts) != 1 || record.Artifacts[0].Rows != 1 {
		t.Fatalf("unexpected export %+v", record)
	}

	if resp := do(t, handler, http.MethodGet, "/api/v1/exports/missing", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodPost, "/api/v1/exports", map[string]any{"kind": "spells", "formats": []string{"png"}}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad format, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodPost, "/api/v1/exports", map[string]any{"kind": "wands"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", resp.Code)
	}
}
