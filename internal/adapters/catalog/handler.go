// Package catalog exposes catalog collections over HTTP.
package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"grimoire/internal/adapters/exports"
	"grimoire/internal/core"
	"grimoire/pkg/domain"
)

const (
	apiPrefix    = "/api/v1/"
	maxBodyBytes = 1 << 20
)

// Catalog is the subset of core.Catalog the handler serves.
type Catalog interface {
	Resources() []core.Resource
	Resource(kind domain.Kind) (core.Resource, bool)
}

// ExportScheduler queues exports and exposes their status.
type ExportScheduler interface {
	Enqueue(ctx context.Context, input exports.Input) (exports.Record, error)
	Get(id string) (exports.Record, bool)
}

// Handler serves the catalog REST API.
type Handler struct {
	Catalog Catalog
	Exports ExportScheduler
	Now     func() time.Time
}

// NewHandler constructs a handler over catalog. Export routes answer 404
// until Exports is set.
func NewHandler(c Catalog) *Handler {
	return &Handler{Catalog: c, Now: time.Now}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, apiPrefix) {
		http.NotFound(w, r)
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, apiPrefix), "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "kinds":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleKinds(w)
		return
	case path == "openapi.yaml":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		NewOpenAPIHandler(h.Catalog).ServeHTTP(w, r)
		return
	case parts[0] == "exports":
		h.handleExports(w, r, parts[1:])
		return
	}

	if h.Catalog == nil || path == "" {
		http.NotFound(w, r)
		return
	}
	res, ok := h.Catalog.Resource(domain.Kind(parts[0]))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown kind %q", parts[0]))
		return
	}

	switch len(parts) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			h.handleQuery(w, r, res)
		case http.MethodPost:
			h.handleCreate(w, r, res)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case 2:
		if parts[1] == "view" {
			h.handleView(w, r, res)
			return
		}
		id, err := domain.ParseID(parts[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid record id")
			return
		}
		switch r.Method {
		case http.MethodGet:
			record, ok := res.Lookup(id)
			if !ok {
				writeError(w, http.StatusNotFound, "record not found")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"record": record})
		case http.MethodDelete:
			if _, err := res.Remove(r.Context(), id); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodDelete)
		}
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleKinds(w http.ResponseWriter) {
	var resources []core.Resource
	if h.Catalog != nil {
		resources = h.Catalog.Resources()
	}
	kinds := make([]kindResponse, 0, len(resources))
	for _, res := range resources {
		kinds = append(kinds, kindResponse{Schema: res.Descriptor(), Count: res.Len()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"kinds": kinds})
}

type kindResponse struct {
	Schema domain.SchemaDescriptor `json:"schema"`
	Count  int                     `json:"count"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request, res core.Resource) {
	query := r.URL.Query()
	criteria, err := res.ParseCriteria(query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch negotiateFormat(r) {
	case exports.FormatCSV:
		table, err := res.Table(criteria)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.streamCSV(w, res.Kind(), table)
		return
	case exports.FormatJSON:
	default:
		writeError(w, http.StatusNotAcceptable, "requested format not supported")
		return
	}

	page, err := intParam(query.Get("page"), 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	size, err := intParam(query.Get("page_size"), core.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page_size must be an integer")
		return
	}
	result, err := res.QueryRecords(criteria, page, size)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Kind: res.Kind(), Criteria: criteria, Page: result})
}

type queryResponse struct {
	Kind     domain.Kind     `json:"kind"`
	Criteria domain.Criteria `json:"criteria"`
	core.Page[any]
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request, res core.Resource) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	record, err := res.Create(r.Context(), payload)
	var verr *core.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]any{"record": record})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid record",
			"errors": verr.Fields,
		})
	case errors.Is(err, core.ErrMalformedRecord):
		writeError(w, http.StatusBadRequest, "invalid record payload")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type viewResponse struct {
	Kind     domain.Kind     `json:"kind"`
	Criteria domain.Criteria `json:"criteria"`
	Count    int             `json:"count"`
	Items    []any           `json:"items"`
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request, res core.Resource) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPatch:
		var criteria domain.Criteria
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&criteria); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid criteria payload")
			return
		}
		if err := res.ApplyCriteria(criteria); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch)
		return
	}
	items := res.VisibleRecords()
	writeJSON(w, http.StatusOK, viewResponse{
		Kind:     res.Kind(),
		Criteria: res.ResidentCriteria(),
		Count:    len(items),
		Items:    items,
	})
}

type exportRequest struct {
	Kind        domain.Kind     `json:"kind"`
	Criteria    domain.Criteria `json:"criteria"`
	Formats     []string        `json:"formats"`
	RequestedBy string          `json:"requested_by"`
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, rest []string) {
	if h.Exports == nil {
		writeError(w, http.StatusNotFound, "exports not configured")
		return
	}
	switch len(rest) {
	case 0:
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		var req exportRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid export request payload")
			return
		}
		formats := make([]exports.Format, 0, len(req.Formats))
		for _, raw := range req.Formats {
			f, err := exports.ParseFormat(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			formats = append(formats, f)
		}
		record, err := h.Exports.Enqueue(r.Context(), exports.Input{
			Kind:        req.Kind,
			Criteria:    req.Criteria,
			Formats:     formats,
			RequestedBy: req.RequestedBy,
		})
		switch {
		case errors.Is(err, exports.ErrQueueFull):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case err != nil:
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
		}
	case 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		record, ok := h.Exports.Get(rest[0])
		if !ok {
			writeError(w, http.StatusNotFound, "export not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"export": record})
	default:
		http.NotFound(w, r)
	}
}

func negotiateFormat(r *http.Request) exports.Format {
	wanted := strings.ToLower(r.URL.Query().Get("format"))
	if wanted == "" {
		if strings.Contains(r.Header.Get("Accept"), "text/csv") {
			return exports.FormatCSV
		}
		return exports.FormatJSON
	}
	f, err := exports.ParseFormat(wanted)
	if err != nil {
		return ""
	}
	return f
}

func (h *Handler) streamCSV(w http.ResponseWriter, kind domain.Kind, table core.Table) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	filename := fmt.Sprintf("%s-%s.csv", kind, now().UTC().Format("20060102T150405Z"))

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(table.Columns); err != nil {
		return
	}
	for _, row := range table.Rows {
		if err := writer.Write(row.Cells); err != nil {
			return
		}
	}
}

func intParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// writeJSON encodes payload before writing the header; encoding failures
// answer 500.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		msg, _ := json.Marshal(map[string]string{"error": "encode response: " + err.Error()})
		_, _ = w.Write(append(msg, '\n'))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
