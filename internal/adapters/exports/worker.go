// Package exports renders derived catalog views into blob storage on a
// background worker.
package exports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"grimoire/internal/blob"
	"grimoire/internal/core"
	"grimoire/pkg/domain"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format names a rendered artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// DefaultQueueSize bounds the number of pending export requests.
const DefaultQueueSize = 32

// ErrQueueFull is returned when the worker cannot accept more requests.
var ErrQueueFull = errors.New("exports: queue full")

// ParseFormat normalises a format name.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// Artifact captures a stored export rendering.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string          `json:"id"`
	Kind        domain.Kind     `json:"kind"`
	Criteria    domain.Criteria `json:"criteria"`
	Formats     []Format        `json:"formats"`
	Status      Status          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Artifacts   []Artifact      `json:"artifacts,omitempty"`
	RequestedBy string          `json:"requested_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Done reports whether the record reached a terminal status.
func (r Record) Done() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}

// Input is an enqueue request.
type Input struct {
	Kind        domain.Kind
	Criteria    domain.Criteria
	Formats     []Format
	RequestedBy string
}

// Catalog resolves resources by kind.
type Catalog interface {
	Resource(kind domain.Kind) (core.Resource, bool)
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(logger core.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// WithURLExpiry sets the lifetime of artifact download URLs.
func WithURLExpiry(d time.Duration) Option {
	return func(w *Worker) { w.urlExpiry = d }
}

// Worker executes exports asynchronously. Start launches the processing
// goroutine and Stop waits for it.
type Worker struct {
	catalog   Catalog
	store     blob.Store
	logger    core.Logger
	queueSize int
	urlExpiry time.Duration
	now       func() time.Time

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs an export worker writing artifacts to store.
func NewWorker(c Catalog, store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		catalog:   c,
		store:     store,
		logger:    nopLogger{},
		queueSize: DefaultQueueSize,
		now:       func() time.Time { return time.Now().UTC() },
		jobs:      make(map[string]*Record),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.queue = make(chan string, w.queueSize)
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// Enqueue validates input, records a queued job and schedules it.
func (w *Worker) Enqueue(_ context.Context, input Input) (Record, error) {
	if w.catalog == nil {
		return Record{}, errors.New("export catalog not configured")
	}
	if w.store == nil {
		return Record{}, errors.New("export blob store not configured")
	}
	res, ok := w.catalog.Resource(input.Kind)
	if !ok {
		return Record{}, fmt.Errorf("unknown kind %q", input.Kind)
	}
	criteria, err := res.NormalizeCriteria(input.Criteria)
	if err != nil {
		return Record{}, err
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, f := range formats {
		parsed, err := ParseFormat(string(f))
		if err != nil {
			return Record{}, err
		}
		if _, dup := seen[parsed]; dup {
			continue
		}
		seen[parsed] = struct{}{}
		uniq = append(uniq, parsed)
	}

	now := w.now()
	record := Record{
		ID:          uuid.NewString(),
		Kind:        res.Kind(),
		Criteria:    criteria,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	select {
	case w.queue <- record.ID:
	default:
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.jobs[record.ID] = &record
	snapshot := record.copy()
	w.mu.Unlock()

	w.logger.Info("export queued", "id", record.ID, "kind", record.Kind, "formats", len(uniq))
	return snapshot, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(id string) {
	w.mu.RLock()
	job, ok := w.jobs[id]
	var record Record
	if ok {
		record = job.copy()
	}
	w.mu.RUnlock()
	if !ok {
		return
	}

	res, ok := w.catalog.Resource(record.Kind)
	if !ok {
		w.fail(id, fmt.Sprintf("kind %s missing", record.Kind))
		return
	}
	w.update(id, func(r *Record) { r.Status = StatusRunning })

	table, err := res.Table(record.Criteria)
	if err != nil {
		w.fail(id, fmt.Sprintf("derive view: %v", err))
		return
	}

	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		artifact, err := w.publish(w.ctx, record, format, table)
		if err != nil {
			w.fail(id, err.Error())
			return
		}
		artifacts = append(artifacts, artifact)
	}

	now := w.now()
	w.update(id, func(r *Record) {
		r.Status = StatusSucceeded
		r.Error = ""
		r.Artifacts = artifacts
		r.CompletedAt = &now
	})
	w.logger.Info("export succeeded", "id", id, "kind", record.Kind, "rows", len(table.Rows))
}

func (w *Worker) update(id string, fn func(*Record)) {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		fn(record)
		record.UpdatedAt = now
	}
}

func (w *Worker) fail(id, reason string) {
	now := w.now()
	w.update(id, func(r *Record) {
		r.Status = StatusFailed
		r.Error = reason
		r.CompletedAt = &now
	})
	w.logger.Error("export failed", "id", id, "error", reason)
}

func (r Record) copy() Record {
	dup := r
	dup.Criteria = r.Criteria.Clone()
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		dup.CompletedAt = &at
	}
	return dup
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
