package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"grimoire/internal/infra/persistence/memory"
	"grimoire/pkg/domain"
)

// ErrMalformedRecord reports a record payload that could not be decoded.
var ErrMalformedRecord = errors.New("core: malformed record")

// ValidationError carries the per-field problems that blocked a submission.
type ValidationError struct {
	Kind   domain.Kind
	Fields []domain.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%s: invalid record: %s", e.Kind, strings.Join(parts, "; "))
}

// Resource is the kind-agnostic view of a collection used by transports and
// the export worker.
type Resource interface {
	Kind() domain.Kind
	Descriptor() domain.SchemaDescriptor
	Len() int
	ParseCriteria(values url.Values) (domain.Criteria, error)
	NormalizeCriteria(criteria domain.Criteria) (domain.Criteria, error)
	QueryRecords(criteria domain.Criteria, page, size int) (Page[any], error)
	Table(criteria domain.Criteria) (Table, error)
	ResidentCriteria() domain.Criteria
	ApplyCriteria(criteria domain.Criteria) error
	VisibleRecords() []any
	Lookup(id domain.ID) (any, bool)
	Create(ctx context.Context, payload []byte) (any, error)
	Remove(ctx context.Context, id domain.ID) (bool, error)
}

// Table is a derived view flattened to text cells, first column "id".
type Table struct {
	Columns []string
	Rows    []TableRow
}

// TableRow pairs a record with its rendered cells.
type TableRow struct {
	ID     domain.ID
	Record any
	Cells  []string
}

// Collection binds a record store, its resident criteria and the cached
// derived view. The view is recomputed after every store or criteria change.
// Visible subscribers must not mutate the collection synchronously.
type Collection[T domain.Record[T]] struct {
	schema   domain.Schema[T]
	store    *memory.Store[T]
	criteria *CriteriaHolder[T]
	visible  *Observable[[]T]
	obs      observability
	persist  func(context.Context) error

	viewMu sync.Mutex
	unsubs []func()
}

var _ Resource = (*Collection[domain.Spell])(nil)

// NewCollection builds a collection over schema, seeded with records.
func NewCollection[T domain.Record[T]](schema domain.Schema[T], seed []T, opts ...Option) *Collection[T] {
	obs := defaultObservability()
	for _, opt := range opts {
		opt(&obs)
	}
	return newCollection(schema, memory.NewStore(schema.Kind, seed...), obs, nil)
}

func newCollection[T domain.Record[T]](schema domain.Schema[T], store *memory.Store[T], obs observability, persist func(context.Context) error) *Collection[T] {
	c := &Collection[T]{
		schema:   schema,
		store:    store,
		criteria: NewCriteriaHolder(schema),
		visible:  NewObservable[[]T](nil),
		obs:      obs,
		persist:  persist,
	}
	c.recompute()
	c.unsubs = append(c.unsubs,
		store.Subscribe(func(domain.Change[T]) { c.recompute() }),
		c.criteria.Subscribe(func(domain.Criteria) { c.recompute() }),
	)
	return c
}

// Kind returns the collection kind.
func (c *Collection[T]) Kind() domain.Kind { return c.schema.Kind }

// Schema returns the record schema.
func (c *Collection[T]) Schema() domain.Schema[T] { return c.schema }

// Descriptor returns the schema summary.
func (c *Collection[T]) Descriptor() domain.SchemaDescriptor { return c.schema.Descriptor() }

// Store exposes the underlying record store.
func (c *Collection[T]) Store() *memory.Store[T] { return c.store }

// Criteria returns the resident criteria holder.
func (c *Collection[T]) Criteria() *CriteriaHolder[T] { return c.criteria }

// Len reports the number of stored records.
func (c *Collection[T]) Len() int { return c.store.Len() }

// List returns every record in insertion order.
func (c *Collection[T]) List() []T { return c.store.List() }

// Get returns the record with id.
func (c *Collection[T]) Get(id domain.ID) (T, bool) { return c.store.Get(id) }

// Visible returns a copy of the cached derived view.
func (c *Collection[T]) Visible() []T { return slices.Clone(c.visible.Get()) }

// SubscribeVisible registers fn for derived view updates.
func (c *Collection[T]) SubscribeVisible(fn func([]T)) func() {
	return c.visible.Subscribe(func(v []T) { fn(slices.Clone(v)) })
}

// Add validates record, appends it with a fresh id and persists. A
// persistence failure is returned after the record has been stored.
func (c *Collection[T]) Add(ctx context.Context, record T) (T, error) {
	var created T
	err := c.obs.run(ctx, c.op("add"), func(ctx context.Context) error {
		if problems := c.schema.Check(record); len(problems) > 0 {
			return &ValidationError{Kind: c.schema.Kind, Fields: problems}
		}
		created = c.store.Add(record)
		return c.save(ctx)
	})
	return created, err
}

// Remove deletes the record with id. Absent ids report false without error.
func (c *Collection[T]) Remove(ctx context.Context, id domain.ID) (bool, error) {
	var removed bool
	err := c.obs.run(ctx, c.op("remove"), func(ctx context.Context) error {
		if removed = c.store.Remove(id); !removed {
			return nil
		}
		return c.save(ctx)
	})
	return removed, err
}

// Replace validates record and swaps it in place of the stored record with
// the same id.
func (c *Collection[T]) Replace(ctx context.Context, record T) error {
	return c.obs.run(ctx, c.op("replace"), func(ctx context.Context) error {
		if problems := c.schema.Check(record); len(problems) > 0 {
			return &ValidationError{Kind: c.schema.Kind, Fields: problems}
		}
		if err := c.store.Replace(record); err != nil {
			return err
		}
		return c.save(ctx)
	})
}

// Reset replaces the full contents, used by remote loads. Every record is
// validated first; one invalid record leaves the collection unchanged.
func (c *Collection[T]) Reset(ctx context.Context, records []T) error {
	return c.obs.run(ctx, c.op("reset"), func(ctx context.Context) error {
		for i, r := range records {
			if problems := c.schema.Check(r); len(problems) > 0 {
				return fmt.Errorf("record %d: %w", i, &ValidationError{Kind: c.schema.Kind, Fields: problems})
			}
		}
		c.store.Reset(records)
		return c.save(ctx)
	})
}

// Query derives and paginates with per-request criteria, leaving the
// resident criteria untouched.
func (c *Collection[T]) Query(criteria domain.Criteria, page, size int) (Page[T], error) {
	normalized, err := NormalizeCriteria(c.schema, criteria)
	if err != nil {
		return Page[T]{}, err
	}
	return Paginate(c.derive(c.store.List(), normalized), page, size), nil
}

// ParseCriteria implements Resource.
func (c *Collection[T]) ParseCriteria(values url.Values) (domain.Criteria, error) {
	return ParseCriteria(c.schema, values)
}

// NormalizeCriteria implements Resource.
func (c *Collection[T]) NormalizeCriteria(criteria domain.Criteria) (domain.Criteria, error) {
	return NormalizeCriteria(c.schema, criteria)
}

// QueryRecords implements Resource.
func (c *Collection[T]) QueryRecords(criteria domain.Criteria, page, size int) (Page[any], error) {
	p, err := c.Query(criteria, page, size)
	if err != nil {
		return Page[any]{}, err
	}
	return Map(p, func(r T) any { return r }), nil
}

// Table implements Resource.
func (c *Collection[T]) Table(criteria domain.Criteria) (Table, error) {
	normalized, err := NormalizeCriteria(c.schema, criteria)
	if err != nil {
		return Table{}, err
	}
	records := c.derive(c.store.List(), normalized)
	table := Table{Columns: []string{"id"}, Rows: make([]TableRow, 0, len(records))}
	for _, f := range c.schema.Fields {
		table.Columns = append(table.Columns, f.Name)
	}
	for _, r := range records {
		cells := make([]string, 0, len(table.Columns))
		cells = append(cells, r.RecordID().String())
		for _, f := range c.schema.Fields {
			cells = append(cells, c.schema.Column(r, f.Name))
		}
		table.Rows = append(table.Rows, TableRow{ID: r.RecordID(), Record: r, Cells: cells})
	}
	return table, nil
}

// ResidentCriteria implements Resource.
func (c *Collection[T]) ResidentCriteria() domain.Criteria { return c.criteria.Current() }

// ApplyCriteria implements Resource.
func (c *Collection[T]) ApplyCriteria(criteria domain.Criteria) error {
	return c.criteria.Apply(criteria)
}

// VisibleRecords implements Resource.
func (c *Collection[T]) VisibleRecords() []any {
	visible := c.visible.Get()
	out := make([]any, len(visible))
	for i, r := range visible {
		out[i] = r
	}
	return out
}

// Lookup implements Resource.
func (c *Collection[T]) Lookup(id domain.ID) (any, bool) {
	r, ok := c.store.Get(id)
	if !ok {
		return nil, false
	}
	return r, true
}

// Create decodes a JSON record and adds it. Any id in the payload is
// ignored.
func (c *Collection[T]) Create(ctx context.Context, payload []byte) (any, error) {
	var record T
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	created, err := c.Add(ctx, record.WithRecordID(0))
	var verr *ValidationError
	if errors.As(err, &verr) {
		return nil, err
	}
	return created, err
}

// Close detaches the view from the store and criteria.
func (c *Collection[T]) Close() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
}

func (c *Collection[T]) op(name string) string { return string(c.schema.Kind) + "." + name }

func (c *Collection[T]) save(ctx context.Context) error {
	if c.persist == nil {
		return nil
	}
	return c.persist(ctx)
}

func (c *Collection[T]) recompute() {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()
	c.visible.Set(c.derive(c.store.List(), c.criteria.Current()))
}

func (c *Collection[T]) derive(records []T, criteria domain.Criteria) []T {
	started := c.obs.clock.Now()
	out := Derive(records, c.schema, criteria)
	elapsed := c.obs.clock.Now().Sub(started)
	c.obs.metrics.Observe(context.Background(), c.op("derive"), true, elapsed)
	if elapsed > SlowDeriveThreshold {
		c.obs.logger.Warn("slow derivation", "kind", c.schema.Kind, "records", len(records), "duration", elapsed)
	}
	return out
}
