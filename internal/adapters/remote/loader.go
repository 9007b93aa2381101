// Package remote loads catalog records from a JSON endpoint into a
// collection, exposing the request lifecycle as observable state.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"grimoire/internal/core"
)

// DefaultEnvelopeKey names the array inside an object response.
const DefaultEnvelopeKey = "reports"

// maxBody caps response bodies.
const maxBody = 8 << 20

// ErrStale is returned by Load when a newer request superseded this one. The
// result was discarded.
var ErrStale = errors.New("remote: superseded by a newer request")

// Status is the mutually exclusive phase of a loader.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusSuccess Status = "success"
)

// State is the observable loader state. Error is set only in StatusError,
// Count only in StatusSuccess.
type State struct {
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Count     int       `json:"count,omitempty"`
	Tag       uint64    `json:"tag"`
	URL       string    `json:"url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sink receives successfully decoded records. *core.Collection satisfies it.
type Sink[T any] interface {
	Reset(ctx context.Context, records []T) error
}

// Doer is the HTTP client surface used by the loader.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type config struct {
	client   Doer
	envelope string
	logger   core.Logger
	now      func() time.Time
}

// Option configures a Loader.
type Option func(*config)

// WithHTTPClient overrides the HTTP client (default http.DefaultClient).
func WithHTTPClient(client Doer) Option {
	return func(c *config) {
		if client != nil {
			c.client = client
		}
	}
}

// WithEnvelopeKey sets the key holding the records when the endpoint answers
// with an object instead of a bare array.
func WithEnvelopeKey(key string) Option {
	return func(c *config) {
		if key != "" {
			c.envelope = key
		}
	}
}

// WithLogger installs a logger.
func WithLogger(logger core.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Loader fetches records of one kind. Every request gets a tag from a
// monotonic counter; only the result of the latest tag is applied, so a slow
// older response can never overwrite a newer one. State subscribers run
// synchronously and must not call Fetch, Load or Retry themselves; use Go.
type Loader[T any] struct {
	url   string
	sink  Sink[T]
	cfg   config
	state *core.Observable[State]

	applyMu sync.Mutex
	mu      sync.Mutex
	latest  uint64
	lastURL string
	closed  bool
	cancels map[uint64]context.CancelFunc
	wg      sync.WaitGroup
}

// New returns an idle loader fetching url into sink.
func New[T any](url string, sink Sink[T], opts ...Option) *Loader[T] {
	cfg := config{client: http.DefaultClient, envelope: DefaultEnvelopeKey, logger: nopLogger{}, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader[T]{
		url:     url,
		sink:    sink,
		cfg:     cfg,
		state:   core.NewObservable(State{Status: StatusIdle}),
		lastURL: url,
		cancels: make(map[uint64]context.CancelFunc),
	}
}

// State returns the current state.
func (l *Loader[T]) State() State { return l.state.Get() }

// Subscribe registers fn for state transitions.
func (l *Loader[T]) Subscribe(fn func(State)) func() { return l.state.Subscribe(fn) }

// Load fetches the configured URL.
func (l *Loader[T]) Load(ctx context.Context) error { return l.Fetch(ctx, l.url) }

// Retry re-issues the most recent request. Nothing retries automatically.
func (l *Loader[T]) Retry(ctx context.Context) error {
	l.mu.Lock()
	url := l.lastURL
	l.mu.Unlock()
	return l.Fetch(ctx, url)
}

// Go runs Load in the background. Close waits for it.
func (l *Loader[T]) Go(ctx context.Context) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.wg.Add(1)
	l.mu.Unlock()
	go func() {
		defer l.wg.Done()
		_ = l.Load(ctx)
	}()
}

// Close cancels in-flight requests and waits for background loads.
func (l *Loader[T]) Close() {
	l.mu.Lock()
	l.closed = true
	for _, cancel := range l.cancels {
		cancel()
	}
	l.mu.Unlock()
	l.wg.Wait()
}

// Fetch requests url and, if still the latest request when the response is
// decoded, resets the sink with the records.
func (l *Loader[T]) Fetch(ctx context.Context, url string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.New("remote: loader closed")
	}
	l.latest++
	tag := l.latest
	l.lastURL = url
	l.cancels[tag] = cancel
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.cancels, tag)
		l.mu.Unlock()
	}()

	l.apply(tag, func() { l.state.Set(State{Status: StatusLoading, Tag: tag, URL: url, UpdatedAt: l.cfg.now()}) })
	records, err := l.fetch(ctx, url)

	l.applyMu.Lock()
	defer l.applyMu.Unlock()
	if !l.isLatest(tag) {
		l.cfg.logger.Debug("discarding stale response", "tag", tag, "url", url)
		return ErrStale
	}
	if err == nil {
		err = l.sink.Reset(ctx, records)
	}
	if err != nil {
		l.cfg.logger.Warn("remote load failed", "url", url, "error", err)
		l.state.Set(State{Status: StatusError, Error: err.Error(), Tag: tag, URL: url, UpdatedAt: l.cfg.now()})
		return err
	}
	l.cfg.logger.Info("remote load succeeded", "url", url, "records", len(records))
	l.state.Set(State{Status: StatusSuccess, Count: len(records), Tag: tag, URL: url, UpdatedAt: l.cfg.now()})
	return nil
}

func (l *Loader[T]) isLatest(tag uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return tag == l.latest
}

// apply runs fn only while tag is the latest request.
func (l *Loader[T]) apply(tag uint64, fn func()) {
	l.applyMu.Lock()
	defer l.applyMu.Unlock()
	if l.isLatest(tag) {
		fn()
	}
}

func (l *Loader[T]) fetch(ctx context.Context, url string) ([]T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := l.cfg.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("could not reach server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, fmt.Errorf("server responded %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("could not read response: %w", err)
	}
	records, err := Decode[T](body, l.cfg.envelope)
	if err != nil {
		return nil, fmt.Errorf("could not decode response: %w", err)
	}
	return records, nil
}

// Decode accepts either a JSON array of records or an object holding the
// array under envelope.
func Decode[T any](body []byte, envelope string) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, err
		}
		raw, ok := obj[envelope]
		if !ok {
			return nil, fmt.Errorf("object has no %q array", envelope)
		}
		trimmed = raw
	}
	var records []T
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
