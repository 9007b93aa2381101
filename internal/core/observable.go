package core

import (
	"slices"
	"sync"
)

// Observable owns a single value and pushes every update to its subscribers.
// Subscribers run synchronously on the updating goroutine, after the internal
// lock is released, in subscription order.
type Observable[V any] struct {
	mu    sync.RWMutex
	value V
	subs  map[int]func(V)
	seq   int
}

// NewObservable returns an observable holding initial.
func NewObservable[V any](initial V) *Observable[V] {
	return &Observable[V]{value: initial, subs: make(map[int]func(V))}
}

// Get returns the current value.
func (o *Observable[V]) Get() V {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value
}

// Set stores v and notifies subscribers.
func (o *Observable[V]) Set(v V) {
	o.mu.Lock()
	o.value = v
	subs := o.subscribersLocked()
	o.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

// Update replaces the value with fn(current) atomically, then notifies.
func (o *Observable[V]) Update(fn func(V) V) V {
	o.mu.Lock()
	next := fn(o.value)
	o.value = next
	subs := o.subscribersLocked()
	o.mu.Unlock()
	for _, sub := range subs {
		sub(next)
	}
	return next
}

// Subscribe registers fn and returns a function that cancels it. Cancelling
// twice is harmless.
func (o *Observable[V]) Subscribe(fn func(V)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	id := o.seq
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

func (o *Observable[V]) subscribersLocked() []func(V) {
	if len(o.subs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(o.subs))
	for id := range o.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(V), len(ids))
	for i, id := range ids {
		out[i] = o.subs[id]
	}
	return out
}
