// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

// Package bus is a synchronous, in-process publish/subscribe mechanism scoped
// to a single hosting document. Handlers run on the publisher's goroutine in
// subscription order, so a publisher observes every handler's side effects
// by the time Publish returns.
package bus

import (
	"context"
	"sort"
	"sync"
)

// Handler receives a published payload.
type Handler func(ctx context.Context, payload interface{})

// Bus routes payloads to the handlers subscribed to a topic. The zero value
// is not usable; see New.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		subs: map[string]map[uint64]Handler{},
	}
}

// Subscribe registers h for topic and returns a function which removes it.
// The returned function may be called more than once.
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = map[uint64]Handler{}
	}
	b.subs[topic][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		})
	}
}

// Publish delivers payload to every handler subscribed to topic. Handlers
// subscribed or removed while delivery is in progress take effect on the next
// Publish.
func (b *Bus) Publish(ctx context.Context, topic string, payload interface{}) {
	for _, h := range b.handlers(topic) {
		h(ctx, payload)
	}
}

// Subscribers returns the number of handlers registered for topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *Bus) handlers(topic string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]uint64, 0, len(b.subs[topic]))
	for id := range b.subs[topic] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, b.subs[topic][id])
	}
	return hs
}
