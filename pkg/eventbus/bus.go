/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package eventbus fans a Store's activity out to the intent layer's
// Subscribe and Logs operations. It has two independent surfaces: a
// DurableStream that remembers a bounded backlog per store so a client
// connecting late (or polling Logs) still sees recent history, and a
// LiveBus that pushes new events to whatever subscribers happen to be
// connected right now and drops anyone too slow to keep up.
//
// The LiveBus register/unregister/broadcast goroutine loop is adapted
// from the notification-hub websocket.Hub pattern: a single owning
// goroutine serializes all subscriber bookkeeping, and publishing to a
// slow or gone subscriber never blocks the publisher.
package eventbus

import (
	"sync"
	"time"

	storev1alpha1 "github.com/sap-labs-oss/storeplatform/api/v1alpha1"
)

// DefaultRetention bounds the number of events DurableStream remembers per
// store (spec: durable_stream_retention, default 256).
const DefaultRetention = 256

// Event is one activity-log entry addressed to a specific store.
type Event struct {
	Store string
	Entry storev1alpha1.ActivityLogEntry
}

// DurableStream keeps a bounded, time-ordered backlog of events per store
// name, the same evict-oldest bound as status.AppendActivity applies to
// Store.Status.ActivityLog, just sized for transport retention instead of
// the status subresource.
type DurableStream struct {
	mu        sync.RWMutex
	retention int
	byStore   map[string][]storev1alpha1.ActivityLogEntry
}

// NewDurableStream builds a DurableStream retaining up to retention entries
// per store (DefaultRetention if retention <= 0).
func NewDurableStream(retention int) *DurableStream {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &DurableStream{
		retention: retention,
		byStore:   make(map[string][]storev1alpha1.ActivityLogEntry),
	}
}

// Append records entry for store, evicting the oldest entry if the backlog
// is at capacity.
func (d *DurableStream) Append(store string, entry storev1alpha1.ActivityLogEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	log := append(d.byStore[store], entry)
	if len(log) > d.retention {
		log = log[len(log)-d.retention:]
	}
	d.byStore[store] = log
}

// Since returns the entries recorded for store strictly after cutoff, in
// recorded order. A zero cutoff returns the full retained backlog.
func (d *DurableStream) Since(store string, cutoff time.Time) []storev1alpha1.ActivityLogEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	log := d.byStore[store]
	if cutoff.IsZero() {
		out := make([]storev1alpha1.ActivityLogEntry, len(log))
		copy(out, log)
		return out
	}
	out := make([]storev1alpha1.ActivityLogEntry, 0, len(log))
	for _, e := range log {
		if e.Timestamp.Time.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Forget drops the retained backlog for store, called once its owning
// Store is finalized and deleted.
func (d *DurableStream) Forget(store string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byStore, store)
}

// subscriberBuffer is the depth of a live subscriber's channel before it is
// considered slow and dropped rather than blocking the publisher.
const subscriberBuffer = 32

type subscriber struct {
	store string
	ch    chan storev1alpha1.ActivityLogEntry
}

// globalSubscriber receives every store's events, full Event (store name
// included) since the caller still has to apply its own ownership filter.
// Backs the intent layer's Subscribe, which fans out across all visible
// stores rather than one.
type globalSubscriber struct {
	ch chan Event
}

// LiveBus is a non-blocking best-effort broadcaster: Subscribe registers a
// channel for a store's future events, Publish fans an event out to every
// current subscriber of that store, and a slow subscriber is dropped
// rather than stalling the publisher or the rest of the fan-out.
type LiveBus struct {
	register      chan *subscriber
	unregister    chan *subscriber
	registerAll   chan *globalSubscriber
	unregisterAll chan *globalSubscriber
	publish       chan Event
	done          chan struct{}

	mu      sync.Mutex
	subs    map[string]map[*subscriber]struct{}
	subsAll map[*globalSubscriber]struct{}
}

// NewLiveBus constructs a LiveBus with its owning goroutine not yet
// started; call Run in a goroutine before Subscribe/Publish are used.
func NewLiveBus() *LiveBus {
	return &LiveBus{
		register:      make(chan *subscriber),
		unregister:    make(chan *subscriber),
		registerAll:   make(chan *globalSubscriber),
		unregisterAll: make(chan *globalSubscriber),
		publish:       make(chan Event),
		done:          make(chan struct{}),
		subs:          make(map[string]map[*subscriber]struct{}),
		subsAll:       make(map[*globalSubscriber]struct{}),
	}
}

// Run owns all subscriber bookkeeping and blocks until ctx-like shutdown is
// requested via Close. It is the single writer of the subs map.
func (b *LiveBus) Run() {
	for {
		select {
		case s := <-b.register:
			set, ok := b.subs[s.store]
			if !ok {
				set = make(map[*subscriber]struct{})
				b.subs[s.store] = set
			}
			set[s] = struct{}{}
		case s := <-b.unregister:
			if set, ok := b.subs[s.store]; ok {
				if _, ok := set[s]; ok {
					delete(set, s)
					close(s.ch)
					if len(set) == 0 {
						delete(b.subs, s.store)
					}
				}
			}
		case g := <-b.registerAll:
			b.subsAll[g] = struct{}{}
		case g := <-b.unregisterAll:
			if _, ok := b.subsAll[g]; ok {
				delete(b.subsAll, g)
				close(g.ch)
			}
		case ev := <-b.publish:
			for s := range b.subs[ev.Store] {
				select {
				case s.ch <- ev.Entry:
				default:
					// subscriber too slow to keep up; drop it rather than
					// stall the rest of the fan-out.
					delete(b.subs[ev.Store], s)
					close(s.ch)
				}
			}
			for g := range b.subsAll {
				select {
				case g.ch <- ev:
				default:
					delete(b.subsAll, g)
					close(g.ch)
				}
			}
		case <-b.done:
			for _, set := range b.subs {
				for s := range set {
					close(s.ch)
				}
			}
			for g := range b.subsAll {
				close(g.ch)
			}
			return
		}
	}
}

// Close stops Run and closes every live subscriber channel.
func (b *LiveBus) Close() {
	close(b.done)
}

// SubscribeAll registers a new live subscriber for every store's events,
// backing the intent layer's global Subscribe operation.
func (b *LiveBus) SubscribeAll() (<-chan Event, func()) {
	g := &globalSubscriber{ch: make(chan Event, subscriberBuffer)}
	select {
	case b.registerAll <- g:
	case <-b.done:
		close(g.ch)
		return g.ch, func() {}
	}
	unsub := func() {
		select {
		case b.unregisterAll <- g:
		case <-b.done:
		}
	}
	return g.ch, unsub
}

// Subscribe registers a new live subscriber for store's events. The
// returned channel is closed when Unsubscribe is called, the subscriber is
// dropped for being slow, or the bus is closed.
func (b *LiveBus) Subscribe(store string) (<-chan storev1alpha1.ActivityLogEntry, func()) {
	s := &subscriber{store: store, ch: make(chan storev1alpha1.ActivityLogEntry, subscriberBuffer)}
	select {
	case b.register <- s:
	case <-b.done:
		close(s.ch)
		return s.ch, func() {}
	}
	unsub := func() {
		select {
		case b.unregister <- s:
		case <-b.done:
		}
	}
	return s.ch, unsub
}

// Publish fans entry out to store's current live subscribers. It does not
// block on a slow consumer and it is safe to call even with zero
// subscribers.
func (b *LiveBus) Publish(store string, entry storev1alpha1.ActivityLogEntry) {
	select {
	case b.publish <- Event{Store: store, Entry: entry}:
	case <-b.done:
	}
}

// Bus combines the durable backlog with live fan-out, the shape the intent
// layer's Subscribe (replay-then-follow) and Logs (backlog-only) operations
// are built against.
type Bus struct {
	Durable *DurableStream
	Live    *LiveBus
}

// New builds a Bus with the given durable retention, starting the LiveBus's
// owning goroutine.
func New(retention int) *Bus {
	live := NewLiveBus()
	go live.Run()
	return &Bus{
		Durable: NewDurableStream(retention),
		Live:    live,
	}
}

// Record appends entry to the durable backlog and publishes it to live
// subscribers in one call, the single entry point the reconciler and
// the intent layer use whenever a new ActivityLogEntry is produced.
func (b *Bus) Record(store string, entry storev1alpha1.ActivityLogEntry) {
	b.Durable.Append(store, entry)
	b.Live.Publish(store, entry)
}

// Forget drops store's durable backlog, called from the reconciler's
// cleanup path once a Store is finalized.
func (b *Bus) Forget(store string) {
	b.Durable.Forget(store)
}

// SubscribeAll registers a live subscriber across every store, the
// intent layer's Subscribe operation.
func (b *Bus) SubscribeAll() (<-chan Event, func()) {
	return b.Live.SubscribeAll()
}

// Close stops the Bus's live fan-out goroutine.
func (b *Bus) Close() {
	b.Live.Close()
}
