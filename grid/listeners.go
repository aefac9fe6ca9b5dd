// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package grid

import "sync"

// ConfigEventKind says what happened to a cache configuration.
type ConfigEventKind string

// Configuration event kinds.
const (
	CacheCreated ConfigEventKind = "create-cache"
	CacheRemoved ConfigEventKind = "remove-cache"
)

// ConfigEvent is published when the set of caches changes.
type ConfigEvent struct {
	Kind   ConfigEventKind
	Name   string
	Config CacheConfig
}

// Listeners is a registry of configuration event subscribers.  The
// zero value is ready to use.  Engines embed or hold one and publish
// to it; consumers hold a Subscription and must Close it.
type Listeners struct {
	lock sync.Mutex
	next uint64
	subs map[uint64]*Subscription
}

// Subscription is a handle on a registration in Listeners.  Closing
// it deregisters it and closes its event channel.
type Subscription struct {
	id     uint64
	owner  *Listeners
	events chan ConfigEvent
	once   sync.Once
}

// Subscribe registers a new subscriber with a buffered channel of
// the given size.  A subscriber that falls further behind than its
// buffer misses events; publishers never block.
func (l *Listeners) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.subs == nil {
		l.subs = make(map[uint64]*Subscription)
	}
	l.next++
	sub := &Subscription{
		id:     l.next,
		owner:  l,
		events: make(chan ConfigEvent, buffer),
	}
	l.subs[sub.id] = sub
	return sub
}

// Publish delivers an event to every current subscriber.
func (l *Listeners) Publish(event ConfigEvent) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, sub := range l.subs {
		select {
		case sub.events <- event:
		default:
		}
	}
}

// Len returns the number of live subscriptions.
func (l *Listeners) Len() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.subs)
}

// Events returns the channel events are delivered on.  It is closed
// when the subscription is closed.
func (s *Subscription) Events() <-chan ConfigEvent {
	return s.events
}

// Close deregisters the subscription.  It is safe to call more than
// once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.owner.lock.Lock()
		defer s.owner.lock.Unlock()
		delete(s.owner.subs, s.id)
		close(s.events)
	})
}
