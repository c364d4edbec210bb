// Package event is a small synchronous pub/sub bus. process.Processor
// publishes status updates on a Bus without knowing which transport, if
// any, is listening.
package event

import (
	"context"
	"sync"
)

// Type names one kind of event this bus carries.
type Type string

const (
	// ETStatus fires on every status_update message sent to the host. Payload is a StatusEvent.
	ETStatus Type = "connector:status"
	// ETRegistered fires the first time a host URL is registered in this
	// process. Payload is the host URL string.
	ETRegistered Type = "connector:registered"
	// ETOutcome fires once per message with its terminal outcome. Payload
	// is an OutcomeEvent.
	ETOutcome Type = "connector:outcome"
)

// Event is one published occurrence: a Type plus an opaque Payload whose
// concrete type is determined by Type (see the ET* doc comments above).
type Event struct {
	Type    Type
	Payload interface{}
}

// StatusEvent is the ETStatus payload.
type StatusEvent struct {
	ResourceID string
	Status     string
	Message    string
}

// OutcomeEvent is the ETOutcome payload.
type OutcomeEvent struct {
	ResourceID string
	Outcome    string // "ok" | "error" | "resubmit"
}

// Handler processes one published Event. A non-nil error is ignored by the
// bus and never stops delivery to other subscribers.
type Handler func(ctx context.Context, e Event) error

// Publisher is the write side of a Bus.
type Publisher interface {
	Publish(ctx context.Context, t Type, payload interface{})
}

// Bus is the full pub/sub surface: publish, and subscribe to one or more
// types.
type Bus interface {
	Publisher
	SubscribeTypes(h Handler, types ...Type) func()
}

type subscription struct {
	id int
	h  Handler
}

type bus struct {
	mu     sync.Mutex
	subs   map[Type][]subscription
	nextID int
}

// NewBus constructs an empty, ready-to-use Bus.
func NewBus() Bus {
	return &bus{subs: map[Type][]subscription{}}
}

func (b *bus) Publish(ctx context.Context, t Type, payload interface{}) {
	b.mu.Lock()
	subs := append([]subscription(nil), b.subs[t]...)
	b.mu.Unlock()
	for _, s := range subs {
		// Errors from subscribers are intentionally swallowed here: a status
		// fan-out subscriber failing must never affect message processing,
		// which is the only thing with an actual outcome contract.
		_ = s.h(ctx, Event{Type: t, Payload: payload})
	}
}

// SubscribeTypes registers h for every type in types, returning an
// unsubscribe func.
func (b *bus) SubscribeTypes(h Handler, types ...Type) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	for _, t := range types {
		b.subs[t] = append(b.subs[t], subscription{id: id, h: h})
	}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, t := range types {
			subs := b.subs[t]
			for i, s := range subs {
				if s.id == id {
					b.subs[t] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		}
	}
}
