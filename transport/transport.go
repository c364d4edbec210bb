// Package transport defines the capability every message source implements:
// polymorphism across transports is capability-based, not a shared base
// type. The three concrete variants — broker, batch, local — live in its
// subpackages; process.Processor depends only on process.Sink, never on
// Transport directly, so a transport only needs to wire a Processor to a
// Sink implementation and drive it.
package transport

import "context"

// Transport is the capability-based interface every message source
// implements: {start, stop, alive}, generalized across the broker, batch,
// and local variants.
type Transport interface {
	// Start accepts and processes messages. The broker variant blocks until
	// ctx is canceled or Stop is called; the batch and local variants handle
	// their inputs inline and return when they are done.
	Start(ctx context.Context) error
	// Stop gracefully winds down in-flight work and releases resources.
	Stop(ctx context.Context) error
	// Alive reports whether this transport is still expected to produce
	// more work. Batch and local transports report false once their single
	// pass/invocation completes; the broker transport reports true until
	// stopped.
	Alive() bool
}
