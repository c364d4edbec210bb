package broker

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/clowder-framework/extractor-connector/process"
	"github.com/clowder-framework/extractor-connector/resource"
)

// handler is a one-shot worker that owns a single delivery's lifecycle. It
// runs on its own goroutine; the receive loop never touches the
// channel/connection from inside a handler, only from the outbox it
// drains.
type handler struct {
	delivery amqp.Delivery

	outbox chan process.Outcome
	done   chan struct{}

	mu       sync.Mutex
	finished bool
}

// outboxCapacity is generous: one status per lifecycle phase plus one
// terminal record is the realistic maximum per message.
const outboxCapacity = 16

func newHandler(d amqp.Delivery) *handler {
	return &handler{
		delivery: d,
		outbox:   make(chan process.Outcome, outboxCapacity),
		done:     make(chan struct{}),
	}
}

// Publish implements process.Sink. Called from the worker goroutine only.
func (h *handler) Publish(o process.Outcome) {
	h.outbox <- o
	switch o.Kind {
	case process.OutcomeOK, process.OutcomeError, process.OutcomeResubmit:
		h.mu.Lock()
		h.finished = true
		h.mu.Unlock()
	}
}

// run executes proc against body on this handler's goroutine, closing done
// on return regardless of outcome (proc.Run never itself returns an error
// except on the Fatal-interrupt path, which this connector treats the same
// way as any other terminal: the outbox record already encodes it).
func (h *handler) run(ctx context.Context, proc *process.Processor, body resource.MessageBody) {
	defer close(h.done)
	_ = proc.Run(ctx, body)
}

// isFinished applies the three-part is_finished contract: the worker
// goroutine has exited, a terminal record was produced, and the outbox has
// been fully drained.
func (h *handler) isFinished() bool {
	select {
	case <-h.done:
	default:
		return false
	}
	h.mu.Lock()
	finished := h.finished
	h.mu.Unlock()
	return finished && len(h.outbox) == 0
}
