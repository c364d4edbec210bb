// Package broker implements the AMQP-backed Transport: a single-threaded
// poller thread that owns the channel/connection, and a one-shot worker
// goroutine per in-flight delivery that never touches the channel
// directly, communicating outcomes back through a buffered outbox.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	golog "github.com/ipfs/go-log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/clowder-framework/extractor-connector/process"
	"github.com/clowder-framework/extractor-connector/resource"
)

var log = golog.Logger("transport/broker")

// pollInterval bounds how long the receive loop can go between checking
// ctx cancellation while waiting on either a new delivery or an active
// handler's outbox.
const pollInterval = time.Second

// Transport is the broker-backed Transport. Construct with New, then call
// Start; Start blocks until ctx is canceled or Stop is called.
type Transport struct {
	cfg  Config
	proc *process.Processor

	conn        *amqp.Connection
	ch          *amqp.Channel
	consumerTag string

	stopped chan struct{}
}

// New constructs a broker Transport bound to proc. proc.Sink is overwritten
// per-delivery by a handler; callers should leave it nil.
func New(cfg Config, proc *process.Processor) *Transport {
	return &Transport{cfg: cfg, proc: proc, stopped: make(chan struct{})}
}

// Start connects, declares topology, and runs the receive loop until ctx
// is canceled or Stop is called. It returns the loop's terminating error,
// if any (nil on a clean ctx-cancel or Stop).
func (t *Transport) Start(ctx context.Context) error {
	if err := t.connect(); err != nil {
		return fmt.Errorf("broker: connect: %w", err)
	}

	t.consumerTag = "connector-" + t.cfg.ExtractorName
	deliveries, err := t.ch.Consume(t.cfg.queueName(), t.consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: consume: %w", err)
	}

	return t.receiveLoop(ctx, deliveries)
}

func (t *Transport) connect() error {
	conn, err := amqp.Dial(t.cfg.URI)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	if _, err := ch.QueueDeclare(t.cfg.queueName(), true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return err
	}
	if _, err := ch.QueueDeclare(t.cfg.errorQueueName(), true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	if t.cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(t.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return err
		}
		for _, key := range t.cfg.BindingKeys {
			if err := ch.QueueBind(t.cfg.queueName(), key, t.cfg.Exchange, false, nil); err != nil {
				ch.Close()
				conn.Close()
				return err
			}
		}
		if err := ch.QueueBind(t.cfg.queueName(), t.cfg.extractorBindingKey(), t.cfg.Exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return err
		}
	}

	t.conn = conn
	t.ch = ch
	return nil
}

// receiveLoop is the single-threaded poller: it owns the channel
// exclusively, spawning at most one handler goroutine at a time
// (prefetch=1 means the broker won't hand us a second delivery until the
// in-flight one is acked).
func (t *Transport) receiveLoop(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	defer close(t.stopped)

	var active *handler

	// finish waits for the in-flight handler's goroutine to exit and applies
	// every record it left in its outbox.
	finish := func() {
		if active != nil {
			<-active.done
			t.drain(active)
		}
	}

	for {
		if active != nil {
			t.drain(active)
			if active.isFinished() {
				active = nil
			}
		}

		select {
		case <-ctx.Done():
			finish()
			return nil
		case d, ok := <-deliveries:
			if !ok {
				finish()
				return nil
			}
			if active != nil {
				// Shouldn't happen under prefetch=1, but don't leak the
				// delivery if it does: requeue by nacking.
				d.Nack(false, true)
				continue
			}
			active = t.spawn(ctx, d)
		case <-time.After(pollInterval):
			// bounded wait: loop back around to re-check ctx and active.
		}
	}
}

func (t *Transport) spawn(ctx context.Context, d amqp.Delivery) *handler {
	body, err := decodeBody(d)
	if err != nil {
		log.Errorw("dropping undecodable delivery", "error", err)
		d.Ack(false)
		return nil
	}
	if body.Host == "" {
		// A message with no host can never succeed on redelivery: ack and drop it.
		log.Debugw("dropping delivery with empty host", "id", body.ID)
		d.Ack(false)
		return nil
	}

	h := newHandler(d)
	proc := *t.proc
	proc.Sink = h
	go h.run(ctx, &proc, body)
	return h
}

// drain empties as much of h's outbox as is immediately available,
// applying each record's broker effect. It never blocks waiting for more
// records — the poller must stay responsive to new deliveries and ctx
// cancellation.
func (t *Transport) drain(h *handler) {
	for {
		select {
		case rec := <-h.outbox:
			t.apply(h.delivery, rec)
		default:
			return
		}
	}
}

func (t *Transport) apply(d amqp.Delivery, rec process.Outcome) {
	switch rec.Kind {
	case process.OutcomeStatus:
		t.publishStatus(d, rec)
	case process.OutcomeOK:
		if err := d.Ack(false); err != nil {
			log.Debugw("ack failed", "error", err)
		}
	case process.OutcomeError:
		t.republish(t.cfg.errorQueueName(), rec.Body, d)
		if err := d.Ack(false); err != nil {
			log.Debugw("ack failed", "error", err)
		}
	case process.OutcomeResubmit:
		t.republish(t.cfg.queueName(), rec.Body, d)
		if err := d.Ack(false); err != nil {
			log.Debugw("ack failed", "error", err)
		}
	}
}

func (t *Transport) publishStatus(d amqp.Delivery, rec process.Outcome) {
	if d.ReplyTo == "" {
		return
	}
	report := statusReport{
		FileID:      rec.ResourceID,
		ExtractorID: t.cfg.ExtractorName,
		Status:      fmt.Sprintf("%s: %s", rec.Status, rec.Message),
		Start:       time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(report)
	if err != nil {
		log.Debugw("status marshal failed", "error", err)
		return
	}
	err = t.ch.PublishWithContext(context.Background(), "", d.ReplyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: d.CorrelationId,
		Body:          payload,
	})
	if err != nil {
		log.Debugw("status publish failed", "error", err)
	}
}

// republish publishes body to queue, filling exchange/routing_key from the
// original delivery metadata when the body didn't already carry them.
func (t *Transport) republish(queue string, body resource.MessageBody, d amqp.Delivery) {
	if body.Exchange == "" && d.Exchange != "" {
		body.Exchange = d.Exchange
	}
	if body.RoutingKey == "" && d.RoutingKey != "" && d.RoutingKey != t.cfg.queueName() {
		body.RoutingKey = d.RoutingKey
	}
	payload, err := json.Marshal(body)
	if err != nil {
		log.Errorw("republish marshal failed", "queue", queue, "error", err)
		return
	}
	err = t.ch.PublishWithContext(context.Background(), "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		log.Errorw("republish failed", "queue", queue, "error", err)
	}
}

// statusReport is the status report's wire shape, published to the
// delivery's reply-to queue.
type statusReport struct {
	FileID      string `json:"file_id"`
	ExtractorID string `json:"extractor_id"`
	Status      string `json:"status"`
	Start       string `json:"start"`
}

func decodeBody(d amqp.Delivery) (resource.MessageBody, error) {
	var body resource.MessageBody
	if err := json.Unmarshal(d.Body, &body); err != nil {
		return resource.MessageBody{}, err
	}
	if body.RoutingKey == "" && d.RoutingKey != "" {
		body.RoutingKey = d.RoutingKey
	}
	return body, nil
}

// Stop cancels the consumer, waits for the receive loop to finish draining
// the in-flight handler, and closes the channel/connection.
func (t *Transport) Stop(ctx context.Context) error {
	if t.ch != nil {
		if err := t.ch.Cancel(t.consumerTag, false); err != nil {
			log.Debugw("consumer cancel failed", "error", err)
		}
	}

	select {
	case <-t.stopped:
	case <-ctx.Done():
	}

	if t.ch != nil {
		if err := t.ch.Close(); err != nil {
			log.Debugw("channel close failed", "error", err)
		}
	}
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			log.Debugw("connection close failed", "error", err)
		}
	}
	return nil
}

// Alive reports whether the receive loop is still running.
func (t *Transport) Alive() bool {
	select {
	case <-t.stopped:
		return false
	default:
		return true
	}
}
