// Package process implements the MessageProcessor state machine:
// registration, resource building, the check/stage/process dispatch, and
// the error taxonomy that decides between a terminal ok, a terminal error,
// or a resubmit.
package process

import (
	"context"
	"fmt"

	golog "github.com/ipfs/go-log"

	"github.com/clowder-framework/extractor-connector/classify"
	"github.com/clowder-framework/extractor-connector/event"
	"github.com/clowder-framework/extractor-connector/extractor"
	"github.com/clowder-framework/extractor-connector/resource"
	"github.com/clowder-framework/extractor-connector/stage"
)

var log = golog.Logger("process")

// MaxRetries is the retry_count ceiling: the 11th transient failure
// (retry_count already at 10) emits error instead of resubmit.
const MaxRetries = 10

// CheckFunc is the user-supplied check_message hook. A nil CheckFunc
// defaults to extractor.CheckDownload.
type CheckFunc func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) (extractor.CheckResult, error)

// ProcessFunc is the user-supplied process_message hook: the actual
// extraction logic, invoked once inputs are staged (or bypassed).
type ProcessFunc func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) error

// Registrar is the subset of *hostclient.Client needed to register this
// extractor's identity with a host.
type Registrar interface {
	RegisterExtractor(ctx context.Context, host, secretKey string, info extractor.Info) error
}

// Builder is the subset of *resource.Builder the Processor drives.
type Builder interface {
	Build(ctx context.Context, host, secretKey string, body resource.MessageBody) (*resource.Resource, error)
}

// Stager is the subset of *stage.Stager the Processor drives.
type Stager interface {
	Stage(ctx context.Context, host, secretKey string, res *resource.Resource) ([]string, stage.Cleanup, error)
}

// Processor owns one extractor's worker-side logic: it turns a decoded
// MessageBody into exactly one outcome on its Sink.
// A Processor itself is stateless across messages except for the shared
// RegistrationSet — safe to invoke concurrently for distinct messages, but
// no transport in this module actually keeps more than one in flight at a
// time.
type Processor struct {
	Info         extractor.Info
	Host         Registrar
	Builder      Builder
	Stager       Stager
	Registration *RegistrationSet
	Bus          event.Bus
	Sink         Sink

	Check   CheckFunc
	Process ProcessFunc
}

// Run executes the full state machine for one message. It never returns an
// error: every failure path is translated into exactly one of {ok, error,
// resubmit} on p.Sink. The sole exception is a Fatal classification, where
// Run re-raises by returning the error after emitting its resubmit —
// mirroring the original's re-raise-to-terminate-the-process semantics.
func (p *Processor) Run(ctx context.Context, body resource.MessageBody) error {
	host := normalizeHost(body.Host)
	if host == "" {
		log.Debugw("dropping message with empty host", "id", body.ID)
		return nil
	}
	body.Host = host

	p.register(ctx, host, body.SecretKey)

	res, err := p.Builder.Build(ctx, host, body.SecretKey, body)
	if err != nil {
		// The builder itself is only expected to fail via its own
		// ReportError path (returning nil, nil); a non-nil error here is
		// unexpected plumbing failure, not a message-shaped one.
		log.Errorw("resource build failed", "error", err)
		return nil
	}
	if res == nil {
		// ResourceBuilder already emitted the terminal for this message
		// (dataset-prefetch failure path).
		return nil
	}

	p.emitStatus(ctx, res.ID, extractor.StatusStart, "Started processing")

	check := p.Check
	if check == nil {
		check = func(context.Context, string, string, *resource.Resource, resource.MessageBody) (extractor.CheckResult, error) {
			return extractor.CheckDownload, nil
		}
	}

	checkResult, err := check(ctx, host, body.SecretKey, res, body)
	if err != nil {
		return p.handleFailure(ctx, res, body, err)
	}

	if checkResult == extractor.CheckIgnore {
		p.emitStatus(ctx, res.ID, extractor.StatusProcessing, "Skipped in check_message")
		p.emitOK(ctx, res.ID)
		return nil
	}

	if err := p.stageAndProcess(ctx, host, body, res, checkResult); err != nil {
		return p.handleFailure(ctx, res, body, err)
	}

	p.emitOK(ctx, res.ID)
	return nil
}

// stageAndProcess runs InputStager (unless bypassed) and the user's
// ProcessFunc, with cleanup guaranteed on every exit path.
func (p *Processor) stageAndProcess(ctx context.Context, host string, body resource.MessageBody, res *resource.Resource, check extractor.CheckResult) error {
	if check != extractor.CheckBypass && p.Stager != nil {
		_, cleanup, err := p.Stager.Stage(ctx, host, body.SecretKey, res)
		defer cleanup.Run()
		if err != nil {
			return err
		}
	}

	if p.Process == nil {
		return nil
	}
	return p.Process(ctx, host, body.SecretKey, res, body)
}

// register POSTs this extractor's info to host at most once per process.
// Registration failure is logged, never fatal.
func (p *Processor) register(ctx context.Context, host, secretKey string) {
	key := host + "api/extractors"
	if !p.Registration.Add(key) {
		return
	}
	if p.Host == nil {
		return
	}
	if err := p.Host.RegisterExtractor(ctx, host, secretKey, p.Info); err != nil {
		log.Debugw("extractor registration failed", "host", host, "error", err)
	}
	if p.Bus != nil {
		p.Bus.Publish(ctx, event.ETRegistered, host)
	}
}

// handleFailure applies the error taxonomy and emits exactly one terminal
// (or fatal-resubmit) outcome.
func (p *Processor) handleFailure(ctx context.Context, res *resource.Resource, body resource.MessageBody, cause error) error {
	kind := classify.Classify(ctx, cause)
	msg := classify.Format(kind, cause)
	p.emitStatus(ctx, res.ID, extractor.StatusError, msg)

	switch kind {
	case classify.Fatal:
		p.emitResubmit(ctx, res.ID, body, body.RetryCount)
		return fmt.Errorf("fatal interrupt processing %s: %w", res.ID, cause)
	case classify.Transient:
		if body.RetryCount < MaxRetries {
			p.emitResubmit(ctx, res.ID, body, body.RetryCount+1)
		} else {
			p.emitError(ctx, res.ID, body)
		}
	default: // Subprocess, Other
		p.emitError(ctx, res.ID, body)
	}
	return nil
}

func (p *Processor) emitStatus(ctx context.Context, resourceID string, status extractor.Status, message string) {
	if p.Bus != nil {
		p.Bus.Publish(ctx, event.ETStatus, event.StatusEvent{
			ResourceID: resourceID, Status: string(status), Message: message,
		})
	}
	if p.Sink != nil {
		p.Sink.Publish(Outcome{Kind: OutcomeStatus, ResourceID: resourceID, Status: status, Message: message})
	}
}

func (p *Processor) emitOK(ctx context.Context, resourceID string) {
	p.emitStatus(ctx, resourceID, extractor.StatusDone, "Done processing")
	if p.Bus != nil {
		p.Bus.Publish(ctx, event.ETOutcome, event.OutcomeEvent{ResourceID: resourceID, Outcome: "ok"})
	}
	if p.Sink != nil {
		p.Sink.Publish(Outcome{Kind: OutcomeOK, ResourceID: resourceID})
	}
}

func (p *Processor) emitError(ctx context.Context, resourceID string, body resource.MessageBody) {
	if p.Bus != nil {
		p.Bus.Publish(ctx, event.ETOutcome, event.OutcomeEvent{ResourceID: resourceID, Outcome: "error"})
	}
	if p.Sink != nil {
		p.Sink.Publish(Outcome{Kind: OutcomeError, ResourceID: resourceID, Body: body})
	}
}

func (p *Processor) emitResubmit(ctx context.Context, resourceID string, body resource.MessageBody, retryCount int) {
	next := body.Clone()
	next.RetryCount = retryCount
	if p.Bus != nil {
		p.Bus.Publish(ctx, event.ETOutcome, event.OutcomeEvent{ResourceID: resourceID, Outcome: "resubmit"})
	}
	if p.Sink != nil {
		p.Sink.Publish(Outcome{Kind: OutcomeResubmit, ResourceID: resourceID, Body: next})
	}
}

// normalizeHost appends the trailing slash the original always assumes.
// An empty host stays empty and is treated as a drop by the caller.
func normalizeHost(host string) string {
	if host == "" {
		return ""
	}
	if host[len(host)-1] != '/' {
		return host + "/"
	}
	return host
}
