package process

import (
	"github.com/clowder-framework/extractor-connector/extractor"
	"github.com/clowder-framework/extractor-connector/resource"
)

// OutcomeKind tags the four record types a Processor can hand to a Sink,
// generalized across transports.
type OutcomeKind string

const (
	// OutcomeStatus carries a status_update (start/processing/done/error);
	// never terminal by itself.
	OutcomeStatus OutcomeKind = "status"
	// OutcomeOK is the terminal success record.
	OutcomeOK OutcomeKind = "ok"
	// OutcomeError is the terminal failure record (no further retries).
	OutcomeError OutcomeKind = "error"
	// OutcomeResubmit republishes the message body for another attempt.
	OutcomeResubmit OutcomeKind = "resubmit"
)

// Outcome is one record a Processor emits to its Sink. Which fields are
// meaningful depends on Kind: Status/Message for OutcomeStatus, Body for
// OutcomeResubmit/OutcomeError (the body to republish or dead-letter).
type Outcome struct {
	Kind       OutcomeKind
	ResourceID string
	Status     extractor.Status
	Message    string
	Body       resource.MessageBody
}

// Sink is the capability every transport implements to receive a
// Processor's outcomes: MessageProcessor depends only on this interface,
// never on a concrete transport. How a Sink turns a record into
// broker/host effects is entirely up to the transport.
type Sink interface {
	Publish(o Outcome)
}
