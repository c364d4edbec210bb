// Package extractor defines the static metadata an extractor announces
// itself with, and the small enums shared between the connector core and
// the user-supplied extraction logic it drives. The callback function
// types themselves live in package process, which is what actually invokes
// them with a concrete *resource.Resource.
package extractor

// Info is the static metadata describing an extractor. It's immutable for
// the lifetime of the process; its JSON encoding (which leaves out Extra)
// is POSTed to the host's registration endpoint.
type Info struct {
	Name    string         `json:"name"`
	Version string         `json:"version,omitempty"`
	// Process enumerates which resource kinds this extractor handles. It
	// must name at least one of "dataset" or "file"; when a redelivered
	// message's routing key ends with the extractor name, the builder
	// classifies it as a dataset if this map names "dataset", else as a file.
	Process map[string]bool `json:"process"`
	// Extra holds additional descriptive fields (author, description,
	// contexts, ...). It is tagged json:"-", so it is not part of the
	// registration POST, and the connector itself never inspects it.
	Extra map[string]interface{} `json:"-"`
}

// HandlesDataset reports whether this extractor's Process map names "dataset".
func (i Info) HandlesDataset() bool {
	return i.Process["dataset"]
}

// CheckResult is the result of a CheckFunc: what the processor should do
// with the resource before calling ProcessFunc.
type CheckResult string

const (
	// CheckDownload stages inputs, then calls ProcessFunc. The default when
	// no CheckFunc is supplied.
	CheckDownload CheckResult = "download"
	// CheckBypass skips staging; ProcessFunc still runs, with an empty
	// LocalPaths.
	CheckBypass CheckResult = "bypass"
	// CheckIgnore skips staging and ProcessFunc entirely; the message is
	// still acknowledged as ok.
	CheckIgnore CheckResult = "ignore"
)

// Status is the phase of a single message's processing, reported via
// status updates.
type Status string

const (
	StatusStart      Status = "START"
	StatusProcessing Status = "PROCESSING"
	StatusDone       Status = "DONE"
	StatusError      Status = "ERROR"
)

