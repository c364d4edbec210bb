// Package resource decodes broker/batch message bodies into a typed
// Resource (file, dataset, or metadata), fetching auxiliary state from the
// host where the resource kind requires it.
package resource

import "encoding/json"

// Kind distinguishes the three Resource shapes.
type Kind string

const (
	KindFile     Kind = "file"
	KindDataset  Kind = "dataset"
	KindMetadata Kind = "metadata"
)

// Parent identifies the resource's containing object, where one exists.
type Parent struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Resource is a tagged variant over the three resource shapes the host can
// announce work for. Only the fields relevant to Kind are populated; the
// rest are zero. LocalPaths is mutable: it starts empty and is populated by
// the InputStager before the extractor callback runs.
type Resource struct {
	Kind Kind
	// ID is the resource's own identifier: file ID, dataset ID, or
	// metadata-bearing resource ID.
	ID string
	// LocalPaths holds the filesystem paths the extractor callback will
	// read from. Populated by package stage; empty for CheckBypass/metadata.
	LocalPaths []string

	// File fields.
	IntermediateID string
	Name           string
	FileExt        string

	// Dataset fields.
	Files           []FileEntry
	TriggeringFile  string
	DatasetInfoJSON json.RawMessage

	// Metadata fields.
	Metadata json.RawMessage

	// Parent identifies the containing dataset (file resources) or the
	// resource metadata was attached to (metadata resources).
	Parent Parent
}

// FileEntry is a dataset's view of one of its member files, as needed for
// staging — a slimmer shape than hostclient.FileDescriptor since the
// builder only needs id/name/path here.
type FileEntry struct {
	ID       string
	Filename string
	FilePath string
	FileExt  string
}

// MessageBody is the decoded broker/batch payload. All fields are optional
// except RoutingKey, which is required for classification.
type MessageBody struct {
	ID             string          `json:"id,omitempty"`
	IntermediateID string          `json:"intermediateId,omitempty"`
	DatasetID      string          `json:"datasetId,omitempty"`
	Filename       string          `json:"filename,omitempty"`
	Host           string          `json:"host,omitempty"`
	SecretKey      string          `json:"secretKey,omitempty"`
	FileSize       int64           `json:"fileSize,omitempty"`
	Flags          string          `json:"flags,omitempty"`
	RetryCount     int             `json:"retry_count,omitempty"`
	RoutingKey     string          `json:"routing_key,omitempty"`
	Exchange       string          `json:"exchange,omitempty"`
	ResourceType   string          `json:"resourceType,omitempty"`
	ResourceID     string          `json:"resourceId,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	LogFile        string          `json:"logfile,omitempty"`
}

// Clone returns a deep-enough copy for safe mutation (used by transports
// that need to rewrite retry_count/exchange/routing_key before republishing
// without mutating the body the worker goroutine is still reading).
func (b MessageBody) Clone() MessageBody {
	clone := b
	if b.Metadata != nil {
		clone.Metadata = append(json.RawMessage(nil), b.Metadata...)
	}
	return clone
}
