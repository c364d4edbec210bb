package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	golog "github.com/ipfs/go-log"

	"github.com/clowder-framework/extractor-connector/extractor"
	"github.com/clowder-framework/extractor-connector/hostclient"
)

var log = golog.Logger("resource")

// HostClient is the subset of *hostclient.Client the Builder needs,
// narrowed so tests can supply a fake.
type HostClient interface {
	DatasetInfo(ctx context.Context, host, secretKey, datasetID string) (hostclient.DatasetInfo, error)
	DatasetFileList(ctx context.Context, host, secretKey, datasetID string) ([]hostclient.FileDescriptor, error)
}

// StatusSink receives the error status update a failed dataset prefetch
// must emit: the Builder itself reports the error, the caller must not
// double-emit.
type StatusSink interface {
	ReportError(id string, message string)
}

// Builder decodes a MessageBody + routing key into a typed Resource.
type Builder struct {
	Host   HostClient
	Info   extractor.Info
	Status StatusSink
}

// NewBuilder constructs a Builder bound to one extractor's identity.
func NewBuilder(host HostClient, info extractor.Info, status StatusSink) *Builder {
	return &Builder{Host: host, Info: info, Status: status}
}

// Classify applies the routing-key classification rules, evaluated top to
// bottom; the first match wins.
func (b *Builder) Classify(body MessageBody) Kind {
	rk := body.RoutingKey

	switch {
	case strings.Contains(rk, ".dataset."):
		return KindDataset
	case strings.Contains(rk, ".file."):
		return KindFile
	case strings.Contains(rk, "metadata.added"):
		return KindMetadata
	case rk == "extractors."+b.Info.Name:
		if body.DatasetID == body.ID {
			return KindDataset
		}
		return KindFile
	case strings.HasSuffix(rk, b.Info.Name):
		if b.Info.HandlesDataset() {
			return KindDataset
		}
		return KindFile
	default:
		return KindFile
	}
}

// Build decodes body into a Resource per its classified Kind. A nil
// Resource with a nil error means the caller must stop processing the
// message without raising further: the Builder has already emitted the
// terminal error outcome itself (dataset-prefetch failure).
func (b *Builder) Build(ctx context.Context, host, secretKey string, body MessageBody) (*Resource, error) {
	switch b.Classify(body) {
	case KindDataset:
		return b.buildDataset(ctx, host, secretKey, body)
	case KindMetadata:
		return b.buildMetadata(body), nil
	default:
		return b.buildFile(body), nil
	}
}

func (b *Builder) buildFile(body MessageBody) *Resource {
	return &Resource{
		Kind:           KindFile,
		ID:             body.ID,
		IntermediateID: orDefault(body.IntermediateID, body.ID),
		Name:           body.Filename,
		FileExt:        filepath.Ext(body.Filename),
		Parent:         Parent{Type: "dataset", ID: body.DatasetID},
	}
}

func (b *Builder) buildMetadata(body MessageBody) *Resource {
	return &Resource{
		Kind:     KindMetadata,
		ID:       body.ResourceID,
		Parent:   Parent{Type: body.ResourceType, ID: body.ResourceID},
		Metadata: body.Metadata,
	}
}

func (b *Builder) buildDataset(ctx context.Context, host, secretKey string, body MessageBody) (*Resource, error) {
	info, err := b.Host.DatasetInfo(ctx, host, secretKey, body.DatasetID)
	if err != nil {
		return b.failDataset(body.DatasetID, err)
	}
	files, err := b.Host.DatasetFileList(ctx, host, secretKey, body.DatasetID)
	if err != nil {
		return b.failDataset(body.DatasetID, err)
	}

	entries := make([]FileEntry, 0, len(files))
	triggering := ""
	for _, f := range files {
		entries = append(entries, FileEntry{
			ID: f.ID, Filename: f.Filename, FilePath: f.FilePath, FileExt: f.FileExt,
		})
		if f.ID == body.ID {
			triggering = f.Filename
		}
	}

	infoJSON, err := json.Marshal(info.Raw)
	if err != nil {
		infoJSON = nil
	}

	return &Resource{
		Kind:            KindDataset,
		ID:              body.DatasetID,
		Name:            info.Name,
		Files:           entries,
		TriggeringFile:  triggering,
		DatasetInfoJSON: infoJSON,
	}, nil
}

// failDataset implements the dataset-prefetch error path: emit an error status
// for the partial resource and return (nil, nil) so the caller stops
// without raising further.
func (b *Builder) failDataset(datasetID string, cause error) (*Resource, error) {
	msg := fmt.Sprintf("[%s] : Error downloading dataset preprocess information: %s", datasetID, cause)
	log.Debugw("dataset prefetch failed", "datasetID", datasetID, "error", cause)
	if b.Status != nil {
		b.Status.ReportError(datasetID, msg)
	}
	return nil, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
