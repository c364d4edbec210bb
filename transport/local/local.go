// Package local implements the single-shot local Transport: given one
// input path (and an optional output path), it synthesizes a
// FileResource and invokes the extractor's ProcessFunc directly, with no
// broker and no real host — HTTP calls are stubbed, with metadata POSTs
// intercepted and written to disk.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	golog "github.com/ipfs/go-log"
	"github.com/spf13/afero"

	"github.com/clowder-framework/extractor-connector/process"
	"github.com/clowder-framework/extractor-connector/resource"
)

var log = golog.Logger("transport/local")

const localHost = "http://localhost/"

// Transport runs exactly one ProcessFunc invocation over a single input
// file, with no broker and no live host.
type Transport struct {
	FS         afero.Fs
	InputPath  string
	OutputPath string // "" defaults to InputPath + ".json"
	Proc       *process.Processor

	done bool
}

// New constructs a local Transport over the real OS filesystem.
func New(inputPath, outputPath string, proc *process.Processor) *Transport {
	return &Transport{FS: afero.NewOsFs(), InputPath: inputPath, OutputPath: outputPath, Proc: proc}
}

// Start synthesizes a FileResource with local_paths=[InputPath] and runs
// the Processor's ProcessFunc directly, bypassing check_message,
// registration, and staging entirely — a direct invocation, not a full
// MessageProcessor pass.
func (t *Transport) Start(ctx context.Context) error {
	defer func() { t.done = true }()

	body := resource.MessageBody{
		ID:         filepath.Base(t.InputPath),
		Filename:   filepath.Base(t.InputPath),
		Host:       localHost,
		RoutingKey: "extractors." + t.Proc.Info.Name,
	}
	res := &resource.Resource{
		Kind:       resource.KindFile,
		ID:         body.ID,
		Name:       body.Filename,
		FileExt:    filepath.Ext(t.InputPath),
		LocalPaths: []string{t.InputPath},
	}

	sink := &stubSink{extractorID: t.Proc.Info.Name}
	t.Proc.Sink = sink
	t.Proc.Bus = nil

	if t.Proc.Process == nil {
		return nil
	}
	if err := t.Proc.Process(ctx, localHost, "", res, body); err != nil {
		log.Errorw("local processing failed", "error", err)
		return err
	}
	return nil
}

// Stop is a no-op: Start runs the single invocation to completion.
func (t *Transport) Stop(context.Context) error { return nil }

// Alive returns true until Start's single invocation completes.
func (t *Transport) Alive() bool { return !t.done }

// outputPath resolves the configured or default metadata output location.
func (t *Transport) outputPath() string {
	if t.OutputPath != "" {
		return t.OutputPath
	}
	return t.InputPath + ".json"
}

// Client returns the stubbed host client this Transport's ProcessFunc
// should be wired against, pre-resolved to this Transport's output path.
func (t *Transport) Client() *Client {
	return &Client{FS: t.FS, OutputPath: t.outputPath()}
}

// stubSink discards status/outcome records: there's no broker reply queue
// in local mode, only a single direct invocation.
type stubSink struct{ extractorID string }

func (s *stubSink) Publish(o process.Outcome) {
	log.Debugw("local status", "resource", o.ResourceID, "status", o.Status, "message", o.Message)
}

// Client implements a host surface an extractor callback might call
// through (hostclient-shaped), stubbing everything except metadata POSTs,
// which are intercepted and written to disk.
type Client struct {
	FS         afero.Fs
	OutputPath string
}

// NewClient constructs a Client writing intercepted metadata to
// outputPath (or "<input>.json" when empty, resolved by the caller).
func NewClient(outputPath string) *Client {
	return &Client{FS: afero.NewOsFs(), OutputPath: outputPath}
}

// isMetadataEndpoint reports whether url names a metadata-bearing
// endpoint, per the URL shapes hostclient.Client itself builds
// (".../metadata...").
func isMetadataEndpoint(url string) bool {
	return strings.Contains(url, "metadata")
}

// Post stubs a host POST: a metadata endpoint has its body pretty-printed
// to OutputPath; anything else is a logged no-op.
func (c *Client) Post(ctx context.Context, url string, contentType string, body []byte) (*http.Response, error) {
	if !isMetadataEndpoint(url) {
		log.Debugw("local mode: ignoring non-metadata POST", "url", url)
		return stubResponse(), nil
	}

	var pretty interface{}
	if err := json.Unmarshal(body, &pretty); err != nil {
		pretty = json.RawMessage(body)
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("local: marshaling intercepted metadata: %w", err)
	}

	if err := afero.WriteFile(c.FS, c.OutputPath, out, 0o644); err != nil {
		if os.IsPermission(err) {
			log.Errorw("local mode: permission denied writing metadata output", "path", c.OutputPath, "error", err)
			return stubResponse(), nil
		}
		return nil, fmt.Errorf("local: writing metadata output: %w", err)
	}
	return stubResponse(), nil
}

// Get, Put, Delete are no-ops in local mode: there's no live host to call.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	log.Debugw("local mode: ignoring GET", "url", url)
	return stubResponse(), nil
}

func (c *Client) Put(ctx context.Context, url string, body []byte) (*http.Response, error) {
	log.Debugw("local mode: ignoring PUT", "url", url)
	return stubResponse(), nil
}

func (c *Client) Delete(ctx context.Context, url string) (*http.Response, error) {
	log.Debugw("local mode: ignoring DELETE", "url", url)
	return stubResponse(), nil
}

func stubResponse() *http.Response {
	return &http.Response{StatusCode: http.StatusOK}
}
