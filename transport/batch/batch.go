// Package batch implements the batch-file-backed Transport: a
// single-threaded pass over a list of serialized message-body files,
// redirecting each one's status updates to its own logfile instead of a
// broker reply queue.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	golog "github.com/ipfs/go-log"
	"github.com/spf13/afero"

	"github.com/clowder-framework/extractor-connector/process"
	"github.com/clowder-framework/extractor-connector/resource"
)

const logfileFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

var log = golog.Logger("transport/batch")

// Transport runs the MessageProcessor once, inline, per path in Paths.
type Transport struct {
	FS    afero.Fs
	Paths []string
	Proc  *process.Processor

	done bool
}

// New constructs a batch Transport over the real OS filesystem.
func New(paths []string, proc *process.Processor) *Transport {
	return &Transport{FS: afero.NewOsFs(), Paths: paths, Proc: proc}
}

// Start iterates Paths in order: load the body, read its logfile field,
// run the Processor with a sink that appends JSON lines to that logfile,
// then clear the active logfile reference. A load or processing error on
// one path is logged and does not stop the batch from advancing.
func (t *Transport) Start(ctx context.Context) error {
	defer func() { t.done = true }()

	for _, path := range t.Paths {
		if err := t.runOne(ctx, path); err != nil {
			log.Errorw("batch entry failed", "path", path, "error", err)
		}
	}
	return nil
}

func (t *Transport) runOne(ctx context.Context, path string) error {
	raw, err := afero.ReadFile(t.FS, path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	var body resource.MessageBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	sink := &logfileSink{fs: t.FS, path: body.LogFile, extractorID: t.Proc.Info.Name}

	proc := *t.Proc
	proc.Sink = sink
	return proc.Run(ctx, body)
}

// Stop is a no-op: Start already runs every path to completion inline.
func (t *Transport) Stop(context.Context) error { return nil }

// Alive returns false once Start has processed every path.
func (t *Transport) Alive() bool { return !t.done }

// logfileSink appends one JSON record per line to a single batch entry's
// logfile, redirecting status updates away from any broker reply queue.
// Non-status outcomes (ok/error/resubmit) are logged but otherwise produce
// no broker effect — there's no broker in batch mode.
type logfileSink struct {
	fs          afero.Fs
	path        string
	extractorID string
}

func (s *logfileSink) Publish(o process.Outcome) {
	switch o.Kind {
	case process.OutcomeStatus:
		s.appendStatus(o)
	case process.OutcomeOK:
		log.Debugw("batch entry ok", "resource", o.ResourceID)
	case process.OutcomeError:
		log.Debugw("batch entry error", "resource", o.ResourceID)
	case process.OutcomeResubmit:
		log.Debugw("batch entry would resubmit (no broker in batch mode)", "resource", o.ResourceID, "retry_count", o.Body.RetryCount)
	}
}

func (s *logfileSink) appendStatus(o process.Outcome) {
	if s.path == "" {
		return
	}
	report := struct {
		FileID      string `json:"file_id"`
		ExtractorID string `json:"extractor_id"`
		Status      string `json:"status"`
		Start       string `json:"start"`
	}{
		FileID:      o.ResourceID,
		ExtractorID: s.extractorID,
		Status:      fmt.Sprintf("%s: %s", o.Status, o.Message),
		Start:       time.Now().UTC().Format(time.RFC3339),
	}
	line, err := json.Marshal(report)
	if err != nil {
		log.Debugw("status marshal failed", "error", err)
		return
	}
	line = append(line, '\n')

	f, err := s.fs.OpenFile(s.path, logfileFlags, 0o644)
	if err != nil {
		log.Errorw("opening logfile failed", "path", s.path, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		log.Errorw("writing logfile failed", "path", s.path, "error", err)
	}
}
