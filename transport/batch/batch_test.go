package batch

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/clowder-framework/extractor-connector/extractor"
	"github.com/clowder-framework/extractor-connector/process"
	"github.com/clowder-framework/extractor-connector/resource"
)

func writeMessageFile(t *testing.T, fs afero.Fs, path string, body resource.MessageBody) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling message body: %v", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		t.Fatalf("writing message file: %v", err)
	}
}

func TestStartRunsEveryPathAndAppendsStatusToLogfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMessageFile(t, fs, "/msgs/1.json", resource.MessageBody{
		Host: "http://host/", ID: "f1", LogFile: "/logs/1.log",
	})

	proc := &process.Processor{
		Info:    extractor.Info{Name: "wordcount"},
		Builder: resource.NewBuilder(nil, extractor.Info{Name: "wordcount"}, nil),
		Process: func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) error {
			return nil
		},
		Registration: process.NewRegistrationSet(),
	}

	tr := &Transport{FS: fs, Paths: []string{"/msgs/1.json"}, Proc: proc}
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if tr.Alive() {
		t.Fatal("Alive() should be false once every path has been processed")
	}

	logged, err := afero.ReadFile(fs, "/logs/1.log")
	if err != nil {
		t.Fatalf("reading logfile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(logged)), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected at least a START and DONE line, got %q", logged)
	}
	if !strings.Contains(lines[0], `"file_id":"f1"`) {
		t.Fatalf("first logged line = %q, missing file_id", lines[0])
	}
}

func TestStartContinuesAfterOneEntryFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	// /msgs/bad.json intentionally missing to trigger a load error.
	writeMessageFile(t, fs, "/msgs/good.json", resource.MessageBody{
		Host: "http://host/", ID: "f2", LogFile: "/logs/2.log",
	})

	processed := []string{}
	proc := &process.Processor{
		Info:    extractor.Info{Name: "wordcount"},
		Builder: resource.NewBuilder(nil, extractor.Info{Name: "wordcount"}, nil),
		Process: func(ctx context.Context, host, secretKey string, res *resource.Resource, body resource.MessageBody) error {
			processed = append(processed, body.ID)
			return nil
		},
		Registration: process.NewRegistrationSet(),
	}

	tr := &Transport{FS: fs, Paths: []string{"/msgs/bad.json", "/msgs/good.json"}, Proc: proc}
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(processed) != 1 || processed[0] != "f2" {
		t.Fatalf("processed = %v, want the good entry still processed despite the missing one", processed)
	}
}
