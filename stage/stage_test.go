package stage

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/clowder-framework/extractor-connector/hostclient"
	"github.com/clowder-framework/extractor-connector/mount"
	"github.com/clowder-framework/extractor-connector/resource"
)

type fakeHost struct {
	fileInfo     hostclient.FileDescriptor
	fileInfoErr  error
	fileBytes    string
	fileMetadata json.RawMessage
}

func (h *fakeHost) FileInfo(ctx context.Context, host, secretKey, fileID string) (hostclient.FileDescriptor, error) {
	return h.fileInfo, h.fileInfoErr
}

func (h *fakeHost) FileBytes(ctx context.Context, host, secretKey, fileID, intermediateID, ext string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(h.fileBytes)), nil
}

func (h *fakeHost) FileMetadata(ctx context.Context, host, secretKey, fileID string) (json.RawMessage, error) {
	return h.fileMetadata, nil
}

func (h *fakeHost) DatasetMetadata(ctx context.Context, host, secretKey, datasetID string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (h *fakeHost) DatasetZip(ctx context.Context, host, secretKey, datasetID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func newTestStager(fs afero.Fs, host HostClient) *Stager {
	return &Stager{FS: fs, Host: host, Resolver: &mount.Resolver{FS: fs, Mount: mount.Map{}}}
}

func TestStageFileResolvedLocally(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/data/input.txt", []byte("hello"), 0o644)

	host := &fakeHost{fileInfo: hostclient.FileDescriptor{ID: "f1", FilePath: "/data/input.txt"}}
	s := newTestStager(fs, host)

	res := &resource.Resource{Kind: resource.KindFile, ID: "f1"}
	paths, cleanup, err := s.Stage(context.Background(), "http://host/", "key", res)
	defer cleanup.Run()

	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if len(paths) != 1 || paths[0] != "/data/input.txt" {
		t.Fatalf("Stage() = %v, want the locally resolved path unchanged", paths)
	}
	if len(res.LocalPaths) != 1 || res.LocalPaths[0] != "/data/input.txt" {
		t.Fatalf("Stage() must assign LocalPaths on the resource, got %v", res.LocalPaths)
	}
}

func TestStageFileDownloadsWhenNotLocal(t *testing.T) {
	fs := afero.NewMemMapFs()
	host := &fakeHost{
		fileInfo:  hostclient.FileDescriptor{ID: "f1", FilePath: "/remote/only/path.txt"},
		fileBytes: "downloaded content",
	}
	s := newTestStager(fs, host)

	res := &resource.Resource{Kind: resource.KindFile, ID: "f1", FileExt: ".txt"}
	paths, cleanup, err := s.Stage(context.Background(), "http://host/", "key", res)
	defer cleanup.Run()

	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("Stage() = %v, want one downloaded path", paths)
	}
	content, err := afero.ReadFile(fs, paths[0])
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(content) != "downloaded content" {
		t.Fatalf("downloaded content = %q, want %q", content, "downloaded content")
	}
}

func TestCleanupRunRemovesCreatedFilesAndDirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/tmp/a/file.txt", []byte("x"), 0o644)
	afero.WriteFile(fs, "/tmp/b.txt", []byte("y"), 0o644)

	cleanup := Cleanup{fs: fs}
	cleanup.addDir("/tmp/a")
	cleanup.addFile("/tmp/b.txt")
	cleanup.Run()

	if exists, _ := afero.DirExists(fs, "/tmp/a"); exists {
		t.Fatal("Cleanup.Run() should have removed the temp directory")
	}
	if exists, _ := afero.Exists(fs, "/tmp/b.txt"); exists {
		t.Fatal("Cleanup.Run() should have removed the temp file")
	}
}

func TestStageMetadataResourceRequiresNoStaging(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newTestStager(fs, &fakeHost{})

	res := &resource.Resource{Kind: resource.KindMetadata, ID: "r1"}
	paths, cleanup, err := s.Stage(context.Background(), "http://host/", "key", res)
	defer cleanup.Run()

	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if paths != nil {
		t.Fatalf("Stage() on a metadata resource = %v, want nil", paths)
	}
}
