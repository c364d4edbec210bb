// Package stage implements the InputStager: given a Resource, it produces
// the local filesystem paths an extractor callback will read
// via Resource.LocalPaths, downloading from the host only when a file
// can't be resolved locally, and guaranteeing cleanup of everything it
// creates.
package stage

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	golog "github.com/ipfs/go-log"
	"github.com/spf13/afero"

	"github.com/clowder-framework/extractor-connector/hostclient"
	"github.com/clowder-framework/extractor-connector/mount"
	"github.com/clowder-framework/extractor-connector/resource"
)

var log = golog.Logger("stage")

// HostClient is the subset of *hostclient.Client the Stager needs.
type HostClient interface {
	FileInfo(ctx context.Context, host, secretKey, fileID string) (hostclient.FileDescriptor, error)
	FileBytes(ctx context.Context, host, secretKey, fileID, intermediateID, ext string) (io.ReadCloser, error)
	FileMetadata(ctx context.Context, host, secretKey, fileID string) (json.RawMessage, error)
	DatasetMetadata(ctx context.Context, host, secretKey, datasetID string) (json.RawMessage, error)
	DatasetZip(ctx context.Context, host, secretKey, datasetID string) (io.ReadCloser, error)
}

// Stager implements InputStager. FS is an afero.Fs so tests can run
// entirely against an in-memory filesystem (afero.NewMemMapFs()).
type Stager struct {
	FS       afero.Fs
	Host     HostClient
	Resolver *mount.Resolver
	TempRoot string // base directory for temp files/dirs; "" uses the OS default.
}

// NewStager constructs a Stager over the real OS filesystem.
func NewStager(host HostClient, resolver *mount.Resolver) *Stager {
	return &Stager{FS: afero.NewOsFs(), Host: host, Resolver: resolver}
}

// Cleanup removes every temp path/dir a Stage call created. It's always
// safe to call, even after a partial failure; individual removal errors
// are logged and swallowed rather than propagated.
type Cleanup struct {
	fs    afero.Fs
	files []string
	dirs  []string
}

// Run executes the cleanup. Call via defer immediately after Stage returns,
// on every exit path (success or failure) of the calling message.
func (c Cleanup) Run() {
	for _, f := range c.files {
		if err := c.fs.Remove(f); err != nil {
			log.Debugw("error removing temp file", "path", f, "error", err)
		}
	}
	for _, d := range c.dirs {
		if err := c.fs.RemoveAll(d); err != nil {
			log.Debugw("error removing temp dir", "path", d, "error", err)
		}
	}
}

func (c *Cleanup) addFile(path string) { c.files = append(c.files, path) }
func (c *Cleanup) addDir(path string)  { c.dirs = append(c.dirs, path) }

// Stage produces the local input paths for res, per its Kind. It returns
// the paths (also assigned to res.LocalPaths) and a Cleanup the caller must
// Run() on every exit path.
func (s *Stager) Stage(ctx context.Context, host, secretKey string, res *resource.Resource) ([]string, Cleanup, error) {
	cleanup := Cleanup{fs: s.FS}

	var paths []string
	var err error
	switch res.Kind {
	case resource.KindFile:
		paths, err = s.stageFile(ctx, host, secretKey, res, &cleanup)
	case resource.KindDataset:
		paths, err = s.stageDataset(ctx, host, secretKey, res, &cleanup)
	default: // metadata: no staging required
		paths = nil
	}
	res.LocalPaths = paths
	return paths, cleanup, err
}

func (s *Stager) stageFile(ctx context.Context, host, secretKey string, res *resource.Resource, cleanup *Cleanup) ([]string, error) {
	info, err := s.Host.FileInfo(ctx, host, secretKey, res.ID)
	if err != nil {
		return nil, fmt.Errorf("stage: fetching file info: %w", err)
	}

	if local, ok := s.Resolver.Resolve(info.FilePath); ok {
		log.Debugw("file resolved locally", "id", res.ID, "path", local)
		return []string{local}, nil
	}

	path, err := s.downloadFile(ctx, host, secretKey, res.ID, res.IntermediateID, res.FileExt, cleanup)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// downloadFile streams a file's bytes to a fresh temp file, tracking it in
// cleanup, and returns its path.
func (s *Stager) downloadFile(ctx context.Context, host, secretKey, fileID, intermediateID, ext string, cleanup *Cleanup) (string, error) {
	rc, err := s.Host.FileBytes(ctx, host, secretKey, fileID, intermediateID, ext)
	if err != nil {
		return "", fmt.Errorf("stage: downloading file %s: %w", fileID, err)
	}
	defer rc.Close()

	dir, err := afero.TempDir(s.FS, s.TempRoot, "extractor-"+safeSuffix(fileID))
	if err != nil {
		return "", err
	}
	cleanup.addDir(dir)

	name := fileID + ext
	path := filepath.Join(dir, name)
	f, err := s.FS.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, rc); err != nil {
		return "", fmt.Errorf("stage: writing downloaded file %s: %w", fileID, err)
	}
	return path, nil
}

// downloadFileMetadata fetches a file's metadata JSON into a fresh temp
// directory, named "<basename>_metadata.json".
func (s *Stager) downloadFileMetadata(ctx context.Context, host, secretKey, fileID, baseName string, cleanup *Cleanup) (string, error) {
	md, err := s.Host.FileMetadata(ctx, host, secretKey, fileID)
	if err != nil {
		return "", fmt.Errorf("stage: fetching metadata for %s: %w", fileID, err)
	}
	dir, err := afero.TempDir(s.FS, s.TempRoot, "extractor-md-"+safeSuffix(fileID))
	if err != nil {
		return "", err
	}
	cleanup.addDir(dir)

	path := filepath.Join(dir, baseName+"_metadata.json")
	if err := afero.WriteFile(s.FS, path, md, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Stager) stageDataset(ctx context.Context, host, secretKey string, res *resource.Resource, cleanup *Cleanup) ([]string, error) {
	var located, missing []resource.FileEntry
	for _, f := range res.Files {
		if local, ok := s.Resolver.Resolve(f.FilePath); ok {
			located = append(located, resource.FileEntry{ID: f.ID, Filename: f.Filename, FilePath: local, FileExt: f.FileExt})
		} else {
			missing = append(missing, f)
		}
	}

	if len(located) == 0 {
		return s.stageDatasetZip(ctx, host, secretKey, res, cleanup)
	}
	return s.stageDatasetPartial(ctx, host, secretKey, res, located, missing, cleanup)
}

// stageDatasetPartial handles the "at least one file resolved locally"
// branch: missing files are downloaded individually, every file (local or
// downloaded) gets its metadata sidecar, and the dataset-level metadata is
// fetched once. Ordering is preserved pairwise (file, then its
// "_metadata.json").
func (s *Stager) stageDatasetPartial(ctx context.Context, host, secretKey string, res *resource.Resource, located, missing []resource.FileEntry, cleanup *Cleanup) ([]string, error) {
	var paths []string

	emit := func(f resource.FileEntry, localPath string) error {
		mdPath, err := s.downloadFileMetadata(ctx, host, secretKey, f.ID, filepath.Base(baseNameOf(f)), cleanup)
		if err != nil {
			return err
		}
		paths = append(paths, localPath, mdPath)
		return nil
	}

	for _, f := range located {
		if err := emit(f, f.FilePath); err != nil {
			return nil, err
		}
	}
	for _, f := range missing {
		downloaded, err := s.downloadFile(ctx, host, secretKey, f.ID, f.ID, f.FileExt, cleanup)
		if err != nil {
			return nil, err
		}
		cleanup.addFile(downloaded)
		if err := emit(f, downloaded); err != nil {
			return nil, err
		}
	}

	dsMD, err := s.Host.DatasetMetadata(ctx, host, secretKey, res.ID)
	if err != nil {
		return nil, fmt.Errorf("stage: fetching dataset metadata: %w", err)
	}
	dir, err := afero.TempDir(s.FS, s.TempRoot, "extractor-dsmd-"+safeSuffix(res.ID))
	if err != nil {
		return nil, err
	}
	cleanup.addDir(dir)
	dsMDPath := filepath.Join(dir, res.ID+"_dataset_metadata.json")
	if err := afero.WriteFile(s.FS, dsMDPath, dsMD, 0o644); err != nil {
		return nil, err
	}
	paths = append(paths, dsMDPath)

	return paths, nil
}

func baseNameOf(f resource.FileEntry) string {
	if f.FilePath != "" {
		return filepath.Base(f.FilePath)
	}
	return f.Filename
}

// stageDatasetZip handles the "nothing resolved locally" branch: download
// the whole dataset as a zip and extract it.
func (s *Stager) stageDatasetZip(ctx context.Context, host, secretKey string, res *resource.Resource, cleanup *Cleanup) ([]string, error) {
	rc, err := s.Host.DatasetZip(ctx, host, secretKey, res.ID)
	if err != nil {
		return nil, fmt.Errorf("stage: downloading dataset zip: %w", err)
	}
	defer rc.Close()

	dir, err := afero.TempDir(s.FS, s.TempRoot, "extractor-zip-"+safeSuffix(res.ID))
	if err != nil {
		return nil, err
	}
	cleanup.addDir(dir)

	zipPath := filepath.Join(dir, res.ID+".zip")
	zf, err := s.FS.Create(zipPath)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(zf, rc); err != nil {
		zf.Close()
		return nil, fmt.Errorf("stage: writing dataset zip: %w", err)
	}
	zf.Close()
	cleanup.addFile(zipPath)

	info, err := s.FS.Stat(zipPath)
	if err != nil {
		return nil, err
	}
	reader, err := s.FS.Open(zipPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	ra, ok := interface{}(reader).(io.ReaderAt)
	if !ok {
		return nil, fmt.Errorf("stage: filesystem does not support random access reads required for zip extraction")
	}

	zr, err := zip.NewReader(ra, info.Size())
	if err != nil {
		return nil, fmt.Errorf("stage: reading dataset zip: %w", err)
	}

	extractDir := filepath.Join(dir, "extracted")
	if err := s.FS.MkdirAll(extractDir, 0o755); err != nil {
		return nil, err
	}
	cleanup.addDir(extractDir)

	var paths []string
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		out := filepath.Join(extractDir, filepath.Base(zf.Name))
		src, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("stage: extracting %s: %w", zf.Name, err)
		}
		dst, err := s.FS.Create(out)
		if err != nil {
			src.Close()
			return nil, err
		}
		_, copyErr := io.Copy(dst, src)
		src.Close()
		dst.Close()
		if copyErr != nil {
			return nil, fmt.Errorf("stage: extracting %s: %w", zf.Name, copyErr)
		}
		paths = append(paths, out)
	}

	return paths, nil
}

// safeSuffix keeps temp directory names collision-free across retries of
// the same resource ID (the Go analogue of Python's
// tempfile.mkdtemp(suffix=fileid), which already guarantees uniqueness via
// mkdtemp itself; afero.TempDir needs the uniqueness baked into the
// prefix instead).
func safeSuffix(id string) string {
	if id == "" {
		id = "anon"
	}
	return id + "-" + uuid.NewString()[:8]
}
