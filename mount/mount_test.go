package mount

import (
	"testing"

	"github.com/spf13/afero"
)

func newResolver(fs afero.Fs, entries ...Entry) *Resolver {
	return &Resolver{FS: fs, Mount: NewMap(entries...)}
}

func TestResolveLocalPathExistsUnchanged(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/data/file.txt", []byte("x"), 0o644)

	r := newResolver(fs)
	got, ok := r.Resolve("/data/file.txt")
	if !ok || got != "/data/file.txt" {
		t.Fatalf("Resolve() = (%q, %v), want (/data/file.txt, true)", got, ok)
	}
}

func TestResolveRemapsViaMountPrefix(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newResolver(fs, Entry{Source: "/host/mnt", Target: "/local/mnt"})

	got, ok := r.Resolve("/host/mnt/sub/file.txt")
	if !ok || got != "/local/mnt/sub/file.txt" {
		t.Fatalf("Resolve() = (%q, %v), want (/local/mnt/sub/file.txt, true)", got, ok)
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newResolver(fs,
		Entry{Source: "/host", Target: "/first"},
		Entry{Source: "/host/mnt", Target: "/second"},
	)

	got, _ := r.Resolve("/host/mnt/file.txt")
	if got != "/first/mnt/file.txt" {
		t.Fatalf("Resolve() = %q, want the first matching entry applied", got)
	}
}

func TestResolveNoMatchReturnsFalse(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newResolver(fs, Entry{Source: "/host/mnt", Target: "/local/mnt"})

	got, ok := r.Resolve("/other/path/file.txt")
	if ok || got != "" {
		t.Fatalf("Resolve() = (%q, %v), want (\"\", false)", got, ok)
	}
}

func TestResolveEmptyPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newResolver(fs)
	if _, ok := r.Resolve(""); ok {
		t.Fatal("Resolve(\"\") should never succeed")
	}
}
