// Package mount resolves host-reported file paths to locally accessible
// ones, honoring operator-configured prefix remapping.
package mount

import (
	"strings"

	"github.com/spf13/afero"
)

// Map is a MountMap: host-visible path prefix -> locally visible path
// prefix. Ties are resolved by first match in the order the prefixes were
// added (Entries preserves insertion order, unlike a bare map).
type Map struct {
	Entries []Entry
}

// Entry is one mount mapping rule.
type Entry struct {
	Source string
	Target string
}

// NewMap builds a Map from an ordered slice of (source, target) pairs.
func NewMap(entries ...Entry) Map {
	return Map{Entries: entries}
}

// Resolver maps a host-reported path to a locally accessible one over an
// afero.Fs, so tests can use an in-memory fs instead of touching disk.
type Resolver struct {
	FS    afero.Fs
	Mount Map
}

// NewResolver constructs a Resolver over the real OS filesystem.
func NewResolver(mount Map) *Resolver {
	return &Resolver{FS: afero.NewOsFs(), Mount: mount}
}

// Resolve implements the three-step algorithm:
//  1. if filepath exists locally, return it unchanged.
//  2. else scan the mount map for a prefix match and return the remapped
//     path (no existence check on the remapped path — that's the
//     operator's contract).
//  3. else return ("", false).
func (r *Resolver) Resolve(filepath string) (string, bool) {
	if filepath == "" {
		return "", false
	}
	if ok, _ := afero.Exists(r.FS, filepath); ok {
		return filepath, true
	}
	for _, entry := range r.Mount.Entries {
		if strings.HasPrefix(filepath, entry.Source) {
			return entry.Target + filepath[len(entry.Source):], true
		}
	}
	return "", false
}
