package config

import (
	"fmt"

	homedir "github.com/mitchellh/go-homedir"
)

// MountEntry is one host-path-prefix -> local-path-prefix remapping rule.
type MountEntry struct {
	Source string
	Target string
}

// Mount holds the ordered list of path remapping rules a LocalFileResolver
// uses when a host-reported path isn't directly accessible.
type Mount struct {
	Entries []MountEntry
}

// DefaultMount returns an empty mount map: no remapping configured.
func DefaultMount() *Mount {
	return &Mount{}
}

// Validate expands "~" in each entry's Target in place and rejects empty
// sources.
func (m *Mount) Validate() error {
	for i, e := range m.Entries {
		if e.Source == "" {
			return fmt.Errorf("mount entry %d: source must not be empty", i)
		}
		expanded, err := homedir.Expand(e.Target)
		if err != nil {
			return fmt.Errorf("mount entry %d: expanding target: %w", i, err)
		}
		m.Entries[i].Target = expanded
	}
	return nil
}

// Copy creates a shallow copy of Mount.
func (m *Mount) Copy() *Mount {
	cp := &Mount{}
	if m.Entries != nil {
		cp.Entries = append([]MountEntry(nil), m.Entries...)
	}
	return cp
}
