package config

import "fmt"

// Extractor holds the static identity an extractor announces to a host
// on registration.
type Extractor struct {
	Name    string
	Version string
	// Process enumerates which resource kinds this extractor handles; at
	// least one of "dataset"/"file" must be true.
	Process map[string]bool
}

// DefaultExtractor returns a minimal, file-handling-only default. Name is
// left blank: an operator must set it before running.
func DefaultExtractor() *Extractor {
	return &Extractor{
		Version: "0.0.1",
		Process: map[string]bool{"file": true},
	}
}

// Validate ensures a correct Extractor configuration.
func (e *Extractor) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("extractor.name is required")
	}
	if !e.Process["dataset"] && !e.Process["file"] {
		return fmt.Errorf("extractor.process must name at least one of \"dataset\" or \"file\"")
	}
	return nil
}

// Copy creates a shallow copy of Extractor.
func (e *Extractor) Copy() *Extractor {
	cp := &Extractor{Name: e.Name, Version: e.Version}
	if e.Process != nil {
		cp.Process = make(map[string]bool, len(e.Process))
		for k, v := range e.Process {
			cp.Process[k] = v
		}
	}
	return cp
}
