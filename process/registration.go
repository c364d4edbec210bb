package process

import "sync"

// RegistrationSet tracks which host registration URLs have already been
// confirmed during this process's lifetime. It is genuinely process-wide: a
// Connector owns exactly one instance and hands the same pointer to every
// Processor it runs, regardless of transport.
type RegistrationSet struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewRegistrationSet returns an empty set. Never persisted across process
// restarts; every new process re-registers on first use.
func NewRegistrationSet() *RegistrationSet {
	return &RegistrationSet{seen: map[string]bool{}}
}

// Add reports whether key was newly added. A false return means some
// earlier call already claimed it — the caller must not register again.
func (r *RegistrationSet) Add(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[key] {
		return false
	}
	r.seen[key] = true
	return true
}
