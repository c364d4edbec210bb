package config

import (
	"fmt"
	"strings"
)

// Host holds configuration for the data-management host this connector
// talks HTTP to.
type Host struct {
	// URL is the base host URL, e.g. "https://data.example.org/". Required.
	URL string
	// SecretKey authenticates API calls when not supplied per-message.
	SecretKey string
	// SSLVerify toggles TLS certificate verification; disable only against
	// hosts behind self-signed certs in development.
	SSLVerify bool
}

// DefaultHost returns a default Host configuration with SSL verification on.
func DefaultHost() *Host {
	return &Host{SSLVerify: true}
}

// Validate ensures a correct Host configuration. URL may be blank here: the
// broker/batch transports source it per-message; only the local transport
// requires no host at all.
func (h *Host) Validate() error {
	if h.URL != "" && !strings.HasPrefix(h.URL, "http://") && !strings.HasPrefix(h.URL, "https://") {
		return fmt.Errorf("host.url must be an http(s) URL, got %q", h.URL)
	}
	return nil
}

// Copy creates a shallow copy of Host.
func (h *Host) Copy() *Host {
	cp := *h
	return &cp
}
