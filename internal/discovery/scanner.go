// internal/discovery/scanner.go
package discovery

import "context"

// ModemCandidate is one place a Marvelmind modem may be attached. The
// vendor library does its own port search when opening; candidates are
// for diagnostics and readiness checks.
type ModemCandidate struct {
	Source      string `json:"source"`
	Port        string `json:"port,omitempty"`
	Description string `json:"description"`
}

// Scanner looks for attached modems on one transport
type Scanner interface {
	// ScannerType returns the transport identifier.
	ScannerType() string

	// IsAvailable checks whether this transport can be scanned on the
	// host platform.
	IsAvailable() bool

	// Scan enumerates modem candidates.
	Scan(ctx context.Context) ([]ModemCandidate, error)
}
