// internal/discovery/serialport/scanner.go
package serialport

import (
	"context"
	"fmt"
	"strings"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"marvelmind-service/internal/discovery"
)

// Scanner finds Marvelmind modems among the host's serial ports by
// name pattern (the modem shows up as ttyACM/ttyUSB on Linux, COM on
// Windows, cu.usbmodem on macOS).
type Scanner struct {
	patterns []string
	logger   *zap.Logger
}

// NewScanner creates a serial port scanner filtering by the given
// substring patterns. Empty patterns match every port.
func NewScanner(patterns []string, logger *zap.Logger) *Scanner {
	return &Scanner{
		patterns: patterns,
		logger:   logger,
	}
}

// ScannerType returns the scanner type identifier
func (s *Scanner) ScannerType() string {
	return "serial"
}

// IsAvailable checks if serial port enumeration works on this system
func (s *Scanner) IsAvailable() bool {
	_, err := serial.GetPortsList()
	return err == nil
}

// Scan lists serial ports matching the configured patterns
func (s *Scanner) Scan(ctx context.Context) ([]discovery.ModemCandidate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serial port enumeration failed: %w", err)
	}

	var candidates []discovery.ModemCandidate
	for _, port := range ports {
		if !s.matches(port) {
			continue
		}
		candidates = append(candidates, discovery.ModemCandidate{
			Source:      s.ScannerType(),
			Port:        port,
			Description: fmt.Sprintf("serial port %s", port),
		})
	}

	s.logger.Debug("serial scan complete",
		zap.Int("ports", len(ports)),
		zap.Int("candidates", len(candidates)))

	return candidates, nil
}

func (s *Scanner) matches(port string) bool {
	if len(s.patterns) == 0 {
		return true
	}
	for _, p := range s.patterns {
		if strings.Contains(port, p) {
			return true
		}
	}
	return false
}
