// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"marvelmind-service/internal/discovery"
)

// Scanner finds Marvelmind modems by their USB vendor/product ID.
// The modem enumerates as an STM32 virtual COM port (0483:5740).
type Scanner struct {
	vendorID  gousb.ID
	productID gousb.ID
	logger    *zap.Logger
}

// NewScanner creates a USB scanner for the given hex vendor/product IDs.
func NewScanner(vendorID, productID string, logger *zap.Logger) (*Scanner, error) {
	vid, err := parseUSBID(vendorID)
	if err != nil {
		return nil, fmt.Errorf("invalid usb vendor id %q: %w", vendorID, err)
	}
	pid, err := parseUSBID(productID)
	if err != nil {
		return nil, fmt.Errorf("invalid usb product id %q: %w", productID, err)
	}

	return &Scanner{
		vendorID:  vid,
		productID: pid,
		logger:    logger,
	}, nil
}

func parseUSBID(s string) (gousb.ID, error) {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return gousb.ID(v), nil
}

// ScannerType returns the scanner type identifier
func (s *Scanner) ScannerType() string {
	return "usb"
}

// IsAvailable checks if USB scanning is available on this system
func (s *Scanner) IsAvailable() bool {
	ctx := gousb.NewContext()
	defer ctx.Close()

	_, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return false
	})
	return err == nil
}

// Scan enumerates USB devices matching the modem vendor/product ID
func (s *Scanner) Scan(ctx context.Context) ([]discovery.ModemCandidate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == s.vendorID && desc.Product == s.productID
	})
	// OpenDevices can return matches alongside an error for unrelated
	// devices it failed to open; keep what we got.
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("usb enumeration failed: %w", err)
	}

	var candidates []discovery.ModemCandidate
	for _, dev := range devices {
		desc := fmt.Sprintf("USB %s:%s bus %d addr %d",
			dev.Desc.Vendor, dev.Desc.Product, dev.Desc.Bus, dev.Desc.Address)
		if product, perr := dev.Product(); perr == nil && product != "" {
			desc = fmt.Sprintf("%s (%s)", desc, product)
		}
		candidates = append(candidates, discovery.ModemCandidate{
			Source:      s.ScannerType(),
			Description: desc,
		})
		dev.Close()
	}

	s.logger.Debug("USB scan complete",
		zap.Int("candidates", len(candidates)),
		zap.String("vendor_id", s.vendorID.String()),
		zap.String("product_id", s.productID.String()))

	return candidates, nil
}
