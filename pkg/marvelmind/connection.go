// pkg/marvelmind/connection.go
package marvelmind

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OpenOptions configures the port-open attempt.
type OpenOptions struct {
	// Timeout bounds the whole open attempt. Zero means exactly one
	// attempt, matching the vendor example semantics.
	Timeout time.Duration

	// RetryInterval is the pause between open attempts. Defaults to 1ms.
	RetryInterval time.Duration

	// Logger receives connection lifecycle logs. Optional.
	Logger *zap.Logger
}

// Stats counts calls made through a connection.
type Stats struct {
	OperationCount int64     `json:"operation_count"`
	ErrorCount     int64     `json:"error_count"`
	LastActivity   time.Time `json:"last_activity"`
	OpenedAt       time.Time `json:"opened_at"`
}

// Connection is an exclusively-owned open channel to the modem. It can
// only be constructed by Open, every query requires it to still be open,
// and Close releases the vendor port exactly once.
type Connection struct {
	api    VendorAPI
	logger *zap.Logger

	mu    sync.Mutex
	open  bool
	stats Stats
}

// Open opens the modem port. The vendor library searches serial ports
// itself, so no port name is taken; the call is retried every
// RetryInterval until it succeeds, the timeout elapses, or ctx is done.
func Open(ctx context.Context, api VendorAPI, opts OpenOptions) (*Connection, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "marvelmind"))

	interval := opts.RetryInterval
	if interval <= 0 {
		interval = time.Millisecond
	}

	logger.Info("Opening modem port", zap.Duration("timeout", opts.Timeout))

	deadline := time.Now().Add(opts.Timeout)
	var vendorErr error
	for {
		if api.OpenPort() {
			break
		}
		vendorErr = lastError(api)

		if !time.Now().Before(deadline) {
			if vendorErr == nil {
				return nil, fmt.Errorf("open port: %w", ErrTimeout)
			}
			logger.Error("Failed to open modem port", zap.Error(vendorErr))
			return nil, fmt.Errorf("open port: %w: %w", ErrPortUnavailable, vendorErr)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("open port: %w", ctx.Err())
		case <-time.After(interval):
		}
	}

	now := time.Now()
	conn := &Connection{
		api:    api,
		logger: logger,
		open:   true,
		stats:  Stats{OpenedAt: now, LastActivity: now},
	}

	logger.Info("Modem port opened")
	return conn, nil
}

// IsOpen reports whether the connection still owns the port.
func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Stats returns a copy of the call counters.
func (c *Connection) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close releases the vendor port. Closing an already-closed connection
// is a no-op; the underlying port is never released twice, even when
// the vendor reports a close failure.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil
	}
	c.open = false

	if !c.api.ClosePort() {
		err := callError(c.api)
		c.logger.Error("Failed to close modem port", zap.Error(err))
		return fmt.Errorf("close port: %w", err)
	}

	c.logger.Info("Modem port closed")
	return nil
}

// GetDeviceList reads the devices known to the modem, including devices
// that are asleep. Positions in the returned snapshot are zeroed until
// the first UpdateLastLocations.
func (c *Connection) GetDeviceList() (*DeviceList, error) {
	buf := make([]byte, deviceListFrameSize)
	if err := c.call(func() bool { return c.api.DevicesList(buf) }); err != nil {
		return nil, fmt.Errorf("get device list: %w", err)
	}

	devices, err := decodeDeviceList(buf, time.Now())
	if err != nil {
		return nil, fmt.Errorf("get device list: %w", err)
	}

	c.logger.Debug("Device list read", zap.Int("devices", len(devices)))
	return &DeviceList{devices: devices}, nil
}

// lastLocations reads one raw locations frame.
func (c *Connection) lastLocations() ([]byte, error) {
	buf := make([]byte, locationsFrameSize)
	if err := c.call(func() bool { return c.api.LastLocations(buf) }); err != nil {
		return nil, err
	}
	return buf, nil
}

// call runs one vendor call under the open-state check and keeps the
// counters current.
func (c *Connection) call(fn func() bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrNotConnected
	}

	c.stats.OperationCount++
	c.stats.LastActivity = time.Now()

	if !fn() {
		c.stats.ErrorCount++
		return callError(c.api)
	}
	return nil
}
