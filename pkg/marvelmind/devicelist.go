// pkg/marvelmind/devicelist.go
package marvelmind

import (
	"fmt"
	"sync"
	"time"
)

// DeviceList is an owned snapshot of the modem's device set. Reading an
// already-fetched snapshot needs no connection; refreshing positions
// does. Updates happen only through UpdateLastLocations, never silently.
type DeviceList struct {
	mu      sync.RWMutex
	devices []Device
}

// Devices returns the current snapshot. The returned slice is a copy;
// mutating it does not touch the list.
func (l *DeviceList) Devices() []Device {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Device, len(l.devices))
	copy(out, l.devices)
	return out
}

// Len returns the number of devices in the snapshot.
func (l *DeviceList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.devices)
}

// Device returns the first device with the given address.
func (l *DeviceList) Device(address uint16) (Device, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, d := range l.devices {
		if d.address == address {
			return d, true
		}
	}
	return Device{}, false
}

// UpdateLastLocations refreshes positions in place from the modem's most
// recent locations frame and returns how many devices were refreshed.
// A device whose address is absent from the frame, or whose slot carries
// an invalid quality, is skipped with its prior values kept; the call
// only fails when the frame itself cannot be read or decoded.
func (l *DeviceList) UpdateLastLocations(conn *Connection) (int, error) {
	buf, err := conn.lastLocations()
	if err != nil {
		return 0, fmt.Errorf("update last locations: %w", err)
	}

	coords, err := decodeLastLocations(buf)
	if err != nil {
		return 0, fmt.Errorf("update last locations: %w", err)
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	updated := 0
	for i := range l.devices {
		for _, c := range coords {
			if c.address != l.devices[i].address || c.q > maxQuality {
				continue
			}

			l.devices[i].x = c.x
			l.devices[i].y = c.y
			l.devices[i].z = c.z
			l.devices[i].q = c.q
			l.devices[i].updatedAt = now
			updated++
			break
		}
	}

	return updated, nil
}
