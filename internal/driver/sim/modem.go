// internal/driver/sim/modem.go

// Package sim is a simulated Marvelmind modem. It implements the vendor
// API contract by emitting well-formed vendor frames for a configurable
// set of beacons, so the service and its tests can run without the
// proprietary library or hardware attached.
package sim

import (
	"encoding/binary"
	"sync"
)

// Vendor frame geometry, mirroring the real modem's little-endian
// layouts.
const (
	deviceRecordSize     = 9
	deviceListFrameSize  = 1 + 256*deviceRecordSize
	coordinateRecordSize = 20
	coordinateSlots      = 6
	locationsFrameSize   = coordinateSlots*coordinateRecordSize + 1 + 5 + 1 + 256
)

// Vendor error codes.
const (
	codeCommunication = 1
	codeSerialPort    = 2
)

// DefaultAPIVersion is reported unless overridden.
const DefaultAPIVersion = 306

// Beacon is one simulated device.
type Beacon struct {
	Address  uint8
	TypeID   uint8
	FwMajor  uint8
	FwMinor  uint8
	FwSecond uint8
	Sleeping bool

	// Position in millimeters and per-poll velocity.
	X, Y, Z    int32
	VX, VY, VZ int32

	// Quality of positioning, 0..100. Values above 100 make every slot
	// for this beacon invalid.
	Quality uint8

	// Suppressed drops the beacon from locations frames entirely,
	// simulating a device the modem cannot resolve.
	Suppressed bool
}

// Modem simulates the vendor library for a fixed beacon fleet.
type Modem struct {
	mu sync.Mutex

	beacons []Beacon
	open    bool
	lastErr uint32
	version uint32

	// openFailures makes that many OpenPort calls fail first,
	// simulating a busy or slow port.
	openFailures int
}

// NewModem creates a simulated modem tracking the given beacons.
func NewModem(beacons ...Beacon) *Modem {
	return &Modem{
		beacons: beacons,
		version: DefaultAPIVersion,
	}
}

// SetAPIVersion overrides the reported vendor API version.
func (m *Modem) SetAPIVersion(version uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = version
}

// FailOpens makes the next n OpenPort calls fail with a serial-port
// error. A negative n fails every call.
func (m *Modem) FailOpens(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openFailures = n
}

// Suppress controls whether a beacon appears in locations frames.
func (m *Modem) Suppress(address uint8, suppressed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.beacons {
		if m.beacons[i].Address == address {
			m.beacons[i].Suppressed = suppressed
		}
	}
}

// SetQuality overrides a beacon's reported quality.
func (m *Modem) SetQuality(address uint8, quality uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.beacons {
		if m.beacons[i].Address == address {
			m.beacons[i].Quality = quality
		}
	}
}

// LastError implements the vendor API.
func (m *Modem) LastError() (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastErr == 0 {
		return 0, false
	}
	return m.lastErr, true
}

// APIVersion implements the vendor API.
func (m *Modem) APIVersion() (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version, true
}

// OpenPort implements the vendor API.
func (m *Modem) OpenPort() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openFailures != 0 {
		if m.openFailures > 0 {
			m.openFailures--
		}
		m.lastErr = codeSerialPort
		return false
	}

	m.open = true
	m.lastErr = 0
	return true
}

// ClosePort implements the vendor API.
func (m *Modem) ClosePort() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		m.lastErr = codeSerialPort
		return false
	}

	m.open = false
	return true
}

// DevicesList implements the vendor API.
func (m *Modem) DevicesList(buf []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open || len(buf) < deviceListFrameSize {
		m.lastErr = codeCommunication
		return false
	}

	buf[0] = byte(len(m.beacons))
	for i, b := range m.beacons {
		rec := buf[1+i*deviceRecordSize:]
		rec[0] = b.Address
		rec[1] = 0
		if b.Sleeping {
			rec[2] = 1
		} else {
			rec[2] = 0
		}
		rec[3] = b.FwMajor
		rec[4] = b.FwMinor
		rec[5] = b.FwSecond
		rec[6] = b.TypeID
		rec[7] = 0
		if b.Sleeping {
			rec[8] = 0
		} else {
			rec[8] = 0x01 // connected
		}
	}

	return true
}

// LastLocations implements the vendor API. Each call advances every
// beacon along its velocity vector and emits up to six coordinate
// slots; unused slots carry an invalid quality.
func (m *Modem) LastLocations(buf []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open || len(buf) < locationsFrameSize {
		m.lastErr = codeCommunication
		return false
	}

	for i := 0; i < coordinateSlots; i++ {
		buf[i*coordinateRecordSize+15] = 0xFF
	}

	slot := 0
	for i := range m.beacons {
		b := &m.beacons[i]
		b.X += b.VX
		b.Y += b.VY
		b.Z += b.VZ

		if b.Suppressed || slot >= coordinateSlots {
			continue
		}

		rec := buf[slot*coordinateRecordSize:]
		rec[0] = b.Address
		binary.LittleEndian.PutUint32(rec[2:6], uint32(b.X))
		binary.LittleEndian.PutUint32(rec[6:10], uint32(b.Y))
		binary.LittleEndian.PutUint32(rec[10:14], uint32(b.Z))
		rec[15] = b.Quality
		slot++
	}

	buf[coordinateSlots*coordinateRecordSize] = 1 // fresh data marker
	return true
}
