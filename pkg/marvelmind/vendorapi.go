// pkg/marvelmind/vendorapi.go
package marvelmind

import (
	"encoding/binary"
	"time"
)

// VendorAPI is the surface of the proprietary Marvelmind modem library.
// Every call reports success with a boolean; on failure the cause is
// retrieved separately via LastError. Buffer-filling calls expect a
// buffer of at least the corresponding frame size and write the vendor's
// little-endian fixed layout into it.
//
// Implementations: the real library linkage in pkg/marvelmind/native and
// the simulated modem in internal/driver/sim.
type VendorAPI interface {
	// LastError reads the code of the most recent failure. ok is false
	// when the vendor cannot report a cause.
	LastError() (code uint32, ok bool)

	// APIVersion reads the vendor library's API version.
	APIVersion() (version uint32, ok bool)

	// OpenPort searches serial ports for a Marvelmind modem and opens
	// it. A single attempt; retrying is the caller's concern.
	OpenPort() bool

	// ClosePort closes a previously opened port.
	ClosePort() bool

	// DevicesList fills buf with a device-list frame: the device count
	// followed by up to 256 device records.
	DevicesList(buf []byte) bool

	// LastLocations fills buf with a locations frame holding the most
	// recent coordinate slots.
	LastLocations(buf []byte) bool
}

// Vendor frame geometry. All multi-byte fields are little-endian.
const (
	// Device record: address, duplicated, sleeping, fw major/minor/
	// second, type id, firmware option, flags.
	deviceRecordSize = 9

	// Device-list frame: count byte + 256 device records.
	deviceListFrameSize = 1 + 256*deviceRecordSize

	// Coordinate record: address, head index, x/y/z int32 mm, status
	// flag, quality, three reserved bytes and a reserved word.
	coordinateRecordSize = 20

	// Locations frame carries a fixed number of coordinate slots.
	coordinateSlots = 6

	// Locations frame: slots + is-new byte + 5 reserved + payload size
	// byte + 256 payload bytes.
	locationsFrameSize = coordinateSlots*coordinateRecordSize + 1 + 5 + 1 + 256
)

// Connected-flag bit in the device record flags byte.
const flagConnected = 0x01

// Quality values above 100 mark a coordinate slot as not valid.
const maxQuality = 100

// coordinate is one decoded slot of a locations frame.
type coordinate struct {
	address uint16
	x, y, z int32
	q       uint8
}

// decodeDeviceList decodes a device-list frame into placeholder devices.
// Positions stay zeroed until the first location update.
func decodeDeviceList(buf []byte, now time.Time) ([]Device, error) {
	if len(buf) < deviceListFrameSize {
		return nil, ErrInvalidEncoding
	}

	count := int(buf[0])
	devices := make([]Device, 0, count)

	for i := 0; i < count; i++ {
		rec := buf[1+i*deviceRecordSize : 1+(i+1)*deviceRecordSize]

		devices = append(devices, Device{
			address:    uint16(rec[0]),
			duplicated: rec[1] != 0,
			sleeping:   rec[2] != 0,
			firmware:   FirmwareVersion{Major: rec[3], Minor: rec[4], Second: rec[5]},
			devType:    deviceTypeFromID(rec[6]),
			connected:  rec[8]&flagConnected != 0,
			updatedAt:  now,
		})
	}

	return devices, nil
}

// decodeLastLocations decodes the coordinate slots of a locations frame.
// Empty or invalid slots are returned as-is; validity filtering by
// quality happens during the list update.
func decodeLastLocations(buf []byte) ([]coordinate, error) {
	if len(buf) < locationsFrameSize {
		return nil, ErrInvalidEncoding
	}

	coords := make([]coordinate, 0, coordinateSlots)
	for i := 0; i < coordinateSlots; i++ {
		rec := buf[i*coordinateRecordSize : (i+1)*coordinateRecordSize]

		coords = append(coords, coordinate{
			address: uint16(rec[0]),
			x:       int32(binary.LittleEndian.Uint32(rec[2:6])),
			y:       int32(binary.LittleEndian.Uint32(rec[6:10])),
			z:       int32(binary.LittleEndian.Uint32(rec[10:14])),
			q:       rec[15],
		})
	}

	return coords, nil
}
