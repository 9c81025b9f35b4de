// pkg/marvelmind/device.go
package marvelmind

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Device is one tracked beacon or hedgehog: an immutable value
// constructed only as part of a DeviceList snapshot. Coordinates are
// signed millimeters; divide by 1000 for meters.
type Device struct {
	address    uint16
	duplicated bool
	sleeping   bool
	firmware   FirmwareVersion
	devType    DeviceType
	connected  bool
	x, y, z    int32
	q          uint8
	updatedAt  time.Time
}

// Address returns the device's radio address. Uniqueness within a
// snapshot is advisory only; see Duplicated.
func (d Device) Address() uint16 { return d.address }

// Duplicated reports whether more than one device with this address was
// found on the network.
func (d Device) Duplicated() bool { return d.duplicated }

// Sleeping reports whether the device is in sleep mode.
func (d Device) Sleeping() bool { return d.sleeping }

// Firmware returns the device firmware version.
func (d Device) Firmware() FirmwareVersion { return d.firmware }

// Type returns the hardware type of the device.
func (d Device) Type() DeviceType { return d.devType }

// Connected reports whether the modem has confirmed a radio connection.
func (d Device) Connected() bool { return d.connected }

// X returns the X coordinate in millimeters.
func (d Device) X() int32 { return d.x }

// Y returns the Y coordinate in millimeters.
func (d Device) Y() int32 { return d.y }

// Z returns the Z coordinate in millimeters.
func (d Device) Z() int32 { return d.z }

// Q returns the positioning quality, 0..100 percent.
func (d Device) Q() uint8 { return d.q }

// UpdatedAt returns the time of the last location update, or the
// snapshot time if the position was never resolved.
func (d Device) UpdatedAt() time.Time { return d.updatedAt }

// XMeters returns the X coordinate in meters, exact to the millimeter.
func (d Device) XMeters() decimal.Decimal { return decimal.New(int64(d.x), -3) }

// YMeters returns the Y coordinate in meters, exact to the millimeter.
func (d Device) YMeters() decimal.Decimal { return decimal.New(int64(d.y), -3) }

// ZMeters returns the Z coordinate in meters, exact to the millimeter.
func (d Device) ZMeters() decimal.Decimal { return decimal.New(int64(d.z), -3) }

// FirmwareVersion is the device firmware triple, e.g. 6.7.1 for V6.07a.
type FirmwareVersion struct {
	Major  uint8
	Minor  uint8
	Second uint8
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%02d.%d", v.Major, v.Minor, v.Second)
}

// DeviceType identifies the Marvelmind hardware variant.
type DeviceType uint8

// Vendor type ids.
const (
	DeviceTypeUnknown                 DeviceType = 0
	DeviceTypeBeaconHWV45             DeviceType = 22
	DeviceTypeBeaconHWV45Hedgehog     DeviceType = 23
	DeviceTypeModemHWV49              DeviceType = 24
	DeviceTypeBeaconHWV49             DeviceType = 30
	DeviceTypeBeaconHWV49Hedgehog     DeviceType = 31
	DeviceTypeBeaconMiniRX            DeviceType = 32
	DeviceTypeBeaconMiniTX            DeviceType = 36
	DeviceTypeBeaconTXIP67            DeviceType = 37
	DeviceTypeBeaconIndustrialRX      DeviceType = 41
	DeviceTypeSuperBeacon             DeviceType = 42
	DeviceTypeSuperBeaconHedgehog     DeviceType = 43
	DeviceTypeIndustrialSuper         DeviceType = 44
	DeviceTypeIndustrialSuperHedgehog DeviceType = 45
	DeviceTypeSuperModem              DeviceType = 46
	DeviceTypeModemHWV51              DeviceType = 48
)

var deviceTypeNames = map[DeviceType]string{
	DeviceTypeBeaconHWV45:             "Beacon HW V4.5",
	DeviceTypeBeaconHWV45Hedgehog:     "Beacon HW V4.5 (hedgehog)",
	DeviceTypeModemHWV49:              "Modem HW V4.9",
	DeviceTypeBeaconHWV49:             "Beacon HW V4.9",
	DeviceTypeBeaconHWV49Hedgehog:     "Beacon HW V4.9 (hedgehog)",
	DeviceTypeBeaconMiniRX:            "Beacon Mini-RX",
	DeviceTypeBeaconMiniTX:            "Beacon Mini-TX",
	DeviceTypeBeaconTXIP67:            "Beacon-TX-IP67",
	DeviceTypeBeaconIndustrialRX:      "Beacon industrial-RX",
	DeviceTypeSuperBeacon:             "Super-Beacon",
	DeviceTypeSuperBeaconHedgehog:     "Super-Beacon (hedgehog)",
	DeviceTypeIndustrialSuper:         "Industrial Super-Beacon",
	DeviceTypeIndustrialSuperHedgehog: "Industrial Super-Beacon (hedgehog)",
	DeviceTypeSuperModem:              "Super-Modem",
	DeviceTypeModemHWV51:              "Modem HW V5.1",
}

func (t DeviceType) String() string {
	if name, ok := deviceTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown (%d)", uint8(t))
}

// deviceTypeFromID maps a vendor type id, tolerating ids this binding
// does not know yet.
func deviceTypeFromID(id uint8) DeviceType {
	t := DeviceType(id)
	if _, ok := deviceTypeNames[t]; ok {
		return t
	}
	return DeviceTypeUnknown
}

// Version is the vendor library's API version.
type Version uint32

func (v Version) String() string {
	return fmt.Sprintf("%d.%02d", uint32(v)/100, uint32(v)%100)
}

// APIVersion queries the vendor library's API version. It needs no open
// connection. A reported version of zero is treated as undecodable
// rather than passed through as "0.00".
func APIVersion(api VendorAPI) (Version, error) {
	version, ok := api.APIVersion()
	if !ok {
		return 0, fmt.Errorf("query api version: %w", callError(api))
	}
	if version == 0 {
		return 0, fmt.Errorf("query api version: %w", ErrInvalidEncoding)
	}
	return Version(version), nil
}
