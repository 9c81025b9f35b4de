// pkg/marvelmind/device_test.go
package marvelmind

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeterConversionIsExact(t *testing.T) {
	d := Device{address: 5, x: 1000, y: 2000, z: 3000, q: 80}

	assert.Equal(t, "1", d.XMeters().String())
	assert.Equal(t, "2", d.YMeters().String())
	assert.Equal(t, "3", d.ZMeters().String())
	assert.InDelta(t, 1.0, float64(d.X())/1000.0, 0)

	d = Device{x: -1234}
	assert.Equal(t, "-1.234", d.XMeters().String())
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "3.06", Version(306).String())
	assert.Equal(t, "1.00", Version(100).String())
}

func TestDeviceTypeString(t *testing.T) {
	assert.Equal(t, "Super-Beacon", DeviceTypeSuperBeacon.String())
	assert.Equal(t, "Modem HW V5.1", DeviceTypeModemHWV51.String())
	assert.Equal(t, "unknown (99)", DeviceType(99).String())
}

func TestDeviceTypeFromID(t *testing.T) {
	assert.Equal(t, DeviceTypeBeaconMiniRX, deviceTypeFromID(32))
	assert.Equal(t, DeviceTypeUnknown, deviceTypeFromID(99))
}
