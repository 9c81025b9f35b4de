// pkg/marvelmind/devicelist_test.go
package marvelmind

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openWithDevices(t *testing.T, api *stubAPI) (*Connection, *DeviceList) {
	t.Helper()

	conn, err := Open(context.Background(), api, OpenOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	list, err := conn.GetDeviceList()
	require.NoError(t, err)
	return conn, list
}

func TestGetDeviceListDecodesRecords(t *testing.T) {
	api := &stubAPI{deviceFrame: buildDeviceListFrame(
		stubDevice{addr: 5, fwMajor: 6, fwMinor: 7, fwSecond: 1, typeID: 42, flag: 0x01},
		stubDevice{addr: 11, duplicated: 1, sleeping: 1, typeID: 31},
	)}

	_, list := openWithDevices(t, api)
	devices := list.Devices()
	require.Len(t, devices, 2)

	assert.Equal(t, uint16(5), devices[0].Address())
	assert.Equal(t, DeviceTypeSuperBeacon, devices[0].Type())
	assert.Equal(t, "6.07.1", devices[0].Firmware().String())
	assert.True(t, devices[0].Connected())
	assert.False(t, devices[0].Duplicated())

	assert.Equal(t, uint16(11), devices[1].Address())
	assert.True(t, devices[1].Duplicated())
	assert.True(t, devices[1].Sleeping())
	assert.False(t, devices[1].Connected())

	// Placeholder positions until the first update.
	for _, d := range devices {
		assert.Zero(t, d.X())
		assert.Zero(t, d.Y())
		assert.Zero(t, d.Z())
		assert.Zero(t, d.Q())
	}
}

func TestGetDeviceListToleratesUnknownType(t *testing.T) {
	api := &stubAPI{deviceFrame: buildDeviceListFrame(stubDevice{addr: 2, typeID: 99})}

	_, list := openWithDevices(t, api)
	devices := list.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, DeviceTypeUnknown, devices[0].Type())
}

func TestGetDeviceListToleratesDuplicateAddresses(t *testing.T) {
	api := &stubAPI{deviceFrame: buildDeviceListFrame(
		stubDevice{addr: 7, typeID: 42},
		stubDevice{addr: 7, duplicated: 1, typeID: 42},
	)}

	_, list := openWithDevices(t, api)
	assert.Equal(t, 2, list.Len())
}

func TestUpdateLastLocationsRefreshesAll(t *testing.T) {
	api := &stubAPI{
		deviceFrame: buildDeviceListFrame(
			stubDevice{addr: 1, typeID: 42},
			stubDevice{addr: 2, typeID: 42},
			stubDevice{addr: 3, typeID: 43},
		),
		locationFrames: [][]byte{buildLocationsFrame(
			coordinate{address: 1, x: 1000, y: 2000, z: 3000, q: 80},
			coordinate{address: 2, x: -500, y: 250, z: 0, q: 55},
			coordinate{address: 3, x: 10, y: 20, z: 30, q: 100},
		)},
	}

	conn, list := openWithDevices(t, api)

	n, err := list.UpdateLastLocations(conn)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	d, ok := list.Device(2)
	require.True(t, ok)
	assert.Equal(t, int32(-500), d.X())
	assert.Equal(t, int32(250), d.Y())
	assert.Equal(t, uint8(55), d.Q())
	assert.False(t, d.UpdatedAt().IsZero())
}

func TestUpdateSkipsUnresolvedDeviceKeepingPriorValues(t *testing.T) {
	api := &stubAPI{
		deviceFrame: buildDeviceListFrame(
			stubDevice{addr: 1, typeID: 42},
			stubDevice{addr: 2, typeID: 42},
			stubDevice{addr: 3, typeID: 42},
		),
		locationFrames: [][]byte{
			buildLocationsFrame(
				coordinate{address: 1, x: 100, y: 100, z: 100, q: 90},
				coordinate{address: 2, x: 200, y: 200, z: 200, q: 90},
				coordinate{address: 3, x: 300, y: 300, z: 300, q: 90},
			),
			buildLocationsFrame(
				coordinate{address: 1, x: 110, y: 110, z: 110, q: 91},
				coordinate{address: 3, x: 310, y: 310, z: 310, q: 91},
			),
		},
	}

	conn, list := openWithDevices(t, api)

	n, err := list.UpdateLastLocations(conn)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// Device #2 is missing from the second frame: skipped, not zeroed.
	n, err = list.UpdateLastLocations(conn)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	d, ok := list.Device(2)
	require.True(t, ok)
	assert.Equal(t, int32(200), d.X())
	assert.Equal(t, int32(200), d.Y())
	assert.Equal(t, int32(200), d.Z())
	assert.Equal(t, uint8(90), d.Q())

	d, ok = list.Device(1)
	require.True(t, ok)
	assert.Equal(t, int32(110), d.X())
}

func TestUpdateSkipsInvalidQuality(t *testing.T) {
	api := &stubAPI{
		deviceFrame: buildDeviceListFrame(stubDevice{addr: 4, typeID: 42}),
		locationFrames: [][]byte{buildLocationsFrame(
			coordinate{address: 4, x: 999, y: 999, z: 999, q: 255},
		)},
	}

	conn, list := openWithDevices(t, api)

	n, err := list.UpdateLastLocations(conn)
	require.NoError(t, err)
	assert.Zero(t, n)

	d, _ := list.Device(4)
	assert.Zero(t, d.X())
}

func TestUpdateFailsWhenFrameUnreadable(t *testing.T) {
	api := &stubAPI{
		deviceFrame:   buildDeviceListFrame(stubDevice{addr: 1, typeID: 42}),
		locationsFail: true,
		errCode:       vendorCodeCommunication,
		errOK:         true,
	}

	conn, list := openWithDevices(t, api)

	_, err := list.UpdateLastLocations(conn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNativeCallFailed))
}

func TestDevicesReturnsDefensiveCopy(t *testing.T) {
	api := &stubAPI{deviceFrame: buildDeviceListFrame(stubDevice{addr: 1, typeID: 42})}

	_, list := openWithDevices(t, api)

	devices := list.Devices()
	devices[0] = Device{}

	fresh := list.Devices()
	assert.Equal(t, uint16(1), fresh[0].Address())
}
