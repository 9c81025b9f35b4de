// internal/driver/sim/modem_test.go
package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marvelmind-service/pkg/marvelmind"
)

func testFleet() *Modem {
	return NewModem(
		Beacon{Address: 1, TypeID: 42, FwMajor: 6, FwMinor: 7, X: 1000, Y: 2000, Z: 3000, Quality: 80},
		Beacon{Address: 2, TypeID: 42, X: -500, Y: 0, Z: 100, VX: 10, Quality: 90},
		Beacon{Address: 3, TypeID: 43, X: 250, Y: 250, Z: 250, Quality: 100},
	)
}

// Full lifecycle against the simulator: open, enumerate, refresh, close,
// then verify the closed connection rejects queries.
func TestModemEndToEnd(t *testing.T) {
	modem := testFleet()

	version, err := marvelmind.APIVersion(modem)
	require.NoError(t, err)
	assert.Equal(t, "3.06", version.String())

	conn, err := marvelmind.Open(context.Background(), modem, marvelmind.OpenOptions{
		Timeout: 30 * time.Second,
	})
	require.NoError(t, err)

	list, err := conn.GetDeviceList()
	require.NoError(t, err)
	require.Equal(t, 3, list.Len())

	var addresses []uint16
	for _, d := range list.Devices() {
		addresses = append(addresses, d.Address())
		assert.Zero(t, d.X(), "positions are placeholders before the first update")
	}
	assert.Equal(t, []uint16{1, 2, 3}, addresses)

	n, err := list.UpdateLastLocations(conn)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, d := range list.Devices() {
		assert.NotZero(t, d.Q())
		assert.False(t, d.X() == 0 && d.Y() == 0 && d.Z() == 0)
	}

	d, ok := list.Device(1)
	require.True(t, ok)
	assert.Equal(t, int32(1000), d.X())
	assert.Equal(t, "1", d.XMeters().String())
	assert.Equal(t, uint8(80), d.Q())

	require.NoError(t, conn.Close())

	_, err = conn.GetDeviceList()
	assert.True(t, errors.Is(err, marvelmind.ErrNotConnected))
}

func TestModemOpenRetry(t *testing.T) {
	modem := testFleet()
	modem.FailOpens(5)

	conn, err := marvelmind.Open(context.Background(), modem, marvelmind.OpenOptions{
		Timeout: time.Second,
	})
	require.NoError(t, err)
	defer conn.Close()

	assert.True(t, conn.IsOpen())
}

func TestModemOpenExhaustsTimeout(t *testing.T) {
	modem := testFleet()
	modem.FailOpens(1 << 30)

	_, err := marvelmind.Open(context.Background(), modem, marvelmind.OpenOptions{
		Timeout:       20 * time.Millisecond,
		RetryInterval: time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, marvelmind.ErrPortUnavailable))
}

func TestModemMovesBeacons(t *testing.T) {
	modem := testFleet()

	conn, err := marvelmind.Open(context.Background(), modem, marvelmind.OpenOptions{})
	require.NoError(t, err)
	defer conn.Close()

	list, err := conn.GetDeviceList()
	require.NoError(t, err)

	_, err = list.UpdateLastLocations(conn)
	require.NoError(t, err)
	first, _ := list.Device(2)

	_, err = list.UpdateLastLocations(conn)
	require.NoError(t, err)
	second, _ := list.Device(2)

	assert.Equal(t, first.X()+10, second.X(), "beacon 2 advances 10mm per poll")
}

func TestModemSuppressedBeaconKeepsPriorFix(t *testing.T) {
	modem := testFleet()

	conn, err := marvelmind.Open(context.Background(), modem, marvelmind.OpenOptions{})
	require.NoError(t, err)
	defer conn.Close()

	list, err := conn.GetDeviceList()
	require.NoError(t, err)

	n, err := list.UpdateLastLocations(conn)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	before, _ := list.Device(3)

	modem.Suppress(3, true)

	n, err = list.UpdateLastLocations(conn)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	after, _ := list.Device(3)
	assert.Equal(t, before.X(), after.X())
	assert.Equal(t, before.UpdatedAt(), after.UpdatedAt())
}

func TestModemInvalidQualityNotApplied(t *testing.T) {
	modem := testFleet()
	modem.SetQuality(1, 255)

	conn, err := marvelmind.Open(context.Background(), modem, marvelmind.OpenOptions{})
	require.NoError(t, err)
	defer conn.Close()

	list, err := conn.GetDeviceList()
	require.NoError(t, err)

	n, err := list.UpdateLastLocations(conn)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	d, _ := list.Device(1)
	assert.Zero(t, d.X())
}
