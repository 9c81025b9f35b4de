// pkg/marvelmind/connection_test.go
package marvelmind

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMapsVendorFailureToPortUnavailable(t *testing.T) {
	api := &stubAPI{openFailures: -1, errCode: vendorCodeSerialPort, errOK: true}

	conn, err := Open(context.Background(), api, OpenOptions{})
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.True(t, errors.Is(err, ErrPortUnavailable))

	var vendorErr *VendorError
	require.True(t, errors.As(err, &vendorErr))
	assert.Equal(t, uint32(vendorCodeSerialPort), vendorErr.Code)
}

func TestOpenRetriesUntilSuccess(t *testing.T) {
	api := &stubAPI{openFailures: 3, errCode: vendorCodeSerialPort, errOK: true}

	conn, err := Open(context.Background(), api, OpenOptions{Timeout: time.Second})
	require.NoError(t, err)
	defer conn.Close()

	assert.True(t, conn.IsOpen())
	assert.Equal(t, 4, api.openCalls)
}

func TestOpenZeroTimeoutIsSingleAttempt(t *testing.T) {
	api := &stubAPI{openFailures: -1, errCode: vendorCodeSerialPort, errOK: true}

	_, err := Open(context.Background(), api, OpenOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, api.openCalls)
}

func TestOpenTimeoutWithoutVendorCause(t *testing.T) {
	// The vendor reports "no pending error" (code 0) for every failed
	// attempt, so only the deadline can explain the failure.
	api := &stubAPI{openFailures: -1, errCode: 0, errOK: true}

	_, err := Open(context.Background(), api, OpenOptions{Timeout: 5 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrPortUnavailable))
}

func TestOpenHonorsContextCancellation(t *testing.T) {
	api := &stubAPI{openFailures: -1, errCode: vendorCodeSerialPort, errOK: true}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, api, OpenOptions{Timeout: time.Minute})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOpenLicenseFailure(t *testing.T) {
	api := &stubAPI{openFailures: -1, errCode: vendorCodeLicense, errOK: true}

	_, err := Open(context.Background(), api, OpenOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPortUnavailable))
	assert.True(t, errors.Is(err, ErrLicenseRequired))
}

func TestCloseIsIdempotent(t *testing.T) {
	api := &stubAPI{}

	conn, err := Open(context.Background(), api, OpenOptions{})
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.Equal(t, 1, api.closeCalls, "vendor port must be released exactly once")
	assert.False(t, conn.IsOpen())
}

func TestCloseFailureStillReleasesOnce(t *testing.T) {
	api := &stubAPI{closeFails: true, errCode: vendorCodeCommunication, errOK: true}

	conn, err := Open(context.Background(), api, OpenOptions{})
	require.NoError(t, err)

	require.Error(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, 1, api.closeCalls)
}

func TestQueriesOnClosedConnection(t *testing.T) {
	api := &stubAPI{deviceFrame: buildDeviceListFrame(stubDevice{addr: 1, typeID: 42})}

	conn, err := Open(context.Background(), api, OpenOptions{})
	require.NoError(t, err)

	list, err := conn.GetDeviceList()
	require.NoError(t, err)

	require.NoError(t, conn.Close())

	_, err = conn.GetDeviceList()
	assert.True(t, errors.Is(err, ErrNotConnected))

	_, err = list.UpdateLastLocations(conn)
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestCallFailureWithoutVendorCause(t *testing.T) {
	api := &stubAPI{errCode: 0, errOK: true}

	conn, err := Open(context.Background(), api, OpenOptions{})
	require.NoError(t, err)
	defer conn.Close()

	// DevicesList fails with no frame scripted and no vendor cause; the
	// failed call itself must still surface as an error.
	_, err = conn.GetDeviceList()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNativeCallFailed))
}

func TestConnectionStats(t *testing.T) {
	api := &stubAPI{deviceFrame: buildDeviceListFrame()}

	conn, err := Open(context.Background(), api, OpenOptions{})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.GetDeviceList()
	require.NoError(t, err)

	api.listFails = true
	_, err = conn.GetDeviceList()
	require.Error(t, err)

	stats := conn.Stats()
	assert.Equal(t, int64(2), stats.OperationCount)
	assert.Equal(t, int64(1), stats.ErrorCount)
	assert.False(t, stats.LastActivity.IsZero())
}

func TestAPIVersion(t *testing.T) {
	api := &stubAPI{version: 306, versionOK: true}

	version, err := APIVersion(api)
	require.NoError(t, err)
	assert.Equal(t, "3.06", version.String())
}

func TestAPIVersionFailureIsNeverZero(t *testing.T) {
	api := &stubAPI{errCode: vendorCodeCommunication, errOK: true}

	_, err := APIVersion(api)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNativeCallFailed))

	api = &stubAPI{version: 0, versionOK: true}
	_, err = APIVersion(api)
	assert.True(t, errors.Is(err, ErrInvalidEncoding))
}
