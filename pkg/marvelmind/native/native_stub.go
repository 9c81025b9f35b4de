//go:build !marvelmind_native

// pkg/marvelmind/native/native_stub.go
package native

import "marvelmind-service/pkg/marvelmind"

const available = false

// API is the vendor library surface. In builds without the vendor
// library every call fails with no reportable cause.
type API struct{}

var _ marvelmind.VendorAPI = (*API)(nil)

// New returns the vendor API handle.
func New() *API { return &API{} }

func (*API) LastError() (uint32, bool)  { return 0, false }
func (*API) APIVersion() (uint32, bool) { return 0, false }
func (*API) OpenPort() bool             { return false }
func (*API) ClosePort() bool            { return false }
func (*API) DevicesList([]byte) bool    { return false }
func (*API) LastLocations([]byte) bool  { return false }
