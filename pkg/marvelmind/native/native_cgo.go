//go:build marvelmind_native

// pkg/marvelmind/native/native_cgo.go
package native

/*
#cgo LDFLAGS: -ldashapi
#include <stdbool.h>
#include <stdint.h>

extern bool mm_get_last_error(uint32_t *pdata);
extern bool mm_api_version(uint32_t *pdata);
extern bool mm_open_port(void);
extern bool mm_close_port(void);
extern bool mm_get_devices_list(uint8_t *pdata);
extern bool mm_get_last_locations2(uint8_t *pdata);
*/
import "C"

import (
	"unsafe"

	"marvelmind-service/pkg/marvelmind"
)

const available = true

// API is the vendor library surface, backed by dashapi.
type API struct{}

var _ marvelmind.VendorAPI = (*API)(nil)

// New returns the vendor API handle.
func New() *API { return &API{} }

func (*API) LastError() (uint32, bool) {
	var code C.uint32_t
	ok := bool(C.mm_get_last_error(&code))
	return uint32(code), ok
}

func (*API) APIVersion() (uint32, bool) {
	var version C.uint32_t
	ok := bool(C.mm_api_version(&version))
	return uint32(version), ok
}

func (*API) OpenPort() bool  { return bool(C.mm_open_port()) }
func (*API) ClosePort() bool { return bool(C.mm_close_port()) }

func (*API) DevicesList(buf []byte) bool {
	return bool(C.mm_get_devices_list((*C.uint8_t)(unsafe.Pointer(&buf[0]))))
}

func (*API) LastLocations(buf []byte) bool {
	return bool(C.mm_get_last_locations2((*C.uint8_t)(unsafe.Pointer(&buf[0]))))
}
