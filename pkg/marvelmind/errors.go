// pkg/marvelmind/errors.go
package marvelmind

import (
	"errors"
	"fmt"
)

// Error taxonomy of the binding. Callers match with errors.Is; the
// vendor's numeric cause, when known, travels alongside as a VendorError.
var (
	// ErrNotConnected marks a query against a connection that was never
	// opened or has been closed.
	ErrNotConnected = errors.New("marvelmind: not connected")

	// ErrPortUnavailable marks a failed port open (busy, missing
	// hardware, permission denied).
	ErrPortUnavailable = errors.New("marvelmind: port unavailable")

	// ErrNativeCallFailed marks a vendor call that reported failure.
	ErrNativeCallFailed = errors.New("marvelmind: vendor call failed")

	// ErrInvalidEncoding marks a vendor value that could not be decoded.
	ErrInvalidEncoding = errors.New("marvelmind: invalid vendor encoding")

	// ErrTimeout marks an operation that exceeded its configured deadline.
	ErrTimeout = errors.New("marvelmind: timed out")

	// ErrLicenseRequired marks the vendor's license-gating failure.
	ErrLicenseRequired = errors.New("marvelmind: license required")
)

// Vendor error codes reported by LastError.
const (
	vendorCodeCommunication = 1
	vendorCodeSerialPort    = 2
	vendorCodeLicense       = 3
)

// VendorError carries the vendor's numeric failure code. It unwraps to
// the matching sentinel so errors.Is keeps working.
type VendorError struct {
	Code uint32
	kind error
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%v (vendor code %d)", e.kind, e.Code)
}

func (e *VendorError) Unwrap() error {
	return e.kind
}

// lastError converts the vendor's pending failure code into a typed
// error. A readable code of zero means the vendor has nothing to report
// and yields nil; an unreadable or unknown code collapses to
// ErrNativeCallFailed.
func lastError(api VendorAPI) error {
	code, ok := api.LastError()
	if !ok {
		return ErrNativeCallFailed
	}

	switch code {
	case 0:
		return nil
	case vendorCodeCommunication:
		return &VendorError{Code: code, kind: ErrNativeCallFailed}
	case vendorCodeSerialPort:
		return &VendorError{Code: code, kind: ErrPortUnavailable}
	case vendorCodeLicense:
		return &VendorError{Code: code, kind: ErrLicenseRequired}
	default:
		return &VendorError{Code: code, kind: ErrNativeCallFailed}
	}
}

// callError is lastError for a vendor call that already reported
// failure: when the vendor offers no cause, the failed call itself is
// the cause.
func callError(api VendorAPI) error {
	if err := lastError(api); err != nil {
		return err
	}
	return ErrNativeCallFailed
}
