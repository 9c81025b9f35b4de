// internal/model/fix.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marvelmind-service/pkg/marvelmind"
)

// PositionFix is one persisted position reading of a tracked device.
// Coordinates are millimeters, exactly as the modem reports them.
type PositionFix struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Address    uint16    `json:"address" db:"address"`
	X          int32     `json:"x_mm" db:"x_mm"`
	Y          int32     `json:"y_mm" db:"y_mm"`
	Z          int32     `json:"z_mm" db:"z_mm"`
	Q          uint8     `json:"q" db:"q"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// NewPositionFix builds a fix from a device snapshot.
func NewPositionFix(d marvelmind.Device) *PositionFix {
	return &PositionFix{
		ID:         uuid.New(),
		Address:    d.Address(),
		X:          d.X(),
		Y:          d.Y(),
		Z:          d.Z(),
		Q:          d.Q(),
		RecordedAt: d.UpdatedAt(),
	}
}

// BeaconView is the API representation of one tracked device.
type BeaconView struct {
	Address    uint16          `json:"address"`
	Type       string          `json:"type"`
	Firmware   string          `json:"firmware"`
	Connected  bool            `json:"connected"`
	Sleeping   bool            `json:"sleeping"`
	Duplicated bool            `json:"duplicated"`
	X          int32           `json:"x_mm"`
	Y          int32           `json:"y_mm"`
	Z          int32           `json:"z_mm"`
	XMeters    decimal.Decimal `json:"x_m"`
	YMeters    decimal.Decimal `json:"y_m"`
	ZMeters    decimal.Decimal `json:"z_m"`
	Q          uint8           `json:"q"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewBeaconView builds the API view of a device snapshot.
func NewBeaconView(d marvelmind.Device) *BeaconView {
	return &BeaconView{
		Address:    d.Address(),
		Type:       d.Type().String(),
		Firmware:   d.Firmware().String(),
		Connected:  d.Connected(),
		Sleeping:   d.Sleeping(),
		Duplicated: d.Duplicated(),
		X:          d.X(),
		Y:          d.Y(),
		Z:          d.Z(),
		XMeters:    d.XMeters(),
		YMeters:    d.YMeters(),
		ZMeters:    d.ZMeters(),
		Q:          d.Q(),
		UpdatedAt:  d.UpdatedAt(),
	}
}

// ModemState describes the tracking connection lifecycle.
type ModemState string

const (
	ModemStateDisconnected ModemState = "DISCONNECTED"
	ModemStateConnecting   ModemState = "CONNECTING"
	ModemStateConnected    ModemState = "CONNECTED"
	ModemStateError        ModemState = "ERROR"
)

// ModemStatus is the API view of the tracking connection.
type ModemStatus struct {
	State       ModemState       `json:"state"`
	Simulated   bool             `json:"simulated"`
	APIVersion  string           `json:"api_version,omitempty"`
	DeviceCount int              `json:"device_count"`
	LastUpdate  *time.Time       `json:"last_update,omitempty"`
	LastError   string           `json:"last_error,omitempty"`
	Stats       marvelmind.Stats `json:"stats"`
}
