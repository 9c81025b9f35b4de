// pkg/marvelmind/stub_test.go
package marvelmind

import "encoding/binary"

// stubAPI is a scriptable VendorAPI for tests.
type stubAPI struct {
	errCode uint32
	errOK   bool

	version   uint32
	versionOK bool

	// openFailures is how many OpenPort calls fail before one succeeds;
	// a negative value fails forever.
	openFailures int
	openCalls    int
	closeCalls   int
	closeFails   bool

	deviceFrame []byte
	listFails   bool

	locationFrames [][]byte
	frameIndex     int
	locationsFail  bool
}

func (s *stubAPI) LastError() (uint32, bool)  { return s.errCode, s.errOK }
func (s *stubAPI) APIVersion() (uint32, bool) { return s.version, s.versionOK }

func (s *stubAPI) OpenPort() bool {
	s.openCalls++
	if s.openFailures < 0 {
		return false
	}
	if s.openFailures > 0 {
		s.openFailures--
		return false
	}
	return true
}

func (s *stubAPI) ClosePort() bool {
	s.closeCalls++
	return !s.closeFails
}

func (s *stubAPI) DevicesList(buf []byte) bool {
	if s.listFails || s.deviceFrame == nil {
		return false
	}
	copy(buf, s.deviceFrame)
	return true
}

func (s *stubAPI) LastLocations(buf []byte) bool {
	if s.locationsFail || len(s.locationFrames) == 0 {
		return false
	}
	frame := s.locationFrames[s.frameIndex]
	if s.frameIndex < len(s.locationFrames)-1 {
		s.frameIndex++
	}
	copy(buf, frame)
	return true
}

// stubDevice is one raw device record for frame building.
type stubDevice struct {
	addr, duplicated, sleeping   byte
	fwMajor, fwMinor, fwSecond   byte
	typeID, firmwareOption, flag byte
}

func buildDeviceListFrame(devices ...stubDevice) []byte {
	frame := make([]byte, deviceListFrameSize)
	frame[0] = byte(len(devices))
	for i, d := range devices {
		rec := frame[1+i*deviceRecordSize:]
		rec[0] = d.addr
		rec[1] = d.duplicated
		rec[2] = d.sleeping
		rec[3] = d.fwMajor
		rec[4] = d.fwMinor
		rec[5] = d.fwSecond
		rec[6] = d.typeID
		rec[7] = d.firmwareOption
		rec[8] = d.flag
	}
	return frame
}

func buildLocationsFrame(coords ...coordinate) []byte {
	frame := make([]byte, locationsFrameSize)
	// Unused slots carry an invalid quality so they never match.
	for i := 0; i < coordinateSlots; i++ {
		frame[i*coordinateRecordSize+15] = 0xFF
	}
	for i, c := range coords {
		rec := frame[i*coordinateRecordSize:]
		rec[0] = byte(c.address)
		binary.LittleEndian.PutUint32(rec[2:6], uint32(c.x))
		binary.LittleEndian.PutUint32(rec[6:10], uint32(c.y))
		binary.LittleEndian.PutUint32(rec[10:14], uint32(c.z))
		rec[15] = c.q
	}
	return frame
}
