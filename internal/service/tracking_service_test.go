// internal/service/tracking_service_test.go
package service

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marvelmind-service/internal/config"
	"marvelmind-service/internal/driver/sim"
	"marvelmind-service/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Modem: config.ModemConfig{
			Simulated:     true,
			OpenTimeout:   time.Second,
			RetryInterval: time.Millisecond,
		},
		Tracking: config.TrackingConfig{
			PollInterval: 5 * time.Millisecond,
		},
	}
}

func testModem() *sim.Modem {
	return sim.NewModem(
		sim.Beacon{Address: 5, TypeID: 42, FwMajor: 7, FwMinor: 2, X: 1200, Y: -340, Z: 90, VX: 10, Quality: 88},
		sim.Beacon{Address: 9, TypeID: 43, FwMajor: 7, FwMinor: 2, X: 0, Y: 0, Z: 0, Quality: 95},
	)
}

// capturePublisher collects every dispatched fix.
type capturePublisher struct {
	mu    sync.Mutex
	fixes []*model.PositionFix
}

func (p *capturePublisher) PublishFixes(fixes []*model.PositionFix) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fixes = append(p.fixes, fixes...)
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fixes)
}

func (p *capturePublisher) addresses() map[uint16]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[uint16]bool)
	for _, f := range p.fixes {
		seen[f.Address] = true
	}
	return seen
}

func TestTrackingServiceLifecycle(t *testing.T) {
	svc := NewTrackingService(testModem(), nil, nil, testConfig(), zap.NewNop())

	pub := &capturePublisher{}
	svc.AddPublisher(pub)

	require.NoError(t, svc.Start(context.Background()))
	assert.True(t, svc.IsRunning())
	assert.Equal(t, "3.06", svc.Version())

	// Both beacons should produce fixes within a few poll cycles.
	require.Eventually(t, func() bool {
		seen := pub.addresses()
		return seen[5] && seen[9]
	}, time.Second, 5*time.Millisecond)

	status := svc.Status()
	assert.Equal(t, model.ModemStateConnected, status.State)
	assert.True(t, status.Simulated)
	assert.Equal(t, 2, status.DeviceCount)
	assert.NotNil(t, status.LastUpdate)

	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsRunning())
	assert.Equal(t, model.ModemStateDisconnected, svc.Status().State)

	// Stopping again is a no-op.
	require.NoError(t, svc.Stop())
}

// gatedModem holds every OpenPort call until released, so a test can
// park one Start inside the open attempt while another Start arrives.
type gatedModem struct {
	*sim.Modem
	mu      sync.Mutex
	opens   int
	release chan struct{}
}

func (g *gatedModem) OpenPort() bool {
	g.mu.Lock()
	g.opens++
	g.mu.Unlock()
	<-g.release
	return g.Modem.OpenPort()
}

func (g *gatedModem) openCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opens
}

func TestTrackingServiceConcurrentStart(t *testing.T) {
	modem := &gatedModem{Modem: testModem(), release: make(chan struct{})}
	svc := NewTrackingService(modem, nil, nil, testConfig(), zap.NewNop())

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- svc.Start(context.Background()) }()
	}

	// One attempt holds the port open; the other must be rejected
	// without ever reaching the vendor port.
	var rejected error
	select {
	case rejected = <-errs:
	case <-time.After(time.Second):
		t.Fatal("no Start returned while the port was held")
	}
	require.Error(t, rejected)

	close(modem.release)
	require.NoError(t, <-errs)

	assert.Equal(t, 1, modem.openCalls(), "vendor port must be opened exactly once")
	assert.True(t, svc.IsRunning())

	// Stop must return promptly; a leaked second poll loop would hang it.
	done := make(chan error, 1)
	go func() { done <- svc.Stop() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.False(t, svc.IsRunning())
}

func TestTrackingServiceStartTwice(t *testing.T) {
	svc := NewTrackingService(testModem(), nil, nil, testConfig(), zap.NewNop())

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	assert.Error(t, svc.Start(context.Background()))
}

func TestTrackingServiceOpenFailure(t *testing.T) {
	modem := testModem()
	modem.FailOpens(-1)

	cfg := testConfig()
	cfg.Modem.OpenTimeout = 10 * time.Millisecond

	svc := NewTrackingService(modem, nil, nil, cfg, zap.NewNop())

	err := svc.Start(context.Background())
	require.Error(t, err)
	assert.False(t, svc.IsRunning())

	status := svc.Status()
	assert.Equal(t, model.ModemStateError, status.State)
	assert.NotEmpty(t, status.LastError)
}

func TestTrackingServiceDeviceQueries(t *testing.T) {
	svc := NewTrackingService(testModem(), nil, nil, testConfig(), zap.NewNop())

	_, err := svc.Devices()
	assert.Error(t, err, "queries before start must fail")

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	views, err := svc.Devices()
	require.NoError(t, err)
	require.Len(t, views, 2)

	view, err := svc.Device(5)
	require.NoError(t, err)
	assert.Equal(t, uint16(5), view.Address)
	assert.Equal(t, "7.02.0", view.Firmware)

	_, err = svc.Device(77)
	assert.Error(t, err)
}

func TestTrackingServiceHistoryDisabled(t *testing.T) {
	svc := NewTrackingService(testModem(), nil, nil, testConfig(), zap.NewNop())

	_, err := svc.History(context.Background(), 5, time.Time{}, time.Now(), 10)
	assert.Error(t, err)
	_, err = svc.Latest(context.Background(), 5)
	assert.Error(t, err)
}

func TestTrackRecorderWritesPoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track", "points.csv")

	rec, err := NewTrackRecorder(5, path, zap.NewNop())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Tracking.RecordAddress = 5
	cfg.Tracking.RecordPath = path

	svc := NewTrackingService(testModem(), nil, rec, cfg, zap.NewNop())
	require.NoError(t, svc.Start(context.Background()))

	require.Eventually(t, func() bool {
		if err := rec.Flush(); err != nil {
			return false
		}
		info, statErr := os.Stat(path)
		return statErr == nil && info.Size() > 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, svc.Stop())
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)

	// Only the configured address is recorded, with all six fields.
	for _, record := range records {
		require.Len(t, record, 6)
		assert.Equal(t, "5", record[0])
	}
}

func TestTrackRecorderCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.csv")

	rec, err := NewTrackRecorder(3, path, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	assert.Error(t, rec.Record(&model.PositionFix{Address: 3}))
}
