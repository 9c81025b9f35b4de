// internal/service/tracking_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"marvelmind-service/internal/config"
	"marvelmind-service/internal/model"
	"marvelmind-service/internal/repository"
	"marvelmind-service/internal/utils"
	"marvelmind-service/pkg/marvelmind"
)

// FixPublisher receives every poll cycle's fresh position fixes.
// Implementations must not block the poll loop.
type FixPublisher interface {
	PublishFixes(fixes []*model.PositionFix)
}

// TrackingService owns the modem connection and the polling loop. It
// keeps the device list current, persists fixes, and fans them out to
// the registered publishers.
type TrackingService struct {
	api        marvelmind.VendorAPI
	repo       repository.PositionRepository
	cfg        *config.Config
	logger     *zap.Logger
	modemLog   *utils.ModemLogger
	publishers []FixPublisher
	recorder   *TrackRecorder

	mu         sync.RWMutex
	starting   bool
	conn       *marvelmind.Connection
	list       *marvelmind.DeviceList
	state      model.ModemState
	version    string
	lastUpdate time.Time
	lastErr    error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTrackingService creates the tracking service. repo and recorder
// may be nil when persistence or CSV recording is disabled.
func NewTrackingService(
	api marvelmind.VendorAPI,
	repo repository.PositionRepository,
	recorder *TrackRecorder,
	cfg *config.Config,
	logger *zap.Logger,
) *TrackingService {
	return &TrackingService{
		api:      api,
		repo:     repo,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger.With(zap.String("service", "tracking")),
		modemLog: utils.NewModemLogger(logger, cfg.Modem.Simulated),
		state:    model.ModemStateDisconnected,
	}
}

// AddPublisher registers a fix publisher. Must be called before Start.
func (s *TrackingService) AddPublisher(p FixPublisher) {
	s.publishers = append(s.publishers, p)
}

// Start opens the modem port, reads the device list, and launches the
// polling loop. Starting an already-started service is an error, and
// only one Start may hold the port-open attempt at a time: a second
// call fails fast instead of racing the first for the vendor port.
func (s *TrackingService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil || s.starting {
		s.mu.Unlock()
		return fmt.Errorf("tracking already started")
	}
	s.starting = true
	s.state = model.ModemStateConnecting
	s.mu.Unlock()

	// The version query works without an open port; it tells us early
	// whether the vendor library is reachable at all.
	version, err := marvelmind.APIVersion(s.api)
	if err != nil {
		s.fail(err)
		return fmt.Errorf("query api version: %w", err)
	}

	conn, err := marvelmind.Open(ctx, s.api, marvelmind.OpenOptions{
		Timeout:       s.cfg.Modem.OpenTimeout,
		RetryInterval: s.cfg.Modem.RetryInterval,
		Logger:        s.logger,
	})
	if err != nil {
		s.fail(err)
		s.modemLog.LogConnection("open", err)
		return err
	}

	list, err := conn.GetDeviceList()
	if err != nil {
		conn.Close()
		s.fail(err)
		return fmt.Errorf("initial device list: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.starting = false
	s.conn = conn
	s.list = list
	s.state = model.ModemStateConnected
	s.version = version.String()
	s.lastErr = nil
	s.cancel = cancel
	s.mu.Unlock()

	s.modemLog.LogConnection("open", nil)
	s.logger.Info("Tracking started",
		zap.String("api_version", version.String()),
		zap.Int("devices", list.Len()),
		zap.Duration("poll_interval", s.cfg.Tracking.PollInterval))

	s.wg.Add(1)
	go s.pollLoop(loopCtx, conn, list)

	return nil
}

// Stop halts the polling loop and releases the modem port. Safe to call
// on a stopped service.
func (s *TrackingService) Stop() error {
	s.mu.Lock()
	conn := s.conn
	cancel := s.cancel
	s.conn = nil
	s.list = nil
	s.cancel = nil
	s.state = model.ModemStateDisconnected
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	if s.recorder != nil {
		if err := s.recorder.Flush(); err != nil {
			utils.LogError(s.logger, "Track recorder flush failed", err)
		}
	}

	if conn == nil {
		return nil
	}

	err := conn.Close()
	s.modemLog.LogConnection("close", err)
	return err
}

// pollLoop refreshes positions on the configured interval until the
// context is cancelled.
func (s *TrackingService) pollLoop(ctx context.Context, conn *marvelmind.Connection, list *marvelmind.DeviceList) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Tracking.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx, conn, list)
		}
	}
}

func (s *TrackingService) pollOnce(ctx context.Context, conn *marvelmind.Connection, list *marvelmind.DeviceList) {
	start := time.Now()

	updated, err := list.UpdateLastLocations(conn)
	s.modemLog.LogPoll(updated, time.Since(start), err)

	if err != nil {
		// The connection was closed out from under the loop; the next
		// ctx check ends it. Transient read failures just skip a cycle.
		if errors.Is(err, marvelmind.ErrNotConnected) {
			return
		}
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return
	}

	if updated == 0 {
		return
	}

	s.mu.Lock()
	s.lastUpdate = time.Now()
	s.lastErr = nil
	s.mu.Unlock()

	fixes := s.collectFixes(list, start)
	if len(fixes) == 0 {
		return
	}

	s.dispatch(ctx, fixes)
}

// collectFixes snapshots the devices refreshed during this cycle.
func (s *TrackingService) collectFixes(list *marvelmind.DeviceList, cycleStart time.Time) []*model.PositionFix {
	var fixes []*model.PositionFix
	for _, d := range list.Devices() {
		if d.UpdatedAt().Before(cycleStart) {
			continue
		}
		fixes = append(fixes, model.NewPositionFix(d))
	}
	return fixes
}

func (s *TrackingService) dispatch(ctx context.Context, fixes []*model.PositionFix) {
	if s.repo != nil {
		saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.repo.SaveBatch(saveCtx, fixes); err != nil {
			utils.LogError(s.logger, "Failed to persist fixes", err,
				zap.Int("count", len(fixes)))
		}
		cancel()
	}

	for _, p := range s.publishers {
		p.PublishFixes(fixes)
	}

	if s.recorder != nil {
		for _, fix := range fixes {
			if fix.Address != s.recorder.Address() {
				continue
			}
			if err := s.recorder.Record(fix); err != nil {
				utils.LogError(s.logger, "Failed to record track point", err,
					zap.Uint16("address", fix.Address))
			}
		}
	}
}

// fail records a failed start and releases the start reservation.
func (s *TrackingService) fail(err error) {
	s.mu.Lock()
	s.starting = false
	s.state = model.ModemStateError
	s.lastErr = err
	s.mu.Unlock()
}

// Devices returns the API view of every device in the current snapshot.
func (s *TrackingService) Devices() ([]*model.BeaconView, error) {
	s.mu.RLock()
	list := s.list
	s.mu.RUnlock()

	if list == nil {
		return nil, marvelmind.ErrNotConnected
	}

	devices := list.Devices()
	views := make([]*model.BeaconView, 0, len(devices))
	for _, d := range devices {
		views = append(views, model.NewBeaconView(d))
	}
	return views, nil
}

// Device returns the API view of one device by address.
func (s *TrackingService) Device(address uint16) (*model.BeaconView, error) {
	s.mu.RLock()
	list := s.list
	s.mu.RUnlock()

	if list == nil {
		return nil, marvelmind.ErrNotConnected
	}

	d, ok := list.Device(address)
	if !ok {
		return nil, fmt.Errorf("device %d not found", address)
	}
	return model.NewBeaconView(d), nil
}

// History returns persisted fixes for an address inside [from, to).
func (s *TrackingService) History(ctx context.Context, address uint16, from, to time.Time, limit int) ([]*model.PositionFix, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("position history disabled")
	}
	return s.repo.History(ctx, address, from, to, limit)
}

// Latest returns the most recent persisted fix for an address.
func (s *TrackingService) Latest(ctx context.Context, address uint16) (*model.PositionFix, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("position history disabled")
	}
	return s.repo.Latest(ctx, address)
}

// Version returns the vendor library version seen at start, empty
// before the first successful start.
func (s *TrackingService) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Status returns the current connection status.
func (s *TrackingService) Status() *model.ModemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &model.ModemStatus{
		State:      s.state,
		Simulated:  s.cfg.Modem.Simulated,
		APIVersion: s.version,
	}
	if s.list != nil {
		status.DeviceCount = s.list.Len()
	}
	if !s.lastUpdate.IsZero() {
		t := s.lastUpdate
		status.LastUpdate = &t
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	if s.conn != nil {
		status.Stats = s.conn.Stats()
	}
	return status
}

// IsRunning reports whether the polling loop is active.
func (s *TrackingService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}
