// internal/service/track_recorder.go
package service

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"marvelmind-service/internal/model"
)

// TrackRecorder appends one device's position fixes to a
// semicolon-separated CSV file, one line per fix:
//
//	address;x_mm;y_mm;z_mm;q;recorded_at
type TrackRecorder struct {
	address uint16
	path    string
	logger  *zap.Logger

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewTrackRecorder opens (or creates) the track file for appending.
func NewTrackRecorder(address uint16, path string, logger *zap.Logger) (*TrackRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create track directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open track file: %w", err)
	}

	writer := csv.NewWriter(file)
	writer.Comma = ';'

	logger.Info("Track recorder started",
		zap.Uint16("address", address),
		zap.String("path", path))

	return &TrackRecorder{
		address: address,
		path:    path,
		logger:  logger,
		file:    file,
		writer:  writer,
	}, nil
}

// Address returns the device address this recorder tracks.
func (r *TrackRecorder) Address() uint16 {
	return r.address
}

// Record appends one fix to the track file.
func (r *TrackRecorder) Record(fix *model.PositionFix) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return fmt.Errorf("track recorder closed")
	}

	record := []string{
		strconv.FormatUint(uint64(fix.Address), 10),
		strconv.FormatInt(int64(fix.X), 10),
		strconv.FormatInt(int64(fix.Y), 10),
		strconv.FormatInt(int64(fix.Z), 10),
		strconv.FormatUint(uint64(fix.Q), 10),
		fix.RecordedAt.Format(time.RFC3339Nano),
	}
	if err := r.writer.Write(record); err != nil {
		return fmt.Errorf("write track point: %w", err)
	}
	return nil
}

// Flush pushes buffered points to disk.
func (r *TrackRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return nil
	}
	r.writer.Flush()
	return r.writer.Error()
}

// Close flushes and closes the track file. Idempotent.
func (r *TrackRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return nil
	}
	r.writer.Flush()
	err := r.writer.Error()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.writer = nil
	r.file = nil
	return err
}
