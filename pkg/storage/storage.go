package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mtecbridge/mtecbridge/pkg/types"
)

// ErrDisabled is returned by the none provider for reads.
var ErrDisabled = errors.New("storage disabled")

// Database persists snapshots and reads them back by time range.
type Database interface {
	InsertStationSnapshot(ctx context.Context, snap types.StationSnapshot) error
	InsertDeviceSnapshot(ctx context.Context, snap types.DeviceSnapshot) error

	// GetStationHistory returns the snapshots of a station with
	// start <= timestamp < end, oldest first.
	GetStationHistory(ctx context.Context, stationID string, start, end time.Time) ([]types.StationSnapshot, error)
	// GetDeviceHistory returns the snapshots of a device with
	// start <= timestamp < end, oldest first.
	GetDeviceHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.DeviceSnapshot, error)

	// Lifecycle
	Close() error
}

// None discards all writes. It is used when no storage provider is
// configured.
type None struct{}

var _ Database = None{}

func (None) InsertStationSnapshot(ctx context.Context, snap types.StationSnapshot) error {
	return nil
}

func (None) InsertDeviceSnapshot(ctx context.Context, snap types.DeviceSnapshot) error {
	return nil
}

func (None) GetStationHistory(ctx context.Context, stationID string, start, end time.Time) ([]types.StationSnapshot, error) {
	return nil, ErrDisabled
}

func (None) GetDeviceHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.DeviceSnapshot, error) {
	return nil, ErrDisabled
}

func (None) Close() error {
	return nil
}
