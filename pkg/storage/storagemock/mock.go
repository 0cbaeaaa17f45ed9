package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mtecbridge/mtecbridge/pkg/storage"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) InsertStationSnapshot(ctx context.Context, snap types.StationSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockDatabase) InsertDeviceSnapshot(ctx context.Context, snap types.DeviceSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockDatabase) GetStationHistory(ctx context.Context, stationID string, start, end time.Time) ([]types.StationSnapshot, error) {
	args := m.Called(ctx, stationID, start, end)
	snaps, _ := args.Get(0).([]types.StationSnapshot)
	return snaps, args.Error(1)
}

func (m *MockDatabase) GetDeviceHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.DeviceSnapshot, error) {
	args := m.Called(ctx, deviceID, start, end)
	snaps, _ := args.Get(0).([]types.DeviceSnapshot)
	return snaps, args.Error(1)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
