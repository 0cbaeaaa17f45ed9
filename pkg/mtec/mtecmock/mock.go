package mtecmock

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mtecbridge/mtecbridge/pkg/mtec"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

type MockAPI struct {
	mock.Mock
}

var _ mtec.API = (*MockAPI)(nil)

func (m *MockAPI) Login(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAPI) LoadTopology(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAPI) QueryBaseInfo(ctx context.Context) (json.RawMessage, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(json.RawMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAPI) Topology() types.Topology {
	args := m.Called()
	return args.Get(0).(types.Topology)
}

func (m *MockAPI) QueryStationData(ctx context.Context, stationID string) (types.StationData, error) {
	args := m.Called(ctx, stationID)
	return args.Get(0).(types.StationData), args.Error(1)
}

func (m *MockAPI) QueryDeviceData(ctx context.Context, deviceID string) (types.DeviceData, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).(types.DeviceData), args.Error(1)
}

func (m *MockAPI) QueryUsageData(ctx context.Context, stationID string, period types.UsagePeriod, date time.Time) (types.Usage, error) {
	args := m.Called(ctx, stationID, period, date)
	return args.Get(0).(types.Usage), args.Error(1)
}
