package mtec

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mtecbridge/mtecbridge/pkg/types"
)

// API is the set of portal operations the rest of the module depends on.
type API interface {
	// Login drops the current token and logs in again.
	Login(ctx context.Context) error

	// LoadTopology fetches and caches stations and devices.
	LoadTopology(ctx context.Context) error

	// QueryBaseInfo returns the raw account overview.
	QueryBaseInfo(ctx context.Context) (json.RawMessage, error)

	// Topology returns a copy of the cached topology.
	Topology() types.Topology

	QueryStationData(ctx context.Context, stationID string) (types.StationData, error)
	QueryDeviceData(ctx context.Context, deviceID string) (types.DeviceData, error)
	QueryUsageData(ctx context.Context, stationID string, period types.UsagePeriod, date time.Time) (types.Usage, error)
}

var _ API = (*Client)(nil)
