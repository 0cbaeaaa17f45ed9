package mtec

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

const (
	overviewPath   = "basePowerStationInfo/getRunningOverview"
	deviceListPath = "managerv2/station/devices/query"
)

type overviewResult struct {
	Top10List []struct {
		StationID   flexString `json:"stationId"`
		StationName string     `json:"stationName"`
	} `json:"top10List"`
}

type deviceListItem struct {
	DeviceID   flexString `json:"deviceId"`
	DeviceName string     `json:"deviceName"`
	DeviceSn   string     `json:"deviceSn"`
	DeviceType flexString `json:"deviceType"`
	ModelType  flexString `json:"modelType"`
}

// LoadTopology logs in if needed and caches all stations and their devices.
// Stations are only cached once; calling it again refreshes device lists.
func (c *Client) LoadTopology(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.queryBaseInfo(ctx); err != nil {
		return err
	}
	for i := range c.topology.Stations {
		devices, err := c.queryDeviceList(ctx, c.topology.Stations[i].ID)
		if err != nil {
			return fmt.Errorf("device list for station %s: %w", c.topology.Stations[i].ID, err)
		}
		c.topology.Stations[i].Devices = devices
	}

	log.Ctx(ctx).InfoContext(ctx, "loaded mtec topology", slog.Int("stations", len(c.topology.Stations)))
	return nil
}

// QueryBaseInfo returns the raw running overview of the account. The station
// list is cached the first time it is seen.
func (c *Client) QueryBaseInfo(ctx context.Context) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryBaseInfo(ctx)
}

func (c *Client) queryBaseInfo(ctx context.Context) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("income", c.income)

	var raw json.RawMessage
	if err := c.get(ctx, overviewPath, params, &raw); err != nil {
		return nil, fmt.Errorf("retrieving base info: %w", err)
	}

	var res overviewResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding base info: %w", err)
	}

	if len(c.topology.Stations) == 0 {
		for _, s := range res.Top10List {
			c.topology.Stations = append(c.topology.Stations, types.Station{
				ID:   string(s.StationID),
				Name: s.StationName,
			})
		}
	}
	return raw, nil
}

func (c *Client) queryDeviceList(ctx context.Context, stationID string) ([]types.Device, error) {
	params := url.Values{}
	params.Set("stationId", stationID)

	var res []deviceListItem
	if err := c.get(ctx, deviceListPath, params, &res); err != nil {
		return nil, err
	}

	devices := make([]types.Device, 0, len(res))
	for _, d := range res {
		devices = append(devices, types.Device{
			ID:           string(d.DeviceID),
			Name:         d.DeviceName,
			SerialNumber: d.DeviceSn,
			DeviceType:   string(d.DeviceType),
			ModelType:    string(d.ModelType),
		})
	}
	log.Ctx(ctx).DebugContext(ctx, "mtec device list", slog.String("stationID", stationID), slog.Int("devices", len(devices)))
	return devices, nil
}

// Topology returns a copy of the cached topology.
func (c *Client) Topology() types.Topology {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topology.Clone()
}

// Stations returns the cached stations in the order the portal listed them.
func (c *Client) Stations() []types.Station {
	return c.Topology().Stations
}

// Devices returns the cached devices of a station.
func (c *Client) Devices(stationID string) []types.Device {
	s, ok := c.Topology().Station(stationID)
	if !ok {
		return nil
	}
	return s.Devices
}

// StationByName looks up a cached station by its name.
func (c *Client) StationByName(name string) (types.Station, error) {
	s, ok := c.Topology().StationByName(name)
	if !ok {
		return types.Station{}, fmt.Errorf("%w: %q", ErrUnknownStation, name)
	}
	return s, nil
}
