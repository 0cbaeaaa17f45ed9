// Package poller periodically reads every station and device of the account
// and writes normalized snapshots to a sink.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/mtec"
	"github.com/mtecbridge/mtecbridge/pkg/pvdata"
	"github.com/mtecbridge/mtecbridge/pkg/sink"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

// DefaultFrequency is the poll interval used when none is configured.
const DefaultFrequency = time.Minute

// Poller reads the portal on a fixed interval.
type Poller struct {
	api  mtec.API
	sink sink.Sink

	frequency        time.Duration
	writeStationData bool
	writeDeviceData  bool

	now func() time.Time
}

// New returns a Poller writing station and device data every frequency.
func New(api mtec.API, s sink.Sink, frequency time.Duration) *Poller {
	if frequency <= 0 {
		frequency = DefaultFrequency
	}
	return &Poller{
		api:              api,
		sink:             s,
		frequency:        frequency,
		writeStationData: true,
		writeDeviceData:  true,
		now:              time.Now,
	}
}

// Configured registers the polling flags.
func Configured(api mtec.API, s sink.Sink) *Poller {
	frequency := lflag.Duration("poll-frequency", DefaultFrequency, "How often the portal is polled")
	writeStation := lflag.Bool("write-station-data", true, "Write station metrics")
	writeDevice := lflag.Bool("write-device-data", true, "Write device metrics")

	p := New(api, s, DefaultFrequency)
	lflag.Do(func() {
		if *frequency > 0 {
			p.frequency = *frequency
		}
		p.writeStationData = *writeStation
		p.writeDeviceData = *writeDevice
	})
	return p
}

// PollOnce reads all stations and devices of the cached topology and writes
// their snapshots. A failing station or device doesn't stop the others, all
// errors are joined.
func (p *Poller) PollOnce(ctx context.Context) error {
	ts := p.now().Truncate(time.Second)
	topo := p.api.Topology()

	var errs []error
	for _, station := range topo.Stations {
		if p.writeStationData {
			if err := p.pollStation(ctx, ts, station); err != nil {
				errs = append(errs, err)
			}
		}
		if !p.writeDeviceData {
			continue
		}
		for _, device := range station.Devices {
			if err := p.pollDevice(ctx, ts, station, device); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (p *Poller) pollStation(ctx context.Context, ts time.Time, station types.Station) error {
	data, err := p.api.QueryStationData(ctx, station.ID)
	if err != nil {
		return fmt.Errorf("station %s: %w", station.ID, err)
	}
	snap := types.StationSnapshot{
		Timestamp:   ts,
		StationID:   station.ID,
		StationName: station.Name,
		Metrics:     pvdata.StationMetrics(data),
	}
	log.Ctx(ctx).DebugContext(ctx, "writing station snapshot", slog.String("stationID", station.ID), slog.String("station", station.Name))
	if err := p.sink.WriteStation(ctx, snap); err != nil {
		return fmt.Errorf("station %s: %w", station.ID, err)
	}
	return nil
}

func (p *Poller) pollDevice(ctx context.Context, ts time.Time, station types.Station, device types.Device) error {
	data, err := p.api.QueryDeviceData(ctx, device.ID)
	if err != nil {
		return fmt.Errorf("device %s: %w", device.ID, err)
	}
	snap := types.DeviceSnapshot{
		Timestamp:   ts,
		StationID:   station.ID,
		StationName: station.Name,
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		Metrics:     pvdata.DeviceMetrics(data),
	}
	log.Ctx(ctx).DebugContext(ctx, "writing device snapshot", slog.String("deviceID", device.ID), slog.String("device", device.Name))
	if err := p.sink.WriteDevice(ctx, snap); err != nil {
		return fmt.Errorf("device %s: %w", device.ID, err)
	}
	return nil
}

// Run polls immediately and then every frequency until ctx is done. Poll
// errors are logged and don't stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	log.Ctx(ctx).InfoContext(ctx, "starting poller", slog.Duration("frequency", p.frequency))

	ticker := time.NewTicker(p.frequency)
	defer ticker.Stop()

	for {
		if err := p.PollOnce(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "poll failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			log.Ctx(ctx).InfoContext(ctx, "stopping poller")
			return nil
		case <-ticker.C:
		}
	}
}
