package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/pvdata"
	"github.com/mtecbridge/mtecbridge/pkg/sink"
	"github.com/mtecbridge/mtecbridge/pkg/storage"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

// plant describes the simulated station.
const (
	batteryCapacityKWH = 10.0
	maxBatteryKW       = 5.0
	homeAvgKW          = 0.6
	solarPeakKW        = 8.0
)

func main() {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	}
	if os.Getenv("STORAGE_PROVIDER") == "" {
		os.Setenv("STORAGE_PROVIDER", "firestore")
	}
	db := storage.Configured()
	stationID := lflag.String("seed-station-id", "1001", "Station id of the seeded snapshots")
	stationName := lflag.String("seed-station-name", "Demo", "Station name of the seeded snapshots")
	deviceID := lflag.String("seed-device-id", "2001", "Device id of the seeded snapshots")
	step := lflag.Duration("seed-step", 5*time.Minute, "Interval between seeded snapshots")
	lflag.Configure()

	ctx := context.Background()
	store := sink.NewStore(db)
	defer store.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	now := time.Now()
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	soc := 40.0
	var produced float64 // kWh
	var count int
	for t := start; t.Before(now); t = t.Add(*step) {
		hours := step.Hours()

		// sunrise 6:00, sunset 20:00
		hour := float64(t.Hour()) + float64(t.Minute())/60
		pv := 0.0
		if hour > 6 && hour < 20 {
			pv = solarPeakKW * math.Sin(math.Pi*(hour-6)/14)
			pv *= 0.8 + rng.Float64()*0.2
		}
		load := homeAvgKW + rng.Float64()*0.4
		if hour >= 17 && hour < 21 {
			load += 1.5
		}

		// battery absorbs surplus and covers deficit within its limits
		battery := math.Max(-maxBatteryKW, math.Min(maxBatteryKW, load-pv))
		if battery < 0 && soc >= 100 {
			battery = 0
		}
		if battery > 0 && soc <= 10 {
			battery = 0
		}
		soc = math.Max(0, math.Min(100, soc-battery*hours/batteryCapacityKWH*100))
		grid := load - pv - battery
		produced += pv * hours

		station := types.StationData{
			StationID:   *stationID,
			StationName: *stationName,
			RunStatus:   1,
			TodayEnergy: types.Reading{Value: produced, Unit: "kWh"},
			PV:          flow(pv),
			Load:        types.FlowReading{Reading: types.Reading{Value: load, Unit: "kW"}, Direction: types.FlowObtain},
			Grid:        flow(grid),
			Battery:     flow(battery),
			BatterySOC:  math.Round(soc),
		}
		err := store.WriteStation(ctx, types.StationSnapshot{
			Timestamp:   t,
			StationID:   *stationID,
			StationName: *stationName,
			Metrics:     pvdata.StationMetrics(station),
		})
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed station snapshot", slog.Any("error", err))
			os.Exit(1)
		}

		device := types.DeviceData{
			DeviceID:     *deviceID,
			DeviceName:   "Inverter",
			BatteryPower: types.Reading{Value: battery, Unit: "kW"},
			BatterySOC:   types.Reading{Value: math.Round(soc), Unit: "%"},
			PV: []types.PVString{
				{Name: "PV1", Power: types.Reading{Value: pv / 2, Unit: "kW"}, Voltage: types.Reading{Value: 380, Unit: "V"}},
				{Name: "PV2", Power: types.Reading{Value: pv / 2, Unit: "kW"}, Voltage: types.Reading{Value: 375, Unit: "V"}},
			},
		}
		err = store.WriteDevice(ctx, types.DeviceSnapshot{
			Timestamp:   t,
			StationID:   *stationID,
			StationName: *stationName,
			DeviceID:    *deviceID,
			DeviceName:  device.DeviceName,
			Metrics:     pvdata.DeviceMetrics(device),
		})
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed device snapshot", slog.Any("error", err))
			os.Exit(1)
		}
		count++
	}

	log.Ctx(ctx).InfoContext(ctx, "seeding complete", slog.Int("snapshots", count))
	fmt.Printf("seeded %d snapshots for station %s\n", count, *stationID)
}

// flow turns a signed power into an absolute reading with a direction, the
// way the portal reports it. Positive values are drawn, negative fed in.
func flow(kw float64) types.FlowReading {
	dir := types.FlowObtain
	switch {
	case kw < 0:
		dir = types.FlowFeedIn
		kw = -kw
	case kw == 0:
		dir = types.FlowNone
	}
	return types.FlowReading{Reading: types.Reading{Value: kw, Unit: "kW"}, Direction: dir}
}
