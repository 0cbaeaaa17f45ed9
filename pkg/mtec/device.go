package mtec

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

const deviceDataPath = "device/getDeviceDataV3"

type deviceDataResult struct {
	Battery struct {
		Power   vendorValue `json:"Battery_P"`
		Voltage vendorValue `json:"Battery_V"`
		Current vendorValue `json:"Battery_I"`
		SOC     vendorValue `json:"SOC"`
	} `json:"battery"`

	Grid struct {
		InverterAPower vendorValue `json:"Invt_A_P"`
		InverterBPower vendorValue `json:"Invt_B_P"`
		InverterCPower vendorValue `json:"Invt_C_P"`
		VoltageA       vendorValue `json:"Vgrid_PhaseA"`
		VoltageB       vendorValue `json:"Vgrid_PhaseB"`
		VoltageC       vendorValue `json:"Vgrid_PhaseC"`
		CurrentA       vendorValue `json:"Igrid_PhaseA"`
		CurrentB       vendorValue `json:"Igrid_PhaseB"`
		CurrentC       vendorValue `json:"Igrid_PhaseC"`
		MeterAPower    vendorValue `json:"PmeterPhaseA"`
		MeterBPower    vendorValue `json:"PmeterPhaseB"`
		MeterCPower    vendorValue `json:"PmeterPhaseC"`
	} `json:"grid"`

	PV []struct {
		Name struct {
			Value flexString `json:"value"`
		} `json:"name"`
		Power   vendorValue `json:"power"`
		Voltage vendorValue `json:"voltage"`
		Current vendorValue `json:"current"`
	} `json:"PV"`
}

func reading(v vendorValue) types.Reading {
	return types.Reading{Value: float64(v.Value), Unit: v.Unit}
}

// QueryDeviceData returns the current data of a single device.
func (c *Client) QueryDeviceData(ctx context.Context, deviceID string) (types.DeviceData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	params := url.Values{}
	params.Set("id", deviceID)

	var res deviceDataResult
	if err := c.get(ctx, deviceDataPath, params, &res); err != nil {
		return types.DeviceData{}, fmt.Errorf("retrieving data for device %s: %w", deviceID, err)
	}

	name := ""
	if _, d, ok := c.topology.Device(deviceID); ok {
		name = d.Name
	} else {
		log.Ctx(ctx).WarnContext(ctx, "device not in topology", slog.String("deviceID", deviceID))
	}

	g := res.Grid
	data := types.DeviceData{
		DeviceID:   deviceID,
		DeviceName: name,

		BatteryPower:   reading(res.Battery.Power),
		BatteryVoltage: reading(res.Battery.Voltage),
		BatteryCurrent: reading(res.Battery.Current),
		BatterySOC:     reading(res.Battery.SOC),

		PhaseA: types.PhaseData{
			InverterPower: reading(g.InverterAPower),
			Voltage:       reading(g.VoltageA),
			Current:       reading(g.CurrentA),
			MeterPower:    reading(g.MeterAPower),
		},
		PhaseB: types.PhaseData{
			InverterPower: reading(g.InverterBPower),
			Voltage:       reading(g.VoltageB),
			Current:       reading(g.CurrentB),
			MeterPower:    reading(g.MeterBPower),
		},
		PhaseC: types.PhaseData{
			InverterPower: reading(g.InverterCPower),
			Voltage:       reading(g.VoltageC),
			Current:       reading(g.CurrentC),
			MeterPower:    reading(g.MeterCPower),
		},
	}
	for _, s := range res.PV {
		data.PV = append(data.PV, types.PVString{
			Name:    string(s.Name.Value),
			Power:   reading(s.Power),
			Voltage: reading(s.Voltage),
			Current: reading(s.Current),
		})
	}

	log.Ctx(ctx).DebugContext(ctx, "mtec device data",
		slog.String("deviceID", deviceID),
		slog.Float64("batteryPower", data.BatteryPower.Value),
		slog.Int("pvStrings", len(data.PV)),
	)
	return data, nil
}
