package pvdata

import (
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

// Station metric names.
const (
	DayProduction     = "day_production"
	MonthProduction   = "month_production"
	YearProduction    = "year_production"
	TotalProduction   = "total_production"
	CurrentPV         = "current_PV"
	CurrentGrid       = "current_grid"
	CurrentBattery    = "current_battery"
	CurrentBatterySOC = "current_battery_SOC"
	CurrentLoad       = "current_load"
	GridInterrupt     = "grid_interrupt"
)

func metric(name string, r types.Reading) types.Metric {
	r = Normalize(r)
	return types.Metric{Name: name, Value: r.Value, Unit: r.Unit}
}

func raw(name string, r types.Reading) types.Metric {
	return types.Metric{Name: name, Value: r.Value, Unit: r.Unit}
}

// signed negates the normalized reading when energy is fed in, so grid export
// and battery charging show up as negative values.
func signed(name string, r types.FlowReading) types.Metric {
	m := metric(name, r.Reading)
	if r.Direction == types.FlowFeedIn {
		if v := m.Value.(float64); v != 0 {
			m.Value = -v
		}
	}
	return m
}

// StationMetrics returns the metrics of a station in publishing order.
func StationMetrics(d types.StationData) []types.Metric {
	return []types.Metric{
		metric(DayProduction, d.TodayEnergy),
		metric(MonthProduction, d.MonthEnergy),
		metric(YearProduction, d.YearEnergy),
		metric(TotalProduction, d.TotalEnergy),
		metric(CurrentPV, d.PV.Reading),
		signed(CurrentGrid, d.Grid),
		signed(CurrentBattery, d.Battery),
		{Name: CurrentBatterySOC, Value: d.BatterySOC, Unit: "%"},
		metric(CurrentLoad, d.Load.Reading),
		{Name: GridInterrupt, Value: d.LackMaster},
	}
}

// DeviceMetrics returns the metrics of a device in publishing order. Power
// readings are normalized, voltages, currents and SOC are passed through.
func DeviceMetrics(d types.DeviceData) []types.Metric {
	ms := []types.Metric{
		metric("battery_P", d.BatteryPower),
		raw("battery_V", d.BatteryVoltage),
		raw("battery_I", d.BatteryCurrent),
		raw("battery_SOC", d.BatterySOC),
	}
	phases := []struct {
		name string
		data types.PhaseData
	}{
		{"A", d.PhaseA},
		{"B", d.PhaseB},
		{"C", d.PhaseC},
	}
	for _, p := range phases {
		ms = append(ms,
			metric("inverter_"+p.name+"_P", p.data.InverterPower),
			raw("inverter_"+p.name+"_V", p.data.Voltage),
			raw("inverter_"+p.name+"_I", p.data.Current),
		)
	}
	for _, p := range phases {
		ms = append(ms, metric("grid_"+p.name+"_P", p.data.MeterPower))
	}
	for _, s := range d.PV {
		ms = append(ms,
			metric("PV_"+s.Name+"_P", s.Power),
			raw("PV_"+s.Name+"_V", s.Voltage),
			raw("PV_"+s.Name+"_I", s.Current),
		)
	}
	return ms
}
