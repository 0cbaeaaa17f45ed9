package sink

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/mtecbridge/mtecbridge/pkg/pvdata"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w)
	table.Header(header)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PrintTopology lists every station and its devices.
func PrintTopology(w io.Writer, topo types.Topology) error {
	var rows [][]string
	for _, s := range topo.Stations {
		if len(s.Devices) == 0 {
			rows = append(rows, []string{s.ID, s.Name, "", "", "", ""})
			continue
		}
		for _, d := range s.Devices {
			rows = append(rows, []string{s.ID, s.Name, d.ID, d.Name, d.ModelType, d.SerialNumber})
		}
	}
	return renderTable(w, []string{"Station ID", "Station", "Device ID", "Device", "Model", "Serial"}, rows)
}

// PrintStations lists the stations with their number of devices.
func PrintStations(w io.Writer, topo types.Topology) error {
	rows := make([][]string, 0, len(topo.Stations))
	for _, s := range topo.Stations {
		rows = append(rows, []string{s.ID, s.Name, strconv.Itoa(len(s.Devices))})
	}
	return renderTable(w, []string{"Station ID", "Station", "Devices"}, rows)
}

// PrintStationData prints the station data as reported by the portal.
func PrintStationData(w io.Writer, d types.StationData) error {
	if _, err := fmt.Fprintf(w, "Station %s (%s), run status %d\n", d.StationName, d.StationID, d.RunStatus); err != nil {
		return err
	}
	reading := func(name string, r types.Reading) []string {
		return []string{name, formatFloat(r.Value), r.Unit, ""}
	}
	flow := func(name string, r types.FlowReading) []string {
		return []string{name, formatFloat(r.Value), r.Unit, r.Direction.String()}
	}
	rows := [][]string{
		reading("Today", d.TodayEnergy),
		reading("Month", d.MonthEnergy),
		reading("Year", d.YearEnergy),
		reading("Total", d.TotalEnergy),
		flow("PV", d.PV),
		flow("Grid", d.Grid),
		flow("Battery", d.Battery),
		{"Battery SOC", formatFloat(d.BatterySOC), "%", ""},
		flow("Load", d.Load),
		{"Grid interrupt", strconv.FormatBool(d.LackMaster), "", ""},
	}
	return renderTable(w, []string{"Value", "Current", "Unit", "Direction"}, rows)
}

// PrintDeviceData prints the device data as reported by the portal.
func PrintDeviceData(w io.Writer, d types.DeviceData) error {
	if _, err := fmt.Fprintf(w, "Device %s (%s)\n", d.DeviceName, d.DeviceID); err != nil {
		return err
	}
	reading := func(name string, r types.Reading) []string {
		return []string{name, formatFloat(r.Value), r.Unit}
	}
	rows := [][]string{
		reading("Battery power", d.BatteryPower),
		reading("Battery voltage", d.BatteryVoltage),
		reading("Battery current", d.BatteryCurrent),
		reading("Battery SOC", d.BatterySOC),
	}
	for _, p := range []struct {
		name string
		data types.PhaseData
	}{{"A", d.PhaseA}, {"B", d.PhaseB}, {"C", d.PhaseC}} {
		rows = append(rows,
			reading("Inverter "+p.name+" power", p.data.InverterPower),
			reading("Phase "+p.name+" voltage", p.data.Voltage),
			reading("Phase "+p.name+" current", p.data.Current),
			reading("Meter "+p.name+" power", p.data.MeterPower),
		)
	}
	for _, s := range d.PV {
		rows = append(rows,
			reading(s.Name+" power", s.Power),
			reading(s.Name+" voltage", s.Voltage),
			reading(s.Name+" current", s.Current),
		)
	}
	return renderTable(w, []string{"Value", "Current", "Unit"}, rows)
}

// PrintMetrics prints normalized metrics with their payload representation.
func PrintMetrics(w io.Writer, metrics []types.Metric, floatFormat string) error {
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []string{m.Name, pvdata.Payload(m, floatFormat), m.Unit})
	}
	return renderTable(w, []string{"Metric", "Value", "Unit"}, rows)
}

// Console prints snapshots as tables.
type Console struct {
	mu          sync.Mutex
	w           io.Writer
	floatFormat string
}

var _ Sink = (*Console)(nil)

// NewConsole returns a sink printing to w.
func NewConsole(w io.Writer, floatFormat string) *Console {
	return &Console{w: w, floatFormat: floatFormat}
}

func (c *Console) WriteStation(ctx context.Context, snap types.StationSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, "%s station %s (%s)\n", snap.Timestamp.Format(time.RFC3339), snap.StationName, snap.StationID); err != nil {
		return err
	}
	return PrintMetrics(c.w, snap.Metrics, c.floatFormat)
}

func (c *Console) WriteDevice(ctx context.Context, snap types.DeviceSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, "%s device %s/%s (%s)\n", snap.Timestamp.Format(time.RFC3339), snap.StationName, snap.DeviceName, snap.DeviceID); err != nil {
		return err
	}
	return PrintMetrics(c.w, snap.Metrics, c.floatFormat)
}

func (c *Console) Close() error {
	return nil
}
