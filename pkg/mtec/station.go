package mtec

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

const stationDataPath = "curve/station/getSingleStationDataV2"

type dataNode struct {
	CurrentData     flexFloat `json:"currentData"`
	CurrentDataUnit string    `json:"currentDataUnit"`
	FlowDirection   flexInt   `json:"flowDirection"`
	OtherData       flexFloat `json:"otherData"`
}

func (n dataNode) flow() types.FlowReading {
	return types.FlowReading{
		Reading: types.Reading{
			Value: float64(n.CurrentData),
			Unit:  n.CurrentDataUnit,
		},
		Direction: types.FlowDirection(n.FlowDirection),
	}
}

type stationDataResult struct {
	StationRunStatus flexInt  `json:"stationRunStatus"`
	StationRunType   flexInt  `json:"stationRunType"`
	LackMaster       flexBool `json:"lackMaster"`

	AccumulatedData struct {
		TodayEnergy     flexFloat `json:"todayEnergy"`
		TodayEnergyUnit string    `json:"todayEnergyUnit"`
		// yes, month is misspelled
		MonthEnergy     flexFloat `json:"monthEneregy"`
		MonthEnergyUnit string    `json:"monthEneregyUnit"`
		YearEnergy      flexFloat `json:"yearEnergy"`
		YearEnergyUnit  string    `json:"yearEnergyUnit"`
		TotalEnergy     flexFloat `json:"totalEnergy"`
		TotalEnergyUnit string    `json:"totalEnergyUnit"`
	} `json:"accumulatedData"`

	DataNodeMap struct {
		InputNode   dataNode `json:"inputNode"`
		LoadNode    dataNode `json:"loadNode"`
		BatteryNode dataNode `json:"batteryNode"`
		MeterNode   dataNode `json:"meterNode"`
	} `json:"dataNodeMap"`
}

// QueryStationData returns the current data of a station. Units are passed
// through as reported.
func (c *Client) QueryStationData(ctx context.Context, stationID string) (types.StationData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	params := url.Values{}
	params.Set("id", stationID)

	var res stationDataResult
	if err := c.get(ctx, stationDataPath, params, &res); err != nil {
		return types.StationData{}, fmt.Errorf("retrieving data for station %s: %w", stationID, err)
	}

	name := ""
	if s, ok := c.topology.Station(stationID); ok {
		name = s.Name
	} else {
		log.Ctx(ctx).WarnContext(ctx, "station not in topology", slog.String("stationID", stationID))
	}

	acc := res.AccumulatedData
	nodes := res.DataNodeMap
	data := types.StationData{
		StationID:   stationID,
		StationName: name,
		RunStatus:   int(res.StationRunStatus),
		RunType:     int(res.StationRunType),
		LackMaster:  bool(res.LackMaster),

		TodayEnergy: types.Reading{Value: float64(acc.TodayEnergy), Unit: acc.TodayEnergyUnit},
		MonthEnergy: types.Reading{Value: float64(acc.MonthEnergy), Unit: acc.MonthEnergyUnit},
		YearEnergy:  types.Reading{Value: float64(acc.YearEnergy), Unit: acc.YearEnergyUnit},
		TotalEnergy: types.Reading{Value: float64(acc.TotalEnergy), Unit: acc.TotalEnergyUnit},

		PV:         nodes.InputNode.flow(),
		Load:       nodes.LoadNode.flow(),
		Grid:       nodes.MeterNode.flow(),
		Battery:    nodes.BatteryNode.flow(),
		BatterySOC: float64(nodes.BatteryNode.OtherData),
	}

	log.Ctx(ctx).DebugContext(ctx, "mtec station data",
		slog.String("stationID", stationID),
		slog.Float64("pv", data.PV.Value),
		slog.Float64("grid", data.Grid.Value),
		slog.Float64("battery", data.Battery.Value),
		slog.Float64("load", data.Load.Value),
		slog.Float64("soc", data.BatterySOC),
	)
	return data, nil
}
