package types

import "time"

// FlowDirection is the vendor's energy flow indicator for a data node.
type FlowDirection int

const (
	FlowNone   FlowDirection = 0
	FlowObtain FlowDirection = 1
	FlowFeedIn FlowDirection = 2
)

// String returns the label the portal shows for the direction.
func (d FlowDirection) String() string {
	switch d {
	case FlowNone:
		return "-"
	case FlowObtain:
		return "obtain"
	case FlowFeedIn:
		return "feed in"
	default:
		return "unknown"
	}
}

// Reading is a value with the unit the vendor reported it in.
type Reading struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// FlowReading is a power reading of a data node together with its flow
// direction.
type FlowReading struct {
	Reading
	Direction FlowDirection `json:"direction"`
}

// StationData is the current state of a station.
type StationData struct {
	StationID   string `json:"stationId"`
	StationName string `json:"stationName"`

	// RunStatus and RunType are passed through as reported; 1 appears to be
	// normal operation.
	RunStatus int `json:"runStatus"`
	RunType   int `json:"runType"`
	// LackMaster is set when the grid is not available.
	LackMaster bool `json:"lackMaster"`

	TodayEnergy Reading `json:"todayEnergy"`
	MonthEnergy Reading `json:"monthEnergy"`
	YearEnergy  Reading `json:"yearEnergy"`
	TotalEnergy Reading `json:"totalEnergy"`

	PV         FlowReading `json:"pv"`
	Load       FlowReading `json:"load"`
	Grid       FlowReading `json:"grid"`
	Battery    FlowReading `json:"battery"`
	BatterySOC float64     `json:"batterySOC"`
}

// PhaseData holds the readings of one AC phase.
type PhaseData struct {
	InverterPower Reading `json:"inverterPower"`
	Voltage       Reading `json:"voltage"`
	Current       Reading `json:"current"`
	MeterPower    Reading `json:"meterPower"`
}

// PVString holds the readings of one PV input string.
type PVString struct {
	Name    string  `json:"name"`
	Power   Reading `json:"power"`
	Voltage Reading `json:"voltage"`
	Current Reading `json:"current"`
}

// DeviceData is the current state of a single device.
type DeviceData struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`

	BatteryPower   Reading `json:"batteryPower"`
	BatteryVoltage Reading `json:"batteryVoltage"`
	BatteryCurrent Reading `json:"batteryCurrent"`
	BatterySOC     Reading `json:"batterySOC"`

	PhaseA PhaseData `json:"phaseA"`
	PhaseB PhaseData `json:"phaseB"`
	PhaseC PhaseData `json:"phaseC"`

	PV []PVString `json:"pv"`
}

// UsagePeriod selects the granularity of historical usage data.
type UsagePeriod string

const (
	UsageDay      UsagePeriod = "day"
	UsageMonth    UsagePeriod = "month"
	UsageYear     UsagePeriod = "year"
	UsageLifetime UsagePeriod = "lifetime"
)

// Valid reports whether p is a known period.
func (p UsagePeriod) Valid() bool {
	switch p {
	case UsageDay, UsageMonth, UsageYear, UsageLifetime:
		return true
	}
	return false
}

// PowerSample is one point of the intraday power curve.
type PowerSample struct {
	Timestamp string  `json:"ts"`
	Load      float64 `json:"load"`
	Grid      float64 `json:"grid"`
	PV        float64 `json:"pv"`
	Battery   float64 `json:"battery"`
	SOC       float64 `json:"soc"`
}

// EnergySummary is the energy balance of one month/year/lifetime bucket.
type EnergySummary struct {
	Date             string  `json:"date"`
	Load             float64 `json:"load"`
	PVProduction     float64 `json:"pvProduction"`
	BatteryCharge    float64 `json:"batteryCharge"`
	BatteryDischarge float64 `json:"batteryDischarge"`
	GridImport       float64 `json:"gridImport"`
	GridExport       float64 `json:"gridExport"`
}

// Usage is the result of a usage query. Day queries fill Samples, every
// other period fills Summaries.
type Usage struct {
	Period    UsagePeriod     `json:"period"`
	Date      time.Time       `json:"date"`
	Samples   []PowerSample   `json:"samples,omitempty"`
	Summaries []EnergySummary `json:"summaries,omitempty"`
}
