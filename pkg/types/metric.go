package types

import "time"

// Metric is a single normalized value ready for publishing. Value holds a
// float64, bool, int or string.
type Metric struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// StationSnapshot is the set of metrics read for a station at one point in
// time.
type StationSnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	StationID   string    `json:"stationId"`
	StationName string    `json:"stationName"`
	Metrics     []Metric  `json:"metrics"`
}

// DeviceSnapshot is the set of metrics read for a device at one point in
// time.
type DeviceSnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	StationID   string    `json:"stationId"`
	StationName string    `json:"stationName"`
	DeviceID    string    `json:"deviceId"`
	DeviceName  string    `json:"deviceName"`
	Metrics     []Metric  `json:"metrics"`
}

// Metric returns the metric with the given name.
func (s StationSnapshot) Metric(name string) (Metric, bool) {
	return findMetric(s.Metrics, name)
}

// Metric returns the metric with the given name.
func (s DeviceSnapshot) Metric(name string) (Metric, bool) {
	return findMetric(s.Metrics, name)
}

func findMetric(ms []Metric, name string) (Metric, bool) {
	for _, m := range ms {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}
