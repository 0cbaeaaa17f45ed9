// Package pvdata flattens station and device data into named metrics with
// normalized units: power in W and energy in kWh.
package pvdata

import "github.com/mtecbridge/mtecbridge/pkg/types"

type conversion struct {
	unit    string
	factor  float64
	divisor float64
}

var conversions = map[string]conversion{
	"kW":  {unit: "W", factor: 1e3},
	"MW":  {unit: "W", factor: 1e6},
	"GW":  {unit: "W", factor: 1e9},
	"Wh":  {unit: "kWh", divisor: 1e3},
	"MWh": {unit: "kWh", factor: 1e3},
	"GWh": {unit: "kWh", factor: 1e6},
}

// Normalize converts power readings to W and energy readings to kWh. Any
// other unit is returned unchanged.
func Normalize(r types.Reading) types.Reading {
	c, ok := conversions[r.Unit]
	if !ok {
		return r
	}
	if c.divisor != 0 {
		return types.Reading{Value: r.Value / c.divisor, Unit: c.unit}
	}
	return types.Reading{Value: r.Value * c.factor, Unit: c.unit}
}
