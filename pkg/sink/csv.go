package sink

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/mtecbridge/mtecbridge/pkg/types"
)

var (
	dayHeader    = []string{"timestamp", "load", "grid", "PV", "battery", "SOC"}
	periodHeader = []string{"date", "load", "pv_production", "battery_load", "battery_feed", "grid_load", "grid_feed"}
)

// UsageWriter writes usage data as ';' separated lines. The header matching
// the period of the first written usage is written once.
type UsageWriter struct {
	w             *csv.Writer
	decimal       string
	headerWritten bool
}

// NewUsageWriter returns a UsageWriter. decimalSeparator replaces the '.' in
// numbers, an empty separator keeps '.'.
func NewUsageWriter(w io.Writer, decimalSeparator string) *UsageWriter {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return &UsageWriter{w: cw, decimal: decimalSeparator}
}

func (u *UsageWriter) number(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if u.decimal != "" && u.decimal != "." {
		s = strings.Replace(s, ".", u.decimal, 1)
	}
	return s
}

// WriteHeader writes the header for period unless a header was already
// written.
func (u *UsageWriter) WriteHeader(period types.UsagePeriod) error {
	if u.headerWritten {
		return nil
	}
	header := periodHeader
	if period == types.UsageDay {
		header = dayHeader
	}
	if err := u.w.Write(header); err != nil {
		return err
	}
	u.headerWritten = true
	return nil
}

// Write appends the samples or summaries of usage.
func (u *UsageWriter) Write(usage types.Usage) error {
	if err := u.WriteHeader(usage.Period); err != nil {
		return err
	}
	for _, s := range usage.Samples {
		if err := u.w.Write([]string{
			s.Timestamp,
			u.number(s.Load),
			u.number(s.Grid),
			u.number(s.PV),
			u.number(s.Battery),
			u.number(s.SOC),
		}); err != nil {
			return err
		}
	}
	for _, s := range usage.Summaries {
		if err := u.w.Write([]string{
			s.Date,
			u.number(s.Load),
			u.number(s.PVProduction),
			u.number(s.BatteryCharge),
			u.number(s.BatteryDischarge),
			u.number(s.GridImport),
			u.number(s.GridExport),
		}); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any buffered lines.
func (u *UsageWriter) Flush() error {
	u.w.Flush()
	return u.w.Error()
}
