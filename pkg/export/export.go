// Package export writes the historical usage of a station as CSV.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/mtec"
	"github.com/mtecbridge/mtecbridge/pkg/sink"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

// ParseDate parses a start date in YYYY-MM-DD form in the local timezone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format %q, expecting YYYY-MM-DD", s)
	}
	return t, nil
}

// next returns the date of the query following date, or false if period is
// covered by a single query. Month and year steps start at the first day of
// the following month or year, so short months are never skipped.
func next(period types.UsagePeriod, date time.Time) (time.Time, bool) {
	y, m, d := date.Date()
	switch period {
	case types.UsageDay:
		return time.Date(y, m, d+1, 0, 0, 0, 0, date.Location()), true
	case types.UsageMonth:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, date.Location()), true
	case types.UsageYear:
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, date.Location()), true
	}
	return time.Time{}, false
}

// Options select what is exported.
type Options struct {
	StationID string
	Period    types.UsagePeriod
	From      time.Time
	// Until stops the export, the zero value means now.
	Until time.Time
}

// Usage queries the usage of a station from opts.From up to opts.Until and
// writes it to w. The header is written even when nothing was returned.
func Usage(ctx context.Context, api mtec.API, w *sink.UsageWriter, opts Options) error {
	if !opts.Period.Valid() {
		return fmt.Errorf("invalid usage period: %q", opts.Period)
	}
	until := opts.Until
	if until.IsZero() {
		until = time.Now()
	}
	if err := w.WriteHeader(opts.Period); err != nil {
		return err
	}

	var queries int
	for date := opts.From; !date.After(until); {
		if err := ctx.Err(); err != nil {
			return err
		}
		usage, err := api.QueryUsageData(ctx, opts.StationID, opts.Period, date)
		if err != nil {
			return fmt.Errorf("exporting %s usage for %s: %w", opts.Period, date.Format(time.DateOnly), err)
		}
		if err := w.Write(usage); err != nil {
			return err
		}
		queries++

		var ok bool
		if date, ok = next(opts.Period, date); !ok {
			break
		}
	}

	log.Ctx(ctx).DebugContext(ctx, "exported usage",
		slog.String("stationID", opts.StationID),
		slog.String("period", string(opts.Period)),
		slog.Int("queries", queries),
	)
	return w.Flush()
}
