// Package timerange resolves the query window for an extraction run, either
// from a days-back offset or from an explicit start/end pair.
package timerange

import (
	"fmt"
	"time"
)

const (
	// BasicLayout is the compact ISO-8601 form accepted on the command line
	// and used in report file names, e.g. 20240312T223226Z.
	BasicLayout = "20060102T150405Z"

	// ESLayout is the millisecond timestamp form Elasticsearch expects in
	// range filters, e.g. 2024-03-12T22:32:26.383Z.
	ESLayout = "2006-01-02T15:04:05.000Z"
)

// Window is the resolved query window. DaysBack is non-zero only when the
// window came from a days-back offset, which also selects the report naming
// scheme.
type Window struct {
	Start    time.Time
	End      time.Time
	DaysBack int
}

// FromDaysBack reports whether the window was derived from a days-back offset
// rather than an explicit range.
func (w Window) FromDaysBack() bool { return w.DaysBack > 0 }

// DurationDays is the sampled duration in fractional days.
func (w Window) DurationDays() float64 {
	return w.End.Sub(w.Start).Hours() / 24
}

// Resolve builds the query window. Exactly one of daysBack or the
// timeStart/timeEnd pair must be supplied. The days-back end point is now
// truncated to whole seconds so that both resolution paths carry the same
// precision.
func Resolve(daysBack int, timeStart, timeEnd string, now time.Time) (Window, error) {
	hasRange := timeStart != "" || timeEnd != ""

	switch {
	case daysBack < 0:
		return Window{}, fmt.Errorf("days_back must be a positive integer, got %d", daysBack)
	case daysBack > 0 && hasRange:
		return Window{}, fmt.Errorf("days_back and time_start/time_end are mutually exclusive")
	case daysBack > 0:
		end := now.UTC().Truncate(time.Second)
		return Window{
			Start:    end.AddDate(0, 0, -daysBack),
			End:      end,
			DaysBack: daysBack,
		}, nil
	case timeStart == "" || timeEnd == "":
		return Window{}, fmt.Errorf("either days_back or both time_start and time_end must be provided")
	}

	start, err := parseTimestamp(timeStart)
	if err != nil {
		return Window{}, fmt.Errorf("parse time_start: %w", err)
	}
	end, err := parseTimestamp(timeEnd)
	if err != nil {
		return Window{}, fmt.Errorf("parse time_end: %w", err)
	}
	if !end.After(start) {
		return Window{}, fmt.Errorf("time_end %s is not after time_start %s", timeEnd, timeStart)
	}
	return Window{Start: start, End: end}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(BasicLayout, s)
	if err == nil {
		return t.UTC(), nil
	}
	// Tolerate the long Elasticsearch form as well.
	if t, esErr := time.Parse(ESLayout, s); esErr == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("timestamp %q does not match %s: %w", s, BasicLayout, err)
}
