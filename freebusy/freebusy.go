// Package freebusy rolls calendar events up into busy periods for a
// query window, the aggregation that feeds free/busy replies.
package freebusy

import (
	"log/slog"
	"slices"
	"time"

	"github.com/kalends/librecur/recurrence"
)

// Event is the minimal slice of an incidence the aggregation needs.
type Event struct {
	Start  time.Time
	End    time.Time
	AllDay bool
	// Transparent events do not block time and never appear in the
	// busy list.
	Transparent bool
	// Recurrence is nil for single-shot events.
	Recurrence *recurrence.Recurrence
}

// Period is a busy span [Start, End]; window overlap and merging treat
// both ends as inclusive.
type Period struct {
	Start time.Time
	End   time.Time
}

// Builder aggregates events into busy periods.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a builder logging through logger; nil uses the
// default logger.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// BusyPeriods returns the merged busy periods of events overlapping
// [windowStart, windowEnd], sorted ascending.
func (b *Builder) BusyPeriods(events []Event, windowStart, windowEnd time.Time) []Period {
	var periods []Period
	for _, ev := range events {
		if ev.Transparent {
			continue
		}
		// All-day events block their full days; widening the span here
		// works for single, multi-day and recurring all-day events alike.
		if ev.AllDay {
			y, m, d := ev.Start.Date()
			ev.Start = time.Date(y, m, d, 0, 0, 0, 0, ev.Start.Location())
			y, m, d = ev.End.Date()
			ev.End = time.Date(y, m, d, 23, 59, 59, 0, ev.End.Location())
		}
		duration := ev.End.Sub(ev.Start)

		if ev.Recurrence == nil || !ev.Recurrence.Recurs() {
			periods = b.addPeriod(periods, ev.Start, ev.End, windowStart, windowEnd)
			continue
		}

		// A multi-day occurrence may begin before the window and still
		// reach into it, so expansion starts one duration early.
		//
		// TODO: an occurrence whose start time differs from the event's
		// (sub-daily recurrence, or a rule shifting the wall-clock time)
		// still blocks the original duration from the occurrence start;
		// derive the span from the matching occurrence instead.
		lo := windowStart.Add(-duration)
		occurrences := ev.Recurrence.TimesInInterval(lo, windowEnd)
		if len(occurrences) == 0 {
			b.logger.Debug("recurring event has no occurrences in window",
				"start", ev.Start, "window_start", windowStart, "window_end", windowEnd)
			continue
		}
		for _, occ := range occurrences {
			periods = b.addPeriod(periods, occ, occ.Add(duration), windowStart, windowEnd)
		}
	}
	return mergePeriods(periods)
}

// addPeriod appends [start, end] if it overlaps the window.
func (b *Builder) addPeriod(periods []Period, start, end, windowStart, windowEnd time.Time) []Period {
	if start.After(windowEnd) || end.Before(windowStart) {
		return periods
	}
	return append(periods, Period{Start: start, End: end})
}

// mergePeriods sorts periods and coalesces overlapping or touching
// spans.
func mergePeriods(periods []Period) []Period {
	if len(periods) == 0 {
		return nil
	}
	slices.SortFunc(periods, func(a, b Period) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})
	merged := periods[:1]
	for _, p := range periods[1:] {
		last := &merged[len(merged)-1]
		if !p.Start.After(last.End) {
			if p.End.After(last.End) {
				last.End = p.End
			}
			continue
		}
		merged = append(merged, p)
	}
	return merged
}
