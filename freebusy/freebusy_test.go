package freebusy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalends/librecur/recurrence"
)

func dt(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func dailyRecurrence(t *testing.T, start time.Time, count int) *recurrence.Recurrence {
	t.Helper()
	rec := recurrence.New()
	rec.SetStartDateTime(start)
	rule, err := recurrence.NewRule(recurrence.PeriodDaily, 1, start)
	require.NoError(t, err)
	require.NoError(t, rule.SetTermination(recurrence.EndAfter(count)))
	rec.AddRRule(rule)
	return rec
}

func TestBusyPeriodsSingleEvent(t *testing.T) {
	b := NewBuilder(nil)
	events := []Event{
		{Start: dt(2022, time.March, 2, 10, 0), End: dt(2022, time.March, 2, 11, 0)},
	}
	got := b.BusyPeriods(events, dt(2022, time.March, 1, 0, 0), dt(2022, time.March, 5, 0, 0))
	assert.Equal(t, []Period{
		{Start: dt(2022, time.March, 2, 10, 0), End: dt(2022, time.March, 2, 11, 0)},
	}, got)

	// Outside the window nothing is busy.
	got = b.BusyPeriods(events, dt(2022, time.April, 1, 0, 0), dt(2022, time.April, 5, 0, 0))
	assert.Empty(t, got)
}

func TestBusyPeriodsTransparentSkipped(t *testing.T) {
	b := NewBuilder(nil)
	events := []Event{
		{
			Start:       dt(2022, time.March, 2, 10, 0),
			End:         dt(2022, time.March, 2, 11, 0),
			Transparent: true,
		},
	}
	got := b.BusyPeriods(events, dt(2022, time.March, 1, 0, 0), dt(2022, time.March, 5, 0, 0))
	assert.Empty(t, got)
}

func TestBusyPeriodsRecurringMerged(t *testing.T) {
	b := NewBuilder(nil)
	start := dt(2022, time.March, 1, 10, 0)
	events := []Event{
		{
			Start:      start,
			End:        start.Add(time.Hour),
			Recurrence: dailyRecurrence(t, start, 3),
		},
		// Overlaps the second occurrence.
		{Start: dt(2022, time.March, 2, 10, 30), End: dt(2022, time.March, 2, 12, 0)},
	}
	got := b.BusyPeriods(events, dt(2022, time.March, 1, 0, 0), dt(2022, time.March, 5, 0, 0))
	want := []Period{
		{Start: dt(2022, time.March, 1, 10, 0), End: dt(2022, time.March, 1, 11, 0)},
		{Start: dt(2022, time.March, 2, 10, 0), End: dt(2022, time.March, 2, 12, 0)},
		{Start: dt(2022, time.March, 3, 10, 0), End: dt(2022, time.March, 3, 11, 0)},
	}
	assert.Equal(t, want, got)
}

func TestBusyPeriodsAllDay(t *testing.T) {
	b := NewBuilder(nil)
	events := []Event{
		{
			Start:  dt(2022, time.March, 10, 0, 0),
			End:    dt(2022, time.March, 10, 0, 0),
			AllDay: true,
		},
	}
	got := b.BusyPeriods(events, dt(2022, time.March, 1, 0, 0), dt(2022, time.March, 31, 0, 0))
	require.Len(t, got, 1)
	assert.Equal(t, dt(2022, time.March, 10, 0, 0), got[0].Start)
	assert.Equal(t, time.Date(2022, time.March, 10, 23, 59, 59, 0, time.UTC), got[0].End)
}

func TestBusyPeriodsMultiDayRecurring(t *testing.T) {
	b := NewBuilder(nil)
	// A two-day shift recurring weekly; the first occurrence starts
	// before the window and still reaches into it.
	start := dt(2022, time.February, 28, 8, 0)
	rec := recurrence.New()
	rec.SetStartDateTime(start)
	rule, err := recurrence.NewRule(recurrence.PeriodWeekly, 1, start)
	require.NoError(t, err)
	require.NoError(t, rule.SetTermination(recurrence.EndAfter(2)))
	rec.AddRRule(rule)

	events := []Event{
		{
			Start:      start,
			End:        start.Add(48 * time.Hour),
			Recurrence: rec,
		},
	}
	got := b.BusyPeriods(events, dt(2022, time.March, 1, 0, 0), dt(2022, time.March, 10, 0, 0))
	want := []Period{
		{Start: dt(2022, time.February, 28, 8, 0), End: dt(2022, time.March, 2, 8, 0)},
		{Start: dt(2022, time.March, 7, 8, 0), End: dt(2022, time.March, 9, 8, 0)},
	}
	assert.Equal(t, want, got)
}
