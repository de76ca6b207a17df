package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalends/librecur/timeutil"
)

type countingObserver struct {
	updates int
}

func (c *countingObserver) RecurrenceUpdated(*Recurrence) { c.updates++ }

func newDailyRecurrence(t *testing.T, start time.Time, count int) *Recurrence {
	t.Helper()
	rec := New()
	rec.SetStartDateTime(start)
	rule := mustRule(t, PeriodDaily, 1, start)
	if count > 0 {
		require.NoError(t, rule.SetTermination(EndAfter(count)))
	}
	rec.AddRRule(rule)
	return rec
}

func TestRecurrenceDailyWithExDate(t *testing.T) {
	rec := newDailyRecurrence(t, dt(2022, time.March, 1, 8, 0), 5)
	rec.AddExDate(timeutil.NewDate(2022, time.March, 3))

	assert.False(t, rec.RecursOn(timeutil.NewDate(2022, time.March, 3), time.UTC))
	assert.True(t, rec.RecursOn(timeutil.NewDate(2022, time.March, 4), time.UTC))

	next, ok := rec.GetNextDateTime(dt(2022, time.March, 2, 8, 0)).Get()
	require.True(t, ok)
	assert.Equal(t, dt(2022, time.March, 4, 8, 0), next)

	got := rec.TimesInInterval(dt(2022, time.March, 1, 0, 0), dt(2022, time.March, 31, 0, 0))
	want := []time.Time{
		dt(2022, time.March, 1, 8, 0),
		dt(2022, time.March, 2, 8, 0),
		dt(2022, time.March, 4, 8, 0),
		dt(2022, time.March, 5, 8, 0),
	}
	assert.Equal(t, want, got)
}

func TestRecurrenceExRule(t *testing.T) {
	// Weekly Mondays; every second Monday excluded by an exrule.
	start := dt(2020, time.June, 1, 10, 0)
	rec := New()
	rec.SetStartDateTime(start)

	rrule := mustRule(t, PeriodWeekly, 1, start)
	require.NoError(t, rrule.SetTermination(EndAfter(20)))
	rec.AddRRule(rrule)

	exrule := mustRule(t, PeriodWeekly, 2, start)
	require.NoError(t, exrule.SetByDay([]WeekdayPos{{Day: time.Monday}}))
	require.NoError(t, exrule.SetTermination(EndUntil(dt(2020, time.September, 1, 0, 0))))
	rec.AddExRule(exrule)

	// The exrule lattice holds the anchor-phase Mondays: Jun 1, 15, 29...
	assert.False(t, rec.RecursAt(dt(2020, time.June, 15, 10, 0)))
	assert.True(t, rec.RecursAt(dt(2020, time.June, 8, 10, 0)))

	next, ok := rec.GetNextDateTime(dt(2020, time.June, 14, 0, 0)).Get()
	require.True(t, ok)
	assert.Equal(t, dt(2020, time.June, 22, 10, 0), next,
		"June 15 is excluded, so the next admissible occurrence is June 22")

	// Past the exrule's until, Mondays of either phase recur again.
	assert.True(t, rec.RecursAt(dt(2020, time.September, 7, 10, 0)))
}

func TestRecurrenceRecursAtMatchesInterval(t *testing.T) {
	rec := newDailyRecurrence(t, dt(2022, time.March, 1, 8, 0), 5)
	rec.AddExDate(timeutil.NewDate(2022, time.March, 3))
	rec.AddRDateTime(dt(2022, time.April, 1, 12, 0))

	instants := []time.Time{
		dt(2022, time.March, 1, 8, 0),
		dt(2022, time.March, 3, 8, 0),
		dt(2022, time.March, 4, 8, 0),
		dt(2022, time.April, 1, 12, 0),
		dt(2022, time.April, 2, 12, 0),
	}
	for _, at := range instants {
		single := rec.TimesInInterval(at, at)
		if rec.RecursAt(at) {
			assert.Equal(t, []time.Time{at}, single, "recursAt true must mean inclusion at %v", at)
		} else {
			assert.Empty(t, single, "recursAt false must mean exclusion at %v", at)
		}
	}
}

func TestRecurrenceRecursOnMatchesTimesOn(t *testing.T) {
	rec := newDailyRecurrence(t, dt(2022, time.March, 1, 8, 0), 5)
	rec.AddExDate(timeutil.NewDate(2022, time.March, 3))

	for day := 27; day <= 31; day++ {
		d := timeutil.NewDate(2022, time.February, day)
		assert.Equal(t, rec.RecursOn(d, time.UTC), len(rec.RecurTimesOn(d, time.UTC)) > 0)
	}
	for day := 1; day <= 8; day++ {
		d := timeutil.NewDate(2022, time.March, day)
		assert.Equal(t, rec.RecursOn(d, time.UTC), len(rec.RecurTimesOn(d, time.UTC)) > 0)
	}
}

func TestRecurrenceRecurTimesOnWithRDateTime(t *testing.T) {
	rec := newDailyRecurrence(t, dt(2022, time.March, 1, 9, 0), 3)
	rec.AddRDateTime(dt(2022, time.March, 1, 14, 0))
	rec.AddExDateTime(dt(2022, time.March, 2, 9, 0))

	times := rec.RecurTimesOn(timeutil.NewDate(2022, time.March, 1), time.UTC)
	assert.Equal(t, []timeutil.TimeOfDay{{Hour: 9}, {Hour: 14}}, times)

	assert.Empty(t, rec.RecurTimesOn(timeutil.NewDate(2022, time.March, 2), time.UTC))
}

func TestRecurrenceEndDateTime(t *testing.T) {
	rec := New()
	rec.SetStartDateTime(dt(2020, time.January, 6, 9, 0))
	rule := mustRule(t, PeriodWeekly, 1, dt(2020, time.January, 6, 9, 0))
	require.NoError(t, rule.SetByDay([]WeekdayPos{{Day: time.Monday}}))
	require.NoError(t, rule.SetTermination(EndAfter(5)))
	rec.AddRRule(rule)

	end, ok := rec.EndDateTime().Get()
	require.True(t, ok)
	assert.Equal(t, dt(2020, time.February, 3, 9, 0), end)

	// A never-ending rule makes the recurrence unbounded.
	rec.AddRRule(mustRule(t, PeriodDaily, 1, dt(2020, time.January, 6, 9, 0)))
	_, ok = rec.EndDateTime().Get()
	assert.False(t, ok)
}

func TestRecurrenceAllDayLeapYear(t *testing.T) {
	rec := New()
	rec.SetStartDate(timeutil.NewDate(2020, time.February, 29))
	rule := mustRule(t, PeriodYearly, 1, rec.Start())
	require.NoError(t, rule.SetByMonth([]int{2}))
	require.NoError(t, rule.SetByMonthDay([]int{29}))
	rec.AddRRule(rule)

	assert.True(t, rec.AllDay())
	assert.True(t, rule.AllDay(), "all-day flag cascades into added rules")
	assert.False(t, rec.RecursOn(timeutil.NewDate(2021, time.February, 28), time.UTC))
	assert.True(t, rec.RecursOn(timeutil.NewDate(2024, time.February, 29), time.UTC))
}

func TestRecurrenceSetAllDayIdempotent(t *testing.T) {
	rec := newDailyRecurrence(t, dt(2022, time.March, 1, 8, 0), 0)
	obs := &countingObserver{}
	rec.AddObserver(obs)

	rec.SetAllDay(true)
	assert.Equal(t, 1, obs.updates, "first transition notifies once")
	rec.SetAllDay(true)
	assert.Equal(t, 1, obs.updates, "repeated set is silent")
	assert.True(t, rec.AllDay())
	for _, rule := range rec.RRules() {
		assert.True(t, rule.AllDay())
	}
}

func TestRecurrenceMutationNotifications(t *testing.T) {
	rec := New()
	rec.SetStartDateTime(dt(2022, time.March, 1, 8, 0))
	obs := &countingObserver{}
	rec.AddObserver(obs)

	rec.AddRDate(timeutil.NewDate(2022, time.March, 10))
	assert.Equal(t, 1, obs.updates)
	rec.AddExDateTime(dt(2022, time.March, 11, 8, 0))
	assert.Equal(t, 2, obs.updates)
	rec.SetDaily(2)
	assert.Equal(t, 3, obs.updates, "one notification per operation, not per cascaded rule edit")

	// Editing a contained rule notifies through the recurrence.
	require.NoError(t, rec.RRules()[0].SetFrequency(3))
	assert.Equal(t, 4, obs.updates)

	rec.RemoveObserver(obs)
	rec.Clear()
	assert.Equal(t, 4, obs.updates)
}

func TestRecurrenceReadOnly(t *testing.T) {
	rec := newDailyRecurrence(t, dt(2022, time.March, 1, 8, 0), 5)
	obs := &countingObserver{}
	rec.AddObserver(obs)
	rec.SetReadOnly(true)

	rec.SetStartDateTime(dt(2023, time.January, 1, 0, 0))
	rec.SetAllDay(true)
	rec.AddRDate(timeutil.NewDate(2023, time.June, 1))
	rec.AddExDateTime(dt(2023, time.June, 1, 8, 0))
	rec.Clear()
	rec.SetWeekly(2, time.Sunday)

	assert.Equal(t, 0, obs.updates)
	assert.Equal(t, dt(2022, time.March, 1, 8, 0), rec.Start())
	assert.False(t, rec.AllDay())
	assert.Len(t, rec.RRules(), 1)
	assert.Empty(t, rec.RDates())

	// Queries still answer on a read-only recurrence.
	assert.True(t, rec.RecursAt(dt(2022, time.March, 2, 8, 0)))
}

func TestRecurrenceShiftTimes(t *testing.T) {
	plus2 := time.FixedZone("UTC+2", 2*3600)
	rec := newDailyRecurrence(t, dt(2020, time.January, 6, 9, 30), 5)
	rec.AddRDateTime(dt(2020, time.February, 1, 18, 15))
	rec.AddExDateTime(dt(2020, time.January, 8, 9, 30))

	rec.ShiftTimes(time.UTC, plus2)

	for _, got := range []time.Time{rec.Start(), rec.RDateTimes()[0], rec.ExDateTimes()[0], rec.RRules()[0].Start()} {
		assert.Equal(t, plus2, got.Location())
	}
	hh, mm, _ := rec.Start().Clock()
	assert.Equal(t, [2]int{9, 30}, [2]int{hh, mm}, "wall-clock reading survives the shift")
	hh, mm, _ = rec.RDateTimes()[0].Clock()
	assert.Equal(t, [2]int{18, 15}, [2]int{hh, mm})

	// The shifted exdate still cancels the shifted occurrence.
	assert.False(t, rec.RecursAt(time.Date(2020, time.January, 8, 9, 30, 0, 0, plus2)))
}

func TestRecurrenceCloneAndEqual(t *testing.T) {
	rec := newDailyRecurrence(t, dt(2022, time.March, 1, 8, 0), 5)
	rec.AddRDate(timeutil.NewDate(2022, time.April, 1))
	rec.AddExDateTime(dt(2022, time.March, 2, 8, 0))

	clone := rec.Clone()
	assert.True(t, rec.Equal(clone))

	// Mutating the clone's rule must not touch the original.
	require.NoError(t, clone.RRules()[0].SetFrequency(2))
	assert.False(t, rec.Equal(clone))
	assert.Equal(t, 1, rec.RRules()[0].Frequency())

	// The clone observes its own rules.
	assert.Equal(t, KindDaily, rec.Classification())
	require.NoError(t, clone.RRules()[0].SetBySetPos([]int{1}))
	assert.Equal(t, KindOther, clone.Classification())
	assert.Equal(t, KindDaily, rec.Classification())
}

func TestRecurrenceClassificationCache(t *testing.T) {
	rec := New()
	rec.SetStartDateTime(dt(2022, time.March, 1, 8, 0))
	assert.Equal(t, KindNone, rec.Classification())

	rec.SetYearly(1)
	rec.AddYearlyMonth(time.February)
	assert.Equal(t, KindYearlyMonth, rec.Classification())

	// A rule-level edit invalidates the cached kind via the observer
	// link.
	require.NoError(t, rec.RRules()[0].SetBySetPos([]int{-1}))
	assert.Equal(t, KindOther, rec.Classification())
}

func TestRecurrenceIterationBudget(t *testing.T) {
	start := dt(2022, time.March, 1, 8, 0)
	rec := NewWithConfig(Config{IterationBudget: 25})
	rec.SetStartDateTime(start)
	rec.AddRRule(mustRule(t, PeriodDaily, 1, start))
	// An identical exrule extinguishes every occurrence; the search must
	// stop at the budget instead of walking forever.
	rec.AddExRule(mustRule(t, PeriodDaily, 1, start))

	_, ok := rec.GetNextDateTime(dt(2022, time.March, 1, 0, 0)).Get()
	assert.False(t, ok)
	_, ok = rec.GetPreviousDateTime(dt(2030, time.March, 1, 0, 0)).Get()
	assert.False(t, ok)
}

func TestRecurrencePreviousDateTime(t *testing.T) {
	rec := newDailyRecurrence(t, dt(2022, time.March, 1, 8, 0), 5)
	rec.AddExDate(timeutil.NewDate(2022, time.March, 5))

	prev, ok := rec.GetPreviousDateTime(dt(2022, time.March, 10, 0, 0)).Get()
	require.True(t, ok)
	assert.Equal(t, dt(2022, time.March, 4, 8, 0), prev, "March 5 is excluded")

	_, ok = rec.GetPreviousDateTime(dt(2022, time.March, 1, 8, 0)).Get()
	assert.False(t, ok, "nothing strictly before the anchor")
}

func TestRecurrenceRDatesSortedUnique(t *testing.T) {
	rec := New()
	rec.SetStartDateTime(dt(2022, time.March, 1, 8, 0))
	rec.SetRDates([]timeutil.Date{
		timeutil.NewDate(2022, time.May, 1),
		timeutil.NewDate(2022, time.March, 15),
		timeutil.NewDate(2022, time.May, 1),
		timeutil.NewDate(2022, time.April, 2),
	})
	want := []timeutil.Date{
		timeutil.NewDate(2022, time.March, 15),
		timeutil.NewDate(2022, time.April, 2),
		timeutil.NewDate(2022, time.May, 1),
	}
	assert.Equal(t, want, rec.RDates())

	// Re-inserting changes nothing.
	rec.AddRDate(timeutil.NewDate(2022, time.April, 2))
	assert.Equal(t, want, rec.RDates())
}

func TestRecurrenceRemoveRRuleDetachesObserver(t *testing.T) {
	rec := newDailyRecurrence(t, dt(2022, time.March, 1, 8, 0), 0)
	obs := &countingObserver{}
	rec.AddObserver(obs)

	rule := rec.RRules()[0]
	rec.RemoveRRule(rule)
	assert.Empty(t, rec.RRules())
	seen := obs.updates

	// The detached rule no longer reaches the recurrence.
	require.NoError(t, rule.SetFrequency(7))
	assert.Equal(t, seen, obs.updates)
}
