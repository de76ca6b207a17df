package recurrence

import (
	"time"

	"github.com/kalends/librecur/timeutil"
)

// The operations in this file are a convenience interface to the first
// inclusion rule, for callers that think in terms of one simple rule
// ("weekly on Tuesday", "monthly on the last Friday") rather than the
// full RRULE vocabulary. Out-of-range arguments are ignored, matching
// the silent read-only behaviour of the other mutators.

// Frequency returns the first inclusion rule's frequency, or 0 without
// rules.
func (r *Recurrence) Frequency() int {
	if rule := r.defaultRRuleConst(); rule != nil {
		return rule.Frequency()
	}
	return 0
}

// SetFrequency sets the first inclusion rule's frequency, creating the
// rule if needed.
func (r *Recurrence) SetFrequency(freq int) {
	if r.readOnly || freq < 1 {
		return
	}
	r.mutate(func() {
		if rule := r.defaultRRule(true); rule != nil {
			_ = rule.SetFrequency(freq)
		}
	})
}

// Duration returns the first inclusion rule's occurrence count, or 0
// without rules.
func (r *Recurrence) Duration() int {
	if rule := r.defaultRRuleConst(); rule != nil {
		return rule.Duration()
	}
	return 0
}

// SetDuration terminates the first inclusion rule after n occurrences;
// n < 0 removes the termination.
func (r *Recurrence) SetDuration(n int) {
	if r.readOnly {
		return
	}
	r.mutate(func() {
		rule := r.defaultRRule(true)
		if rule == nil {
			return
		}
		if n < 0 {
			_ = rule.SetTermination(Forever())
		} else {
			_ = rule.SetTermination(EndAfter(n))
		}
	})
}

// DurationTo returns the number of occurrences of the first inclusion
// rule at or before t.
func (r *Recurrence) DurationTo(t time.Time) int {
	if rule := r.defaultRRuleConst(); rule != nil {
		return rule.DurationTo(t)
	}
	return 0
}

// DurationToDate counts through the end of the given date.
func (r *Recurrence) DurationToDate(d timeutil.Date) int {
	return r.DurationTo(d.Time(23, 59, 59, r.start.Location()))
}

// SetEndDateTime terminates the first inclusion rule at t, inclusive.
func (r *Recurrence) SetEndDateTime(t time.Time) {
	if r.readOnly {
		return
	}
	r.mutate(func() {
		if rule := r.defaultRRule(true); rule != nil {
			_ = rule.SetTermination(EndUntil(t))
		}
	})
}

// SetEndDate terminates the first inclusion rule on d: at the end of d
// for an all-day recurrence, at the anchor's time of day on d otherwise.
func (r *Recurrence) SetEndDate(d timeutil.Date) {
	if r.allDay {
		r.SetEndDateTime(d.Time(23, 59, 59, r.start.Location()))
		return
	}
	clock := timeutil.TimeOfDayOf(r.start)
	r.SetEndDateTime(clock.On(d, r.start.Location()))
}

// WeekStart returns the first inclusion rule's week start, defaulting to
// Monday.
func (r *Recurrence) WeekStart() time.Weekday {
	if rule := r.defaultRRuleConst(); rule != nil {
		return rule.WeekStart()
	}
	return time.Monday
}

// Days returns the weekdays a weekly recurrence falls on: the BYDAY
// entries of the first inclusion rule without a positional offset.
func (r *Recurrence) Days() []time.Weekday {
	rule := r.defaultRRuleConst()
	if rule == nil {
		return nil
	}
	var days []time.Weekday
	for _, wp := range rule.byDay {
		if wp.Pos == 0 {
			days = append(days, wp.Day)
		}
	}
	return days
}

// MonthDays returns the first inclusion rule's BYMONTHDAY list.
func (r *Recurrence) MonthDays() []int {
	if rule := r.defaultRRuleConst(); rule != nil {
		return rule.ByMonthDay()
	}
	return nil
}

// MonthPositions returns the first inclusion rule's BYDAY list.
func (r *Recurrence) MonthPositions() []WeekdayPos {
	if rule := r.defaultRRuleConst(); rule != nil {
		return rule.ByDay()
	}
	return nil
}

// YearDays returns the first inclusion rule's BYYEARDAY list.
func (r *Recurrence) YearDays() []int {
	if rule := r.defaultRRuleConst(); rule != nil {
		return rule.ByYearDay()
	}
	return nil
}

// YearDates returns the days of month a yearly recurrence falls on.
// Yearly and monthly recurrences store these in the same BYMONTHDAY
// list, so this reads the same data as MonthDays.
func (r *Recurrence) YearDates() []int {
	return r.MonthDays()
}

// YearMonths returns the first inclusion rule's BYMONTH list.
func (r *Recurrence) YearMonths() []int {
	if rule := r.defaultRRuleConst(); rule != nil {
		return rule.ByMonth()
	}
	return nil
}

// YearPositions returns the positional weekdays a yearly recurrence
// falls on; like YearDates this shares the rule's BYDAY list with
// MonthPositions.
func (r *Recurrence) YearPositions() []WeekdayPos {
	return r.MonthPositions()
}

// setNewRecurrenceType replaces all inclusion rules with one fresh rule
// of the given period and frequency.
func (r *Recurrence) setNewRecurrenceType(period PeriodType, freq int) *Rule {
	if r.readOnly || freq < 1 {
		return nil
	}
	for _, rule := range r.rRules {
		rule.RemoveObserver(r)
	}
	r.rRules = nil
	rule := r.defaultRRule(true)
	if rule == nil {
		return nil
	}
	_ = rule.SetPeriod(period)
	_ = rule.SetFrequency(freq)
	_ = rule.SetTermination(Forever())
	return rule
}

// SetMinutely makes the recurrence repeat every freq minutes.
func (r *Recurrence) SetMinutely(freq int) {
	if r.readOnly || freq < 1 {
		return
	}
	r.mutate(func() { r.setNewRecurrenceType(PeriodMinutely, freq) })
}

// SetHourly makes the recurrence repeat every freq hours.
func (r *Recurrence) SetHourly(freq int) {
	if r.readOnly || freq < 1 {
		return
	}
	r.mutate(func() { r.setNewRecurrenceType(PeriodHourly, freq) })
}

// SetDaily makes the recurrence repeat every freq days.
func (r *Recurrence) SetDaily(freq int) {
	if r.readOnly || freq < 1 {
		return
	}
	r.mutate(func() { r.setNewRecurrenceType(PeriodDaily, freq) })
}

// SetWeekly makes the recurrence repeat every freq weeks, with weeks
// beginning on weekStart.
func (r *Recurrence) SetWeekly(freq int, weekStart time.Weekday) {
	if r.readOnly || freq < 1 {
		return
	}
	r.mutate(func() {
		if rule := r.setNewRecurrenceType(PeriodWeekly, freq); rule != nil {
			rule.SetWeekStart(weekStart)
		}
	})
}

// AddWeeklyDays adds weekdays to a weekly recurrence.
func (r *Recurrence) AddWeeklyDays(days ...time.Weekday) {
	r.AddMonthlyPos(0, days...)
}

// SetMonthly makes the recurrence repeat every freq months.
func (r *Recurrence) SetMonthly(freq int) {
	if r.readOnly || freq < 1 {
		return
	}
	r.mutate(func() { r.setNewRecurrenceType(PeriodMonthly, freq) })
}

// AddMonthlyPos adds the pos-th given weekdays of the month to an
// existing rule; pos 0 means every such weekday. Positions up to 53 are
// accepted because yearly rules share this entry point.
func (r *Recurrence) AddMonthlyPos(pos int, days ...time.Weekday) {
	if r.readOnly || pos > 53 || pos < -53 {
		return
	}
	rule := r.defaultRRuleConst()
	if rule == nil {
		return
	}
	positions := rule.byDay
	changed := false
	for _, day := range days {
		wp := WeekdayPos{Pos: pos, Day: day}
		if !containsWeekdayPos(positions, wp) {
			positions = append(positions, wp)
			changed = true
		}
	}
	if changed {
		r.mutate(func() { _ = rule.SetByDay(positions) })
	}
}

// AddMonthlyDate adds a day of the month (negative counts from the end)
// to the first inclusion rule, creating it if needed.
func (r *Recurrence) AddMonthlyDate(day int) {
	if r.readOnly || day > 31 || day < -31 || day == 0 {
		return
	}
	r.mutate(func() {
		rule := r.defaultRRule(true)
		if rule == nil {
			return
		}
		if !containsInt(rule.byMonthDay, day) {
			_ = rule.SetByMonthDay(append(rule.ByMonthDay(), day))
		}
	})
}

// SetYearly makes the recurrence repeat every freq years.
func (r *Recurrence) SetYearly(freq int) {
	if r.readOnly || freq < 1 {
		return
	}
	r.mutate(func() { r.setNewRecurrenceType(PeriodYearly, freq) })
}

// AddYearlyDay adds a day number within the year to an existing rule.
func (r *Recurrence) AddYearlyDay(day int) {
	if r.readOnly || day > 366 || day < -366 || day == 0 {
		return
	}
	rule := r.defaultRRuleConst()
	if rule == nil {
		return
	}
	if !containsInt(rule.byYearDay, day) {
		r.mutate(func() { _ = rule.SetByYearDay(append(rule.ByYearDay(), day)) })
	}
}

// AddYearlyDate adds the day part of a date within the year; combined
// with AddYearlyMonth this selects fixed dates.
func (r *Recurrence) AddYearlyDate(day int) {
	r.AddMonthlyDate(day)
}

// AddYearlyPos adds positional weekdays within the months selected by
// AddYearlyMonth.
func (r *Recurrence) AddYearlyPos(pos int, days ...time.Weekday) {
	r.AddMonthlyPos(pos, days...)
}

// AddYearlyMonth adds a month to a yearly recurrence.
func (r *Recurrence) AddYearlyMonth(month time.Month) {
	if r.readOnly || month < time.January || month > time.December {
		return
	}
	rule := r.defaultRRuleConst()
	if rule == nil {
		return
	}
	if !containsInt(rule.byMonth, int(month)) {
		r.mutate(func() { _ = rule.SetByMonth(append(rule.ByMonth(), int(month))) })
	}
}

func containsWeekdayPos(s []WeekdayPos, wp WeekdayPos) bool {
	for _, v := range s {
		if v == wp {
			return true
		}
	}
	return false
}
