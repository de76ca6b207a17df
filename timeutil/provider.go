// Package timeutil supplies the calendar arithmetic the recurrence engine
// depends on. The engine itself never touches the system clock or the zone
// database directly; it goes through a Provider, so callers with their own
// time model (fixed zone tables in tests, tzdata snapshots) can inject one.
package timeutil

import "time"

// Provider is the time model required by the recurrence engine. All
// operations are total and deterministic.
type Provider interface {
	// ToZone converts t to loc preserving the absolute moment.
	ToZone(t time.Time, loc *time.Location) time.Time

	// StampZone reinterprets t's wall-clock fields in loc, discarding the
	// original zone. This is the "zone shift" half of ShiftTimes.
	StampZone(t time.Time, loc *time.Location) time.Time

	// AddDays returns the instant n calendar days after t with the same
	// wall-clock time, so a daily recurrence stays at its local hour
	// across DST transitions.
	AddDays(t time.Time, n int) time.Time

	// AddMonths and AddYears behave like AddDays at coarser units. A day
	// of month that does not exist in the target month normalizes the way
	// the standard library does.
	AddMonths(t time.Time, n int) time.Time
	AddYears(t time.Time, n int) time.Time

	// NthWeekdayOfMonth returns the n-th wd of the month (n > 0 from the
	// start, n < 0 from the end), or the zero Date if the month has no
	// such weekday.
	NthWeekdayOfMonth(year int, month time.Month, n int, wd time.Weekday) Date

	// NthWeekdayOfYear is the year-relative analogue of NthWeekdayOfMonth.
	NthWeekdayOfYear(year, n int, wd time.Weekday) Date

	// WeekdayIndexInMonth returns the 1-based ordinal of d's weekday
	// counted from the start of its month and (negatively) from the end.
	WeekdayIndexInMonth(d Date) (fromStart, fromEnd int)

	// WeekNumber returns the week-numbering year and week of d for weeks
	// beginning on wkst, with week 1 the first week containing at least
	// four days of the year (ISO 8601 generalized to any week start).
	WeekNumber(d Date, wkst time.Weekday) (year, week int)

	// WeekStart returns the first day of the given week of year, for
	// weeks beginning on wkst. week may be negative to count from the
	// end of the year. The zero Date is returned for week 0 or a week
	// beyond the year's range.
	WeekStart(year, week int, wkst time.Weekday) Date

	// WeeksInYear returns the number of numbering weeks in year for weeks
	// beginning on wkst (52 or 53).
	WeeksInYear(year int, wkst time.Weekday) int

	// DaysInMonth returns the number of days in the given month.
	DaysInMonth(year int, month time.Month) int

	// DaysInYear returns 365 or 366.
	DaysInYear(year int) int
}

// Std is the stdlib-backed Provider used unless a caller injects another.
type Std struct{}

var _ Provider = Std{}

func (Std) ToZone(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}

func (Std) StampZone(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), loc)
}

func (Std) AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d+n, hh, mm, ss, t.Nanosecond(), t.Location())
}

func (Std) AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m+time.Month(n), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func (Std) AddYears(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y+n, m, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func (Std) NthWeekdayOfMonth(year int, month time.Month, n int, wd time.Weekday) Date {
	if n == 0 {
		return Date{}
	}
	days := Std{}.DaysInMonth(year, month)
	if n > 0 {
		first := Date{Year: year, Month: month, Day: 1}
		offset := int(wd-first.Weekday()+7) % 7
		day := 1 + offset + (n-1)*7
		if day > days {
			return Date{}
		}
		return Date{Year: year, Month: month, Day: day}
	}
	last := Date{Year: year, Month: month, Day: days}
	offset := int(last.Weekday()-wd+7) % 7
	day := days - offset + (n+1)*7
	if day < 1 {
		return Date{}
	}
	return Date{Year: year, Month: month, Day: day}
}

func (Std) NthWeekdayOfYear(year, n int, wd time.Weekday) Date {
	if n == 0 {
		return Date{}
	}
	if n > 0 {
		first := Date{Year: year, Month: time.January, Day: 1}
		offset := int(wd-first.Weekday()+7) % 7
		d := first.AddDays(offset + (n-1)*7)
		if d.Year != year {
			return Date{}
		}
		return d
	}
	last := Date{Year: year, Month: time.December, Day: 31}
	offset := int(last.Weekday()-wd+7) % 7
	d := last.AddDays(-offset + (n+1)*7)
	if d.Year != year {
		return Date{}
	}
	return d
}

func (Std) WeekdayIndexInMonth(d Date) (fromStart, fromEnd int) {
	fromStart = (d.Day-1)/7 + 1
	days := Std{}.DaysInMonth(d.Year, d.Month)
	fromEnd = -((days-d.Day)/7 + 1)
	return fromStart, fromEnd
}

// firstWeekStart returns the start of numbering week 1 of year for weeks
// beginning on wkst: week 1 is the week containing at least four days of
// the year.
func firstWeekStart(year int, wkst time.Weekday) Date {
	jan1 := Date{Year: year, Month: time.January, Day: 1}
	back := int(jan1.Weekday()-wkst+7) % 7
	if 7-back >= 4 {
		return jan1.AddDays(-back)
	}
	return jan1.AddDays(7 - back)
}

func (Std) WeekNumber(d Date, wkst time.Weekday) (year, week int) {
	year = d.Year
	start := firstWeekStart(year, wkst)
	if d.Before(start) {
		year--
		start = firstWeekStart(year, wkst)
	} else if next := firstWeekStart(year+1, wkst); !d.Before(next) {
		year++
		start = next
	}
	return year, start.DaysUntil(d)/7 + 1
}

func (p Std) WeekStart(year, week int, wkst time.Weekday) Date {
	if week == 0 {
		return Date{}
	}
	total := p.WeeksInYear(year, wkst)
	if week < 0 {
		week = total + week + 1
	}
	if week < 1 || week > total {
		return Date{}
	}
	return firstWeekStart(year, wkst).AddDays((week - 1) * 7)
}

func (Std) WeeksInYear(year int, wkst time.Weekday) int {
	return firstWeekStart(year, wkst).DaysUntil(firstWeekStart(year+1, wkst)) / 7
}

func (Std) DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 12, 0, 0, 0, time.UTC).Day()
}

func (Std) DaysInYear(year int) int {
	if time.Date(year, time.February, 29, 12, 0, 0, 0, time.UTC).Day() == 29 {
		return 366
	}
	return 365
}
