package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNthWeekdayOfMonth(t *testing.T) {
	p := Std{}

	tests := []struct {
		name  string
		year  int
		month time.Month
		n     int
		wd    time.Weekday
		want  Date
	}{
		{"first Monday Jan 2020", 2020, time.January, 1, time.Monday, Date{2020, time.January, 6}},
		{"last Friday Jan 2021", 2021, time.January, -1, time.Friday, Date{2021, time.January, 29}},
		{"last Friday Apr 2021", 2021, time.April, -1, time.Friday, Date{2021, time.April, 30}},
		{"fifth Tuesday Jan 2023", 2023, time.January, 5, time.Tuesday, Date{2023, time.January, 31}},
		{"fifth Monday Feb 2023 absent", 2023, time.February, 5, time.Monday, Date{}},
		{"zero ordinal", 2023, time.January, 0, time.Monday, Date{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.NthWeekdayOfMonth(tt.year, tt.month, tt.n, tt.wd))
		})
	}
}

func TestNthWeekdayOfYear(t *testing.T) {
	p := Std{}
	// 2020 begins on a Wednesday, so the 1st Monday is Jan 6 and the
	// 20th Monday is May 18.
	assert.Equal(t, Date{2020, time.January, 6}, p.NthWeekdayOfYear(2020, 1, time.Monday))
	assert.Equal(t, Date{2020, time.May, 18}, p.NthWeekdayOfYear(2020, 20, time.Monday))
	assert.Equal(t, Date{2020, time.December, 28}, p.NthWeekdayOfYear(2020, -1, time.Monday))
	assert.Equal(t, Date{}, p.NthWeekdayOfYear(2020, 60, time.Monday))
}

func TestWeekdayIndexInMonth(t *testing.T) {
	p := Std{}
	fromStart, fromEnd := p.WeekdayIndexInMonth(Date{2021, time.January, 29})
	assert.Equal(t, 5, fromStart)
	assert.Equal(t, -1, fromEnd)

	fromStart, fromEnd = p.WeekdayIndexInMonth(Date{2021, time.January, 1})
	assert.Equal(t, 1, fromStart)
	assert.Equal(t, -5, fromEnd)
}

func TestWeekNumberISO(t *testing.T) {
	p := Std{}

	tests := []struct {
		d        Date
		wantYear int
		wantWeek int
	}{
		{Date{2021, time.January, 1}, 2020, 53},
		{Date{2021, time.January, 4}, 2021, 1},
		{Date{2020, time.December, 31}, 2020, 53},
		{Date{2019, time.December, 30}, 2020, 1},
		{Date{2022, time.June, 15}, 2022, 24},
	}
	for _, tt := range tests {
		year, week := p.WeekNumber(tt.d, time.Monday)
		assert.Equal(t, [2]int{tt.wantYear, tt.wantWeek}, [2]int{year, week}, "WeekNumber(%v)", tt.d)

		// Cross-check against the stdlib for Monday weeks.
		isoYear, isoWeek := tt.d.Time(12, 0, 0, time.UTC).ISOWeek()
		assert.Equal(t, [2]int{isoYear, isoWeek}, [2]int{year, week}, "stdlib ISOWeek(%v)", tt.d)
	}
}

func TestWeekStart(t *testing.T) {
	p := Std{}
	assert.Equal(t, Date{2021, time.January, 4}, p.WeekStart(2021, 1, time.Monday))
	assert.Equal(t, Date{2021, time.January, 11}, p.WeekStart(2021, 2, time.Monday))
	assert.Equal(t, Date{}, p.WeekStart(2021, 0, time.Monday))
	assert.Equal(t, Date{}, p.WeekStart(2021, 55, time.Monday))

	// Negative weeks count from the end of the year.
	last := p.WeekStart(2020, -1, time.Monday)
	assert.Equal(t, Date{2020, time.December, 28}, last)
	assert.Equal(t, 53, p.WeeksInYear(2020, time.Monday))
	assert.Equal(t, 52, p.WeeksInYear(2021, time.Monday))
}

func TestAddCalendarUnits(t *testing.T) {
	p := Std{}
	loc := time.FixedZone("UTC-5", -5*3600)
	base := time.Date(2022, time.March, 10, 9, 30, 15, 0, loc)

	got := p.AddDays(base, 25)
	assert.Equal(t, time.Date(2022, time.April, 4, 9, 30, 15, 0, loc), got)

	got = p.AddMonths(base, 11)
	assert.Equal(t, time.Date(2023, time.February, 10, 9, 30, 15, 0, loc), got)

	got = p.AddYears(base, 3)
	assert.Equal(t, time.Date(2025, time.March, 10, 9, 30, 15, 0, loc), got)
}

func TestZoneConversions(t *testing.T) {
	p := Std{}
	plus2 := time.FixedZone("UTC+2", 2*3600)
	utc := time.Date(2022, time.March, 10, 9, 0, 0, 0, time.UTC)

	moved := p.ToZone(utc, plus2)
	assert.True(t, moved.Equal(utc), "ToZone preserves the absolute moment")
	assert.Equal(t, 11, moved.Hour())

	stamped := p.StampZone(utc, plus2)
	assert.Equal(t, 9, stamped.Hour(), "StampZone preserves the wall clock")
	assert.False(t, stamped.Equal(utc))
}

func TestDaysIn(t *testing.T) {
	p := Std{}
	assert.Equal(t, 29, p.DaysInMonth(2020, time.February))
	assert.Equal(t, 28, p.DaysInMonth(2021, time.February))
	assert.Equal(t, 31, p.DaysInMonth(2021, time.December))
	assert.Equal(t, 366, p.DaysInYear(2020))
	assert.Equal(t, 365, p.DaysInYear(2021))
}
