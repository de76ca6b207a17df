package recurrence

import (
	"time"

	"github.com/samber/mo"

	"github.com/kalends/librecur/internal/sortedlist"
	"github.com/kalends/librecur/timeutil"
)

// Occurrence generation follows the classical two-phase iCalendar
// procedure: step base periods from the period containing the anchor at
// the rule's frequency, then expand or limit candidates within each
// period according to the RFC 5545 BY-filter matrix, apply BYSETPOS to
// the period's sorted candidate set, and drop candidates before the
// anchor.

// maxEmptyPeriods bounds scans over rules that can never match again
// (e.g. BYMONTH=2;BYMONTHDAY=30). After this many consecutive empty
// periods the rule is treated as exhausted.
const maxEmptyPeriods = 1000

// untilSpill pads horizon checks for yearly BYWEEKNO rules, whose
// candidates may precede the calendar year by a few days.
const untilSpill = 7 * 24 * time.Hour

func cmpTime(a, b time.Time) int { return a.Compare(b) }

func cmpDate(a, b timeutil.Date) int { return a.Compare(b) }

type dayRelation int

const (
	relWeekday dayRelation = iota // match by weekday only
	relMonth                      // ordinals count within the month
	relYear                       // ordinals count within the year
)

type expander struct {
	r         *Rule
	tm        timeutil.Provider
	loc       *time.Location
	startDate timeutil.Date
	clock     timeutil.TimeOfDay
}

func newExpander(r *Rule) *expander {
	tm := r.tm
	if tm == nil {
		tm = timeutil.Std{}
	}
	return &expander{
		r:         r,
		tm:        tm,
		loc:       r.start.Location(),
		startDate: timeutil.DateOf(r.start),
		clock:     timeutil.TimeOfDayOf(r.start),
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func monthIndex(d timeutil.Date) int64 {
	return int64(d.Year)*12 + int64(d.Month) - 1
}

// weekAlign returns the first day of the week containing d, for weeks
// beginning on the rule's week start.
func (e *expander) weekAlign(d timeutil.Date) timeutil.Date {
	return d.AddDays(-int((d.Weekday() - e.r.weekStart + 7) % 7))
}

// periodOrdinal returns the raw period number of t relative to the
// period containing the anchor. Only ordinals divisible by the frequency
// belong to the rule's lattice.
func (e *expander) periodOrdinal(t time.Time) int64 {
	d := timeutil.DateOf(t)
	switch e.r.period {
	case PeriodYearly:
		return int64(d.Year - e.startDate.Year)
	case PeriodMonthly:
		return monthIndex(d) - monthIndex(e.startDate)
	case PeriodWeekly:
		return int64(e.weekAlign(e.startDate).DaysUntil(e.weekAlign(d))) / 7
	case PeriodDaily:
		return int64(e.startDate.DaysUntil(d))
	case PeriodHourly:
		return floorDiv(t.Unix()-e.r.start.Unix(), 3600)
	case PeriodMinutely:
		return floorDiv(t.Unix()-e.r.start.Unix(), 60)
	default:
		return t.Unix() - e.r.start.Unix()
	}
}

// periodFloor returns the earliest instant a candidate of stepped period
// n can (almost) carry; BYWEEKNO candidates may precede it by under a
// week, which untilSpill accounts for.
func (e *expander) periodFloor(n int64) time.Time {
	step := int(n) * e.r.frequency
	switch e.r.period {
	case PeriodYearly:
		return time.Date(e.startDate.Year+step, time.January, 1, 0, 0, 0, 0, e.loc)
	case PeriodMonthly:
		mi := monthIndex(e.startDate) + int64(step)
		return time.Date(int(mi/12), time.Month(mi%12)+1, 1, 0, 0, 0, 0, e.loc)
	case PeriodWeekly:
		d := e.weekAlign(e.startDate).AddDays(step * 7)
		return d.Time(0, 0, 0, e.loc)
	case PeriodDaily:
		d := e.startDate.AddDays(step)
		return d.Time(0, 0, 0, e.loc)
	case PeriodHourly:
		return e.r.start.Add(time.Duration(step) * time.Hour)
	case PeriodMinutely:
		return e.r.start.Add(time.Duration(step) * time.Minute)
	default:
		return e.r.start.Add(time.Duration(step) * time.Second)
	}
}

// --- BY-filter limit predicates ---

func containsInt(s []int, v int) bool {
	return sortedlist.ContainsSorted(s, v, func(a, b int) int { return a - b })
}

func (e *expander) allowedByMonth(d timeutil.Date) bool {
	return len(e.r.byMonth) == 0 || containsInt(e.r.byMonth, int(d.Month))
}

func (e *expander) allowedByMonthDay(d timeutil.Date) bool {
	if len(e.r.byMonthDay) == 0 {
		return true
	}
	days := e.tm.DaysInMonth(d.Year, d.Month)
	return containsInt(e.r.byMonthDay, d.Day) || containsInt(e.r.byMonthDay, d.Day-days-1)
}

func (e *expander) allowedByYearDay(d timeutil.Date) bool {
	if len(e.r.byYearDay) == 0 {
		return true
	}
	yd := d.YearDay()
	return containsInt(e.r.byYearDay, yd) || containsInt(e.r.byYearDay, yd-e.tm.DaysInYear(d.Year)-1)
}

func (e *expander) allowedByDay(d timeutil.Date, rel dayRelation) bool {
	if len(e.r.byDay) == 0 {
		return true
	}
	for _, wp := range e.r.byDay {
		if wp.Day != d.Weekday() {
			continue
		}
		if wp.Pos == 0 || rel == relWeekday {
			return true
		}
		var fromStart, fromEnd int
		if rel == relMonth {
			fromStart, fromEnd = e.tm.WeekdayIndexInMonth(d)
		} else {
			yd := d.YearDay()
			fromStart = (yd-1)/7 + 1
			fromEnd = -((e.tm.DaysInYear(d.Year)-yd)/7 + 1)
		}
		if wp.Pos == fromStart || wp.Pos == fromEnd {
			return true
		}
	}
	return false
}

// --- date-set expansion per period ---

// monthDates expands the date-level filters within one month. BYMONTHDAY
// expands (with BYDAY limiting); otherwise BYDAY expands with
// month-relative ordinals; with neither, the anchor's day of month is
// used and months too short for it yield nothing.
func (e *expander) monthDates(year int, month time.Month) []timeutil.Date {
	days := e.tm.DaysInMonth(year, month)
	var dates []timeutil.Date
	switch {
	case len(e.r.byMonthDay) > 0:
		for _, md := range e.r.byMonthDay {
			day := md
			if md < 0 {
				day = days + md + 1
			}
			if day < 1 || day > days {
				continue
			}
			d := timeutil.Date{Year: year, Month: month, Day: day}
			if e.allowedByDay(d, relMonth) {
				dates = append(dates, d)
			}
		}
	case len(e.r.byDay) > 0:
		for _, wp := range e.r.byDay {
			if wp.Pos != 0 {
				if d := e.tm.NthWeekdayOfMonth(year, month, wp.Pos, wp.Day); !d.IsZero() {
					dates = append(dates, d)
				}
				continue
			}
			for k := 1; ; k++ {
				d := e.tm.NthWeekdayOfMonth(year, month, k, wp.Day)
				if d.IsZero() {
					break
				}
				dates = append(dates, d)
			}
		}
	default:
		if e.startDate.Day <= days {
			dates = append(dates, timeutil.Date{Year: year, Month: month, Day: e.startDate.Day})
		}
	}
	return dates
}

// yearDates expands the date-level filters within one year per the
// RFC 5545 precedence: BYYEARDAY, then BYWEEKNO, then BYMONTH-scoped
// month expansion, then year-scoped BYMONTHDAY/BYDAY, then the anchor
// date.
func (e *expander) yearDates(year int) []timeutil.Date {
	var dates []timeutil.Date
	switch {
	case len(e.r.byYearDay) > 0:
		total := e.tm.DaysInYear(year)
		jan1 := timeutil.Date{Year: year, Month: time.January, Day: 1}
		for _, yd := range e.r.byYearDay {
			day := yd
			if yd < 0 {
				day = total + yd + 1
			}
			if day < 1 || day > total {
				continue
			}
			d := jan1.AddDays(day - 1)
			if e.allowedByMonth(d) && e.allowedByMonthDay(d) && e.allowedByDay(d, relYear) {
				dates = append(dates, d)
			}
		}
	case len(e.r.byWeekNo) > 0:
		for _, wk := range e.r.byWeekNo {
			ws := e.tm.WeekStart(year, wk, e.r.weekStart)
			if ws.IsZero() {
				continue
			}
			if len(e.r.byDay) > 0 {
				for _, wp := range e.r.byDay {
					d := ws.AddDays(int((wp.Day - e.r.weekStart + 7) % 7))
					if e.allowedByMonth(d) && e.allowedByMonthDay(d) {
						dates = append(dates, d)
					}
				}
			} else {
				d := ws.AddDays(int((e.startDate.Weekday() - e.r.weekStart + 7) % 7))
				if e.allowedByMonth(d) && e.allowedByMonthDay(d) {
					dates = append(dates, d)
				}
			}
		}
	case len(e.r.byMonth) > 0:
		for _, m := range e.r.byMonth {
			dates = append(dates, e.monthDates(year, time.Month(m))...)
		}
	case len(e.r.byMonthDay) > 0:
		for m := time.January; m <= time.December; m++ {
			dates = append(dates, e.monthDates(year, m)...)
		}
	case len(e.r.byDay) > 0:
		for _, wp := range e.r.byDay {
			if wp.Pos != 0 {
				if d := e.tm.NthWeekdayOfYear(year, wp.Pos, wp.Day); !d.IsZero() {
					dates = append(dates, d)
				}
				continue
			}
			for k := 1; ; k++ {
				d := e.tm.NthWeekdayOfYear(year, k, wp.Day)
				if d.IsZero() {
					break
				}
				dates = append(dates, d)
			}
		}
	default:
		if e.startDate.Day <= e.tm.DaysInMonth(year, e.startDate.Month) {
			dates = append(dates, timeutil.Date{Year: year, Month: e.startDate.Month, Day: e.startDate.Day})
		}
	}
	return dates
}

// weekDates expands BYDAY within one week; a weekly rule ignores BYDAY
// offsets. BYMONTH limits.
func (e *expander) weekDates(ws timeutil.Date) []timeutil.Date {
	var dates []timeutil.Date
	if len(e.r.byDay) > 0 {
		for _, wp := range e.r.byDay {
			d := ws.AddDays(int((wp.Day - e.r.weekStart + 7) % 7))
			if e.allowedByMonth(d) {
				dates = append(dates, d)
			}
		}
	} else {
		d := ws.AddDays(int((e.startDate.Weekday() - e.r.weekStart + 7) % 7))
		if e.allowedByMonth(d) {
			dates = append(dates, d)
		}
	}
	return dates
}

// timeSet expands BYHOUR/BYMINUTE/BYSECOND for daily and coarser rules,
// defaulting each level to the anchor's wall-clock component.
func (e *expander) timeSet() []timeutil.TimeOfDay {
	hours := e.r.byHour
	if len(hours) == 0 {
		hours = []int{e.clock.Hour}
	}
	minutes := e.r.byMinute
	if len(minutes) == 0 {
		minutes = []int{e.clock.Minute}
	}
	seconds := e.r.bySecond
	if len(seconds) == 0 {
		seconds = []int{e.clock.Second}
	}
	set := make([]timeutil.TimeOfDay, 0, len(hours)*len(minutes)*len(seconds))
	for _, hh := range hours {
		for _, mm := range minutes {
			for _, ss := range seconds {
				set = append(set, timeutil.TimeOfDay{Hour: hh, Minute: mm, Second: ss})
			}
		}
	}
	return set
}

// candidatesInPeriod returns the occurrences of the n-th stepped base
// period, sorted ascending, BYSETPOS applied, and candidates before the
// anchor dropped.
func (e *expander) candidatesInPeriod(n int64) []time.Time {
	step := int(n) * e.r.frequency
	var cands []time.Time
	switch e.r.period {
	case PeriodYearly:
		cands = e.datesToTimes(e.yearDates(e.startDate.Year + step))
	case PeriodMonthly:
		mi := monthIndex(e.startDate) + int64(step)
		year, month := int(mi/12), time.Month(mi%12)+1
		if !e.allowedByMonth(timeutil.Date{Year: year, Month: month, Day: 1}) {
			return nil
		}
		cands = e.datesToTimes(e.monthDates(year, month))
	case PeriodWeekly:
		ws := e.weekAlign(e.startDate).AddDays(step * 7)
		cands = e.datesToTimes(e.weekDates(ws))
	case PeriodDaily:
		d := e.startDate.AddDays(step)
		if !e.allowedByMonth(d) || !e.allowedByMonthDay(d) || !e.allowedByYearDay(d) || !e.allowedByDay(d, relWeekday) {
			return nil
		}
		cands = e.datesToTimes([]timeutil.Date{d})
	case PeriodHourly, PeriodMinutely, PeriodSecondly:
		cands = e.subDailyCandidates(n)
	default:
		return nil
	}
	return e.finishPeriod(cands)
}

func (e *expander) datesToTimes(dates []timeutil.Date) []time.Time {
	if len(dates) == 0 {
		return nil
	}
	dates = sortedlist.SortUnique(dates, cmpDate)
	times := e.timeSet()
	cands := make([]time.Time, 0, len(dates)*len(times))
	for _, d := range dates {
		for _, td := range times {
			cands = append(cands, td.On(d, e.loc))
		}
	}
	return cands
}

func (e *expander) subDailyCandidates(n int64) []time.Time {
	var unit time.Duration
	switch e.r.period {
	case PeriodHourly:
		unit = time.Hour
	case PeriodMinutely:
		unit = time.Minute
	default:
		unit = time.Second
	}
	base := e.r.start.Add(time.Duration(int(n)*e.r.frequency) * unit)
	d := timeutil.DateOf(base)
	if !e.allowedByMonth(d) || !e.allowedByMonthDay(d) || !e.allowedByYearDay(d) || !e.allowedByDay(d, relWeekday) {
		return nil
	}
	hh, mm, ss := base.Clock()
	if len(e.r.byHour) > 0 && !containsInt(e.r.byHour, hh) {
		return nil
	}
	switch e.r.period {
	case PeriodHourly:
		minutes := e.r.byMinute
		if len(minutes) == 0 {
			minutes = []int{mm}
		}
		seconds := e.r.bySecond
		if len(seconds) == 0 {
			seconds = []int{ss}
		}
		cands := make([]time.Time, 0, len(minutes)*len(seconds))
		for _, m := range minutes {
			for _, s := range seconds {
				cands = append(cands, time.Date(d.Year, d.Month, d.Day, hh, m, s, 0, e.loc))
			}
		}
		return cands
	case PeriodMinutely:
		if len(e.r.byMinute) > 0 && !containsInt(e.r.byMinute, mm) {
			return nil
		}
		seconds := e.r.bySecond
		if len(seconds) == 0 {
			seconds = []int{ss}
		}
		cands := make([]time.Time, 0, len(seconds))
		for _, s := range seconds {
			cands = append(cands, time.Date(d.Year, d.Month, d.Day, hh, mm, s, 0, e.loc))
		}
		return cands
	default:
		if len(e.r.byMinute) > 0 && !containsInt(e.r.byMinute, mm) {
			return nil
		}
		if len(e.r.bySecond) > 0 && !containsInt(e.r.bySecond, ss) {
			return nil
		}
		return []time.Time{base}
	}
}

// finishPeriod sorts one period's candidate set, applies BYSETPOS and
// drops candidates before the anchor.
func (e *expander) finishPeriod(cands []time.Time) []time.Time {
	if len(cands) == 0 {
		return nil
	}
	cands = sortedlist.SortUnique(cands, cmpTime)
	if len(e.r.bySetPos) > 0 {
		selected := make([]time.Time, 0, len(e.r.bySetPos))
		for _, p := range e.r.bySetPos {
			i := p - 1
			if p < 0 {
				i = len(cands) + p
			}
			if i >= 0 && i < len(cands) {
				selected = append(selected, cands[i])
			}
		}
		cands = sortedlist.SortUnique(selected, cmpTime)
	}
	out := cands[:0]
	for _, t := range cands {
		if !t.Before(e.r.start) {
			out = append(out, t)
		}
	}
	return out
}

// --- ascending iteration ---

type occIterator struct {
	e            *expander
	n            int64
	queue        []time.Time
	qi           int
	emitted      int
	enforceCount bool
	emptyRun     int
}

// iterFrom starts ascending iteration at stepped period n. Count
// termination can only be enforced when iteration starts at the anchor
// period, since the count is global.
func (e *expander) iterFrom(n int64) *occIterator {
	return &occIterator{e: e, n: n, enforceCount: n == 0}
}

func (it *occIterator) next() (time.Time, bool) {
	r := it.e.r
	for {
		if it.qi < len(it.queue) {
			t := it.queue[it.qi]
			it.qi++
			switch r.termination.Kind() {
			case TerminateUntil:
				if it.e.afterUntil(t) {
					return time.Time{}, false
				}
			case TerminateCount:
				if it.enforceCount && it.emitted >= r.termination.Count() {
					return time.Time{}, false
				}
			}
			it.emitted++
			return t, true
		}
		if it.emptyRun >= maxEmptyPeriods {
			return time.Time{}, false
		}
		if r.termination.Kind() == TerminateUntil &&
			it.e.periodFloor(it.n).After(r.termination.Until().Add(untilSpill)) {
			return time.Time{}, false
		}
		it.queue = it.e.candidatesInPeriod(it.n)
		it.n++
		it.qi = 0
		if len(it.queue) == 0 {
			it.emptyRun++
		} else {
			it.emptyRun = 0
		}
	}
}

// normalize projects a query instant into the rule's frame: the rule's
// zone for timed rules, the caller's calendar date at midnight for
// all-day rules (which are zone-agnostic).
func (e *expander) normalize(t time.Time) time.Time {
	if e.r.allDay {
		return timeutil.DateOf(t).Time(0, 0, 0, e.loc)
	}
	return e.tm.ToZone(t, e.loc)
}

// afterUntil reports whether t lies beyond the until bound, comparing by
// calendar date for all-day rules.
func (e *expander) afterUntil(t time.Time) bool {
	until := e.r.termination.Until()
	if e.r.allDay {
		return timeutil.DateOf(t).After(timeutil.DateOf(until))
	}
	return t.After(until)
}

// --- queries ---

func (e *expander) recursAt(t time.Time) bool {
	if e.r.period == PeriodNone {
		return false
	}
	tt := e.normalize(t)
	if tt.Before(e.r.start) {
		return false
	}
	if e.r.termination.Kind() == TerminateCount {
		// The count is global, so walk from the anchor; bounded by the
		// count itself.
		it := e.iterFrom(0)
		for {
			occ, ok := it.next()
			if !ok {
				return false
			}
			if e.sameOccurrence(occ, tt) {
				return true
			}
			if occ.After(tt) {
				return false
			}
		}
	}
	ord := e.periodOrdinal(tt)
	if ord < 0 || ord%int64(e.r.frequency) != 0 {
		return false
	}
	for _, occ := range e.candidatesInPeriod(ord / int64(e.r.frequency)) {
		if e.sameOccurrence(occ, tt) {
			return e.r.termination.Kind() != TerminateUntil || !e.afterUntil(occ)
		}
	}
	return false
}

func (e *expander) sameOccurrence(occ, t time.Time) bool {
	if e.r.allDay {
		return timeutil.DateOf(occ) == timeutil.DateOf(t)
	}
	return occ.Equal(t)
}

func (e *expander) timesInInterval(start, end time.Time) []time.Time {
	if e.r.period == PeriodNone || end.Before(start) {
		return nil
	}
	effStart := start
	if e.r.start.After(effStart) {
		effStart = e.r.start
	}
	var it *occIterator
	if e.r.termination.Kind() == TerminateCount {
		it = e.iterFrom(0)
	} else {
		n0 := int64(0)
		if effStart.After(e.r.start) {
			n0 = e.periodOrdinal(e.normalize(effStart))/int64(e.r.frequency) - 1
			if n0 < 0 {
				n0 = 0
			}
		}
		it = e.iterFrom(n0)
	}
	horizon := end.Add(untilSpill)
	var out []time.Time
	for {
		t, ok := it.next()
		if !ok {
			break
		}
		if t.After(horizon) {
			break
		}
		if !t.Before(effStart) && !t.After(end) {
			out = append(out, t)
		}
	}
	return sortedlist.SortUnique(out, cmpTime)
}

// timesOnDate returns the occurrences whose date, projected into loc,
// equals date. All-day occurrences compare by calendar date alone.
func (e *expander) timesOnDate(date timeutil.Date, loc *time.Location) []time.Time {
	if e.r.period == PeriodNone {
		return nil
	}
	if e.r.allDay {
		window := e.timesInInterval(date.Time(0, 0, 0, e.loc), date.Time(23, 59, 59, e.loc))
		out := window[:0]
		for _, t := range window {
			if timeutil.DateOf(t) == date {
				out = append(out, t)
			}
		}
		return out
	}
	// A day in loc spans at most [start-of-day, end-of-day] shifted by
	// the zone offset difference; a one-day pad on each side covers it.
	lo := date.Time(0, 0, 0, loc).Add(-24 * time.Hour)
	hi := date.Time(23, 59, 59, loc).Add(24 * time.Hour)
	window := e.timesInInterval(lo, hi)
	out := window[:0]
	for _, t := range window {
		if timeutil.DateOf(e.tm.ToZone(t, loc)) == date {
			out = append(out, t)
		}
	}
	return out
}

func (e *expander) nextAfter(t time.Time) mo.Option[time.Time] {
	if e.r.period == PeriodNone {
		return mo.None[time.Time]()
	}
	tt := e.normalize(t)
	var it *occIterator
	if e.r.termination.Kind() == TerminateCount || !tt.After(e.r.start) {
		it = e.iterFrom(0)
	} else {
		n0 := e.periodOrdinal(tt)/int64(e.r.frequency) - 1
		if n0 < 0 {
			n0 = 0
		}
		it = e.iterFrom(n0)
	}
	for {
		occ, ok := it.next()
		if !ok {
			return mo.None[time.Time]()
		}
		if occ.After(tt) {
			return mo.Some(occ)
		}
	}
}

func (e *expander) previousBefore(t time.Time) mo.Option[time.Time] {
	if e.r.period == PeriodNone {
		return mo.None[time.Time]()
	}
	tt := e.normalize(t)
	if !tt.After(e.r.start) {
		return mo.None[time.Time]()
	}
	if e.r.termination.Kind() == TerminateCount {
		it := e.iterFrom(0)
		best := mo.None[time.Time]()
		for {
			occ, ok := it.next()
			if !ok || !occ.Before(tt) {
				return best
			}
			best = mo.Some(occ)
		}
	}
	hi := tt
	if e.r.termination.Kind() == TerminateUntil {
		until := e.r.termination.Until()
		if e.r.allDay {
			until = timeutil.DateOf(until).Time(23, 59, 59, e.loc)
		}
		if until.Before(hi) {
			hi = until.Add(time.Second)
		}
	}
	n := e.periodOrdinal(hi)/int64(e.r.frequency) + 1
	emptyRun := 0
	for ; n >= 0 && emptyRun <= maxEmptyPeriods; n-- {
		cands := e.candidatesInPeriod(n)
		if len(cands) == 0 {
			emptyRun++
			continue
		}
		emptyRun = 0
		for i := len(cands) - 1; i >= 0; i-- {
			occ := cands[i]
			if !occ.Before(tt) {
				continue
			}
			if e.r.termination.Kind() == TerminateUntil && e.afterUntil(occ) {
				continue
			}
			return mo.Some(occ)
		}
	}
	return mo.None[time.Time]()
}

// countThrough returns the number of occurrences at or before t.
func (e *expander) countThrough(t time.Time) int {
	if e.r.period == PeriodNone {
		return 0
	}
	tt := e.normalize(t)
	it := e.iterFrom(0)
	count := 0
	for {
		occ, ok := it.next()
		if !ok {
			return count
		}
		if e.r.allDay {
			if timeutil.DateOf(occ).After(timeutil.DateOf(tt)) {
				return count
			}
		} else if occ.After(tt) {
			return count
		}
		count++
	}
}

// lastOccurrence walks a count-terminated rule to its final occurrence.
func (e *expander) lastOccurrence() mo.Option[time.Time] {
	it := e.iterFrom(0)
	best := mo.None[time.Time]()
	for {
		occ, ok := it.next()
		if !ok {
			return best
		}
		best = mo.Some(occ)
	}
}
