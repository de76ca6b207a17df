package recurrence

import (
	"slices"
	"time"

	"github.com/samber/mo"

	"github.com/kalends/librecur/timeutil"
)

// Rule is a single RFC 5545 recurrence rule anchored at a start instant.
// It enumerates occurrences in ascending order and answers pointwise
// queries. A Rule used as an EXRULE has identical semantics; only the
// containing Recurrence treats its matches as exclusions.
//
// Mutators validate their input and reject out-of-range values with a
// *RuleError. Queries never fail; out-of-range queries return false, none
// or an empty list.
type Rule struct {
	tm timeutil.Provider

	period      PeriodType
	frequency   int
	start       time.Time
	termination Termination
	weekStart   time.Weekday
	allDay      bool

	bySecond   []int
	byMinute   []int
	byHour     []int
	byDay      []WeekdayPos
	byMonthDay []int
	byYearDay  []int
	byWeekNo   []int
	byMonth    []int
	bySetPos   []int

	observers []RuleObserver
}

// NewRule returns a rule recurring every frequency periods starting at
// start, with no BY-filters and no termination.
func NewRule(period PeriodType, frequency int, start time.Time) (*Rule, error) {
	r := &Rule{
		tm:        timeutil.Std{},
		period:    PeriodNone,
		frequency: 1,
		weekStart: time.Monday,
	}
	if err := r.SetPeriod(period); err != nil {
		return nil, err
	}
	if err := r.SetFrequency(frequency); err != nil {
		return nil, err
	}
	r.SetStart(start)
	return r, nil
}

// SetTimeProvider injects the time model used for calendar arithmetic.
// A nil provider resets to the stdlib-backed default.
func (r *Rule) SetTimeProvider(tm timeutil.Provider) {
	if tm == nil {
		tm = timeutil.Std{}
	}
	r.tm = tm
}

// Period returns the base repetition unit.
func (r *Rule) Period() PeriodType { return r.period }

// SetPeriod sets the base repetition unit.
func (r *Rule) SetPeriod(p PeriodType) error {
	if p < PeriodNone || p > PeriodYearly {
		return ruleErrorf(ErrInvalidPeriod, "unknown period %d", int(p))
	}
	r.period = p
	r.changed()
	return nil
}

// Frequency returns the interval between base periods.
func (r *Rule) Frequency() int { return r.frequency }

// SetFrequency sets the interval between base periods; it must be >= 1.
func (r *Rule) SetFrequency(freq int) error {
	if freq < 1 {
		return ruleErrorf(ErrInvalidFrequency, "frequency %d, must be >= 1", freq)
	}
	r.frequency = freq
	r.changed()
	return nil
}

// Start returns the anchor instant, the first candidate occurrence.
func (r *Rule) Start() time.Time { return r.start }

// SetStart sets the anchor instant. A start with no time-of-day component
// is usually paired with SetAllDay(true) by the containing Recurrence.
func (r *Rule) SetStart(start time.Time) {
	r.start = start
	r.changed()
}

// Termination returns the rule's end condition.
func (r *Rule) Termination() Termination { return r.termination }

// SetTermination sets the end condition. A count termination must carry a
// count >= 1.
func (r *Rule) SetTermination(t Termination) error {
	if t.Kind() == TerminateCount && t.Count() < 1 {
		return ruleErrorf(ErrInvalidTermination, "count %d, must be >= 1", t.Count())
	}
	r.termination = t
	r.changed()
	return nil
}

// WeekStart returns the first day of the week used by weekly expansion
// and week numbering.
func (r *Rule) WeekStart() time.Weekday { return r.weekStart }

// SetWeekStart sets the first day of the week (RFC 5545 WKST).
func (r *Rule) SetWeekStart(wd time.Weekday) {
	r.weekStart = wd
	r.changed()
}

// AllDay reports whether occurrences are date-only.
func (r *Rule) AllDay() bool { return r.allDay }

// SetAllDay marks the rule's occurrences as date-only.
func (r *Rule) SetAllDay(allDay bool) {
	r.allDay = allDay
	r.changed()
}

// BySecond returns the BYSECOND filter, sorted ascending.
func (r *Rule) BySecond() []int { return slices.Clone(r.bySecond) }

// SetBySecond sets the BYSECOND filter; values must lie in [0,60].
func (r *Rule) SetBySecond(secs []int) error {
	canon, err := canonInts(secs, 0, 60, false, "BYSECOND")
	if err != nil {
		return err
	}
	r.bySecond = canon
	r.changed()
	return nil
}

// ByMinute returns the BYMINUTE filter, sorted ascending.
func (r *Rule) ByMinute() []int { return slices.Clone(r.byMinute) }

// SetByMinute sets the BYMINUTE filter; values must lie in [0,59].
func (r *Rule) SetByMinute(mins []int) error {
	canon, err := canonInts(mins, 0, 59, false, "BYMINUTE")
	if err != nil {
		return err
	}
	r.byMinute = canon
	r.changed()
	return nil
}

// ByHour returns the BYHOUR filter, sorted ascending.
func (r *Rule) ByHour() []int { return slices.Clone(r.byHour) }

// SetByHour sets the BYHOUR filter; values must lie in [0,23].
func (r *Rule) SetByHour(hours []int) error {
	canon, err := canonInts(hours, 0, 23, false, "BYHOUR")
	if err != nil {
		return err
	}
	r.byHour = canon
	r.changed()
	return nil
}

// ByDay returns the BYDAY filter.
func (r *Rule) ByDay() []WeekdayPos { return slices.Clone(r.byDay) }

// SetByDay sets the BYDAY filter. Positions must lie in [-53,53]. On a
// weekly rule a positional offset has no defined meaning and is stored
// as 0.
func (r *Rule) SetByDay(days []WeekdayPos) error {
	canon := make([]WeekdayPos, 0, len(days))
	for _, wp := range days {
		if wp.Pos < -53 || wp.Pos > 53 {
			return ruleErrorf(ErrFilterOutOfRange, "BYDAY position %d outside [-53,53]", wp.Pos)
		}
		if wp.Day < time.Sunday || wp.Day > time.Saturday {
			return ruleErrorf(ErrFilterOutOfRange, "BYDAY weekday %d", int(wp.Day))
		}
		if r.period == PeriodWeekly {
			wp.Pos = 0
		}
		canon = append(canon, wp)
	}
	slices.SortFunc(canon, func(a, b WeekdayPos) int {
		if a.Pos != b.Pos {
			return a.Pos - b.Pos
		}
		return int(a.Day) - int(b.Day)
	})
	canon = slices.Compact(canon)
	r.byDay = canon
	r.changed()
	return nil
}

// ByMonthDay returns the BYMONTHDAY filter, sorted ascending.
func (r *Rule) ByMonthDay() []int { return slices.Clone(r.byMonthDay) }

// SetByMonthDay sets the BYMONTHDAY filter; values must lie in
// [-31,-1] or [1,31]. Negative values count from the end of the month.
func (r *Rule) SetByMonthDay(days []int) error {
	canon, err := canonInts(days, -31, 31, true, "BYMONTHDAY")
	if err != nil {
		return err
	}
	r.byMonthDay = canon
	r.changed()
	return nil
}

// ByYearDay returns the BYYEARDAY filter, sorted ascending.
func (r *Rule) ByYearDay() []int { return slices.Clone(r.byYearDay) }

// SetByYearDay sets the BYYEARDAY filter; values must lie in
// [-366,-1] or [1,366].
func (r *Rule) SetByYearDay(days []int) error {
	canon, err := canonInts(days, -366, 366, true, "BYYEARDAY")
	if err != nil {
		return err
	}
	r.byYearDay = canon
	r.changed()
	return nil
}

// ByWeekNo returns the BYWEEKNO filter, sorted ascending.
func (r *Rule) ByWeekNo() []int { return slices.Clone(r.byWeekNo) }

// SetByWeekNo sets the BYWEEKNO filter; values must lie in
// [-53,-1] or [1,53].
func (r *Rule) SetByWeekNo(weeks []int) error {
	canon, err := canonInts(weeks, -53, 53, true, "BYWEEKNO")
	if err != nil {
		return err
	}
	r.byWeekNo = canon
	r.changed()
	return nil
}

// ByMonth returns the BYMONTH filter, sorted ascending.
func (r *Rule) ByMonth() []int { return slices.Clone(r.byMonth) }

// SetByMonth sets the BYMONTH filter; values must lie in [1,12].
func (r *Rule) SetByMonth(months []int) error {
	canon, err := canonInts(months, 1, 12, false, "BYMONTH")
	if err != nil {
		return err
	}
	r.byMonth = canon
	r.changed()
	return nil
}

// BySetPos returns the BYSETPOS filter, sorted ascending.
func (r *Rule) BySetPos() []int { return slices.Clone(r.bySetPos) }

// SetBySetPos sets the BYSETPOS selection; values must lie in
// [-366,-1] or [1,366]. Zero is rejected.
func (r *Rule) SetBySetPos(pos []int) error {
	for _, p := range pos {
		if p == 0 {
			return ruleErrorf(ErrZeroSetPos, "BYSETPOS 0 selects nothing")
		}
	}
	canon, err := canonInts(pos, -366, 366, true, "BYSETPOS")
	if err != nil {
		return err
	}
	r.bySetPos = canon
	r.changed()
	return nil
}

func canonInts(vals []int, lo, hi int, forbidZero bool, what string) ([]int, error) {
	canon := make([]int, 0, len(vals))
	for _, v := range vals {
		if v < lo || v > hi || (forbidZero && v == 0) {
			return nil, ruleErrorf(ErrFilterOutOfRange, "%s value %d outside range", what, v)
		}
		canon = append(canon, v)
	}
	slices.Sort(canon)
	return slices.Compact(canon), nil
}

// AddObserver registers o for change notification. Registration is
// idempotent.
func (r *Rule) AddObserver(o RuleObserver) {
	r.observers = addObserver(r.observers, o)
}

// RemoveObserver deregisters o. Unknown observers are tolerated.
func (r *Rule) RemoveObserver(o RuleObserver) {
	r.observers = removeObserver(r.observers, o)
}

func (r *Rule) changed() {
	for i := 0; i < len(r.observers); i++ {
		if r.observers[i] != nil {
			r.observers[i].RuleChanged(r)
		}
	}
}

// ShiftTimes reinterprets the rule as if its wall-clock readings always
// belonged to newLoc: the anchor is first projected into oldLoc, then
// stamped with newLoc. No-op if either location is nil or both are equal.
func (r *Rule) ShiftTimes(oldLoc, newLoc *time.Location) {
	if oldLoc == nil || newLoc == nil || oldLoc == newLoc {
		return
	}
	r.start = r.tm.StampZone(r.tm.ToZone(r.start, oldLoc), newLoc)
	if r.termination.Kind() == TerminateUntil {
		r.termination = EndUntil(r.tm.StampZone(r.tm.ToZone(r.termination.until, oldLoc), newLoc))
	}
	r.changed()
}

// Clone returns a deep copy of the rule with no observers attached.
func (r *Rule) Clone() *Rule {
	c := *r
	c.bySecond = slices.Clone(r.bySecond)
	c.byMinute = slices.Clone(r.byMinute)
	c.byHour = slices.Clone(r.byHour)
	c.byDay = slices.Clone(r.byDay)
	c.byMonthDay = slices.Clone(r.byMonthDay)
	c.byYearDay = slices.Clone(r.byYearDay)
	c.byWeekNo = slices.Clone(r.byWeekNo)
	c.byMonth = slices.Clone(r.byMonth)
	c.bySetPos = slices.Clone(r.bySetPos)
	c.observers = nil
	return &c
}

// Equal reports deep field-wise equality. Observer registrations and
// injected time providers do not participate.
func (r *Rule) Equal(o *Rule) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.period == o.period &&
		r.frequency == o.frequency &&
		r.start.Equal(o.start) &&
		r.termination.Equal(o.termination) &&
		r.weekStart == o.weekStart &&
		r.allDay == o.allDay &&
		slices.Equal(r.bySecond, o.bySecond) &&
		slices.Equal(r.byMinute, o.byMinute) &&
		slices.Equal(r.byHour, o.byHour) &&
		slices.Equal(r.byDay, o.byDay) &&
		slices.Equal(r.byMonthDay, o.byMonthDay) &&
		slices.Equal(r.byYearDay, o.byYearDay) &&
		slices.Equal(r.byWeekNo, o.byWeekNo) &&
		slices.Equal(r.byMonth, o.byMonth) &&
		slices.Equal(r.bySetPos, o.bySetPos)
}

// RecursAt reports whether t is an occurrence of the rule.
func (r *Rule) RecursAt(t time.Time) bool {
	return newExpander(r).recursAt(t)
}

// RecursOn reports whether any occurrence falls on date when projected
// into loc.
func (r *Rule) RecursOn(date timeutil.Date, loc *time.Location) bool {
	return len(newExpander(r).timesOnDate(date, loc)) > 0
}

// RecurTimesOn returns the wall-clock times of all occurrences whose date
// in loc equals date, sorted ascending.
func (r *Rule) RecurTimesOn(date timeutil.Date, loc *time.Location) []timeutil.TimeOfDay {
	occ := newExpander(r).timesOnDate(date, loc)
	times := make([]timeutil.TimeOfDay, 0, len(occ))
	for _, t := range occ {
		times = append(times, timeutil.TimeOfDayOf(r.tm.ToZone(t, loc)))
	}
	return times
}

// TimesInInterval returns all occurrences in [start, end], inclusive at
// both ends, sorted ascending.
func (r *Rule) TimesInInterval(start, end time.Time) []time.Time {
	return newExpander(r).timesInInterval(start, end)
}

// GetNextDate returns the smallest occurrence strictly after t, or none.
func (r *Rule) GetNextDate(t time.Time) mo.Option[time.Time] {
	return newExpander(r).nextAfter(t)
}

// GetPreviousDate returns the largest occurrence strictly before t, or
// none.
func (r *Rule) GetPreviousDate(t time.Time) mo.Option[time.Time] {
	return newExpander(r).previousBefore(t)
}

// Duration returns the total number of occurrences: the count for a
// count-terminated rule, -1 for a never-ending rule, and the derived
// count for an until-terminated rule.
func (r *Rule) Duration() int {
	switch r.termination.Kind() {
	case TerminateNever:
		return -1
	case TerminateCount:
		return r.termination.Count()
	default:
		return newExpander(r).countThrough(r.termination.Until())
	}
}

// DurationTo returns the number of occurrences at or before t.
func (r *Rule) DurationTo(t time.Time) int {
	return newExpander(r).countThrough(t)
}

// EndInstant returns the last occurrence of a count-terminated rule, the
// until instant of an until-terminated rule, and none for a never-ending
// rule.
func (r *Rule) EndInstant() mo.Option[time.Time] {
	switch r.termination.Kind() {
	case TerminateNever:
		return mo.None[time.Time]()
	case TerminateUntil:
		return mo.Some(r.termination.Until())
	default:
		return newExpander(r).lastOccurrence()
	}
}
