package recurrence

import (
	"slices"
	"time"

	"github.com/samber/mo"

	"github.com/kalends/librecur/internal/sortedlist"
	"github.com/kalends/librecur/timeutil"
)

// Recurrence bundles the recurrence data of one calendar component: zero
// or more inclusion and exclusion rules plus explicit inclusion and
// exclusion dates and instants, anchored at a start instant.
//
// A Recurrence owns its rules: it registers itself as an observer on each
// contained rule, so rule edits invalidate the classification cache and
// notify the recurrence's own observers. Removing a rule detaches that
// link.
//
// All mutators are silent no-ops while the recurrence is read-only.
type Recurrence struct {
	tm     timeutil.Provider
	config Config

	start    time.Time
	allDay   bool
	readOnly bool

	rRules  []*Rule
	exRules []*Rule

	rDates      []timeutil.Date
	exDates     []timeutil.Date
	rDateTimes  []time.Time
	exDateTimes []time.Time

	cachedKind Kind
	observers  []Observer
	muted      bool
}

// New returns an empty Recurrence with DefaultConfig.
func New() *Recurrence {
	return NewWithConfig(DefaultConfig)
}

// NewWithConfig returns an empty Recurrence with the given limits.
func NewWithConfig(cfg Config) *Recurrence {
	if cfg.IterationBudget < 1 {
		cfg.IterationBudget = DefaultConfig.IterationBudget
	}
	return &Recurrence{
		tm:         timeutil.Std{},
		config:     cfg,
		cachedKind: kindUnknown,
	}
}

// SetTimeProvider injects the time model into the recurrence and every
// contained rule. A nil provider resets to the stdlib-backed default.
func (r *Recurrence) SetTimeProvider(tm timeutil.Provider) {
	if tm == nil {
		tm = timeutil.Std{}
	}
	r.tm = tm
	for _, rule := range r.rRules {
		rule.tm = tm
	}
	for _, rule := range r.exRules {
		rule.tm = tm
	}
}

// AddObserver registers o for change notification. Registration is
// idempotent.
func (r *Recurrence) AddObserver(o Observer) {
	r.observers = addObserver(r.observers, o)
}

// RemoveObserver deregisters o. Unknown observers are tolerated.
func (r *Recurrence) RemoveObserver(o Observer) {
	r.observers = removeObserver(r.observers, o)
}

// RuleChanged implements RuleObserver for contained rules.
func (r *Recurrence) RuleChanged(*Rule) {
	r.cachedKind = kindUnknown
	if !r.muted {
		r.notify()
	}
}

// updated invalidates the classification cache and fires one
// notification.
func (r *Recurrence) updated() {
	r.cachedKind = kindUnknown
	r.notify()
}

func (r *Recurrence) notify() {
	for i := 0; i < len(r.observers); i++ {
		if r.observers[i] != nil {
			r.observers[i].RecurrenceUpdated(r)
		}
	}
}

// mutate runs fn with rule notifications collapsed into the single
// notification fired by the enclosing operation.
func (r *Recurrence) mutate(fn func()) {
	r.muted = true
	fn()
	r.muted = false
	r.updated()
}

// ReadOnly reports whether mutators are disabled.
func (r *Recurrence) ReadOnly() bool { return r.readOnly }

// SetReadOnly enables or disables mutation.
func (r *Recurrence) SetReadOnly(readOnly bool) { r.readOnly = readOnly }

// Recurs reports whether the recurrence has any inclusion source beyond
// the anchor.
func (r *Recurrence) Recurs() bool {
	return len(r.rRules) > 0 || len(r.rDates) > 0 || len(r.rDateTimes) > 0
}

// Classification returns the cached coarse kind of the recurrence,
// derived from the first inclusion rule. Any mutation invalidates the
// cache.
func (r *Recurrence) Classification() Kind {
	if r.cachedKind == kindUnknown {
		r.cachedKind = ClassifyRule(r.defaultRRuleConst())
	}
	return r.cachedKind
}

// Start returns the anchor instant (DTSTART).
func (r *Recurrence) Start() time.Time { return r.start }

// StartDate returns the anchor's calendar date.
func (r *Recurrence) StartDate() timeutil.Date { return timeutil.DateOf(r.start) }

// SetStartDateTime sets a timed anchor: the all-day flag clears and every
// contained rule's start follows.
func (r *Recurrence) SetStartDateTime(start time.Time) {
	if r.readOnly {
		return
	}
	r.mutate(func() {
		r.start = start
		r.setAllDayLocked(false)
		for _, rule := range r.rRules {
			rule.SetStart(start)
		}
		for _, rule := range r.exRules {
			rule.SetStart(start)
		}
	})
}

// SetStartDate sets an all-day anchor at midnight of d, keeping the
// anchor's current location.
func (r *Recurrence) SetStartDate(d timeutil.Date) {
	if r.readOnly {
		return
	}
	loc := r.start.Location()
	r.mutate(func() {
		r.start = d.Time(0, 0, 0, loc)
		r.setAllDayLocked(true)
		for _, rule := range r.rRules {
			rule.SetStart(r.start)
		}
		for _, rule := range r.exRules {
			rule.SetStart(r.start)
		}
	})
}

// AllDay reports whether the recurrence is date-only.
func (r *Recurrence) AllDay() bool { return r.allDay }

// SetAllDay marks the recurrence and every contained rule date-only.
// Setting the current value again is a no-op and fires no notification.
func (r *Recurrence) SetAllDay(allDay bool) {
	if r.readOnly || allDay == r.allDay {
		return
	}
	r.mutate(func() { r.setAllDayLocked(allDay) })
}

func (r *Recurrence) setAllDayLocked(allDay bool) {
	r.allDay = allDay
	for _, rule := range r.rRules {
		rule.SetAllDay(allDay)
	}
	for _, rule := range r.exRules {
		rule.SetAllDay(allDay)
	}
}

// --- rule management ---

// RRules returns the inclusion rules. The slice is shared; treat it as
// read-only.
func (r *Recurrence) RRules() []*Rule { return r.rRules }

// ExRules returns the exclusion rules. The slice is shared; treat it as
// read-only.
func (r *Recurrence) ExRules() []*Rule { return r.exRules }

// AddRRule appends an inclusion rule and takes ownership of it.
func (r *Recurrence) AddRRule(rule *Rule) {
	if r.readOnly || rule == nil {
		return
	}
	r.mutate(func() {
		rule.SetAllDay(r.allDay)
		rule.tm = r.tm
		r.rRules = append(r.rRules, rule)
		rule.AddObserver(r)
	})
}

// RemoveRRule removes an inclusion rule and detaches its observer link.
func (r *Recurrence) RemoveRRule(rule *Rule) {
	if r.readOnly {
		return
	}
	i := slices.Index(r.rRules, rule)
	if i < 0 {
		return
	}
	r.rRules = slices.Delete(r.rRules, i, i+1)
	rule.RemoveObserver(r)
	r.updated()
}

// AddExRule appends an exclusion rule and takes ownership of it.
func (r *Recurrence) AddExRule(rule *Rule) {
	if r.readOnly || rule == nil {
		return
	}
	r.mutate(func() {
		rule.SetAllDay(r.allDay)
		rule.tm = r.tm
		r.exRules = append(r.exRules, rule)
		rule.AddObserver(r)
	})
}

// RemoveExRule removes an exclusion rule and detaches its observer link.
func (r *Recurrence) RemoveExRule(rule *Rule) {
	if r.readOnly {
		return
	}
	i := slices.Index(r.exRules, rule)
	if i < 0 {
		return
	}
	r.exRules = slices.Delete(r.exRules, i, i+1)
	rule.RemoveObserver(r)
	r.updated()
}

// defaultRRule returns the first inclusion rule, creating an empty one
// anchored at the recurrence's start when create is set.
func (r *Recurrence) defaultRRule(create bool) *Rule {
	if len(r.rRules) > 0 {
		return r.rRules[0]
	}
	if !create || r.readOnly {
		return nil
	}
	rule := &Rule{
		tm:        r.tm,
		period:    PeriodNone,
		frequency: 1,
		weekStart: time.Monday,
		start:     r.start,
		allDay:    r.allDay,
	}
	r.rRules = append(r.rRules, rule)
	rule.AddObserver(r)
	return rule
}

func (r *Recurrence) defaultRRuleConst() *Rule {
	if len(r.rRules) == 0 {
		return nil
	}
	return r.rRules[0]
}

// --- date and instant lists ---

// RDates returns the inclusion dates, sorted ascending.
func (r *Recurrence) RDates() []timeutil.Date { return slices.Clone(r.rDates) }

// SetRDates replaces the inclusion dates; input order is irrelevant.
func (r *Recurrence) SetRDates(dates []timeutil.Date) {
	if r.readOnly {
		return
	}
	r.rDates = sortedlist.SortUnique(slices.Clone(dates), cmpDate)
	r.updated()
}

// AddRDate inserts one inclusion date.
func (r *Recurrence) AddRDate(d timeutil.Date) {
	if r.readOnly {
		return
	}
	r.rDates, _ = sortedlist.InsertSorted(r.rDates, d, cmpDate)
	r.updated()
}

// ExDates returns the exclusion dates, sorted ascending.
func (r *Recurrence) ExDates() []timeutil.Date { return slices.Clone(r.exDates) }

// SetExDates replaces the exclusion dates; input order is irrelevant.
func (r *Recurrence) SetExDates(dates []timeutil.Date) {
	if r.readOnly {
		return
	}
	r.exDates = sortedlist.SortUnique(slices.Clone(dates), cmpDate)
	r.updated()
}

// AddExDate inserts one exclusion date.
func (r *Recurrence) AddExDate(d timeutil.Date) {
	if r.readOnly {
		return
	}
	r.exDates, _ = sortedlist.InsertSorted(r.exDates, d, cmpDate)
	r.updated()
}

// RDateTimes returns the inclusion instants, sorted ascending.
func (r *Recurrence) RDateTimes() []time.Time { return slices.Clone(r.rDateTimes) }

// SetRDateTimes replaces the inclusion instants; input order is
// irrelevant.
func (r *Recurrence) SetRDateTimes(times []time.Time) {
	if r.readOnly {
		return
	}
	r.rDateTimes = sortedlist.SortUnique(slices.Clone(times), cmpTime)
	r.updated()
}

// AddRDateTime inserts one inclusion instant.
func (r *Recurrence) AddRDateTime(t time.Time) {
	if r.readOnly {
		return
	}
	r.rDateTimes, _ = sortedlist.InsertSorted(r.rDateTimes, t, cmpTime)
	r.updated()
}

// ExDateTimes returns the exclusion instants, sorted ascending.
func (r *Recurrence) ExDateTimes() []time.Time { return slices.Clone(r.exDateTimes) }

// SetExDateTimes replaces the exclusion instants; input order is
// irrelevant.
func (r *Recurrence) SetExDateTimes(times []time.Time) {
	if r.readOnly {
		return
	}
	r.exDateTimes = sortedlist.SortUnique(slices.Clone(times), cmpTime)
	r.updated()
}

// AddExDateTime inserts one exclusion instant.
func (r *Recurrence) AddExDateTime(t time.Time) {
	if r.readOnly {
		return
	}
	r.exDateTimes, _ = sortedlist.InsertSorted(r.exDateTimes, t, cmpTime)
	r.updated()
}

// Clear empties every rule and date list and fires one notification.
func (r *Recurrence) Clear() {
	if r.readOnly {
		return
	}
	for _, rule := range r.rRules {
		rule.RemoveObserver(r)
	}
	for _, rule := range r.exRules {
		rule.RemoveObserver(r)
	}
	r.rRules = nil
	r.exRules = nil
	r.rDates = nil
	r.exDates = nil
	r.rDateTimes = nil
	r.exDateTimes = nil
	r.updated()
}

// ShiftTimes reinterprets every stored instant and rule as if its
// wall-clock reading always belonged to newLoc, by projecting from the
// current zone into oldLoc and stamping the result with newLoc. No-op if
// either location is nil or both are equal.
func (r *Recurrence) ShiftTimes(oldLoc, newLoc *time.Location) {
	if r.readOnly || oldLoc == nil || newLoc == nil || oldLoc == newLoc {
		return
	}
	shift := func(t time.Time) time.Time {
		return r.tm.StampZone(r.tm.ToZone(t, oldLoc), newLoc)
	}
	r.mutate(func() {
		r.start = shift(r.start)
		for i := range r.rDateTimes {
			r.rDateTimes[i] = shift(r.rDateTimes[i])
		}
		r.rDateTimes = sortedlist.SortUnique(r.rDateTimes, cmpTime)
		for i := range r.exDateTimes {
			r.exDateTimes[i] = shift(r.exDateTimes[i])
		}
		r.exDateTimes = sortedlist.SortUnique(r.exDateTimes, cmpTime)
		for _, rule := range r.rRules {
			rule.ShiftTimes(oldLoc, newLoc)
		}
		for _, rule := range r.exRules {
			rule.ShiftTimes(oldLoc, newLoc)
		}
	})
}

// Clone returns a deep copy: every rule is copied and the copy registers
// itself as their observer. External observers do not carry over.
func (r *Recurrence) Clone() *Recurrence {
	c := &Recurrence{
		tm:          r.tm,
		config:      r.config,
		start:       r.start,
		allDay:      r.allDay,
		readOnly:    r.readOnly,
		rDates:      slices.Clone(r.rDates),
		exDates:     slices.Clone(r.exDates),
		rDateTimes:  slices.Clone(r.rDateTimes),
		exDateTimes: slices.Clone(r.exDateTimes),
		cachedKind:  r.cachedKind,
	}
	for _, rule := range r.rRules {
		cp := rule.Clone()
		cp.AddObserver(c)
		c.rRules = append(c.rRules, cp)
	}
	for _, rule := range r.exRules {
		cp := rule.Clone()
		cp.AddObserver(c)
		c.exRules = append(c.exRules, cp)
	}
	return c
}

// Equal reports deep equality: anchor, flags, all four date/instant
// lists, and both rule lists compared positionally.
func (r *Recurrence) Equal(o *Recurrence) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.start.Equal(o.start) &&
		r.allDay == o.allDay &&
		r.readOnly == o.readOnly &&
		slices.Equal(r.rDates, o.rDates) &&
		slices.Equal(r.exDates, o.exDates) &&
		slices.EqualFunc(r.rDateTimes, o.rDateTimes, time.Time.Equal) &&
		slices.EqualFunc(r.exDateTimes, o.exDateTimes, time.Time.Equal) &&
		slices.EqualFunc(r.rRules, o.rRules, (*Rule).Equal) &&
		slices.EqualFunc(r.exRules, o.exRules, (*Rule).Equal)
}

// --- queries ---

// promoteDate lifts an inclusion date to an instant at the anchor's
// wall-clock time (midnight for all-day recurrences) in the anchor's
// location.
func (r *Recurrence) promoteDate(d timeutil.Date) time.Time {
	if r.allDay {
		return d.Time(0, 0, 0, r.start.Location())
	}
	clock := timeutil.TimeOfDayOf(r.start)
	return clock.On(d, r.start.Location())
}

// frameDate projects an instant onto its calendar date in the anchor's
// frame: the instant's own date for all-day data, the anchor zone's date
// otherwise.
func (r *Recurrence) frameDate(t time.Time) timeutil.Date {
	if r.allDay {
		return timeutil.DateOf(t)
	}
	return timeutil.DateOf(r.tm.ToZone(t, r.start.Location()))
}

// RecursOn reports whether the event occurs on date when projected into
// loc. Exclusions take precedence over inclusions.
func (r *Recurrence) RecursOn(date timeutil.Date, loc *time.Location) bool {
	// Don't waste time if the date is before the start of the recurrence.
	if date.Time(23, 59, 59, loc).Before(r.start) {
		return false
	}
	if sortedlist.ContainsSorted(r.exDates, date, cmpDate) {
		return false
	}
	// For all-day recurrences a matching exrule excludes the whole day;
	// exclusions take precedence over inclusions.
	if r.allDay {
		for _, ex := range r.exRules {
			if ex.RecursOn(date, loc) {
				return false
			}
		}
	}
	if sortedlist.ContainsSorted(r.rDates, date, cmpDate) {
		return true
	}

	// Check whether it might recur on that date at all. An all-day
	// anchor compares by its own calendar date.
	recurs := timeutil.DateOf(r.tm.ToZone(r.start, loc)) == date
	if r.allDay {
		recurs = timeutil.DateOf(r.start) == date
	}
	for i := 0; i < len(r.rDateTimes) && !recurs; i++ {
		recurs = timeutil.DateOf(r.tm.ToZone(r.rDateTimes[i], loc)) == date
	}
	for i := 0; i < len(r.rRules) && !recurs; i++ {
		recurs = r.rRules[i].RecursOn(date, loc)
	}
	if !recurs {
		return false
	}

	// Check whether any times on that date are excluded.
	exon := false
	for i := 0; i < len(r.exDateTimes) && !exon; i++ {
		exon = timeutil.DateOf(r.tm.ToZone(r.exDateTimes[i], loc)) == date
	}
	if !r.allDay { // all-day exrules were already checked above
		for i := 0; i < len(r.exRules) && !exon; i++ {
			exon = r.exRules[i].RecursOn(date, loc)
		}
	}
	if !exon {
		return recurs
	}
	// Some times on that date are excluded, so compute the full list.
	return len(r.RecurTimesOn(date, loc)) > 0
}

// RecursAt reports whether t is an occurrence.
func (r *Recurrence) RecursAt(t time.Time) bool {
	// Convert to the anchor's frame for date comparisons.
	tt := r.tm.ToZone(t, r.start.Location())
	if r.allDay {
		tt = timeutil.DateOf(t).Time(0, 0, 0, r.start.Location())
	}
	// If it's excluded anyway, don't check whether it recurs at all.
	if sortedlist.ContainsSorted(r.exDateTimes, tt, cmpTime) ||
		sortedlist.ContainsSorted(r.exDates, timeutil.DateOf(tt), cmpDate) {
		return false
	}
	for _, ex := range r.exRules {
		if ex.RecursAt(tt) {
			return false
		}
	}
	if tt.Equal(r.start) || sortedlist.ContainsSorted(r.rDateTimes, tt, cmpTime) {
		return true
	}
	// Inclusion dates lift to the anchor's wall-clock time.
	if sortedlist.ContainsSorted(r.rDates, timeutil.DateOf(tt), cmpDate) &&
		tt.Equal(r.promoteDate(timeutil.DateOf(tt))) {
		return true
	}
	for _, rule := range r.rRules {
		if rule.RecursAt(tt) {
			return true
		}
	}
	return false
}

// RecurTimesOn returns the wall-clock times of all occurrences whose
// date in loc equals date, sorted ascending and unique.
func (r *Recurrence) RecurTimesOn(date timeutil.Date, loc *time.Location) []timeutil.TimeOfDay {
	if sortedlist.ContainsSorted(r.exDates, date, cmpDate) {
		return nil
	}
	// Exclusion rules take precedence over inclusion dates, so for
	// all-day recurrences a matching exrule excludes the whole day.
	if r.allDay {
		for _, ex := range r.exRules {
			if ex.RecursOn(date, loc) {
				return nil
			}
		}
	}

	var times []timeutil.TimeOfDay
	if r.allDay {
		if timeutil.DateOf(r.start) == date {
			times = append(times, timeutil.TimeOfDay{})
		}
	} else if dt := r.tm.ToZone(r.start, loc); timeutil.DateOf(dt) == date {
		times = append(times, timeutil.TimeOfDayOf(dt))
	}
	if sortedlist.ContainsSorted(r.rDates, date, cmpDate) {
		times = append(times, timeutil.TimeOfDayOf(r.tm.ToZone(r.promoteDate(date), loc)))
	}
	for _, rdt := range r.rDateTimes {
		if dt := r.tm.ToZone(rdt, loc); timeutil.DateOf(dt) == date {
			times = append(times, timeutil.TimeOfDayOf(dt))
		}
	}
	for _, rule := range r.rRules {
		times = append(times, rule.RecurTimesOn(date, loc)...)
	}
	cmpTod := timeutil.TimeOfDay.Compare
	times = sortedlist.SortUnique(times, cmpTod)

	var extimes []timeutil.TimeOfDay
	for _, exdt := range r.exDateTimes {
		if dt := r.tm.ToZone(exdt, loc); timeutil.DateOf(dt) == date {
			extimes = append(extimes, timeutil.TimeOfDayOf(dt))
		}
	}
	if !r.allDay { // all-day exrules were already checked above
		for _, ex := range r.exRules {
			extimes = append(extimes, ex.RecurTimesOn(date, loc)...)
		}
	}
	extimes = sortedlist.SortUnique(extimes, cmpTod)
	return sortedlist.SubtractSorted(times, extimes, cmpTod)
}

// TimesInInterval returns all occurrences in [start, end], inclusive at
// both ends, sorted ascending and unique.
func (r *Recurrence) TimesInInterval(start, end time.Time) []time.Time {
	if end.Before(start) {
		return nil
	}
	inRange := func(t time.Time) bool { return !t.Before(start) && !t.After(end) }

	var times []time.Time
	if inRange(r.start) {
		times = append(times, r.start)
	}
	for _, rule := range r.rRules {
		times = append(times, rule.TimesInInterval(start, end)...)
	}
	for _, rdt := range r.rDateTimes {
		if inRange(rdt) {
			times = append(times, rdt)
		}
	}
	for _, d := range r.rDates {
		if dt := r.promoteDate(d); inRange(dt) {
			times = append(times, dt)
		}
	}
	times = sortedlist.SortUnique(times, cmpTime)

	// Remove whole days excluded by exdates.
	if len(r.exDates) > 0 {
		kept := times[:0]
		for _, t := range times {
			if !sortedlist.ContainsSorted(r.exDates, r.frameDate(t), cmpDate) {
				kept = append(kept, t)
			}
		}
		times = kept
	}

	var extimes []time.Time
	for _, ex := range r.exRules {
		extimes = append(extimes, ex.TimesInInterval(start, end)...)
	}
	extimes = append(extimes, r.exDateTimes...)
	extimes = sortedlist.SortUnique(extimes, cmpTime)
	return sortedlist.SubtractSorted(times, extimes, cmpTime)
}

// excluded reports whether t is denied by any exclusion source.
func (r *Recurrence) excluded(t time.Time) bool {
	if sortedlist.ContainsSorted(r.exDates, r.frameDate(t), cmpDate) ||
		sortedlist.ContainsSorted(r.exDateTimes, t, cmpTime) {
		return true
	}
	for _, ex := range r.exRules {
		if ex.RecursAt(t) {
			return true
		}
	}
	return false
}

// GetNextDateTime returns the smallest occurrence strictly after t, or
// none. The search tolerates at most the configured iteration budget of
// excluded candidates before giving up.
func (r *Recurrence) GetNextDateTime(t time.Time) mo.Option[time.Time] {
	next := t
	// Each round collects the earliest candidate after the cursor from
	// the anchor, both explicit lists and every rule; if that candidate
	// is excluded the cursor advances onto it and the round repeats.
	for loop := 0; loop < r.config.IterationBudget; loop++ {
		var dates []time.Time
		if next.Before(r.start) {
			dates = append(dates, r.start)
		}
		if i := sortedlist.FindGT(r.rDateTimes, next, cmpTime); i >= 0 {
			dates = append(dates, r.rDateTimes[i])
		}
		for _, d := range r.rDates {
			if dt := r.promoteDate(d); dt.After(next) {
				dates = append(dates, dt)
				break
			}
		}
		for _, rule := range r.rRules {
			if dt, ok := rule.GetNextDate(next).Get(); ok {
				dates = append(dates, dt)
			}
		}
		if len(dates) == 0 {
			return mo.None[time.Time]()
		}
		next = slices.MinFunc(dates, cmpTime)
		if !r.excluded(next) {
			return mo.Some(next)
		}
	}
	return mo.None[time.Time]()
}

// GetPreviousDateTime returns the largest occurrence strictly before t,
// or none; the mirror of GetNextDateTime.
func (r *Recurrence) GetPreviousDateTime(t time.Time) mo.Option[time.Time] {
	prev := t
	for loop := 0; loop < r.config.IterationBudget; loop++ {
		var dates []time.Time
		if prev.After(r.start) {
			dates = append(dates, r.start)
		}
		if i := sortedlist.FindLT(r.rDateTimes, prev, cmpTime); i >= 0 {
			dates = append(dates, r.rDateTimes[i])
		}
		for i := len(r.rDates) - 1; i >= 0; i-- {
			if dt := r.promoteDate(r.rDates[i]); dt.Before(prev) {
				dates = append(dates, dt)
				break
			}
		}
		for _, rule := range r.rRules {
			if dt, ok := rule.GetPreviousDate(prev).Get(); ok {
				dates = append(dates, dt)
			}
		}
		if len(dates) == 0 {
			return mo.None[time.Time]()
		}
		prev = slices.MaxFunc(dates, cmpTime)
		if !r.excluded(prev) {
			return mo.Some(prev)
		}
	}
	return mo.None[time.Time]()
}

// EndDateTime returns the cumulative end of the whole recurrence. If any
// inclusion rule never terminates, there is no end.
func (r *Recurrence) EndDateTime() mo.Option[time.Time] {
	end := r.start
	if len(r.rDates) > 0 {
		if dt := r.promoteDate(r.rDates[len(r.rDates)-1]); dt.After(end) {
			end = dt
		}
	}
	if len(r.rDateTimes) > 0 {
		if dt := r.rDateTimes[len(r.rDateTimes)-1]; dt.After(end) {
			end = dt
		}
	}
	for _, rule := range r.rRules {
		dt, ok := rule.EndInstant().Get()
		if !ok {
			// An infinite rule makes the whole recurrence infinite.
			return mo.None[time.Time]()
		}
		if dt.After(end) {
			end = dt
		}
	}
	return mo.Some(end)
}

// EndDate returns the calendar date of EndDateTime.
func (r *Recurrence) EndDate() mo.Option[timeutil.Date] {
	if dt, ok := r.EndDateTime().Get(); ok {
		return mo.Some(r.frameDate(dt))
	}
	return mo.None[timeutil.Date]()
}
