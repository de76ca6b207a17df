// Package ical converts between iCalendar components and recurrence
// data. It understands the DTSTART, RRULE, EXRULE, RDATE and EXDATE
// properties of VEVENT and VTODO components; everything else on a
// component is left untouched.
package ical

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/kalends/librecur/recurrence"
	"github.com/kalends/librecur/timeutil"
)

const (
	dateTimeUTCFormat = "20060102T150405Z"
	dateTimeFormat    = "20060102T150405"
	dateFormat        = "20060102"

	propExceptionRule = "EXRULE"
)

// Codec translates recurrence properties on iCalendar components.
type Codec struct {
	logger *slog.Logger
}

// NewCodec creates a codec logging through logger; nil uses the default
// logger.
func NewCodec(logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{logger: logger}
}

// DecodeComponent extracts the recurrence of an iCal component. A
// component without DTSTART yields an error; malformed RDATE/EXDATE
// entries are skipped with a log line, while a malformed RRULE/EXRULE is
// an error since dropping one changes the event's meaning.
func (c *Codec) DecodeComponent(comp *ical.Component) (*recurrence.Recurrence, error) {
	rec := recurrence.New()

	dtstart := comp.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return nil, fmt.Errorf("component %s has no DTSTART", comp.Name)
	}
	start, allDay, err := parseDateTimeProp(dtstart)
	if err != nil {
		return nil, fmt.Errorf("parse DTSTART %q: %w", dtstart.Value, err)
	}
	if allDay {
		rec.SetStartDate(timeutil.DateOf(start))
	} else {
		rec.SetStartDateTime(start)
	}

	for _, prop := range comp.Props.Values(ical.PropRecurrenceRule) {
		rule, err := c.decodeRule(prop.Value, start, allDay)
		if err != nil {
			return nil, fmt.Errorf("parse RRULE %q: %w", prop.Value, err)
		}
		rec.AddRRule(rule)
	}
	for _, prop := range comp.Props.Values(propExceptionRule) {
		rule, err := c.decodeRule(prop.Value, start, allDay)
		if err != nil {
			return nil, fmt.Errorf("parse EXRULE %q: %w", prop.Value, err)
		}
		rec.AddExRule(rule)
	}

	for _, prop := range comp.Props.Values(ical.PropRecurrenceDates) {
		c.decodeDateList(&prop, rec.AddRDate, rec.AddRDateTime)
	}
	for _, prop := range comp.Props.Values(ical.PropExceptionDates) {
		c.decodeDateList(&prop, rec.AddExDate, rec.AddExDateTime)
	}
	return rec, nil
}

// DecodeEvent extracts the recurrence of an event.
func (c *Codec) DecodeEvent(ev *ical.Event) (*recurrence.Recurrence, error) {
	return c.DecodeComponent(ev.Component)
}

// decodeRule bridges the RRULE property grammar to an engine rule.
func (c *Codec) decodeRule(value string, start time.Time, allDay bool) (*recurrence.Rule, error) {
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return nil, err
	}

	rule, err := recurrence.NewRule(periodFromFreq(opt.Freq), max(opt.Interval, 1), start)
	if err != nil {
		return nil, err
	}
	rule.SetAllDay(allDay)
	rule.SetWeekStart(weekdayFromRRule(opt.Wkst))

	switch {
	case opt.Count > 0:
		err = rule.SetTermination(recurrence.EndAfter(opt.Count))
	case !opt.Until.IsZero():
		err = rule.SetTermination(recurrence.EndUntil(opt.Until))
	}
	if err != nil {
		return nil, err
	}

	for _, set := range []struct {
		vals []int
		fn   func([]int) error
	}{
		{opt.Bysecond, rule.SetBySecond},
		{opt.Byminute, rule.SetByMinute},
		{opt.Byhour, rule.SetByHour},
		{opt.Bymonthday, rule.SetByMonthDay},
		{opt.Byyearday, rule.SetByYearDay},
		{opt.Byweekno, rule.SetByWeekNo},
		{opt.Bymonth, rule.SetByMonth},
		{opt.Bysetpos, rule.SetBySetPos},
	} {
		if len(set.vals) == 0 {
			continue
		}
		if err := set.fn(set.vals); err != nil {
			return nil, err
		}
	}
	if len(opt.Byweekday) > 0 {
		days := make([]recurrence.WeekdayPos, 0, len(opt.Byweekday))
		for _, wd := range opt.Byweekday {
			days = append(days, recurrence.WeekdayPos{
				Pos: wd.N(),
				Day: weekdayFromRRule(wd),
			})
		}
		if err := rule.SetByDay(days); err != nil {
			return nil, err
		}
	}
	return rule, nil
}

// decodeDateList splits an RDATE/EXDATE value and routes each entry to
// the date or instant list. Malformed entries are skipped.
func (c *Codec) decodeDateList(prop *ical.Prop, addDate func(timeutil.Date), addDateTime func(time.Time)) {
	dateOnly := strings.EqualFold(prop.Params.Get(ical.ParamValue), "DATE")
	for _, raw := range strings.Split(prop.Value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		t, isDate, err := parseDateTimeValue(raw, dateOnly)
		if err != nil {
			c.logger.Warn("skipping malformed date list entry",
				"property", prop.Name,
				"value", raw)
			continue
		}
		if isDate {
			addDate(timeutil.DateOf(t))
		} else {
			addDateTime(t)
		}
	}
}

func parseDateTimeProp(prop *ical.Prop) (t time.Time, dateOnly bool, err error) {
	dateParam := strings.EqualFold(prop.Params.Get(ical.ParamValue), "DATE")
	return parseDateTimeValue(prop.Value, dateParam)
}

func parseDateTimeValue(value string, dateOnly bool) (time.Time, bool, error) {
	if dateOnly {
		t, err := time.Parse(dateFormat, value)
		return t, true, err
	}
	if t, err := time.Parse(dateTimeUTCFormat, value); err == nil {
		return t, false, nil
	}
	if t, err := time.Parse(dateTimeFormat, value); err == nil {
		return t, false, nil
	}
	// Date-only values also appear without a VALUE=DATE parameter.
	t, err := time.Parse(dateFormat, value)
	return t, true, err
}

// EncodeComponent writes the recurrence onto comp, replacing any
// recurrence properties already present.
func (c *Codec) EncodeComponent(rec *recurrence.Recurrence, comp *ical.Component) {
	for _, name := range []string{
		ical.PropDateTimeStart, ical.PropRecurrenceRule, propExceptionRule,
		ical.PropRecurrenceDates, ical.PropExceptionDates,
	} {
		comp.Props.Del(name)
	}

	comp.Props.Set(encodeDateTimeProp(ical.PropDateTimeStart, rec.Start(), rec.AllDay()))
	for _, rule := range rec.RRules() {
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = encodeRule(rule)
		comp.Props.Add(prop)
	}
	for _, rule := range rec.ExRules() {
		prop := ical.NewProp(propExceptionRule)
		prop.Value = encodeRule(rule)
		comp.Props.Add(prop)
	}
	if p := encodeDates(ical.PropRecurrenceDates, rec.RDates()); p != nil {
		comp.Props.Add(p)
	}
	if p := encodeDateTimes(ical.PropRecurrenceDates, rec.RDateTimes()); p != nil {
		comp.Props.Add(p)
	}
	if p := encodeDates(ical.PropExceptionDates, rec.ExDates()); p != nil {
		comp.Props.Add(p)
	}
	if p := encodeDateTimes(ical.PropExceptionDates, rec.ExDateTimes()); p != nil {
		comp.Props.Add(p)
	}
}

// EncodeEvent wraps the recurrence in a fresh VEVENT carrying a
// generated UID.
func (c *Codec) EncodeEvent(rec *recurrence.Recurrence) *ical.Event {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, uuid.NewString())
	c.EncodeComponent(rec, ev.Component)
	return ev
}

// encodeRule renders a rule in the RRULE property grammar.
func encodeRule(rule *recurrence.Rule) string {
	opt := rrule.ROption{
		Freq:       freqFromPeriod(rule.Period()),
		Interval:   rule.Frequency(),
		Wkst:       rruleWeekday(rule.WeekStart(), 0),
		Bysecond:   rule.BySecond(),
		Byminute:   rule.ByMinute(),
		Byhour:     rule.ByHour(),
		Bymonthday: rule.ByMonthDay(),
		Byyearday:  rule.ByYearDay(),
		Byweekno:   rule.ByWeekNo(),
		Bymonth:    rule.ByMonth(),
		Bysetpos:   rule.BySetPos(),
	}
	for _, wp := range rule.ByDay() {
		opt.Byweekday = append(opt.Byweekday, rruleWeekday(wp.Day, wp.Pos))
	}
	switch rule.Termination().Kind() {
	case recurrence.TerminateCount:
		opt.Count = rule.Termination().Count()
	case recurrence.TerminateUntil:
		opt.Until = rule.Termination().Until().UTC()
	}
	return opt.RRuleString()
}

func encodeDateTimeProp(name string, t time.Time, dateOnly bool) *ical.Prop {
	prop := ical.NewProp(name)
	if dateOnly {
		prop.Params.Set(ical.ParamValue, "DATE")
		prop.Value = t.Format(dateFormat)
		return prop
	}
	prop.Value = t.UTC().Format(dateTimeUTCFormat)
	return prop
}

func encodeDates(name string, dates []timeutil.Date) *ical.Prop {
	if len(dates) == 0 {
		return nil
	}
	vals := make([]string, 0, len(dates))
	for _, d := range dates {
		vals = append(vals, d.Time(0, 0, 0, time.UTC).Format(dateFormat))
	}
	prop := ical.NewProp(name)
	prop.Params.Set(ical.ParamValue, "DATE")
	prop.Value = strings.Join(vals, ",")
	return prop
}

func encodeDateTimes(name string, times []time.Time) *ical.Prop {
	if len(times) == 0 {
		return nil
	}
	vals := make([]string, 0, len(times))
	for _, t := range times {
		vals = append(vals, t.UTC().Format(dateTimeUTCFormat))
	}
	prop := ical.NewProp(name)
	prop.Value = strings.Join(vals, ",")
	return prop
}

func periodFromFreq(f rrule.Frequency) recurrence.PeriodType {
	switch f {
	case rrule.YEARLY:
		return recurrence.PeriodYearly
	case rrule.MONTHLY:
		return recurrence.PeriodMonthly
	case rrule.WEEKLY:
		return recurrence.PeriodWeekly
	case rrule.DAILY:
		return recurrence.PeriodDaily
	case rrule.HOURLY:
		return recurrence.PeriodHourly
	case rrule.MINUTELY:
		return recurrence.PeriodMinutely
	default:
		return recurrence.PeriodSecondly
	}
}

func freqFromPeriod(p recurrence.PeriodType) rrule.Frequency {
	switch p {
	case recurrence.PeriodYearly:
		return rrule.YEARLY
	case recurrence.PeriodMonthly:
		return rrule.MONTHLY
	case recurrence.PeriodWeekly:
		return rrule.WEEKLY
	case recurrence.PeriodDaily:
		return rrule.DAILY
	case recurrence.PeriodHourly:
		return rrule.HOURLY
	case recurrence.PeriodMinutely:
		return rrule.MINUTELY
	default:
		return rrule.SECONDLY
	}
}

// weekdayFromRRule maps the Monday-based RRULE weekday to time.Weekday.
func weekdayFromRRule(wd rrule.Weekday) time.Weekday {
	return time.Weekday((wd.Day() + 1) % 7)
}

var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

func rruleWeekday(wd time.Weekday, n int) rrule.Weekday {
	base := rruleWeekdays[int(wd)%7]
	if n == 0 {
		return base
	}
	return base.Nth(n)
}
