// Package xcal serializes recurrence data in the xCal (RFC 6321) XML
// representation of iCalendar: an icalendar/vcalendar/components/vevent
// document whose properties carry dtstart, rrule, exrule, rdate and exdate with
// the structured recur value type.
package xcal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/kalends/librecur/recurrence"
	"github.com/kalends/librecur/timeutil"
)

// Namespace is the xCal XML namespace.
const Namespace = "urn:ietf:params:xml:ns:icalendar-2.0"

const (
	dateTimeFormat = "2006-01-02T15:04:05Z"
	dateFormat     = "2006-01-02"
)

var weekdayCodes = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

var weekdayFromCode = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var freqNames = map[recurrence.PeriodType]string{
	recurrence.PeriodSecondly: "SECONDLY",
	recurrence.PeriodMinutely: "MINUTELY",
	recurrence.PeriodHourly:   "HOURLY",
	recurrence.PeriodDaily:    "DAILY",
	recurrence.PeriodWeekly:   "WEEKLY",
	recurrence.PeriodMonthly:  "MONTHLY",
	recurrence.PeriodYearly:   "YEARLY",
}

var periodFromFreq = map[string]recurrence.PeriodType{
	"SECONDLY": recurrence.PeriodSecondly,
	"MINUTELY": recurrence.PeriodMinutely,
	"HOURLY":   recurrence.PeriodHourly,
	"DAILY":    recurrence.PeriodDaily,
	"WEEKLY":   recurrence.PeriodWeekly,
	"MONTHLY":  recurrence.PeriodMonthly,
	"YEARLY":   recurrence.PeriodYearly,
}

// Encode renders the recurrence as a complete xCal document with one
// vevent.
func Encode(rec *recurrence.Recurrence) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("icalendar")
	root.CreateAttr("xmlns", Namespace)
	vevent := root.CreateElement("vcalendar").
		CreateElement("components").
		CreateElement("vevent")
	EncodeProperties(rec, vevent.CreateElement("properties"))
	return doc
}

// EncodeProperties writes the recurrence's properties under an existing
// properties element.
func EncodeProperties(rec *recurrence.Recurrence, props *etree.Element) {
	dtstart := props.CreateElement("dtstart")
	if rec.AllDay() {
		dtstart.CreateElement("date").SetText(rec.StartDate().Time(0, 0, 0, time.UTC).Format(dateFormat))
	} else {
		dtstart.CreateElement("date-time").SetText(rec.Start().UTC().Format(dateTimeFormat))
	}

	for _, rule := range rec.RRules() {
		encodeRecur(rule, props.CreateElement("rrule").CreateElement("recur"))
	}
	for _, rule := range rec.ExRules() {
		encodeRecur(rule, props.CreateElement("exrule").CreateElement("recur"))
	}
	encodeDateLists(props, "rdate", rec.RDates(), rec.RDateTimes())
	encodeDateLists(props, "exdate", rec.ExDates(), rec.ExDateTimes())
}

func encodeDateLists(props *etree.Element, name string, dates []timeutil.Date, times []time.Time) {
	if len(dates) > 0 {
		el := props.CreateElement(name)
		for _, d := range dates {
			el.CreateElement("date").SetText(d.Time(0, 0, 0, time.UTC).Format(dateFormat))
		}
	}
	if len(times) > 0 {
		el := props.CreateElement(name)
		for _, t := range times {
			el.CreateElement("date-time").SetText(t.UTC().Format(dateTimeFormat))
		}
	}
}

func encodeRecur(rule *recurrence.Rule, recur *etree.Element) {
	recur.CreateElement("freq").SetText(freqNames[rule.Period()])
	switch rule.Termination().Kind() {
	case recurrence.TerminateCount:
		recur.CreateElement("count").SetText(strconv.Itoa(rule.Termination().Count()))
	case recurrence.TerminateUntil:
		recur.CreateElement("until").SetText(rule.Termination().Until().UTC().Format(dateTimeFormat))
	}
	if rule.Frequency() != 1 {
		recur.CreateElement("interval").SetText(strconv.Itoa(rule.Frequency()))
	}
	encodeInts(recur, "bysecond", rule.BySecond())
	encodeInts(recur, "byminute", rule.ByMinute())
	encodeInts(recur, "byhour", rule.ByHour())
	for _, wp := range rule.ByDay() {
		text := weekdayCodes[wp.Day]
		if wp.Pos != 0 {
			text = strconv.Itoa(wp.Pos) + text
		}
		recur.CreateElement("byday").SetText(text)
	}
	encodeInts(recur, "bymonthday", rule.ByMonthDay())
	encodeInts(recur, "byyearday", rule.ByYearDay())
	encodeInts(recur, "byweekno", rule.ByWeekNo())
	encodeInts(recur, "bymonth", rule.ByMonth())
	encodeInts(recur, "bysetpos", rule.BySetPos())
	if rule.WeekStart() != time.Monday {
		recur.CreateElement("wkst").SetText(weekdayCodes[rule.WeekStart()])
	}
}

func encodeInts(recur *etree.Element, name string, vals []int) {
	for _, v := range vals {
		recur.CreateElement(name).SetText(strconv.Itoa(v))
	}
}

// Decode reads the first vevent of an xCal document back into a
// Recurrence.
func Decode(doc *etree.Document) (*recurrence.Recurrence, error) {
	props := doc.FindElement("//vevent/properties")
	if props == nil {
		return nil, fmt.Errorf("xcal: no vevent properties element")
	}
	return DecodeProperties(props)
}

// DecodeProperties reads recurrence properties from a properties
// element.
func DecodeProperties(props *etree.Element) (*recurrence.Recurrence, error) {
	rec := recurrence.New()

	dtstart := props.FindElement("dtstart")
	if dtstart == nil {
		return nil, fmt.Errorf("xcal: missing dtstart")
	}
	if el := dtstart.FindElement("date-time"); el != nil {
		t, err := time.Parse(dateTimeFormat, strings.TrimSpace(el.Text()))
		if err != nil {
			return nil, fmt.Errorf("xcal: bad dtstart %q: %w", el.Text(), err)
		}
		rec.SetStartDateTime(t)
	} else if el := dtstart.FindElement("date"); el != nil {
		t, err := time.Parse(dateFormat, strings.TrimSpace(el.Text()))
		if err != nil {
			return nil, fmt.Errorf("xcal: bad dtstart %q: %w", el.Text(), err)
		}
		rec.SetStartDate(timeutil.DateOf(t))
	} else {
		return nil, fmt.Errorf("xcal: dtstart has neither date-time nor date")
	}

	for _, el := range props.FindElements("rrule/recur") {
		rule, err := decodeRecur(el, rec)
		if err != nil {
			return nil, err
		}
		rec.AddRRule(rule)
	}
	for _, el := range props.FindElements("exrule/recur") {
		rule, err := decodeRecur(el, rec)
		if err != nil {
			return nil, err
		}
		rec.AddExRule(rule)
	}

	for _, name := range []string{"rdate", "exdate"} {
		for _, el := range props.FindElements(name) {
			if err := decodeDateList(el, name == "rdate", rec); err != nil {
				return nil, err
			}
		}
	}
	return rec, nil
}

func decodeDateList(el *etree.Element, inclusion bool, rec *recurrence.Recurrence) error {
	for _, child := range el.ChildElements() {
		text := strings.TrimSpace(child.Text())
		switch child.Tag {
		case "date-time":
			t, err := time.Parse(dateTimeFormat, text)
			if err != nil {
				return fmt.Errorf("xcal: bad %s %q: %w", el.Tag, text, err)
			}
			if inclusion {
				rec.AddRDateTime(t)
			} else {
				rec.AddExDateTime(t)
			}
		case "date":
			t, err := time.Parse(dateFormat, text)
			if err != nil {
				return fmt.Errorf("xcal: bad %s %q: %w", el.Tag, text, err)
			}
			if inclusion {
				rec.AddRDate(timeutil.DateOf(t))
			} else {
				rec.AddExDate(timeutil.DateOf(t))
			}
		}
	}
	return nil
}

func decodeRecur(recur *etree.Element, rec *recurrence.Recurrence) (*recurrence.Rule, error) {
	freqEl := recur.FindElement("freq")
	if freqEl == nil {
		return nil, fmt.Errorf("xcal: recur without freq")
	}
	period, ok := periodFromFreq[strings.ToUpper(strings.TrimSpace(freqEl.Text()))]
	if !ok {
		return nil, fmt.Errorf("xcal: unknown freq %q", freqEl.Text())
	}

	interval := 1
	if el := recur.FindElement("interval"); el != nil {
		v, err := strconv.Atoi(strings.TrimSpace(el.Text()))
		if err != nil {
			return nil, fmt.Errorf("xcal: bad interval %q: %w", el.Text(), err)
		}
		interval = v
	}

	rule, err := recurrence.NewRule(period, interval, rec.Start())
	if err != nil {
		return nil, err
	}
	rule.SetAllDay(rec.AllDay())

	if el := recur.FindElement("count"); el != nil {
		v, err := strconv.Atoi(strings.TrimSpace(el.Text()))
		if err != nil {
			return nil, fmt.Errorf("xcal: bad count %q: %w", el.Text(), err)
		}
		if err := rule.SetTermination(recurrence.EndAfter(v)); err != nil {
			return nil, err
		}
	} else if el := recur.FindElement("until"); el != nil {
		text := strings.TrimSpace(el.Text())
		t, err := time.Parse(dateTimeFormat, text)
		if err != nil {
			if t, err = time.Parse(dateFormat, text); err != nil {
				return nil, fmt.Errorf("xcal: bad until %q: %w", el.Text(), err)
			}
		}
		if err := rule.SetTermination(recurrence.EndUntil(t)); err != nil {
			return nil, err
		}
	}

	if el := recur.FindElement("wkst"); el != nil {
		wd, ok := weekdayFromCode[strings.ToUpper(strings.TrimSpace(el.Text()))]
		if !ok {
			return nil, fmt.Errorf("xcal: unknown wkst %q", el.Text())
		}
		rule.SetWeekStart(wd)
	}

	for _, set := range []struct {
		name string
		fn   func([]int) error
	}{
		{"bysecond", rule.SetBySecond},
		{"byminute", rule.SetByMinute},
		{"byhour", rule.SetByHour},
		{"bymonthday", rule.SetByMonthDay},
		{"byyearday", rule.SetByYearDay},
		{"byweekno", rule.SetByWeekNo},
		{"bymonth", rule.SetByMonth},
		{"bysetpos", rule.SetBySetPos},
	} {
		vals, err := intElements(recur, set.name)
		if err != nil {
			return nil, err
		}
		if len(vals) > 0 {
			if err := set.fn(vals); err != nil {
				return nil, err
			}
		}
	}

	var days []recurrence.WeekdayPos
	for _, el := range recur.FindElements("byday") {
		wp, err := parseByDay(strings.TrimSpace(el.Text()))
		if err != nil {
			return nil, err
		}
		days = append(days, wp)
	}
	if len(days) > 0 {
		if err := rule.SetByDay(days); err != nil {
			return nil, err
		}
	}
	return rule, nil
}

func intElements(recur *etree.Element, name string) ([]int, error) {
	var vals []int
	for _, el := range recur.FindElements(name) {
		v, err := strconv.Atoi(strings.TrimSpace(el.Text()))
		if err != nil {
			return nil, fmt.Errorf("xcal: bad %s %q: %w", name, el.Text(), err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func parseByDay(text string) (recurrence.WeekdayPos, error) {
	if len(text) < 2 {
		return recurrence.WeekdayPos{}, fmt.Errorf("xcal: bad byday %q", text)
	}
	code := strings.ToUpper(text[len(text)-2:])
	wd, ok := weekdayFromCode[code]
	if !ok {
		return recurrence.WeekdayPos{}, fmt.Errorf("xcal: bad byday %q", text)
	}
	pos := 0
	if rest := text[:len(text)-2]; rest != "" {
		v, err := strconv.Atoi(rest)
		if err != nil {
			return recurrence.WeekdayPos{}, fmt.Errorf("xcal: bad byday offset %q", text)
		}
		pos = v
	}
	return recurrence.WeekdayPos{Pos: pos, Day: wd}, nil
}
