package xcal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalends/librecur/recurrence"
	"github.com/kalends/librecur/timeutil"
)

func dt(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestEncodeShape(t *testing.T) {
	start := dt(2020, time.January, 6, 9, 0)
	rec := recurrence.New()
	rec.SetStartDateTime(start)
	rule, err := recurrence.NewRule(recurrence.PeriodWeekly, 2, start)
	require.NoError(t, err)
	require.NoError(t, rule.SetByDay([]recurrence.WeekdayPos{{Day: time.Monday}}))
	require.NoError(t, rule.SetTermination(recurrence.EndAfter(5)))
	rec.AddRRule(rule)

	doc := Encode(rec)

	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "icalendar", root.Tag)
	assert.Equal(t, Namespace, root.SelectAttrValue("xmlns", ""))

	assert.Equal(t, "2020-01-06T09:00:00Z",
		doc.FindElement("//vevent/properties/dtstart/date-time").Text())

	recur := doc.FindElement("//vevent/properties/rrule/recur")
	require.NotNil(t, recur)
	assert.Equal(t, "WEEKLY", recur.FindElement("freq").Text())
	assert.Equal(t, "2", recur.FindElement("interval").Text())
	assert.Equal(t, "5", recur.FindElement("count").Text())
	assert.Equal(t, "MO", recur.FindElement("byday").Text())
}

func TestRoundTripTimed(t *testing.T) {
	start := dt(2021, time.January, 29, 12, 0)
	rec := recurrence.New()
	rec.SetStartDateTime(start)
	rule, err := recurrence.NewRule(recurrence.PeriodMonthly, 2, start)
	require.NoError(t, err)
	require.NoError(t, rule.SetByDay([]recurrence.WeekdayPos{{Pos: -1, Day: time.Friday}}))
	require.NoError(t, rule.SetTermination(recurrence.EndUntil(dt(2021, time.June, 30, 23, 59))))
	rec.AddRRule(rule)

	exrule, err := recurrence.NewRule(recurrence.PeriodMonthly, 6, start)
	require.NoError(t, err)
	rec.AddExRule(exrule)

	rec.AddRDateTime(dt(2021, time.July, 30, 12, 0))
	rec.AddRDate(timeutil.NewDate(2021, time.August, 27))
	rec.AddExDate(timeutil.NewDate(2021, time.March, 26))
	rec.AddExDateTime(dt(2021, time.February, 26, 12, 0))

	decoded, err := Decode(Encode(rec))
	require.NoError(t, err)
	assert.True(t, rec.Equal(decoded))
}

func TestRoundTripAllDay(t *testing.T) {
	rec := recurrence.New()
	rec.SetStartDate(timeutil.NewDate(2020, time.February, 29))
	rule, err := recurrence.NewRule(recurrence.PeriodYearly, 1, rec.Start())
	require.NoError(t, err)
	require.NoError(t, rule.SetByMonth([]int{2}))
	require.NoError(t, rule.SetByMonthDay([]int{29}))
	rec.AddRRule(rule)

	doc := Encode(rec)
	assert.Equal(t, "2020-02-29",
		doc.FindElement("//vevent/properties/dtstart/date").Text())

	decoded, err := Decode(doc)
	require.NoError(t, err)
	assert.True(t, rec.Equal(decoded))
	assert.True(t, decoded.AllDay())
}

func TestDecodeErrors(t *testing.T) {
	t.Run("missing dtstart", func(t *testing.T) {
		rec := recurrence.New()
		rec.SetStartDateTime(dt(2020, time.January, 6, 9, 0))
		doc := Encode(rec)
		doc.FindElement("//vevent/properties/dtstart").Parent().
			RemoveChild(doc.FindElement("//vevent/properties/dtstart"))
		_, err := Decode(doc)
		assert.ErrorContains(t, err, "dtstart")
	})

	t.Run("unknown freq", func(t *testing.T) {
		rec := recurrence.New()
		rec.SetStartDateTime(dt(2020, time.January, 6, 9, 0))
		rule, err := recurrence.NewRule(recurrence.PeriodDaily, 1, rec.Start())
		require.NoError(t, err)
		rec.AddRRule(rule)
		doc := Encode(rec)
		doc.FindElement("//rrule/recur/freq").SetText("SOMETIMES")
		_, err = Decode(doc)
		assert.ErrorContains(t, err, "freq")
	})
}
