package timeutil

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time with no date and no zone.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// TimeOfDayOf returns the wall-clock reading of t in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	hh, mm, ss := t.Clock()
	return TimeOfDay{Hour: hh, Minute: mm, Second: ss}
}

// Compare orders times of day chronologically, returning -1, 0 or +1.
func (td TimeOfDay) Compare(o TimeOfDay) int {
	switch {
	case td.Hour != o.Hour:
		return cmpInt(td.Hour, o.Hour)
	case td.Minute != o.Minute:
		return cmpInt(td.Minute, o.Minute)
	default:
		return cmpInt(td.Second, o.Second)
	}
}

// On returns the instant at this wall-clock time on d in loc.
func (td TimeOfDay) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, td.Hour, td.Minute, td.Second, 0, loc)
}

func (td TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", td.Hour, td.Minute, td.Second)
}
