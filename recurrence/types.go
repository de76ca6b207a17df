// Package recurrence answers "when does this event occur" for RFC 5545
// recurrence specifications: single rules (RRULE/EXRULE) and the full
// bundle of rules plus explicit inclusion and exclusion dates that a
// calendar component carries.
//
// The package is pure and deterministic: queries never touch the system
// clock, and equal inputs produce equal outputs. A Recurrence and the
// rules it contains form one aggregate that must not be mutated
// concurrently; queries on distinct aggregates may run in parallel.
package recurrence

import (
	"fmt"
	"time"
)

// PeriodType is the base repetition unit of a rule.
type PeriodType int

const (
	PeriodNone PeriodType = iota
	PeriodSecondly
	PeriodMinutely
	PeriodHourly
	PeriodDaily
	PeriodWeekly
	PeriodMonthly
	PeriodYearly
)

var periodNames = map[PeriodType]string{
	PeriodNone:     "NONE",
	PeriodSecondly: "SECONDLY",
	PeriodMinutely: "MINUTELY",
	PeriodHourly:   "HOURLY",
	PeriodDaily:    "DAILY",
	PeriodWeekly:   "WEEKLY",
	PeriodMonthly:  "MONTHLY",
	PeriodYearly:   "YEARLY",
}

func (p PeriodType) String() string {
	if s, ok := periodNames[p]; ok {
		return s
	}
	return fmt.Sprintf("PeriodType(%d)", int(p))
}

// WeekdayPos selects weekdays within a period. Pos 0 means every such
// weekday; a non-zero Pos selects the n-th such weekday of the enclosing
// month or year, counted from the end when negative.
type WeekdayPos struct {
	Pos int
	Day time.Weekday
}

// TerminationKind discriminates the three ways a rule can end.
type TerminationKind int

const (
	// TerminateNever marks a rule with no end.
	TerminateNever TerminationKind = iota
	// TerminateCount ends a rule after a fixed number of occurrences.
	TerminateCount
	// TerminateUntil ends a rule at an instant (inclusive).
	TerminateUntil
)

// Termination is the tagged end condition of a rule. The zero value never
// terminates. A count of n and an until instant are mutually exclusive;
// -1 is not used as a stand-in for "no end".
type Termination struct {
	kind  TerminationKind
	count int
	until time.Time
}

// Forever returns the termination of a rule with no end.
func Forever() Termination {
	return Termination{kind: TerminateNever}
}

// EndAfter returns a termination after n occurrences.
func EndAfter(n int) Termination {
	return Termination{kind: TerminateCount, count: n}
}

// EndUntil returns a termination at t, inclusive.
func EndUntil(t time.Time) Termination {
	return Termination{kind: TerminateUntil, until: t}
}

// Kind returns the termination discriminant.
func (tm Termination) Kind() TerminationKind { return tm.kind }

// Count returns the occurrence limit; only meaningful for TerminateCount.
func (tm Termination) Count() int { return tm.count }

// Until returns the end instant; only meaningful for TerminateUntil.
func (tm Termination) Until() time.Time { return tm.until }

// Equal reports whether two terminations are the same condition.
func (tm Termination) Equal(o Termination) bool {
	if tm.kind != o.kind {
		return false
	}
	switch tm.kind {
	case TerminateCount:
		return tm.count == o.count
	case TerminateUntil:
		return tm.until.Equal(o.until)
	default:
		return true
	}
}

// RuleErrorType discriminates construction-time rule rejections.
type RuleErrorType string

const (
	ErrInvalidFrequency   RuleErrorType = "invalid_frequency"
	ErrFilterOutOfRange   RuleErrorType = "filter_out_of_range"
	ErrZeroSetPos         RuleErrorType = "zero_bysetpos"
	ErrInvalidTermination RuleErrorType = "invalid_termination"
	ErrInvalidPeriod      RuleErrorType = "invalid_period"
)

// RuleError is returned when a rule is configured with out-of-range or
// mutually exclusive options. Queries never return it.
type RuleError struct {
	Type    RuleErrorType
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func ruleErrorf(t RuleErrorType, format string, args ...any) *RuleError {
	return &RuleError{Type: t, Message: fmt.Sprintf(format, args...)}
}
