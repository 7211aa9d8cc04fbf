package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO 8601 calendar date format used on every boundary
const DateLayout = "2006-01-02"

// ErrInvalidDate signals a caller-supplied date that cannot be parsed
var ErrInvalidDate = errors.New("invalid date")

// ScheduleCalendar describes when a sillon runs. Custom mode and the weekly
// mask are mutually exclusive: in custom mode only CustomDates count.
type ScheduleCalendar struct {
	WeeklyMask               WeeklyMask
	CustomMode               bool
	CustomDates              map[string]struct{}
	ObservesHolidays         bool
	ObservesSundaysAsHoliday bool
}

// NewDateSet normalises ISO dates into a set. Unparseable entries are kept
// verbatim so they simply never match.
func NewDateSet(dates ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if t, err := ParseDate(d); err == nil {
			d = FormatDate(t)
		}
		set[d] = struct{}{}
	}
	return set
}

// ParseDate parses an ISO calendar date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders t as an ISO calendar date
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// HolidayPolicy may override the weekly-mask answer for a date. It is never
// consulted in custom mode.
type HolidayPolicy interface {
	Gate(cal ScheduleCalendar, date time.Time, runs bool) bool
}

// WeeklyOnly leaves the weekly-mask answer untouched
type WeeklyOnly struct{}

func (WeeklyOnly) Gate(_ ScheduleCalendar, _ time.Time, runs bool) bool {
	return runs
}

// HolidayClosure stops services that observe holidays on listed public
// holidays, and on Sundays for services observing Sundays as holidays.
type HolidayClosure struct {
	Holidays HolidaySet
}

func (p HolidayClosure) Gate(cal ScheduleCalendar, date time.Time, runs bool) bool {
	if !runs {
		return false
	}
	if cal.ObservesHolidays && p.Holidays.Contains(date) {
		return false
	}
	if cal.ObservesSundaysAsHoliday && WeekdayIndex(date) == Sunday {
		return false
	}
	return true
}

// Resolver decides whether a schedule calendar has an occurrence on a date.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	policy HolidayPolicy
}

// NewResolver creates a resolver. A nil policy means WeeklyOnly.
func NewResolver(policy HolidayPolicy) *Resolver {
	if policy == nil {
		policy = WeeklyOnly{}
	}
	return &Resolver{policy: policy}
}

// RunsOn parses an ISO date and resolves it. A bad date is an error, not a
// negative answer.
func (r *Resolver) RunsOn(cal ScheduleCalendar, date string) (bool, error) {
	t, err := ParseDate(date)
	if err != nil {
		return false, err
	}
	return r.RunsOnDate(cal, t), nil
}

// RunsOnDate resolves an already parsed calendar date
func (r *Resolver) RunsOnDate(cal ScheduleCalendar, date time.Time) bool {
	if cal.CustomMode {
		_, ok := cal.CustomDates[FormatDate(date)]
		return ok
	}
	runs := cal.WeeklyMask.AppliesOn(WeekdayIndex(date))
	return r.policy.Gate(cal, date, runs)
}
