package perturbation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/regiorail/horaires/internal/calendar"
)

// DefaultMaxWindowDays bounds a daily expansion when no limit is configured
const DefaultMaxWindowDays = 92

// ErrWindowTooLarge is returned for reversed or oversized date windows
var ErrWindowTooLarge = errors.New("date window out of bounds")

// Occurrence is one (schedule, date) instance and whether it runs
type Occurrence struct {
	ScheduleID string `json:"scheduleId"`
	Date       string `json:"date"`
	Runs       bool   `json:"runs"`
}

// ScheduledCalendar pairs a schedule id with its resolved calendar
type ScheduledCalendar struct {
	ScheduleID string
	Calendar   calendar.ScheduleCalendar
}

// Window is an inclusive range of calendar dates
type Window struct {
	From time.Time
	To   time.Time
}

// ParseWindow validates an ISO date range of at most maxDays days
func ParseWindow(from, to string, maxDays int) (Window, error) {
	f, err := calendar.ParseDate(from)
	if err != nil {
		return Window{}, err
	}
	t, err := calendar.ParseDate(to)
	if err != nil {
		return Window{}, err
	}
	if maxDays <= 0 {
		maxDays = DefaultMaxWindowDays
	}
	w := Window{From: f, To: t}
	if t.Before(f) {
		return Window{}, fmt.Errorf("%w: %s is before %s", ErrWindowTooLarge, to, from)
	}
	if w.Days() > maxDays {
		return Window{}, fmt.Errorf("%w: %d days exceeds %d", ErrWindowTooLarge, w.Days(), maxDays)
	}
	return w, nil
}

// SingleDay is the window covering only d
func SingleDay(d time.Time) Window {
	return Window{From: d, To: d}
}

// Days counts the dates in the window
func (w Window) Days() int {
	return int(w.To.Sub(w.From).Hours()/24) + 1
}

// Dates lists every date of the window in ascending order
func (w Window) Dates() []time.Time {
	dates := make([]time.Time, 0, w.Days())
	for d := w.From; !d.After(w.To); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// Expand resolves every (schedule, date) pair of the window, ordered by
// date then schedule id.
func Expand(resolver *calendar.Resolver, schedules []ScheduledCalendar, w Window) []Occurrence {
	sorted := make([]ScheduledCalendar, len(schedules))
	copy(sorted, schedules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ScheduleID < sorted[j].ScheduleID
	})

	dates := w.Dates()
	out := make([]Occurrence, 0, len(dates)*len(sorted))
	for _, d := range dates {
		iso := calendar.FormatDate(d)
		for _, s := range sorted {
			out = append(out, Occurrence{
				ScheduleID: s.ScheduleID,
				Date:       iso,
				Runs:       resolver.RunsOnDate(s.Calendar, d),
			})
		}
	}
	return out
}
