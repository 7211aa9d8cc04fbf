package handlers

import (
	"github.com/regiorail/horaires/internal/calendar"
	"github.com/regiorail/horaires/internal/perturbation"
	"github.com/regiorail/horaires/models"
)

// Calendars resolves stored schedule calendars. A fresh ScheduleCalendar is
// built from the stored record on every request.
type Calendars struct {
	Codec         *calendar.Codec
	Resolver      *calendar.Resolver
	MaxWindowDays int
}

// Of decodes the calendar of one schedule
func (c Calendars) Of(s models.Schedule) calendar.ScheduleCalendar {
	return calendar.CalendarFromRecord(c.Codec, s.Calendar)
}

// Scheduled decodes the calendars of a schedule list for expansion
func (c Calendars) Scheduled(schedules []models.Schedule) []perturbation.ScheduledCalendar {
	out := make([]perturbation.ScheduledCalendar, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, perturbation.ScheduledCalendar{ScheduleID: s.ID, Calendar: c.Of(s)})
	}
	return out
}

// Window parses a from/to query pair, defaulting both ends to today
func (c Calendars) Window(from, to string, today string) (perturbation.Window, error) {
	if from == "" {
		from = today
	}
	if to == "" {
		to = from
	}
	return perturbation.ParseWindow(from, to, c.MaxWindowDays)
}
