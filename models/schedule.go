package models

import (
	"sort"
	"time"

	"github.com/regiorail/horaires/internal/calendar"
	"github.com/regiorail/horaires/internal/route"
)

// Schedule is a sillon: a train service with its stop sequence and calendar.
//
// Calendar keeps the decoded calendar object exactly as it was submitted so
// every historical mask encoding (days, jours, jours_circulation, ...) stays
// readable. It is resolved by calendar.CalendarFromRecord on each request.
type Schedule struct {
	ID          string          `db:"id" json:"id"`
	Line        string          `db:"line" json:"line"`
	TrainNumber string          `db:"train_number" json:"trainNumber"`
	Departure   string          `db:"departure" json:"departure"`
	Arrival     string          `db:"arrival" json:"arrival"`
	Calendar    calendar.Record `db:"calendar" json:"calendar"`
	Stops       []route.Stop    `json:"stops,omitempty"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// CreateScheduleRequest is the body of POST /api/admin/schedules.
// Stops and Calendar accept every legacy field alias.
type CreateScheduleRequest struct {
	ID          string                   `json:"id" validate:"required,max=64,excludesall=/?#"`
	Line        string                   `json:"line" validate:"required,max=32"`
	TrainNumber string                   `json:"trainNumber" validate:"max=16"`
	Calendar    map[string]interface{}   `json:"calendar" validate:"required"`
	Stops       []map[string]interface{} `json:"stops" validate:"required,min=2"`
}

// CalendarSummary is the resolved view of a stored calendar
type CalendarSummary struct {
	WeeklyMask               string   `json:"weeklyMask"` // Monday first, e.g. "1111100"
	Days                     []int    `json:"days"`       // 1=Monday..7=Sunday
	CustomMode               bool     `json:"customMode"`
	CustomDates              []string `json:"customDates,omitempty"`
	ObservesHolidays         bool     `json:"observesHolidays"`
	ObservesSundaysAsHoliday bool     `json:"observesSundaysAsHoliday"`
}

// ScheduleDetails is the JSON response for GET /api/schedules/{id}
type ScheduleDetails struct {
	Schedule
	Resolved CalendarSummary `json:"resolved"`
}

// RunsResponse is the JSON response for GET /api/schedules/{id}/runs
type RunsResponse struct {
	ScheduleID string `json:"scheduleId"`
	Date       string `json:"date"`
	Runs       bool   `json:"runs"`
}

// Summarize renders a resolved calendar for clients
func Summarize(cal calendar.ScheduleCalendar) CalendarSummary {
	dates := make([]string, 0, len(cal.CustomDates))
	for d := range cal.CustomDates {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	return CalendarSummary{
		WeeklyMask:               cal.WeeklyMask.String(),
		Days:                     cal.WeeklyMask.Days(),
		CustomMode:               cal.CustomMode,
		CustomDates:              dates,
		ObservesHolidays:         cal.ObservesHolidays,
		ObservesSundaysAsHoliday: cal.ObservesSundaysAsHoliday,
	}
}
