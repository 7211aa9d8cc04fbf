package calendar

import (
	"strings"
)

// Record is a decoded schedule row or JSON object carrying calendar fields
// under one of several historical names.
type Record map[string]interface{}

// accessor returns the value of one field and whether it is present (non-nil)
type accessor struct {
	name string
	get  func(Record) (interface{}, bool)
}

func field(name string) accessor {
	return accessor{
		name: name,
		get: func(r Record) (interface{}, bool) {
			v, ok := r[name]
			if !ok || v == nil {
				return nil, false
			}
			return v, true
		},
	}
}

// maskAccessors is tried in order: the list field, the legacy aliases, then the
// integer-bitmask column. The first present field wins; values are never merged.
var maskAccessors = []accessor{
	field("days"),
	field("jours"),
	field("jours_circulation"),
	field("days_of_week"),
	field("days_mask"),
}

var customModeAccessors = []accessor{
	field("custom_mode"),
	field("mode_personnalise"),
}

var customDatesAccessors = []accessor{
	field("custom_dates"),
	field("dates_personnalisees"),
}

var holidayAccessors = []accessor{
	field("observes_holidays"),
	field("jours_feries"),
}

var sundayHolidayAccessors = []accessor{
	field("observes_sundays_as_holiday"),
	field("dimanche_ferie"),
}

func first(r Record, accessors []accessor) (interface{}, string, bool) {
	for _, a := range accessors {
		if v, ok := a.get(r); ok {
			return v, a.name, true
		}
	}
	return nil, "", false
}

// ExtractRawMask picks the calendar mask from r following the field precedence.
// It also returns the name of the field used; both are zero when none is present.
func ExtractRawMask(r Record) (RawMask, string) {
	v, name, ok := first(r, maskAccessors)
	if !ok {
		return RawMask{}, ""
	}
	return RawFromValue(v), name
}

// CalendarFromRecord assembles a ScheduleCalendar from a schedule record,
// decoding the weekly mask through codec.
func CalendarFromRecord(codec *Codec, r Record) ScheduleCalendar {
	raw, _ := ExtractRawMask(r)
	cal := ScheduleCalendar{
		WeeklyMask:  codec.ParseWeeklyMask(raw),
		CustomDates: map[string]struct{}{},
	}
	if v, _, ok := first(r, customModeAccessors); ok {
		cal.CustomMode = truthy(v)
	}
	if v, _, ok := first(r, customDatesAccessors); ok {
		cal.CustomDates = NewDateSet(dateList(v)...)
	}
	if v, _, ok := first(r, holidayAccessors); ok {
		cal.ObservesHolidays = truthy(v)
	}
	if v, _, ok := first(r, sundayHolidayAccessors); ok {
		cal.ObservesSundaysAsHoliday = truthy(v)
	}
	return cal
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "yes", "oui", "on":
			return true
		}
	}
	return false
}

func dateList(v interface{}) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.FieldsFunc(val, func(r rune) bool {
			return r == ';' || r == ',' || r == ' ' || r == '\n'
		})
	}
	return nil
}
