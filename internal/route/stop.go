package route

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxStationNameLength caps station names, counted in runes
const MaxStationNameLength = 190

// Stop is one call of a train at a station. Times are "HH:MM" or nil.
type Stop struct {
	StationName   string  `json:"station_name"`
	ArrivalTime   *string `json:"arrival_time"`
	DepartureTime *string `json:"departure_time"`
}

// RawStop is a loosely typed stop as submitted by the admin UI or an import
type RawStop map[string]interface{}

// textField reads a non-empty trimmed string from one key
type textField func(RawStop) (string, bool)

func key(name string) textField {
	return func(r RawStop) (string, bool) {
		s, ok := r[name].(string)
		if !ok {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
}

var stationNameFields = []textField{
	key("station_name"),
	key("station"),
	key("gare"),
	key("name"),
	key("nom"),
	key("stop_name"),
}

var arrivalFields = []textField{
	key("arrival_time"),
	key("arrival"),
	key("arrivee"),
	key("heure_arrivee"),
}

var departureFields = []textField{
	key("departure_time"),
	key("departure"),
	key("depart"),
	key("heure_depart"),
}

func firstText(r RawStop, fields []textField) (string, bool) {
	for _, f := range fields {
		if s, ok := f(r); ok {
			return s, true
		}
	}
	return "", false
}

// NormalizeStops canonicalises raw stops, dropping those without a station name.
// Order is preserved; nothing is sorted or deduplicated.
func NormalizeStops(raw []RawStop) []Stop {
	stops := make([]Stop, 0, len(raw))
	for _, r := range raw {
		name, ok := firstText(r, stationNameFields)
		if !ok {
			continue
		}
		stop := Stop{StationName: capLength(name, MaxStationNameLength)}
		if s, ok := firstText(r, arrivalFields); ok {
			stop.ArrivalTime = NormalizeClock(s)
		}
		if s, ok := firstText(r, departureFields); ok {
			stop.DepartureTime = NormalizeClock(s)
		}
		stops = append(stops, stop)
	}
	return stops
}

// NormalizeClock accepts "H:MM" or "HH:MM" within 00:00..23:59 and returns the
// zero-padded form, or nil for anything else.
func NormalizeClock(s string) *string {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) < 1 || len(hh) > 2 || len(mm) != 2 {
		return nil
	}
	if !allDigits(hh) || !allDigits(mm) {
		return nil
	}
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	if h > 23 || m > 59 {
		return nil
	}
	out := twoDigits(h) + ":" + twoDigits(m)
	return &out
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func capLength(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// StationKey is the matching key for station names: lower-cased with
// diacritics removed, so "Sélestat" and "SELESTAT" match.
func StationKey(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
