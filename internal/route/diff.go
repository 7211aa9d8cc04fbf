package route

// Time field names reported in TimeChange.Fields
const (
	FieldArrival   = "arrival"
	FieldDeparture = "departure"
)

// RouteDiff classifies the change between an original and a rerouted stop sequence
type RouteDiff struct {
	Added        []string     `json:"added"`
	Removed      []string     `json:"removed"`
	Reordered    bool         `json:"reordered"`
	TimesChanged []TimeChange `json:"times_changed"`
}

// TimeChange lists which time fields differ for one station present in both routes
type TimeChange struct {
	Station string   `json:"station"`
	Fields  []string `json:"fields"`
}

// Unchanged reports whether the diff carries no change at all
func (d RouteDiff) Unchanged() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && !d.Reordered && len(d.TimesChanged) == 0
}

// DiffRoutes compares two stop sequences by StationKey.
// A station listed twice binds to its first occurrence; later duplicates are
// not matched individually.
func DiffRoutes(original, modified []Stop) RouteDiff {
	diff := RouteDiff{
		Added:        []string{},
		Removed:      []string{},
		TimesChanged: []TimeChange{},
	}

	origIndex := firstSeen(original)
	modIndex := firstSeen(modified)

	seen := make(map[string]bool, len(original))
	for _, s := range original {
		k := StationKey(s.StationName)
		if seen[k] {
			continue
		}
		seen[k] = true
		if _, ok := modIndex[k]; !ok {
			diff.Removed = append(diff.Removed, s.StationName)
		}
	}

	seen = make(map[string]bool, len(modified))
	for _, s := range modified {
		k := StationKey(s.StationName)
		if seen[k] {
			continue
		}
		seen[k] = true
		if _, ok := origIndex[k]; !ok {
			diff.Added = append(diff.Added, s.StationName)
		}
	}

	if len(diff.Added) == 0 && len(diff.Removed) == 0 {
		diff.Reordered = !sameSequence(original, modified)
	}

	seen = make(map[string]bool, len(original))
	for _, s := range original {
		k := StationKey(s.StationName)
		if seen[k] {
			continue
		}
		seen[k] = true
		j, ok := modIndex[k]
		if !ok {
			continue
		}
		m := modified[j]
		var fields []string
		if !sameTime(s.ArrivalTime, m.ArrivalTime) {
			fields = append(fields, FieldArrival)
		}
		if !sameTime(s.DepartureTime, m.DepartureTime) {
			fields = append(fields, FieldDeparture)
		}
		if len(fields) > 0 {
			diff.TimesChanged = append(diff.TimesChanged, TimeChange{Station: s.StationName, Fields: fields})
		}
	}

	return diff
}

func firstSeen(stops []Stop) map[string]int {
	idx := make(map[string]int, len(stops))
	for i, s := range stops {
		k := StationKey(s.StationName)
		if _, ok := idx[k]; !ok {
			idx[k] = i
		}
	}
	return idx
}

func sameSequence(a, b []Stop) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if StationKey(a[i].StationName) != StationKey(b[i].StationName) {
			return false
		}
	}
	return true
}

func sameTime(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
