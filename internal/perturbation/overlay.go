package perturbation

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Key identifies the occurrence an override applies to
type Key struct {
	ScheduleID string
	Date       string
}

// Record is a stored override for one occurrence
type Record struct {
	ID          uuid.UUID `json:"id"`
	ScheduleID  string    `json:"scheduleId"`
	Date        string    `json:"date"`
	Override    Override  `json:"override"`
	Cause       string    `json:"cause,omitempty"`
	Message     string    `json:"message,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Key returns the occurrence key of the record
func (r Record) Key() Key {
	return Key{ScheduleID: r.ScheduleID, Date: r.Date}
}

// IndexRecords keys records by occurrence. A later record for the same key wins.
func IndexRecords(records []Record) map[Key]Record {
	idx := make(map[Key]Record, len(records))
	for _, r := range records {
		idx[r.Key()] = r
	}
	return idx
}

// EnrichedOccurrence is a running occurrence with its perturbation, if any
type EnrichedOccurrence struct {
	Occurrence
	Perturbed      bool       `json:"perturbed"`
	Classification string     `json:"classification,omitempty"`
	DelayMinutes   int        `json:"delayMinutes"`
	FromStation    string     `json:"fromStation,omitempty"`
	Cause          string     `json:"cause,omitempty"`
	Message        string     `json:"message,omitempty"`
	Reroute        *Reroute   `json:"reroute,omitempty"`
	OverrideID     *uuid.UUID `json:"overrideId,omitempty"`
	Fingerprint    string     `json:"fingerprint,omitempty"`
}

// MergeOverlay attaches overrides to running occurrences. Occurrences that do
// not run are dropped even when an override exists for them: the override
// store only says how a running train is perturbed, never whether it runs.
// Output is ordered by date, then schedule id.
func MergeOverlay(base []Occurrence, overrides map[Key]Record) []EnrichedOccurrence {
	out := make([]EnrichedOccurrence, 0, len(base))
	for _, occ := range base {
		if !occ.Runs {
			continue
		}
		e := EnrichedOccurrence{Occurrence: occ}
		if rec, ok := overrides[Key{ScheduleID: occ.ScheduleID, Date: occ.Date}]; ok {
			applyRecord(&e, rec)
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ScheduleID < out[j].ScheduleID
	})
	return out
}

// Perturbed keeps only the occurrences carrying an override
func Perturbed(occurrences []EnrichedOccurrence) []EnrichedOccurrence {
	out := make([]EnrichedOccurrence, 0)
	for _, o := range occurrences {
		if o.Perturbed {
			out = append(out, o)
		}
	}
	return out
}

func applyRecord(e *EnrichedOccurrence, rec Record) {
	id := rec.ID
	e.Perturbed = true
	e.Classification = rec.Override.Kind.Classification()
	e.Cause = rec.Cause
	e.OverrideID = &id
	e.Fingerprint = rec.Fingerprint

	switch rec.Override.Kind {
	case KindDelay:
		if rec.Override.Delay != nil {
			e.DelayMinutes = rec.Override.Delay.Minutes
			e.FromStation = rec.Override.Delay.FromStation
		}
	case KindReroute:
		e.Reroute = rec.Override.Reroute
	}

	e.Message = rec.Message
	if e.Message == "" {
		e.Message = defaultMessage(rec.Override, e.DelayMinutes)
	}
}

func defaultMessage(o Override, minutes int) string {
	switch o.Kind {
	case KindDelay:
		if o.Delay != nil && o.Delay.FromStation != "" {
			return fmt.Sprintf("Retard estimé de %d min à partir de %s", minutes, o.Delay.FromStation)
		}
		return fmt.Sprintf("Retard estimé de %d min", minutes)
	case KindCancel:
		return "Train supprimé"
	case KindReroute:
		return "Itinéraire modifié"
	default:
		return ""
	}
}
