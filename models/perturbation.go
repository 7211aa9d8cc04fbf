package models

import (
	"github.com/regiorail/horaires/internal/perturbation"
	"github.com/regiorail/horaires/internal/route"
)

// Mutation statuses reported by the admin perturbation endpoints
const (
	MutationCreated   = "created"
	MutationUpdated   = "updated"
	MutationUnchanged = "unchanged"
	MutationDeleted   = "deleted"
)

// PerturbationMeta carries the free-text fields of an override payload
type PerturbationMeta struct {
	Cause   string `json:"cause" validate:"max=120"`
	Message string `json:"message" validate:"max=500"`
}

// MutationResponse is returned by PUT/DELETE /api/admin/schedules/{id}/perturbations/{date}
type MutationResponse struct {
	Status string               `json:"status"`
	Record *perturbation.Record `json:"record,omitempty"`
}

// OccurrencesResponse is the JSON response for GET /api/schedules/{id}/occurrences
type OccurrencesResponse struct {
	ScheduleID  string                    `json:"scheduleId"`
	From        string                    `json:"from"`
	To          string                    `json:"to"`
	Occurrences []perturbation.Occurrence `json:"occurrences"`
	Count       int                       `json:"count"`
}

// PerturbationsResponse is the JSON response for GET /api/perturbations
type PerturbationsResponse struct {
	From        string                            `json:"from"`
	To          string                            `json:"to"`
	Occurrences []perturbation.EnrichedOccurrence `json:"occurrences"`
	Count       int                               `json:"count"`
}

// RerouteDiffRequest is the body of POST /api/admin/schedules/{id}/reroute/diff
type RerouteDiffRequest struct {
	Stops []map[string]interface{} `json:"stops" validate:"required"`
}

// RerouteDiffResponse pairs the normalised stops with their diff against the stored route
type RerouteDiffResponse struct {
	ScheduleID string          `json:"scheduleId"`
	Stops      []route.Stop    `json:"stops"`
	Diff       route.RouteDiff `json:"diff"`
	Unchanged  bool            `json:"unchanged"`
}
