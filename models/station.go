package models

import (
	"time"

	"github.com/google/uuid"
)

// Station is a named stop served by the network.
// Key is the folded name used for lookups and uniqueness.
type Station struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Key       string    `db:"station_key" json:"-"`
	Code      *string   `db:"code" json:"code,omitempty"` // UIC or internal code
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// CreateStationRequest is the body of POST /api/admin/stations
type CreateStationRequest struct {
	Name string  `json:"name" validate:"required,max=190"`
	Code *string `json:"code,omitempty" validate:"omitempty,max=32,alphanum"`
}
