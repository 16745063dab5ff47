package agents

import (
	"time"

	"github.com/google/uuid"
)

// Availability of a field agent.
type Availability string

const (
	AvailabilityAvailable Availability = "AVAILABLE"
	AvailabilityBusy      Availability = "BUSY"
	AvailabilityOffline   Availability = "OFFLINE"
)

func (a Availability) Valid() bool {
	switch a {
	case AvailabilityAvailable, AvailabilityBusy, AvailabilityOffline:
		return true
	}
	return false
}

// Location is a WGS84 coordinate.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether no coordinate was recorded.
func (l Location) IsZero() bool {
	return l.Latitude == 0 && l.Longitude == 0
}

// Agent is a field operative who picks up and verifies devices.
type Agent struct {
	UserID        uuid.UUID    `db:"user_id"`
	FullName      string       `db:"full_name"`
	Phone         string       `db:"phone"`
	City          string       `db:"city"`
	Location      Location     `db:"-"`
	Rating        float64      `db:"rating"`
	TotalPickups  int          `db:"total_pickups"`
	ActivePickups int          `db:"active_pickups"`
	Availability  Availability `db:"availability"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

// Candidate is an agent ranked for a pickup.
type Candidate struct {
	Agent      *Agent
	DistanceKm float64
	SameCity   bool
}
