package models

import (
	"time"

	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

// Coordinates is a geographic point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is an address with optional coordinates.
type Location struct {
	Address string       `json:"address"`
	Coords  *Coordinates `json:"coords,omitempty"`
}

// Booking is the ride request being matched.
//
// AssignedDriverID is non-nil iff Status is ACCEPTED or COMPLETED. Version
// increases monotonically; only the conditional update in the assignment
// transactor may advance a booking out of PENDING.
type Booking struct {
	ID               uuid.UUID
	BookingNumber    string
	CustomerID       uuid.UUID
	Status           types.BookingStatus
	AssignedDriverID *uuid.UUID
	Version          int64

	Pickup         Location
	Dropoff        Location
	ScheduledAt    time.Time
	PassengerCount int
	EstimatedFare  float64

	CancellationReason *string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	MatchedAt   *time.Time
	CancelledAt *time.Time
}
