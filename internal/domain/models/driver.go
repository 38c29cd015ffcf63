package models

import (
	"time"

	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

type Driver struct {
	ID     uuid.UUID
	Name   string
	Phone  string
	Rating float64

	IsAvailable bool
	IsOnline    bool
	IsVerified  bool
	IsActive    bool

	Zones      []string
	Coords     *Coordinates
	LastSeenAt time.Time

	Vehicle Vehicle
}

// Eligible reports whether the driver may receive offers.
func (d *Driver) Eligible() bool {
	return d.IsAvailable && d.IsOnline && d.IsVerified && d.IsActive
}

type Vehicle struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Color string `json:"color"`
	Plate string `json:"plate"`
}

// DriverCandidate is a selector result: an eligible driver with the
// distance to pickup when both sides had coordinates.
type DriverCandidate struct {
	Driver
	DistanceKm *float64
}

// AssignedDriver is the snapshot read inside the assignment transaction
// for the customer-facing notification.
type AssignedDriver struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Phone   string    `json:"phone"`
	Rating  float64   `json:"rating"`
	Vehicle Vehicle   `json:"vehicle"`
}
