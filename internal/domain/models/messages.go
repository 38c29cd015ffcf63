package models

import (
	"time"

	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

// OutboundMessage is published to the outbound_messages queue for delivery
// over SMS/push by a downstream gateway.
type OutboundMessage struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Recipient   string    `json:"recipient"`
	Body        string    `json:"body"`
	SentAt      time.Time `json:"sent_at"`
}

// AdminAlert is published to the admin_alerts queue when operators need to
// step in.
type AdminAlert struct {
	Kind      types.AlertKind `json:"kind"`
	BookingID uuid.UUID       `json:"booking_id"`
	Message   string          `json:"message"`
	Details   map[string]any  `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// DriverOfferPush is the payload pushed to a connected driver over websocket.
type DriverOfferPush struct {
	Type           string    `json:"type"`
	BookingID      uuid.UUID `json:"booking_id"`
	BookingNumber  string    `json:"booking_number"`
	PickupAddress  string    `json:"pickup_address"`
	DropoffAddress string    `json:"dropoff_address"`
	EstimatedFare  float64   `json:"estimated_fare"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// DriverResponse is a driver's answer to an offer, arriving over HTTP or
// websocket.
type DriverResponse struct {
	BookingID uuid.UUID                `json:"booking_id"`
	DriverID  uuid.UUID                `json:"driver_id"`
	Response  types.DriverResponseType `json:"response"`
}

// StartResult reports the outcome of kicking off a matching attempt.
// Errors holds per-driver delivery failures; they never abort the attempt.
type StartResult struct {
	BookingID     uuid.UUID
	MetricID      uuid.UUID
	NotifiedCount int
	DriverIDs     []uuid.UUID
	Errors        []error
}

// ResponseResult reports what an accept or reject resolved to.
type ResponseResult struct {
	Action         types.MatchAction
	AssignedDriver *AssignedDriver
}

// MatchingStatus is a read-only snapshot of an attempt for the status API.
type MatchingStatus struct {
	BookingID      uuid.UUID            `json:"booking_id"`
	BookingStatus  types.BookingStatus  `json:"booking_status"`
	AssignedDriver *uuid.UUID           `json:"assigned_driver_id,omitempty"`
	Notifications  []NotificationRecord `json:"notifications"`
	Metric         *MatchingMetric      `json:"metric,omitempty"`
}
