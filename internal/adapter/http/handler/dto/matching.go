package dto

import (
	"time"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/internal/service/matching"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
	"github.com/Temutjin2k/driver-match-system/pkg/validator"
)

// StartMatchingRequest is the body of POST /matching/start.
type StartMatchingRequest struct {
	BookingID string                `json:"booking_id"`
	Options   *StartMatchingOptions `json:"options,omitempty"`
}

type StartMatchingOptions struct {
	MaxDistanceKm float64  `json:"max_distance_km,omitempty"`
	Priority      string   `json:"priority,omitempty"`
	Exclude       []string `json:"exclude,omitempty"`
}

func (r *StartMatchingRequest) Validate(v *validator.Validator) {
	v.Check(r.BookingID != "", "booking_id", "must be provided")
	if _, err := uuid.Parse(r.BookingID); r.BookingID != "" && err != nil {
		v.AddError("booking_id", "must be a valid uuid")
	}
	if r.Options == nil {
		return
	}
	v.Check(r.Options.MaxDistanceKm >= 0, "options.max_distance_km", "must not be negative")
	if r.Options.Priority != "" {
		v.Check(validator.PermittedValue(r.Options.Priority,
			string(types.PriorityRecentActivity), string(types.PriorityDistance)),
			"options.priority", "must be RECENT_ACTIVITY or DISTANCE")
	}
	for _, id := range r.Options.Exclude {
		if _, err := uuid.Parse(id); err != nil {
			v.AddError("options.exclude", "must contain only valid uuids")
			break
		}
	}
}

func (r *StartMatchingRequest) ToOptions() matching.StartOptions {
	if r.Options == nil {
		return matching.StartOptions{}
	}
	opts := matching.StartOptions{
		MaxDistanceKm: r.Options.MaxDistanceKm,
		Priority:      types.PriorityMode(r.Options.Priority),
	}
	for _, id := range r.Options.Exclude {
		parsed, err := uuid.Parse(id)
		if err == nil {
			opts.Exclude = append(opts.Exclude, parsed)
		}
	}
	return opts
}

// DriverResponseRequest is the body of POST /matching/response.
type DriverResponseRequest struct {
	BookingID string              `json:"booking_id"`
	DriverID  string              `json:"driver_id"`
	Response  DriverResponseInner `json:"response"`
}

type DriverResponseInner struct {
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	ResponseTime float64   `json:"response_time,omitempty"`
}

func (r *DriverResponseRequest) Validate(v *validator.Validator) {
	v.Check(r.BookingID != "", "booking_id", "must be provided")
	if _, err := uuid.Parse(r.BookingID); r.BookingID != "" && err != nil {
		v.AddError("booking_id", "must be a valid uuid")
	}
	v.Check(r.DriverID != "", "driver_id", "must be provided")
	if _, err := uuid.Parse(r.DriverID); r.DriverID != "" && err != nil {
		v.AddError("driver_id", "must be a valid uuid")
	}
	v.Check(validator.PermittedValue(r.Response.Type,
		string(types.ResponseAccept), string(types.ResponseReject)),
		"response.type", "must be ACCEPT or REJECT")
}

func (r *DriverResponseRequest) ToModel() models.DriverResponse {
	bookingID, _ := uuid.Parse(r.BookingID)
	driverID, _ := uuid.Parse(r.DriverID)
	return models.DriverResponse{
		BookingID: bookingID,
		DriverID:  driverID,
		Response:  types.DriverResponseType(r.Response.Type),
	}
}

// CancelMatchingRequest is the body of POST /matching/cancel.
type CancelMatchingRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason,omitempty"`
}

func (r *CancelMatchingRequest) Validate(v *validator.Validator) {
	v.Check(r.BookingID != "", "booking_id", "must be provided")
	if _, err := uuid.Parse(r.BookingID); r.BookingID != "" && err != nil {
		v.AddError("booking_id", "must be a valid uuid")
	}
}

// DriverTokenRequest is the body of POST /auth/driver/token.
type DriverTokenRequest struct {
	DriverID string `json:"driver_id"`
}

func (r *DriverTokenRequest) Validate(v *validator.Validator) {
	v.Check(r.DriverID != "", "driver_id", "must be provided")
	if _, err := uuid.Parse(r.DriverID); r.DriverID != "" && err != nil {
		v.AddError("driver_id", "must be a valid uuid")
	}
}
