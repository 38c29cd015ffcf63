package types

import "errors"

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBookingNotPending = errors.New("booking is not pending")
	ErrBookingTaken      = errors.New("booking already assigned to another driver")

	ErrDriverNotFound     = errors.New("driver not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrNoDriversAvailable = errors.New("no eligible drivers available")

	ErrOfferNotFound        = errors.New("offer not found")
	ErrOfferAlreadyResolved = errors.New("offer already resolved")
	ErrDuplicateOffer       = errors.New("offer already exists for this driver")

	ErrMetricNotFound  = errors.New("matching metric not found")
	ErrMetricNotActive = errors.New("matching metric is not active")

	ErrInvalidResponseType = errors.New("invalid driver response type")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrNotFound            = errors.New("requested item not found")
)
