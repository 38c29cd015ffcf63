package types

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingAccepted  BookingStatus = "ACCEPTED"
	BookingRejected  BookingStatus = "REJECTED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

func (s BookingStatus) String() string {
	return string(s)
}

// NotificationOutcome is the per-(booking, driver) offer outcome.
// It moves from PENDING to exactly one terminal value.
type NotificationOutcome string

const (
	OutcomePending    NotificationOutcome = "PENDING"
	OutcomeAccepted   NotificationOutcome = "ACCEPTED"
	OutcomeRejected   NotificationOutcome = "REJECTED"
	OutcomeTimeout    NotificationOutcome = "TIMEOUT"
	OutcomeSuperseded NotificationOutcome = "SUPERSEDED"
)

func (o NotificationOutcome) String() string {
	return string(o)
}

// Terminal reports whether the outcome is final.
func (o NotificationOutcome) Terminal() bool {
	return o != OutcomePending
}

// MetricStatus is the state of a matching attempt. finalStatus leaves
// ACTIVE at most once.
type MetricStatus string

const (
	MetricActive    MetricStatus = "ACTIVE"
	MetricMatched   MetricStatus = "MATCHED"
	MetricTimeout   MetricStatus = "TIMEOUT"
	MetricCancelled MetricStatus = "CANCELLED"
)

func (s MetricStatus) String() string {
	return string(s)
}

// DriverResponseType is what a driver replies to an offer.
type DriverResponseType string

const (
	ResponseAccept DriverResponseType = "ACCEPT"
	ResponseReject DriverResponseType = "REJECT"
)

func (t DriverResponseType) String() string {
	return string(t)
}

// MatchAction is the outcome reported to a responding driver.
type MatchAction string

const (
	MatchAssigned         MatchAction = "ASSIGNED"
	MatchRejected         MatchAction = "REJECTED"
	MatchAlreadyTaken     MatchAction = "ALREADY_TAKEN"
	MatchBookingCancelled MatchAction = "BOOKING_CANCELLED"
)

func (a MatchAction) String() string {
	return string(a)
}

// PriorityMode controls driver ordering in the selector.
type PriorityMode string

const (
	PriorityRecentActivity PriorityMode = "RECENT_ACTIVITY"
	PriorityDistance       PriorityMode = "DISTANCE"
)

// NotificationMethod tags how an offer reached the driver.
type NotificationMethod string

const (
	MethodMessage   NotificationMethod = "MESSAGE"
	MethodWebSocket NotificationMethod = "WEBSOCKET"
)

// AlertKind classifies admin alerts.
type AlertKind string

const (
	AlertBookingTimeout  AlertKind = "BOOKING_TIMEOUT"
	AlertSystemError     AlertKind = "SYSTEM_ERROR"
	AlertLowAvailability AlertKind = "LOW_AVAILABILITY"
)
