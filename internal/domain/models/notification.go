package models

import (
	"time"

	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

// NotificationRecord is the ledger entry for one offer sent to one driver.
// (BookingID, DriverID) is unique; Outcome moves from PENDING to a terminal
// value at most once.
type NotificationRecord struct {
	BookingID   uuid.UUID
	DriverID    uuid.UUID
	SentAt      time.Time
	RespondedAt *time.Time
	Outcome     types.NotificationOutcome
	Method      types.NotificationMethod
}
