package models

import (
	"time"

	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

// MatchingMetric is one record per matching attempt, keyed uniquely by
// BookingID. TotalResponded never exceeds TotalNotified; FinalStatus
// transitions out of ACTIVE exactly once.
type MatchingMetric struct {
	ID             uuid.UUID
	BookingID      uuid.UUID
	TotalNotified  int
	TotalResponded int

	AcceptedDriverID   *uuid.UUID
	AcceptedAt         *time.Time
	TimeToMatchSeconds *int64

	FinalStatus types.MetricStatus
	CreatedAt   time.Time
}
