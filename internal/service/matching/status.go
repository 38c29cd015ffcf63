package matching

import (
	"context"
	"errors"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

// Status returns a read-only snapshot of a booking's matching attempt.
func (s *Service) Status(ctx context.Context, bookingID uuid.UUID) (*models.MatchingStatus, error) {
	ctx = wrap.WithBookingID(ctx, bookingID.String())

	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	notifications, err := s.notifications.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	status := &models.MatchingStatus{
		BookingID:      booking.ID,
		BookingStatus:  booking.Status,
		AssignedDriver: booking.AssignedDriverID,
		Notifications:  notifications,
	}

	metric, err := s.metrics.Snapshot(ctx, bookingID)
	if err != nil {
		if !errors.Is(err, types.ErrMetricNotFound) {
			return nil, wrap.Error(ctx, err)
		}
	} else {
		status.Metric = metric
	}

	return status, nil
}
