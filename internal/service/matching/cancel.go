package matching

import (
	"context"

	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

// CancelMatching stops an attempt from the outside, e.g. the customer
// changed their mind. Idempotent: cancelling a booking that already left
// PENDING succeeds without touching anything.
func (s *Service) CancelMatching(ctx context.Context, bookingID uuid.UUID, reason string) error {
	ctx = wrap.WithAction(ctx, types.ActionCancelMatching)
	ctx = wrap.WithBookingID(ctx, bookingID.String())

	if reason == "" {
		reason = "cancelled by customer"
	}
	now := s.clock.Now()

	cancelled, err := s.bookings.Cancel(ctx, bookingID, reason, now)
	if err != nil {
		return wrap.Error(ctx, err)
	}
	if !cancelled {
		// Already matched, cancelled or completed. Nothing left to undo.
		s.logger.Info(ctx, "cancel on a terminated booking, nothing to do")
		return nil
	}

	if _, err := s.metrics.Finalize(ctx, bookingID, types.MetricCancelled); err != nil {
		s.logger.Error(ctx, "could not finalize cancelled attempt", err)
	}

	pending, err := s.notifications.ListPendingByBooking(ctx, bookingID)
	if err != nil {
		s.logger.Error(ctx, "could not list outstanding offers", err)
		pending = nil
	}

	if _, err := s.notifications.ResolveAllPending(ctx, bookingID, types.OutcomeTimeout, now); err != nil {
		s.logger.Error(ctx, "could not withdraw outstanding offers", err)
	}

	s.timeouts.CancelAllForBooking(bookingID)

	for _, record := range pending {
		s.notifyDriver(ctx, record.DriverID, "The ride request has been cancelled.")
	}

	s.logger.Info(ctx, "matching cancelled", "reason", reason)
	return nil
}
