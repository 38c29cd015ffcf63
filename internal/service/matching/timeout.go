package matching

import (
	"context"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

// HandleDriverTimeout fires when one driver's response window closes. The
// timer proves nothing; the offer state is re-read before acting.
func (s *Service) HandleDriverTimeout(ctx context.Context, bookingID, driverID uuid.UUID) {
	ctx = wrap.WithAction(ctx, types.ActionDriverTimeout)
	ctx = wrap.WithBookingID(ctx, bookingID.String())
	ctx = wrap.WithDriverID(ctx, driverID.String())

	now := s.clock.Now()

	resolved, err := s.notifications.Resolve(ctx, bookingID, driverID, types.OutcomeTimeout, now)
	if err != nil {
		s.logger.Error(ctx, "could not expire offer", err)
		return
	}
	if !resolved {
		// The driver answered between firing and here.
		return
	}

	s.metrics.RecordResponse(ctx, bookingID)
	s.logger.Info(ctx, "driver offer expired")

	s.checkExhausted(ctx, bookingID)
}

// HandleBookingTimeout fires when the whole attempt runs out of time.
func (s *Service) HandleBookingTimeout(ctx context.Context, bookingID uuid.UUID) {
	ctx = wrap.WithAction(ctx, types.ActionBookingTimeout)
	ctx = wrap.WithBookingID(ctx, bookingID.String())

	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		s.logger.Error(ctx, "could not reload booking on timeout", err)
		return
	}
	if booking.Status != types.BookingPending {
		return
	}

	s.expireBooking(ctx, booking)
}

// expireBooking closes an attempt that found nobody: outstanding offers go
// to TIMEOUT, the metric finishes as TIMEOUT, every timer is dropped, the
// customer hears "no driver" and the admin channel gets one alert.
func (s *Service) expireBooking(ctx context.Context, booking *models.Booking) {
	now := s.clock.Now()

	finished, err := s.metrics.Finalize(ctx, booking.ID, types.MetricTimeout)
	if err != nil {
		s.logger.Error(ctx, "could not finalize timed-out attempt", err)
		return
	}
	if !finished {
		// Another path (accept, cancel, concurrent timeout) already closed
		// the attempt.
		return
	}

	if _, err := s.notifications.ResolveAllPending(ctx, booking.ID, types.OutcomeTimeout, now); err != nil {
		s.logger.Error(ctx, "could not expire outstanding offers", err)
	}

	s.timeouts.CancelAllForBooking(booking.ID)

	s.notifyCustomer(ctx, booking, s.noDriverText(booking))

	if err := s.admin.Alert(ctx, s.timeoutAlert(ctx, booking)); err != nil {
		s.logger.Error(ctx, "could not alert admin about timeout", err)
	}

	s.logger.Warn(ctx, "matching attempt timed out")
}
