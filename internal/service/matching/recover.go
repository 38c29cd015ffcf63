package matching

import (
	"context"

	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
)

// RecoverPending rebuilds the in-memory timers after a restart. Bookings
// still PENDING get the remaining portion of their windows; anything whose
// window already passed is expired on the spot.
func (s *Service) RecoverPending(ctx context.Context) error {
	ctx = wrap.WithAction(ctx, types.ActionRecoverPending)

	bookings, err := s.bookings.ListPending(ctx)
	if err != nil {
		return wrap.Error(ctx, err)
	}

	now := s.clock.Now()
	recovered := 0

	for i := range bookings {
		booking := &bookings[i]
		bctx := wrap.WithBookingID(ctx, booking.ID.String())

		metric, err := s.metrics.Snapshot(bctx, booking.ID)
		if err != nil {
			// Booking exists but matching never started for it; nothing to
			// re-arm.
			continue
		}
		if metric.FinalStatus != types.MetricActive {
			continue
		}

		bookingRemaining := s.cfg.BookingTimeout - now.Sub(metric.CreatedAt)
		if bookingRemaining <= 0 {
			s.logger.Info(bctx, "booking window passed during downtime, expiring")
			s.expireBooking(bctx, booking)
			continue
		}

		pending, err := s.notifications.ListPendingByBooking(bctx, booking.ID)
		if err != nil {
			s.logger.Error(bctx, "could not list offers during recovery", err)
			continue
		}

		for _, record := range pending {
			driverRemaining := s.cfg.DriverResponseTimeout - now.Sub(record.SentAt)
			if driverRemaining <= 0 {
				s.HandleDriverTimeout(bctx, booking.ID, record.DriverID)
				continue
			}
			s.timeouts.ArmDriver(booking.ID, record.DriverID, driverRemaining)
		}

		// expireBooking may have run through HandleDriverTimeout above.
		fresh, err := s.bookings.Get(bctx, booking.ID)
		if err != nil || fresh.Status != types.BookingPending {
			continue
		}

		s.timeouts.ArmBooking(booking.ID, bookingRemaining)
		recovered++
	}

	s.logger.Info(ctx, "recovered pending matching attempts", "count", recovered)
	return nil
}
