package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/metrics"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

const serviceName = "matching-service"

// HandleDriverResponse resolves one driver's answer to an outstanding
// offer. The returned action tells the driver what their answer amounted
// to; a late or duplicate answer is never an error.
func (s *Service) HandleDriverResponse(ctx context.Context, resp models.DriverResponse) (*models.ResponseResult, error) {
	ctx = wrap.WithAction(ctx, types.ActionDriverResponse)
	ctx = wrap.WithBookingID(ctx, resp.BookingID.String())
	ctx = wrap.WithDriverID(ctx, resp.DriverID.String())

	if resp.Response != types.ResponseAccept && resp.Response != types.ResponseReject {
		return nil, wrap.Error(ctx, types.ErrInvalidResponseType)
	}
	metrics.DriverResponsesTotal.WithLabelValues(serviceName, resp.Response.String()).Inc()

	record, err := s.notifications.Get(ctx, resp.BookingID, resp.DriverID)
	if err != nil {
		if errors.Is(err, types.ErrOfferNotFound) {
			// No offer was ever made; the booking is gone as far as this
			// driver is concerned.
			return &models.ResponseResult{Action: types.MatchBookingCancelled}, nil
		}
		return nil, wrap.Error(ctx, err)
	}
	if record.Outcome.Terminal() {
		return &models.ResponseResult{Action: s.settledAction(ctx, resp.BookingID)}, nil
	}

	s.timeouts.CancelDriver(resp.BookingID, resp.DriverID)

	if resp.Response == types.ResponseReject {
		return s.handleReject(ctx, resp)
	}
	return s.handleAccept(ctx, resp)
}

func (s *Service) handleReject(ctx context.Context, resp models.DriverResponse) (*models.ResponseResult, error) {
	now := s.clock.Now()

	resolved, err := s.notifications.Resolve(ctx, resp.BookingID, resp.DriverID, types.OutcomeRejected, now)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !resolved {
		// A timer, a cancel or a concurrent answer got there first.
		return &models.ResponseResult{Action: s.settledAction(ctx, resp.BookingID)}, nil
	}

	s.metrics.RecordResponse(ctx, resp.BookingID)
	s.logger.Info(ctx, "driver rejected offer")

	s.checkExhausted(ctx, resp.BookingID)

	return &models.ResponseResult{Action: types.MatchRejected}, nil
}

func (s *Service) handleAccept(ctx context.Context, resp models.DriverResponse) (*models.ResponseResult, error) {
	now := s.clock.Now()

	resolved, err := s.notifications.Resolve(ctx, resp.BookingID, resp.DriverID, types.OutcomeAccepted, now)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !resolved {
		return &models.ResponseResult{Action: s.settledAction(ctx, resp.BookingID)}, nil
	}

	s.metrics.RecordResponse(ctx, resp.BookingID)

	assigned, err := s.transactor.Assign(ctx, resp.BookingID, resp.DriverID)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrBookingTaken):
			s.logger.Info(ctx, "driver lost assignment race")
			return &models.ResponseResult{Action: types.MatchAlreadyTaken}, nil
		case errors.Is(err, types.ErrBookingNotPending):
			s.logger.Info(ctx, "driver accepted a terminated booking")
			return &models.ResponseResult{Action: types.MatchBookingCancelled}, nil
		default:
			return nil, wrap.Error(ctx, fmt.Errorf("assignment failed: %w", err))
		}
	}

	s.finishMatched(ctx, resp.BookingID, assigned)

	return &models.ResponseResult{
		Action:         types.MatchAssigned,
		AssignedDriver: assigned,
	}, nil
}

// finishMatched runs the post-assignment cleanup: supersede outstanding
// offers, drop every timer, tell the losing drivers and the customer.
func (s *Service) finishMatched(ctx context.Context, bookingID uuid.UUID, assigned *models.AssignedDriver) {
	now := s.clock.Now()

	pending, err := s.notifications.ListPendingByBooking(ctx, bookingID)
	if err != nil {
		s.logger.Error(ctx, "could not list outstanding offers", err)
		pending = nil
	}

	if _, err := s.notifications.ResolveAllPending(ctx, bookingID, types.OutcomeSuperseded, now); err != nil {
		s.logger.Error(ctx, "could not supersede outstanding offers", err)
	}

	s.timeouts.CancelAllForBooking(bookingID)

	for _, record := range pending {
		s.notifyDriver(ctx, record.DriverID, "The ride offer has been taken by another driver.")
	}

	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		s.logger.Error(ctx, "could not reload matched booking", err)
	} else {
		s.notifyCustomer(ctx, booking, s.driverAssignedText(assigned))
	}

	s.metrics.ObserveMatched(ctx, bookingID)
	s.logger.Info(ctx, "booking matched", "driver_id", assigned.ID.String())
}

// settledAction reports what a settled offer means for a late answer: the
// booking may have been cancelled rather than taken by someone else.
func (s *Service) settledAction(ctx context.Context, bookingID uuid.UUID) types.MatchAction {
	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		s.logger.Error(ctx, "could not reload booking for a settled offer", err)
		return types.MatchAlreadyTaken
	}
	if booking.Status == types.BookingCancelled {
		return types.MatchBookingCancelled
	}
	return types.MatchAlreadyTaken
}

// checkExhausted fires the early-timeout path when every offer has been
// resolved, nobody won, and the booking is still waiting.
func (s *Service) checkExhausted(ctx context.Context, bookingID uuid.UUID) {
	pending, err := s.notifications.ListPendingByBooking(ctx, bookingID)
	if err != nil {
		s.logger.Error(ctx, "could not check outstanding offers", err)
		return
	}
	if len(pending) > 0 {
		return
	}

	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		s.logger.Error(ctx, "could not reload booking", err)
		return
	}
	if booking.Status != types.BookingPending {
		return
	}

	s.logger.Info(ctx, "all drivers responded without an accept, timing out early")
	s.expireBooking(ctx, booking)
}
