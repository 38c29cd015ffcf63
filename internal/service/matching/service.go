package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/internal/service/selector"
	"github.com/Temutjin2k/driver-match-system/pkg/clock"
	"github.com/Temutjin2k/driver-match-system/pkg/logger"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

// Config carries the matching knobs. Durations come from the service
// config; defaults are 30s per driver and 300s per booking.
type Config struct {
	DriverResponseTimeout time.Duration
	BookingTimeout        time.Duration
	MaxDistanceKm         float64
	Priority              types.PriorityMode
}

// Service is the matching coordinator. It owns the timers for a booking
// and drives the selector, dispatcher and transactor; the database owns
// every durable record.
type Service struct {
	cfg Config

	bookings      BookingRepo
	customers     CustomerRepo
	drivers       DriverRepo
	notifications NotificationRepo

	selector   Selector
	dispatcher Dispatcher
	transactor Transactor
	metrics    Aggregator
	timeouts   Timeouts

	messenger Messenger
	admin     AdminNotifier

	logger logger.Logger
	clock  clock.Clock
}

func NewService(
	cfg Config,
	bookings BookingRepo,
	customers CustomerRepo,
	drivers DriverRepo,
	notifications NotificationRepo,
	sel Selector,
	dispatcher Dispatcher,
	transactor Transactor,
	metricsAgg Aggregator,
	timeouts Timeouts,
	messenger Messenger,
	admin AdminNotifier,
	log logger.Logger,
	clk clock.Clock,
) *Service {
	if cfg.DriverResponseTimeout <= 0 {
		cfg.DriverResponseTimeout = 30 * time.Second
	}
	if cfg.BookingTimeout <= 0 {
		cfg.BookingTimeout = 300 * time.Second
	}
	if cfg.Priority == "" {
		cfg.Priority = types.PriorityRecentActivity
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{
		cfg:           cfg,
		bookings:      bookings,
		customers:     customers,
		drivers:       drivers,
		notifications: notifications,
		selector:      sel,
		dispatcher:    dispatcher,
		transactor:    transactor,
		metrics:       metricsAgg,
		timeouts:      timeouts,
		messenger:     messenger,
		admin:         admin,
		logger:        log,
		clock:         clk,
	}
}

// StartOptions lets the caller narrow a single attempt.
type StartOptions struct {
	MaxDistanceKm float64
	Priority      types.PriorityMode
	Exclude       []uuid.UUID
}

// StartMatching opens a matching attempt for a PENDING booking: selects
// every eligible driver, broadcasts offers, arms both timer tiers and tells
// the customer the search started.
func (s *Service) StartMatching(ctx context.Context, bookingID uuid.UUID, opts StartOptions) (*models.StartResult, error) {
	ctx = wrap.WithAction(ctx, types.ActionStartMatching)
	ctx = wrap.WithBookingID(ctx, bookingID.String())

	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if booking.Status != types.BookingPending {
		return nil, wrap.Error(ctx, types.ErrBookingNotPending)
	}

	metric, err := s.metrics.Open(ctx, bookingID)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not open matching attempt: %w", err))
	}

	selOpts := selector.Options{
		MaxDistanceKm: s.cfg.MaxDistanceKm,
		Priority:      s.cfg.Priority,
		Exclude:       make(map[uuid.UUID]struct{}, len(opts.Exclude)),
	}
	if opts.MaxDistanceKm > 0 {
		selOpts.MaxDistanceKm = opts.MaxDistanceKm
	}
	if opts.Priority != "" {
		selOpts.Priority = opts.Priority
	}
	for _, id := range opts.Exclude {
		selOpts.Exclude[id] = struct{}{}
	}

	candidates, err := s.selector.Select(ctx, booking, selOpts)
	if err != nil {
		// The open attempt must not stay ACTIVE forever with no timers
		// behind it.
		if _, ferr := s.metrics.Finalize(ctx, bookingID, types.MetricTimeout); ferr != nil {
			s.logger.Error(ctx, "could not close the failed attempt", ferr)
		}
		return nil, wrap.Error(ctx, fmt.Errorf("could not select drivers: %w", err))
	}

	if len(candidates) == 0 {
		return s.noDriversFound(ctx, booking, metric)
	}

	expiresAt := s.clock.Now().Add(s.cfg.DriverResponseTimeout)
	res := s.dispatcher.Broadcast(ctx, booking, candidates, s.offerText(booking), expiresAt)

	for _, e := range res.Errors {
		s.logger.Warn(ctx, "offer delivery failed", "error", e.Error())
	}

	if err := s.metrics.RecordNotified(ctx, bookingID, len(res.Notified)); err != nil {
		s.logger.Error(ctx, "failed to record notified count", err)
	}

	for _, driverID := range res.Notified {
		s.timeouts.ArmDriver(bookingID, driverID, s.cfg.DriverResponseTimeout)
	}
	s.timeouts.ArmBooking(bookingID, s.cfg.BookingTimeout)

	s.notifyCustomer(ctx, booking, s.searchStartedText(booking))

	s.logger.Info(ctx, "matching started",
		"drivers_notified", len(res.Notified),
		"delivery_failures", len(res.Errors),
	)

	return &models.StartResult{
		BookingID:     bookingID,
		MetricID:      metric.ID,
		NotifiedCount: len(res.Notified),
		DriverIDs:     res.Notified,
		Errors:        res.Errors,
	}, nil
}

// noDriversFound closes the attempt immediately: metric TIMEOUT, customer
// told, admin alerted.
func (s *Service) noDriversFound(ctx context.Context, booking *models.Booking, metric *models.MatchingMetric) (*models.StartResult, error) {
	if _, err := s.metrics.Finalize(ctx, booking.ID, types.MetricTimeout); err != nil {
		s.logger.Error(ctx, "failed to finalize empty attempt", err)
	}

	s.notifyCustomer(ctx, booking, s.noDriverText(booking))

	if err := s.admin.Alert(ctx, s.lowAvailabilityAlert(booking)); err != nil {
		s.logger.Error(ctx, "failed to alert admin", err)
	}

	s.logger.Warn(ctx, "no eligible drivers for booking")

	return &models.StartResult{
		BookingID: booking.ID,
		MetricID:  metric.ID,
	}, types.ErrNoDriversAvailable
}

func (s *Service) notifyCustomer(ctx context.Context, booking *models.Booking, text string) {
	customer, err := s.customers.Get(ctx, booking.CustomerID)
	if err != nil {
		s.logger.Error(ctx, "could not load customer for notification", err)
		return
	}
	err = s.messenger.Send(ctx, models.OutboundMessage{
		RecipientID: customer.ID,
		Recipient:   customer.Phone,
		Body:        text,
		SentAt:      s.clock.Now(),
	})
	if err != nil {
		s.logger.Error(ctx, "could not send customer message", err)
	}
}

func (s *Service) notifyDriver(ctx context.Context, driverID uuid.UUID, text string) {
	driver, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		s.logger.Error(ctx, "could not load driver for notification", err)
		return
	}
	err = s.messenger.Send(ctx, models.OutboundMessage{
		RecipientID: driver.ID,
		Recipient:   driver.Phone,
		Body:        text,
		SentAt:      s.clock.Now(),
	})
	if err != nil {
		s.logger.Warn(ctx, "could not send driver message",
			"driver_id", driverID.String(), "error", err.Error())
	}
}
