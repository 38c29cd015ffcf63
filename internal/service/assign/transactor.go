package assign

import (
	"context"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/pkg/clock"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/trm"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

type BookingRepo interface {
	Get(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	AssignDriver(ctx context.Context, bookingID, driverID uuid.UUID, version int64, matchedAt time.Time) (bool, error)
}

type DriverRepo interface {
	Get(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
	SetAvailable(ctx context.Context, driverID uuid.UUID, available bool) error
}

type MetricRepo interface {
	Finish(ctx context.Context, bookingID uuid.UUID, status types.MetricStatus, acceptedDriverID *uuid.UUID, acceptedAt *time.Time, timeToMatch *int64) (bool, error)
}

// Transactor performs the winner-takes-it assignment. Everything happens in
// one serializable transaction guarded by the booking version, so exactly
// one of N concurrent accepts can succeed.
type Transactor struct {
	trm      trm.TxManager
	bookings BookingRepo
	drivers  DriverRepo
	metrics  MetricRepo
	clock    clock.Clock
}

func New(txm trm.TxManager, bookings BookingRepo, drivers DriverRepo, metricRepo MetricRepo, clk clock.Clock) *Transactor {
	if clk == nil {
		clk = clock.Real()
	}
	return &Transactor{
		trm:      txm,
		bookings: bookings,
		drivers:  drivers,
		metrics:  metricRepo,
		clock:    clk,
	}
}

// Assign tries to give the booking to the accepting driver.
//
// Returns types.ErrBookingTaken when another driver won the race and
// types.ErrBookingNotPending when the booking was cancelled before the
// answer arrived. On either failure the booking is left untouched.
func (t *Transactor) Assign(ctx context.Context, bookingID, driverID uuid.UUID) (*models.AssignedDriver, error) {
	ctx = wrap.WithAction(ctx, "assign_driver")

	var assigned *models.AssignedDriver

	err := t.trm.DoSerializable(ctx, func(ctx context.Context) error {
		booking, err := t.bookings.Get(ctx, bookingID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if booking.Status != types.BookingPending || booking.AssignedDriverID != nil {
			if booking.Status == types.BookingAccepted {
				return wrap.Error(ctx, types.ErrBookingTaken)
			}
			return wrap.Error(ctx, types.ErrBookingNotPending)
		}

		now := t.clock.Now()

		ok, err := t.bookings.AssignDriver(ctx, bookingID, driverID, booking.Version, now)
		if err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not assign driver: %w", err))
		}
		if !ok {
			// Version moved between the read and the update.
			return wrap.Error(ctx, types.ErrBookingTaken)
		}

		driver, err := t.drivers.Get(ctx, driverID)
		if err != nil {
			return wrap.Error(ctx, err)
		}
		if err := t.drivers.SetAvailable(ctx, driverID, false); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not mark driver busy: %w", err))
		}

		timeToMatch := int64(now.Sub(booking.CreatedAt) / time.Second)
		if _, err := t.metrics.Finish(ctx, bookingID, types.MetricMatched, &driverID, &now, &timeToMatch); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not finish metric: %w", err))
		}

		assigned = &models.AssignedDriver{
			ID:      driver.ID,
			Name:    driver.Name,
			Phone:   driver.Phone,
			Rating:  driver.Rating,
			Vehicle: driver.Vehicle,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}
