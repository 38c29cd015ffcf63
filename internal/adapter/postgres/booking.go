package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

type BookingRepo struct {
	db *pgxpool.Pool
}

func NewBookingRepo(db *pgxpool.Pool) *BookingRepo {
	return &BookingRepo{db: db}
}

const bookingColumns = `
		b.id, b.booking_number, b.customer_id, b.status, b.assigned_driver_id, b.version,
		b.pickup_address, b.pickup_latitude, b.pickup_longitude,
		b.dropoff_address, b.dropoff_latitude, b.dropoff_longitude,
		b.scheduled_at, b.passenger_count, b.estimated_fare, b.cancellation_reason,
		b.created_at, b.updated_at, b.matched_at, b.cancelled_at`

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var b models.Booking
	var pickupLat, pickupLon, dropoffLat, dropoffLon *float64

	err := row.Scan(
		&b.ID, &b.BookingNumber, &b.CustomerID, &b.Status, &b.AssignedDriverID, &b.Version,
		&b.Pickup.Address, &pickupLat, &pickupLon,
		&b.Dropoff.Address, &dropoffLat, &dropoffLon,
		&b.ScheduledAt, &b.PassengerCount, &b.EstimatedFare, &b.CancellationReason,
		&b.CreatedAt, &b.UpdatedAt, &b.MatchedAt, &b.CancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if pickupLat != nil && pickupLon != nil {
		b.Pickup.Coords = &models.Coordinates{Latitude: *pickupLat, Longitude: *pickupLon}
	}
	if dropoffLat != nil && dropoffLon != nil {
		b.Dropoff.Coords = &models.Coordinates{Latitude: *dropoffLat, Longitude: *dropoffLon}
	}
	return &b, nil
}

func (r *BookingRepo) Get(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1;`

	b, err := scanBooking(q.QueryRow(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrBookingNotFound
		}
		return nil, fmt.Errorf("booking repo: Get: %w", err)
	}
	return b, nil
}

// ListPending returns every booking still in PENDING, oldest first. Used to
// rebuild timers after a restart.
func (r *BookingRepo) ListPending(ctx context.Context) ([]models.Booking, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.status = 'PENDING' ORDER BY b.created_at;`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("booking repo: ListPending: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("booking repo: ListPending (scan): %w", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking repo: ListPending (rows): %w", err)
	}
	return bookings, nil
}

// AssignDriver moves a PENDING booking to ACCEPTED with a version check.
// Returns false without error when another writer got there first.
func (r *BookingRepo) AssignDriver(ctx context.Context, bookingID, driverID uuid.UUID, version int64, matchedAt time.Time) (bool, error) {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE bookings
		SET
			status = 'ACCEPTED',
			assigned_driver_id = $2,
			matched_at = $3,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $4 AND status = 'PENDING';`

	cmdTag, err := q.Exec(ctx, query, bookingID, driverID, matchedAt, version)
	if err != nil {
		return false, wrap.Error(wrap.WithAction(ctx, types.ActionDatabaseTransactionFailed),
			fmt.Errorf("booking repo: AssignDriver: %w", err))
	}
	return cmdTag.RowsAffected() == 1, nil
}

// Cancel moves the booking to CANCELLED only while it is still PENDING.
// Returns false when the booking had already left PENDING.
func (r *BookingRepo) Cancel(ctx context.Context, bookingID uuid.UUID, reason string, cancelledAt time.Time) (bool, error) {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE bookings
		SET
			status = 'CANCELLED',
			cancellation_reason = $2,
			cancelled_at = $3,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND status = 'PENDING';`

	cmdTag, err := q.Exec(ctx, query, bookingID, reason, cancelledAt)
	if err != nil {
		return false, fmt.Errorf("booking repo: Cancel: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}
