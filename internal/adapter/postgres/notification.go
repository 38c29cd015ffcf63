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
	"github.com/Temutjin2k/driver-match-system/pkg/postgres"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

type NotificationRepo struct {
	db *pgxpool.Pool
}

func NewNotificationRepo(db *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Create(ctx context.Context, n *models.NotificationRecord) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO driver_notifications (booking_id, driver_id, sent_at, outcome, method)
		VALUES ($1, $2, $3, $4, $5);`

	_, err := q.Exec(ctx, query, n.BookingID, n.DriverID, n.SentAt, n.Outcome, n.Method)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return types.ErrDuplicateOffer
		}
		if postgres.IsForeignKeyViolation(err) {
			return types.ErrBookingNotFound
		}
		return fmt.Errorf("notification repo: Create: %w", err)
	}
	return nil
}

func (r *NotificationRepo) Get(ctx context.Context, bookingID, driverID uuid.UUID) (*models.NotificationRecord, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT booking_id, driver_id, sent_at, responded_at, outcome, method
		FROM driver_notifications
		WHERE booking_id = $1 AND driver_id = $2;`

	var n models.NotificationRecord
	err := q.QueryRow(ctx, query, bookingID, driverID).Scan(
		&n.BookingID, &n.DriverID, &n.SentAt, &n.RespondedAt, &n.Outcome, &n.Method,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrOfferNotFound
		}
		return nil, fmt.Errorf("notification repo: Get: %w", err)
	}
	return &n, nil
}

func (r *NotificationRepo) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.NotificationRecord, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT booking_id, driver_id, sent_at, responded_at, outcome, method
		FROM driver_notifications
		WHERE booking_id = $1
		ORDER BY sent_at;`

	rows, err := q.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("notification repo: ListByBooking: %w", err)
	}
	defer rows.Close()

	var records []models.NotificationRecord
	for rows.Next() {
		var n models.NotificationRecord
		if err := rows.Scan(&n.BookingID, &n.DriverID, &n.SentAt, &n.RespondedAt, &n.Outcome, &n.Method); err != nil {
			return nil, fmt.Errorf("notification repo: ListByBooking (scan): %w", err)
		}
		records = append(records, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notification repo: ListByBooking (rows): %w", err)
	}
	return records, nil
}

// ListPendingByBooking returns unresolved offers for a booking. Used to
// re-arm driver timers after a restart.
func (r *NotificationRepo) ListPendingByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.NotificationRecord, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT booking_id, driver_id, sent_at, responded_at, outcome, method
		FROM driver_notifications
		WHERE booking_id = $1 AND outcome = 'PENDING'
		ORDER BY sent_at;`

	rows, err := q.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("notification repo: ListPendingByBooking: %w", err)
	}
	defer rows.Close()

	var records []models.NotificationRecord
	for rows.Next() {
		var n models.NotificationRecord
		if err := rows.Scan(&n.BookingID, &n.DriverID, &n.SentAt, &n.RespondedAt, &n.Outcome, &n.Method); err != nil {
			return nil, fmt.Errorf("notification repo: ListPendingByBooking (scan): %w", err)
		}
		records = append(records, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notification repo: ListPendingByBooking (rows): %w", err)
	}
	return records, nil
}

// Resolve moves one offer from PENDING to a terminal outcome. Returns false
// without error when the offer was already resolved, so late answers and
// timer races stay idempotent.
func (r *NotificationRepo) Resolve(ctx context.Context, bookingID, driverID uuid.UUID, outcome types.NotificationOutcome, respondedAt time.Time) (bool, error) {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE driver_notifications
		SET outcome = $3, responded_at = $4
		WHERE booking_id = $1 AND driver_id = $2 AND outcome = 'PENDING';`

	cmdTag, err := q.Exec(ctx, query, bookingID, driverID, outcome, respondedAt)
	if err != nil {
		return false, fmt.Errorf("notification repo: Resolve: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// ResolveAllPending stamps every unresolved offer of a booking with the
// given outcome, e.g. EXPIRED on booking timeout or CANCELLED on customer
// cancel. Returns how many rows changed.
func (r *NotificationRepo) ResolveAllPending(ctx context.Context, bookingID uuid.UUID, outcome types.NotificationOutcome, respondedAt time.Time) (int64, error) {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE driver_notifications
		SET outcome = $2, responded_at = $3
		WHERE booking_id = $1 AND outcome = 'PENDING';`

	cmdTag, err := q.Exec(ctx, query, bookingID, outcome, respondedAt)
	if err != nil {
		return 0, fmt.Errorf("notification repo: ResolveAllPending: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}
