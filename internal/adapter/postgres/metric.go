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

type MetricRepo struct {
	db *pgxpool.Pool
}

func NewMetricRepo(db *pgxpool.Pool) *MetricRepo {
	return &MetricRepo{db: db}
}

func (r *MetricRepo) Create(ctx context.Context, m *models.MatchingMetric) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO matching_metrics (id, booking_id, total_notified, total_responded, final_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at;`

	err := q.QueryRow(ctx, query, m.ID, m.BookingID, m.TotalNotified, m.TotalResponded, m.FinalStatus).Scan(&m.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("metric repo: Create: attempt already recorded for booking %s", m.BookingID)
		}
		return fmt.Errorf("metric repo: Create: %w", err)
	}
	return nil
}

func (r *MetricRepo) GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.MatchingMetric, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT id, booking_id, total_notified, total_responded,
		       accepted_driver_id, accepted_at, time_to_match_seconds,
		       final_status, created_at
		FROM matching_metrics
		WHERE booking_id = $1;`

	var m models.MatchingMetric
	err := q.QueryRow(ctx, query, bookingID).Scan(
		&m.ID, &m.BookingID, &m.TotalNotified, &m.TotalResponded,
		&m.AcceptedDriverID, &m.AcceptedAt, &m.TimeToMatchSeconds,
		&m.FinalStatus, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrMetricNotFound
		}
		return nil, fmt.Errorf("metric repo: GetByBooking: %w", err)
	}
	return &m, nil
}

// IncrementResponded bumps the response counter. The WHERE clause caps it at
// total_notified and freezes it once the attempt leaves ACTIVE; a false
// return means the bump was refused, not that anything failed.
func (r *MetricRepo) IncrementResponded(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE matching_metrics
		SET total_responded = total_responded + 1
		WHERE booking_id = $1
		  AND final_status = 'ACTIVE'
		  AND total_responded < total_notified;`

	cmdTag, err := q.Exec(ctx, query, bookingID)
	if err != nil {
		return false, fmt.Errorf("metric repo: IncrementResponded: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// SetTotalNotified records how many drivers the dispatcher actually reached.
func (r *MetricRepo) SetTotalNotified(ctx context.Context, bookingID uuid.UUID, total int) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE matching_metrics
		SET total_notified = $2
		WHERE booking_id = $1 AND final_status = 'ACTIVE';`

	_, err := q.Exec(ctx, query, bookingID, total)
	if err != nil {
		return fmt.Errorf("metric repo: SetTotalNotified: %w", err)
	}
	return nil
}

// Finish moves the attempt out of ACTIVE exactly once. Accepted driver and
// timing fields are written only on MATCHED. Returns false when another
// writer already finished the attempt.
func (r *MetricRepo) Finish(ctx context.Context, bookingID uuid.UUID, status types.MetricStatus, acceptedDriverID *uuid.UUID, acceptedAt *time.Time, timeToMatch *int64) (bool, error) {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE matching_metrics
		SET
			final_status = $2,
			accepted_driver_id = $3,
			accepted_at = $4,
			time_to_match_seconds = $5
		WHERE booking_id = $1 AND final_status = 'ACTIVE';`

	cmdTag, err := q.Exec(ctx, query, bookingID, status, acceptedDriverID, acceptedAt, timeToMatch)
	if err != nil {
		return false, fmt.Errorf("metric repo: Finish: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}
