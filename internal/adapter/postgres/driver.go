package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

type DriverRepo struct {
	db *pgxpool.Pool
}

func NewDriverRepo(db *pgxpool.Pool) *DriverRepo {
	return &DriverRepo{db: db}
}

const driverColumns = `
		d.id, d.name, d.phone, d.rating,
		d.is_available, d.is_online, d.is_verified, d.is_active,
		d.zones, d.latitude, d.longitude, d.last_seen_at,
		d.vehicle_make, d.vehicle_model, d.vehicle_color, d.vehicle_plate`

func scanDriver(row pgx.Row) (*models.Driver, error) {
	var d models.Driver
	var lat, lon *float64

	err := row.Scan(
		&d.ID, &d.Name, &d.Phone, &d.Rating,
		&d.IsAvailable, &d.IsOnline, &d.IsVerified, &d.IsActive,
		&d.Zones, &lat, &lon, &d.LastSeenAt,
		&d.Vehicle.Make, &d.Vehicle.Model, &d.Vehicle.Color, &d.Vehicle.Plate,
	)
	if err != nil {
		return nil, err
	}

	if lat != nil && lon != nil {
		d.Coords = &models.Coordinates{Latitude: *lat, Longitude: *lon}
	}
	return &d, nil
}

func (r *DriverRepo) Get(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + driverColumns + ` FROM drivers d WHERE d.id = $1;`

	d, err := scanDriver(q.QueryRow(ctx, query, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrDriverNotFound
		}
		return nil, fmt.Errorf("driver repo: Get: %w", err)
	}
	return d, nil
}

// ListEligible returns drivers with every eligibility flag set. Ordering,
// distance and exclusion are applied by the selector, not here.
func (r *DriverRepo) ListEligible(ctx context.Context) ([]models.Driver, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT ` + driverColumns + `
		FROM drivers d
		WHERE d.is_available AND d.is_online AND d.is_verified AND d.is_active;`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("driver repo: ListEligible: %w", err)
	}
	defer rows.Close()

	var drivers []models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("driver repo: ListEligible (scan): %w", err)
		}
		drivers = append(drivers, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("driver repo: ListEligible (rows): %w", err)
	}
	return drivers, nil
}

// SetAvailable flips the availability flag, e.g. off after a driver wins an
// assignment.
func (r *DriverRepo) SetAvailable(ctx context.Context, driverID uuid.UUID, available bool) error {
	q := TxorDB(ctx, r.db)

	query := `UPDATE drivers SET is_available = $2, updated_at = now() WHERE id = $1;`

	cmdTag, err := q.Exec(ctx, query, driverID, available)
	if err != nil {
		return fmt.Errorf("driver repo: SetAvailable: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrDriverNotFound
	}
	return nil
}
