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

type CustomerRepo struct {
	db *pgxpool.Pool
}

func NewCustomerRepo(db *pgxpool.Pool) *CustomerRepo {
	return &CustomerRepo{db: db}
}

func (r *CustomerRepo) Get(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT id, name, phone FROM customers WHERE id = $1;`

	var c models.Customer
	err := q.QueryRow(ctx, query, customerID).Scan(&c.ID, &c.Name, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("customer repo: Get: %w", err)
	}
	return &c, nil
}
