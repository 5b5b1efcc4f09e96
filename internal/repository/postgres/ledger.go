package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
	"github.com/nkiryanov/vendorpos/internal/models"
)

type LedgerRepo struct {
	DB DBTX
}

func (r *LedgerRepo) GetPool(ctx context.Context, forUpdate bool) (decimal.Decimal, error) {
	query := `SELECT current FROM global_pool WHERE id = 1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, _ := r.DB.Query(ctx, query)
	current, err := pgx.CollectOneRow(rows, pgx.RowTo[decimal.Decimal])
	if err != nil {
		return current, fmt.Errorf("db error: %w", err)
	}

	return current, nil
}

const addPool = `-- name: AddPool
UPDATE global_pool
SET current = current + $1
WHERE id = 1
RETURNING current
`

func (r *LedgerRepo) AddPool(ctx context.Context, delta decimal.Decimal) (decimal.Decimal, error) {
	rows, _ := r.DB.Query(ctx, addPool, delta)
	current, err := pgx.CollectOneRow(rows, pgx.RowTo[decimal.Decimal])

	switch {
	case err == nil:
		return current, nil
	case isCheckViolation(err):
		return current, apperrors.ErrInsufficientFunds
	default:
		return current, fmt.Errorf("db error: %w", err)
	}
}

func (r *LedgerRepo) GetVendorBalance(ctx context.Context, vendorID uuid.UUID, forUpdate bool) (models.VendorDetails, error) {
	query := `SELECT current, low_balance_threshold FROM vendor_balances WHERE account_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, _ := r.DB.Query(ctx, query, vendorID)
	vendor, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.VendorDetails, error) {
		var v models.VendorDetails
		err := row.Scan(&v.Balance, &v.LowBalanceThreshold)
		return v, err
	})

	switch {
	case err == nil:
		return vendor, nil
	case errors.Is(err, pgx.ErrNoRows):
		return vendor, apperrors.ErrAccountNotFound
	default:
		return vendor, fmt.Errorf("db error: %w", err)
	}
}

const addVendorBalance = `-- name: AddVendorBalance
UPDATE vendor_balances
SET current = current + $2
WHERE account_id = $1
RETURNING current
`

func (r *LedgerRepo) AddVendorBalance(ctx context.Context, vendorID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	rows, _ := r.DB.Query(ctx, addVendorBalance, vendorID, delta)
	current, err := pgx.CollectOneRow(rows, pgx.RowTo[decimal.Decimal])

	switch {
	case err == nil:
		return current, nil
	case errors.Is(err, pgx.ErrNoRows):
		return current, apperrors.ErrAccountNotFound
	case isCheckViolation(err):
		return current, apperrors.ErrInsufficientFunds
	default:
		return current, fmt.Errorf("db error: %w", err)
	}
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation
}
