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

type AccountRepo struct {
	DB DBTX
}

const accountColumns = `a.id, a.created_at, a.role, a.name, a.email, a.password_hash, a.pin_hash, vb.current, vb.low_balance_threshold`

const createAccount = `-- name: CreateAccount
INSERT INTO accounts (id, role, name, email, password_hash, pin_hash)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`

const createVendorBalance = `-- name: CreateVendorBalance
INSERT INTO vendor_balances (account_id, current, low_balance_threshold)
VALUES ($1, 0, $2)
`

// Create account and, for vendors, the zero balance row.
// Call inside a transaction so both rows land together
func (r *AccountRepo) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createAccount, account.ID, account.Role(), account.Name, account.Email, account.HashedPassword, account.HashedPIN)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return account, apperrors.ErrAccountAlreadyExists
		}

		return account, fmt.Errorf("db error: %w", err)
	}

	if vendor, ok := account.Vendor(); ok {
		threshold := vendor.LowBalanceThreshold
		if threshold.IsZero() {
			threshold = models.DefaultLowBalanceThreshold
		}

		_, err = r.DB.Exec(ctx, createVendorBalance, account.ID, threshold)
		if err != nil {
			return account, fmt.Errorf("db error: %w", err)
		}
	}

	return r.GetAccountByID(ctx, account.ID)
}

const getAccountByID = `-- name: GetAccountByID
SELECT ` + accountColumns + `
FROM accounts a
LEFT JOIN vendor_balances vb ON vb.account_id = a.id
WHERE a.id = $1
`

func (r *AccountRepo) GetAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByID, id)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const getAccountByEmail = `-- name: GetAccountByEmail
SELECT ` + accountColumns + `
FROM accounts a
LEFT JOIN vendor_balances vb ON vb.account_id = a.id
WHERE lower(a.email) = lower($1)
`

func (r *AccountRepo) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByEmail, email)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const listAccounts = `-- name: ListAccounts
SELECT ` + accountColumns + `
FROM accounts a
LEFT JOIN vendor_balances vb ON vb.account_id = a.id
WHERE ($1 = '' OR a.role = $1)
ORDER BY a.created_at, a.id
`

func (r *AccountRepo) ListAccounts(ctx context.Context, role models.Role) ([]models.Account, error) {
	rows, _ := r.DB.Query(ctx, listAccounts, string(role))
	accounts, err := pgx.CollectRows(rows, rowToAccount)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return accounts, nil
}

const updateAccount = `-- name: UpdateAccount
UPDATE accounts
SET name = $2, email = $3, password_hash = $4, pin_hash = $5
WHERE id = $1
`

const updateVendorThreshold = `-- name: UpdateVendorThreshold
UPDATE vendor_balances
SET low_balance_threshold = $2
WHERE account_id = $1
`

// Role and balance are never changed here
func (r *AccountRepo) UpdateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	tag, err := r.DB.Exec(ctx, updateAccount, account.ID, account.Name, account.Email, account.HashedPassword, account.HashedPIN)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return account, apperrors.ErrAccountAlreadyExists
		}
		return account, fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return account, apperrors.ErrAccountNotFound
	}

	if vendor, ok := account.Vendor(); ok && !vendor.LowBalanceThreshold.IsZero() {
		_, err = r.DB.Exec(ctx, updateVendorThreshold, account.ID, vendor.LowBalanceThreshold)
		if err != nil {
			return account, fmt.Errorf("db error: %w", err)
		}
	}

	return r.GetAccountByID(ctx, account.ID)
}

const deleteAccount = `-- name: DeleteAccount
DELETE FROM accounts WHERE id = $1
`

func (r *AccountRepo) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteAccount, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}

const countAdmins = `-- name: CountAdmins
SELECT count(*) FROM accounts WHERE role = 'admin'
`

func (r *AccountRepo) CountAdmins(ctx context.Context) (int, error) {
	rows, _ := r.DB.Query(ctx, countAdmins)
	count, err := pgx.CollectOneRow(rows, pgx.RowTo[int])
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var (
		a         models.Account
		role      string
		balance   decimal.NullDecimal
		threshold decimal.NullDecimal
	)

	err := row.Scan(&a.ID, &a.CreatedAt, &role, &a.Name, &a.Email, &a.HashedPassword, &a.HashedPIN, &balance, &threshold)
	if err != nil {
		return a, err
	}

	switch models.Role(role) {
	case models.RoleAdmin:
		a.Details = models.AdminDetails{}
	case models.RoleVendor:
		a.Details = models.VendorDetails{Balance: balance.Decimal, LowBalanceThreshold: threshold.Decimal}
	default:
		return a, fmt.Errorf("unknown account role %q", role)
	}

	return a, nil
}
