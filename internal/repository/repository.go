package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vendorpos/internal/models"
)

// Storage gives access to all repositories bound to the same connection or transaction
type Storage interface {
	Account() AccountRepo
	Ledger() LedgerRepo
	Transaction() TransactionRepo
	Refresh() RefreshTokenRepo

	// Run fn in a transaction: commit if fn returns nil, rollback otherwise.
	// Nested calls create savepoints.
	InTx(ctx context.Context, fn func(Storage) error) error
}

type AccountRepo interface {
	// Create account; vendor accounts get a balance row as well
	// If email is taken has to return apperrors.ErrAccountAlreadyExists
	CreateAccount(ctx context.Context, account models.Account) (models.Account, error)

	// If account not found must return apperrors.ErrAccountNotFound
	GetAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)

	// List accounts ordered by creation; role may be empty to list everything
	ListAccounts(ctx context.Context, role models.Role) ([]models.Account, error)

	// Update mutable fields: name, email, password and PIN hashes, vendor threshold
	UpdateAccount(ctx context.Context, account models.Account) (models.Account, error)

	DeleteAccount(ctx context.Context, id uuid.UUID) error
	CountAdmins(ctx context.Context) (int, error)
}

// Balance storage. Locking reads must be called inside a transaction
type LedgerRepo interface {
	GetPool(ctx context.Context, forUpdate bool) (decimal.Decimal, error)

	// Apply signed delta to the pool and return the new value
	// Has to return apperrors.ErrInsufficientFunds if the pool would go negative
	AddPool(ctx context.Context, delta decimal.Decimal) (decimal.Decimal, error)

	// If vendor balance not found must return apperrors.ErrAccountNotFound
	GetVendorBalance(ctx context.Context, vendorID uuid.UUID, forUpdate bool) (models.VendorDetails, error)

	// Apply signed delta to the vendor balance and return the new value
	// Has to return apperrors.ErrInsufficientFunds if the balance would go negative
	AddVendorBalance(ctx context.Context, vendorID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
}

// Append only transaction log
type TransactionRepo interface {
	// Assigns id, timestamp and status when they are empty
	CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)

	// Returned in insertion order
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
}

type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the token even it is expired or used
	// If token not exists must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Mark token used and return it
	// If the token is used already must return apperrors.ErrRefreshTokenIsUsed and do not overwrite 'usedAt'
	GetAndMarkUsed(ctx context.Context, tokenString string) (models.RefreshToken, error)
}
