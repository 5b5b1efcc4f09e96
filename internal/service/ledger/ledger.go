package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
	"github.com/nkiryanov/vendorpos/internal/logger"
	"github.com/nkiryanov/vendorpos/internal/metrics"
	"github.com/nkiryanov/vendorpos/internal/models"
	"github.com/nkiryanov/vendorpos/internal/repository"
)

type TransferResult struct {
	NewGlobalBalance decimal.Decimal
	NewVendorBalance decimal.Decimal
	Transaction      models.Transaction
}

type DebitResult struct {
	NewVendorBalance decimal.Decimal
	Transaction      models.Transaction
}

type FundResult struct {
	NewGlobalBalance decimal.Decimal
	Transaction      models.Transaction
}

// What a debit was spent on. Stored in the transaction record
type Memo struct {
	Type   models.TransactionType
	Detail string
	Target string
}

// Ledger owns the global pool and vendor balances.
// Every balance mutation and its transaction record are committed together.
type Service struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewService(storage repository.Storage, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		storage: storage,
		logger:  l,
	}
}

// Balances are stored with cents precision
const amountPlaces = 2

// Positive and representable in cents. Anything finer would be rounded separately on each side of a transfer
func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.ErrInvalidAmount
	}
	if !amount.Truncate(amountPlaces).Equal(amount) {
		return fmt.Errorf("more than %d decimal places: %w", amountPlaces, apperrors.ErrInvalidAmount)
	}
	return nil
}

// Move amount from the global pool to the vendor balance
func (s *Service) Transfer(ctx context.Context, adminID uuid.UUID, vendorID uuid.UUID, amount decimal.Decimal) (res TransferResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveLedger(metrics.OperationTransfer, amount, start, err) }()

	if err := checkAmount(amount); err != nil {
		return res, err
	}

	return submit(ctx, s.logger, metrics.OperationTransfer, func(ctx context.Context) (TransferResult, error) {
		var res TransferResult

		err := s.storage.InTx(ctx, func(st repository.Storage) error {
			if err := requireAdmin(ctx, st, adminID); err != nil {
				return err
			}

			// Lock order is fixed: pool first, vendor second
			pool, err := st.Ledger().GetPool(ctx, true)
			if err != nil {
				return err
			}
			if _, err = st.Ledger().GetVendorBalance(ctx, vendorID, true); err != nil {
				return fmt.Errorf("vendor %s: %w", vendorID, err)
			}
			if pool.LessThan(amount) {
				return apperrors.ErrInsufficientFunds
			}

			if res.NewGlobalBalance, err = st.Ledger().AddPool(ctx, amount.Neg()); err != nil {
				return err
			}
			if res.NewVendorBalance, err = st.Ledger().AddVendorBalance(ctx, vendorID, amount); err != nil {
				return err
			}

			res.Transaction, err = st.Transaction().CreateTransaction(ctx, models.Transaction{
				VendorID: vendorID,
				ActorID:  adminID,
				Type:     models.TransactionTransfer,
				Detail:   "Balance transfer",
				Amount:   amount,
			})
			return err
		})

		return res, err
	})
}

// Take amount from the vendor balance for a completed sale
func (s *Service) Debit(ctx context.Context, vendorID uuid.UUID, amount decimal.Decimal, memo Memo) (res DebitResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveLedger(metrics.OperationDebit, amount, start, err) }()

	if err := checkAmount(amount); err != nil {
		return res, err
	}
	if memo.Type != models.TransactionRecharge && memo.Type != models.TransactionPackage {
		return res, fmt.Errorf("debit for %q: %w", memo.Type, apperrors.ErrInvalidInput)
	}

	return submit(ctx, s.logger, metrics.OperationDebit, func(ctx context.Context) (DebitResult, error) {
		var res DebitResult

		err := s.storage.InTx(ctx, func(st repository.Storage) error {
			vendor, err := st.Ledger().GetVendorBalance(ctx, vendorID, true)
			if err != nil {
				return fmt.Errorf("vendor %s: %w", vendorID, err)
			}
			if vendor.Balance.LessThan(amount) {
				return apperrors.ErrInsufficientFunds
			}

			if res.NewVendorBalance, err = st.Ledger().AddVendorBalance(ctx, vendorID, amount.Neg()); err != nil {
				return err
			}

			res.Transaction, err = st.Transaction().CreateTransaction(ctx, models.Transaction{
				VendorID: vendorID,
				ActorID:  vendorID,
				Type:     memo.Type,
				Detail:   memo.Detail,
				Target:   memo.Target,
				Amount:   amount,
			})
			return err
		})

		return res, err
	})
}

// Deposit external funds into the global pool
func (s *Service) Fund(ctx context.Context, adminID uuid.UUID, amount decimal.Decimal) (res FundResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveLedger(metrics.OperationFund, amount, start, err) }()

	if err := checkAmount(amount); err != nil {
		return res, err
	}

	return submit(ctx, s.logger, metrics.OperationFund, func(ctx context.Context) (FundResult, error) {
		var res FundResult

		err := s.storage.InTx(ctx, func(st repository.Storage) error {
			if err := requireAdmin(ctx, st, adminID); err != nil {
				return err
			}

			if _, err := st.Ledger().GetPool(ctx, true); err != nil {
				return err
			}

			var err error
			if res.NewGlobalBalance, err = st.Ledger().AddPool(ctx, amount); err != nil {
				return err
			}

			res.Transaction, err = st.Transaction().CreateTransaction(ctx, models.Transaction{
				ActorID: adminID,
				Type:    models.TransactionFunding,
				Detail:  "Pool funding",
				Amount:  amount,
			})
			return err
		})

		return res, err
	})
}

func (s *Service) GetGlobalBalance(ctx context.Context) (decimal.Decimal, error) {
	return s.storage.Ledger().GetPool(ctx, false)
}

func (s *Service) GetVendorBalance(ctx context.Context, vendorID uuid.UUID) (decimal.Decimal, error) {
	vendor, err := s.storage.Ledger().GetVendorBalance(ctx, vendorID, false)
	if err != nil {
		return decimal.Zero, err
	}
	return vendor.Balance, nil
}

func requireAdmin(ctx context.Context, st repository.Storage, adminID uuid.UUID) error {
	admin, err := st.Account().GetAccountByID(ctx, adminID)
	if err != nil {
		return fmt.Errorf("admin %s: %w", adminID, err)
	}
	if !admin.IsAdmin() {
		return fmt.Errorf("account %s is not an admin: %w", adminID, apperrors.ErrAccountNotFound)
	}
	return nil
}

// Run mutation detached from caller cancellation.
// Once started it always runs to commit or rollback. If the caller stops waiting first,
// it gets ErrOutcomeUnknown and the real outcome is only logged.
func submit[T any](ctx context.Context, l logger.Logger, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("%s not submitted: %w", operation, err)
	}

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		value, err := fn(context.WithoutCancel(ctx))
		done <- outcome{value: value, err: err}

		if ctx.Err() != nil {
			l.Warn("Ledger operation finished after caller left", "operation", operation, "result", metrics.Result(err), "error", err)
		}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		return zero, fmt.Errorf("%s: %w", operation, errors.Join(apperrors.ErrOutcomeUnknown, context.Cause(ctx)))
	}
}
