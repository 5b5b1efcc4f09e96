package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
	"github.com/nkiryanov/vendorpos/internal/models"
	"github.com/nkiryanov/vendorpos/internal/repository"
	"github.com/nkiryanov/vendorpos/internal/repository/postgres"
	"github.com/nkiryanov/vendorpos/internal/testutil"
)

func createAccount(t *testing.T, storage repository.Storage, email string, details models.AccountDetails) models.Account {
	t.Helper()

	account, err := storage.Account().CreateAccount(t.Context(), models.Account{
		Name:           email,
		Email:          email,
		HashedPassword: "hash",
		Details:        details,
	})
	require.NoError(t, err)
	return account
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestLedger(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	type fixture struct {
		s       *Service
		storage repository.Storage
		admin   models.Account
		vendor  models.Account
	}

	// Service with admin, vendor and a pool of 100 inside a rolled back transaction
	inTx := func(t *testing.T, fn func(f fixture)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			s := NewService(storage, nil)
			f := fixture{
				s:       s,
				storage: storage,
				admin:   createAccount(t, storage, "admin@example.com", models.AdminDetails{}),
				vendor:  createAccount(t, storage, "vendor@example.com", models.VendorDetails{}),
			}

			_, err := s.Fund(t.Context(), f.admin.ID, dec("100"))
			require.NoError(t, err)

			fn(f)
		})
	}

	t.Run("invalid amount checked before any io", func(t *testing.T) {
		s := NewService(nil, nil)

		for _, amount := range []string{"0", "-5", "-0.01", "10.005", "0.004", "0.001"} {
			_, err := s.Transfer(t.Context(), uuid.New(), uuid.New(), dec(amount))
			require.ErrorIs(t, err, apperrors.ErrInvalidAmount, "transfer of %s", amount)

			_, err = s.Debit(t.Context(), uuid.New(), dec(amount), Memo{Type: models.TransactionRecharge})
			require.ErrorIs(t, err, apperrors.ErrInvalidAmount, "debit of %s", amount)

			_, err = s.Fund(t.Context(), uuid.New(), dec(amount))
			require.ErrorIs(t, err, apperrors.ErrInvalidAmount, "fund of %s", amount)
		}
	})

	t.Run("cents with trailing zeros are accepted", func(t *testing.T) {
		inTx(t, func(f fixture) {
			res, err := f.s.Transfer(t.Context(), f.admin.ID, f.vendor.ID, dec("10.500"))

			require.NoError(t, err)
			require.True(t, res.NewGlobalBalance.Equal(dec("89.5")), "got %s", res.NewGlobalBalance)
			require.True(t, res.NewVendorBalance.Equal(dec("10.5")), "got %s", res.NewVendorBalance)
		})
	})

	t.Run("sub cent amounts leave balances untouched", func(t *testing.T) {
		inTx(t, func(f fixture) {
			_, err := f.s.Transfer(t.Context(), f.admin.ID, f.vendor.ID, dec("10.005"))
			require.ErrorIs(t, err, apperrors.ErrInvalidAmount)

			_, err = f.s.Debit(t.Context(), f.vendor.ID, dec("0.004"), Memo{Type: models.TransactionRecharge})
			require.ErrorIs(t, err, apperrors.ErrInvalidAmount)

			global, err := f.s.GetGlobalBalance(t.Context())
			require.NoError(t, err)
			require.True(t, global.Equal(dec("100")), "got %s", global)

			vendor, err := f.s.GetVendorBalance(t.Context(), f.vendor.ID)
			require.NoError(t, err)
			require.True(t, vendor.IsZero(), "got %s", vendor)

			list, err := f.storage.Transaction().ListTransactions(t.Context(), models.TransactionFilter{VendorID: &f.vendor.ID})
			require.NoError(t, err)
			require.Empty(t, list)
		})
	})

	t.Run("Transfer", func(t *testing.T) {
		t.Run("moves value and conserves total", func(t *testing.T) {
			inTx(t, func(f fixture) {
				res, err := f.s.Transfer(t.Context(), f.admin.ID, f.vendor.ID, dec("60.25"))

				require.NoError(t, err)
				require.True(t, res.NewGlobalBalance.Equal(dec("39.75")), "got %s", res.NewGlobalBalance)
				require.True(t, res.NewVendorBalance.Equal(dec("60.25")), "got %s", res.NewVendorBalance)
				require.True(t, res.NewGlobalBalance.Add(res.NewVendorBalance).Equal(dec("100")), "value must be conserved")

				global, err := f.s.GetGlobalBalance(t.Context())
				require.NoError(t, err)
				require.True(t, global.Equal(res.NewGlobalBalance))

				vendor, err := f.s.GetVendorBalance(t.Context(), f.vendor.ID)
				require.NoError(t, err)
				require.True(t, vendor.Equal(res.NewVendorBalance))
			})
		})

		t.Run("appends transfer record", func(t *testing.T) {
			inTx(t, func(f fixture) {
				res, err := f.s.Transfer(t.Context(), f.admin.ID, f.vendor.ID, dec("10"))
				require.NoError(t, err)

				list, err := f.storage.Transaction().ListTransactions(t.Context(), models.TransactionFilter{VendorID: &f.vendor.ID})

				require.NoError(t, err)
				require.Len(t, list, 1)
				require.Equal(t, res.Transaction.ID, list[0].ID)
				require.Equal(t, models.TransactionTransfer, list[0].Type)
				require.Equal(t, f.admin.ID, list[0].ActorID)
				require.Equal(t, models.TransactionSuccess, list[0].Status)
				require.Empty(t, list[0].Target)
				require.True(t, list[0].Amount.Equal(dec("10")))
			})
		})

		t.Run("whole pool", func(t *testing.T) {
			inTx(t, func(f fixture) {
				res, err := f.s.Transfer(t.Context(), f.admin.ID, f.vendor.ID, dec("100"))

				require.NoError(t, err)
				require.True(t, res.NewGlobalBalance.IsZero())
			})
		})

		t.Run("insufficient funds leaves everything unchanged", func(t *testing.T) {
			inTx(t, func(f fixture) {
				_, err := f.s.Transfer(t.Context(), f.admin.ID, f.vendor.ID, dec("100.01"))
				require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

				global, err := f.s.GetGlobalBalance(t.Context())
				require.NoError(t, err)
				require.True(t, global.Equal(dec("100")))

				vendor, err := f.s.GetVendorBalance(t.Context(), f.vendor.ID)
				require.NoError(t, err)
				require.True(t, vendor.IsZero())

				list, err := f.storage.Transaction().ListTransactions(t.Context(), models.TransactionFilter{VendorID: &f.vendor.ID})
				require.NoError(t, err)
				require.Empty(t, list, "failed transfer must not be recorded")
			})
		})

		t.Run("not found", func(t *testing.T) {
			inTx(t, func(f fixture) {
				tests := []struct {
					name     string
					adminID  uuid.UUID
					vendorID uuid.UUID
				}{
					{"unknown admin", uuid.New(), f.vendor.ID},
					{"unknown vendor", f.admin.ID, uuid.New()},
					{"vendor acting as admin", f.vendor.ID, f.vendor.ID},
					{"admin as receiver", f.admin.ID, f.admin.ID},
				}

				for _, tt := range tests {
					_, err := f.s.Transfer(t.Context(), tt.adminID, tt.vendorID, dec("1"))
					require.ErrorIs(t, err, apperrors.ErrAccountNotFound, tt.name)
				}
			})
		})
	})

	t.Run("Debit", func(t *testing.T) {
		t.Run("sale debits vendor and is recorded", func(t *testing.T) {
			inTx(t, func(f fixture) {
				_, err := f.s.Transfer(t.Context(), f.admin.ID, f.vendor.ID, dec("50"))
				require.NoError(t, err)

				res, err := f.s.Debit(t.Context(), f.vendor.ID, dec("25"), Memo{
					Type:   models.TransactionPackage,
					Detail: "Super Bundle 1 Day",
					Target: "98765432",
				})

				require.NoError(t, err)
				require.True(t, res.NewVendorBalance.Equal(dec("25")))
				require.Equal(t, models.TransactionPackage, res.Transaction.Type)
				require.Equal(t, f.vendor.ID, res.Transaction.ActorID)
				require.Equal(t, "98765432", res.Transaction.Target)

				global, err := f.s.GetGlobalBalance(t.Context())
				require.NoError(t, err)
				require.True(t, global.Equal(dec("50")), "debit never touches the pool")
			})
		})

		t.Run("insufficient funds", func(t *testing.T) {
			inTx(t, func(f fixture) {
				_, err := f.s.Debit(t.Context(), f.vendor.ID, dec("5"), Memo{Type: models.TransactionRecharge})

				require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
			})
		})

		t.Run("unknown vendor", func(t *testing.T) {
			inTx(t, func(f fixture) {
				_, err := f.s.Debit(t.Context(), uuid.New(), dec("5"), Memo{Type: models.TransactionRecharge})

				require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
			})
		})

		t.Run("only sales can be debited", func(t *testing.T) {
			inTx(t, func(f fixture) {
				_, err := f.s.Debit(t.Context(), f.vendor.ID, dec("5"), Memo{Type: models.TransactionTransfer})

				require.ErrorIs(t, err, apperrors.ErrInvalidInput)
			})
		})
	})

	t.Run("Fund", func(t *testing.T) {
		inTx(t, func(f fixture) {
			res, err := f.s.Fund(t.Context(), f.admin.ID, dec("0.50"))

			require.NoError(t, err)
			require.True(t, res.NewGlobalBalance.Equal(dec("100.50")))
			require.Equal(t, models.TransactionFunding, res.Transaction.Type)
			require.Equal(t, uuid.Nil, res.Transaction.VendorID)

			_, err = f.s.Fund(t.Context(), f.vendor.ID, dec("1"))
			require.ErrorIs(t, err, apperrors.ErrAccountNotFound, "vendors can't fund the pool")
		})
	})

	t.Run("caller gone before submit", func(t *testing.T) {
		inTx(t, func(f fixture) {
			ctx, cancel := context.WithCancel(t.Context())
			cancel()

			_, err := f.s.Transfer(ctx, f.admin.ID, f.vendor.ID, dec("10"))

			require.ErrorIs(t, err, context.Canceled)
			require.NotErrorIs(t, err, apperrors.ErrOutcomeUnknown, "nothing was submitted, outcome is known")
		})
	})
}

// Storage which holds transactions until released
type slowStorage struct {
	repository.Storage
	release chan struct{}
	done    chan struct{}
}

func (s *slowStorage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	defer close(s.done)
	<-s.release
	return s.Storage.InTx(ctx, fn)
}

func TestLedger_OutcomeUnknown(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		admin := createAccount(t, storage, "admin@example.com", models.AdminDetails{})
		vendor := createAccount(t, storage, "vendor@example.com", models.VendorDetails{})
		_, err := NewService(storage, nil).Fund(t.Context(), admin.ID, dec("100"))
		require.NoError(t, err)

		slow := &slowStorage{Storage: storage, release: make(chan struct{}), done: make(chan struct{})}
		s := NewService(slow, nil)

		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()

		_, err = s.Transfer(ctx, admin.ID, vendor.ID, dec("30"))
		require.ErrorIs(t, err, apperrors.ErrOutcomeUnknown)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		// The transfer is not abandoned: it commits once storage is available
		close(slow.release)
		<-slow.done

		balance, err := s.GetVendorBalance(t.Context(), vendor.ID)
		require.NoError(t, err)
		require.True(t, balance.Equal(dec("30")), "transfer must complete after the caller left, got %s", balance)
	})
}

// Runs on committed data, so it has own container
func TestLedger_ConcurrentTransfers(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	storage := postgres.NewStorage(pg.Pool)
	s := NewService(storage, nil)
	admin := createAccount(t, storage, "admin@example.com", models.AdminDetails{})
	vendorA := createAccount(t, storage, "a@example.com", models.VendorDetails{})
	vendorB := createAccount(t, storage, "b@example.com", models.VendorDetails{})

	_, err := s.Fund(t.Context(), admin.ID, dec("100"))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, vendorID := range []uuid.UUID{vendorA.ID, vendorB.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Transfer(t.Context(), admin.ID, vendorID, dec("60"))
		}()
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded, "exactly one transfer has to succeed")
	require.Equal(t, 1, insufficient, "the other has to fail with insufficient funds")

	global, err := s.GetGlobalBalance(t.Context())
	require.NoError(t, err)
	a, err := s.GetVendorBalance(t.Context(), vendorA.ID)
	require.NoError(t, err)
	b, err := s.GetVendorBalance(t.Context(), vendorB.ID)
	require.NoError(t, err)

	require.True(t, global.Equal(dec("40")), "got %s", global)
	require.True(t, global.Add(a).Add(b).Equal(dec("100")), "value must be conserved")
}
