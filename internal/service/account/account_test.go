package account

import (
	"context"
	"errors"
	"testing"

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

// Keeps tests fast: bcrypt is tested in auth package
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Compare(hashed string, password string) error {
	if hashed != "plain:"+password {
		return errors.New("mismatch")
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

// Storage whose account creation fails after the rows were written
type failingCreateStorage struct {
	repository.Storage
}

func (f failingCreateStorage) Account() repository.AccountRepo {
	return failingCreateAccounts{f.Storage.Account()}
}

func (f failingCreateStorage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	return f.Storage.InTx(ctx, func(st repository.Storage) error {
		return fn(failingCreateStorage{st})
	})
}

type failingCreateAccounts struct {
	repository.AccountRepo
}

func (a failingCreateAccounts) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	created, err := a.AccountRepo.CreateAccount(ctx, account)
	if err != nil {
		return created, err
	}
	return created, errors.New("balance row rejected")
}

func TestAccount(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, fn func(s *Service, storage repository.Storage)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(NewService(plainHasher{}, storage, nil), storage)
		})
	}

	createVendor := func(t *testing.T, s *Service, email string) models.Account {
		account, err := s.Create(t.Context(), CreateAccount{
			Name:     "Tienda",
			Email:    email,
			Password: "password123",
			Role:     models.RoleVendor,
		})
		require.NoError(t, err)
		return account
	}

	t.Run("Create", func(t *testing.T) {
		t.Run("vendor defaults", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				account := createVendor(t, s, "tienda@example.com")

				require.NotEqual(t, uuid.Nil, account.ID)
				require.Equal(t, models.RoleVendor, account.Role())
				require.Equal(t, "plain:password123", account.HashedPassword)
				require.Equal(t, "plain:"+DefaultPIN, account.HashedPIN, "default PIN expected")

				vendor, ok := account.Vendor()
				require.True(t, ok)
				require.True(t, vendor.Balance.IsZero(), "vendors start with zero balance")
				require.True(t, vendor.LowBalanceThreshold.Equal(decimal.NewFromInt(100)))
			})
		})

		t.Run("admin with PIN", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				account, err := s.Create(t.Context(), CreateAccount{
					Name:     "Admin",
					Email:    "admin@example.com",
					Password: "password123",
					Role:     models.RoleAdmin,
					PIN:      "123456",
				})

				require.NoError(t, err)
				require.True(t, account.IsAdmin())
				require.Equal(t, "plain:123456", account.HashedPIN)
			})
		})

		t.Run("custom threshold", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				account, err := s.Create(t.Context(), CreateAccount{
					Name:                "Tienda",
					Email:               "tienda@example.com",
					Password:            "password123",
					Role:                models.RoleVendor,
					LowBalanceThreshold: ptr(decimal.NewFromInt(250)),
				})
				require.NoError(t, err)

				vendor, _ := account.Vendor()
				require.True(t, vendor.LowBalanceThreshold.Equal(decimal.NewFromInt(250)))
			})
		})

		t.Run("duplicate email", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				createVendor(t, s, "tienda@example.com")

				_, err := s.Create(t.Context(), CreateAccount{
					Name:     "Otra",
					Email:    "TIENDA@example.com",
					Password: "password123",
					Role:     models.RoleVendor,
				})

				require.ErrorIs(t, err, apperrors.ErrAccountAlreadyExists)
			})
		})

		t.Run("invalid input", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				_, err := s.Create(t.Context(), CreateAccount{
					Email: "not an email",
					Role:  "superuser",
					PIN:   "12a4",
				})

				require.ErrorIs(t, err, apperrors.ErrInvalidInput)

				var fields apperrors.FieldErrors
				require.ErrorAs(t, err, &fields)
				require.Contains(t, fields, "name")
				require.Contains(t, fields, "email")
				require.Contains(t, fields, "password")
				require.Contains(t, fields, "role")
				require.Contains(t, fields, "pin")
			})
		})

		t.Run("admin can't have threshold", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				_, err := s.Create(t.Context(), CreateAccount{
					Name:                "Admin",
					Email:               "admin@example.com",
					Password:            "password123",
					Role:                models.RoleAdmin,
					LowBalanceThreshold: ptr(decimal.NewFromInt(10)),
				})

				require.ErrorIs(t, err, apperrors.ErrInvalidInput)
			})
		})
	})

	t.Run("Create threshold bounds", func(t *testing.T) {
		inTx(t, func(s *Service, storage repository.Storage) {
			for _, threshold := range []string{"0", "-1", "1e16", "1e17", "10.005"} {
				_, err := s.Create(t.Context(), CreateAccount{
					Name:                "Tienda",
					Email:               "tienda@example.com",
					Password:            "password123",
					Role:                models.RoleVendor,
					LowBalanceThreshold: ptr(decimal.RequireFromString(threshold)),
				})

				var fields apperrors.FieldErrors
				require.ErrorAs(t, err, &fields, "threshold %s", threshold)
				require.Contains(t, fields, "lowBalanceThreshold")
			}

			_, err := storage.Account().GetAccountByEmail(t.Context(), "tienda@example.com")
			require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})

	t.Run("Create is atomic", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			s := NewService(plainHasher{}, failingCreateStorage{storage}, nil)

			_, err := s.Create(t.Context(), CreateAccount{
				Name:     "Tienda",
				Email:    "tienda@example.com",
				Password: "password123",
				Role:     models.RoleVendor,
			})
			require.Error(t, err)

			_, err = storage.Account().GetAccountByEmail(t.Context(), "tienda@example.com")
			require.ErrorIs(t, err, apperrors.ErrAccountNotFound, "failed create must not leave the account row")

			// The email is free again
			_, err = NewService(plainHasher{}, storage, nil).Create(t.Context(), CreateAccount{
				Name:     "Tienda",
				Email:    "tienda@example.com",
				Password: "password123",
				Role:     models.RoleVendor,
			})
			require.NoError(t, err)
		})
	})

	t.Run("List", func(t *testing.T) {
		inTx(t, func(s *Service, _ repository.Storage) {
			_, err := s.Create(t.Context(), CreateAccount{Name: "Admin", Email: "admin@example.com", Password: "pwd", Role: models.RoleAdmin})
			require.NoError(t, err)
			vendor := createVendor(t, s, "tienda@example.com")

			all, err := s.List(t.Context())
			require.NoError(t, err)
			require.Len(t, all, 2)

			vendors, err := s.ListVendors(t.Context())
			require.NoError(t, err)
			require.Len(t, vendors, 1)
			require.Equal(t, vendor.ID, vendors[0].ID)
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("omitted password unchanged", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				vendor := createVendor(t, s, "tienda@example.com")

				updated, err := s.Update(t.Context(), vendor.ID, UpdateAccount{
					Name:                ptr("Tienda Nueva"),
					LowBalanceThreshold: ptr(decimal.NewFromInt(50)),
				})

				require.NoError(t, err)
				require.Equal(t, "Tienda Nueva", updated.Name)
				require.Equal(t, "tienda@example.com", updated.Email)
				require.Equal(t, vendor.HashedPassword, updated.HashedPassword)
				details, _ := updated.Vendor()
				require.True(t, details.LowBalanceThreshold.Equal(decimal.NewFromInt(50)))
			})
		})

		t.Run("password changed", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				vendor := createVendor(t, s, "tienda@example.com")

				updated, err := s.Update(t.Context(), vendor.ID, UpdateAccount{Password: ptr("new-password")})

				require.NoError(t, err)
				require.Equal(t, "plain:new-password", updated.HashedPassword)
			})
		})

		t.Run("threshold on admin rejected", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				admin, err := s.Create(t.Context(), CreateAccount{Name: "Admin", Email: "admin@example.com", Password: "pwd", Role: models.RoleAdmin})
				require.NoError(t, err)

				_, err = s.Update(t.Context(), admin.ID, UpdateAccount{LowBalanceThreshold: ptr(decimal.NewFromInt(10))})

				require.ErrorIs(t, err, apperrors.ErrInvalidInput)
			})
		})

		t.Run("email taken", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				createVendor(t, s, "uno@example.com")
				dos := createVendor(t, s, "dos@example.com")

				_, err := s.Update(t.Context(), dos.ID, UpdateAccount{Email: ptr("uno@example.com")})

				require.ErrorIs(t, err, apperrors.ErrAccountAlreadyExists)
			})
		})

		t.Run("not found", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				_, err := s.Update(t.Context(), uuid.New(), UpdateAccount{Name: ptr("x")})

				require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
			})
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("vendor with zero balance", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				vendor := createVendor(t, s, "tienda@example.com")

				err := s.Delete(t.Context(), vendor.ID)
				require.NoError(t, err)

				_, err = s.Get(t.Context(), vendor.ID)
				require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
			})
		})

		t.Run("vendor with balance", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage) {
				vendor := createVendor(t, s, "tienda@example.com")
				_, err := storage.Ledger().AddVendorBalance(t.Context(), vendor.ID, decimal.NewFromInt(10))
				require.NoError(t, err)

				err = s.Delete(t.Context(), vendor.ID)

				require.ErrorIs(t, err, apperrors.ErrBalanceNotEmpty)
			})
		})

		t.Run("last admin", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				first, err := s.Create(t.Context(), CreateAccount{Name: "Admin", Email: "admin@example.com", Password: "pwd", Role: models.RoleAdmin})
				require.NoError(t, err)

				err = s.Delete(t.Context(), first.ID)
				require.ErrorIs(t, err, apperrors.ErrLastAdmin)

				second, err := s.Create(t.Context(), CreateAccount{Name: "Admin 2", Email: "admin2@example.com", Password: "pwd", Role: models.RoleAdmin})
				require.NoError(t, err)

				require.NoError(t, s.Delete(t.Context(), first.ID), "one of two admins can be deleted")
				require.ErrorIs(t, s.Delete(t.Context(), second.ID), apperrors.ErrLastAdmin)
			})
		})

		t.Run("not found", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				err := s.Delete(t.Context(), uuid.New())

				require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
			})
		})
	})

	t.Run("ChangePIN", func(t *testing.T) {
		t.Run("ok and fields cleared", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				vendor := createVendor(t, s, "tienda@example.com")
				change := &PinChange{Old: "0000", New: "4321", Confirm: "4321"}

				err := s.ChangePIN(t.Context(), vendor.ID, change)

				require.NoError(t, err)
				require.Equal(t, PinChange{}, *change, "PIN fields must be cleared")

				got, err := s.Get(t.Context(), vendor.ID)
				require.NoError(t, err)
				require.Equal(t, "plain:4321", got.HashedPIN)
			})
		})

		t.Run("wrong old PIN", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				vendor := createVendor(t, s, "tienda@example.com")
				change := &PinChange{Old: "9999", New: "4321", Confirm: "4321"}

				err := s.ChangePIN(t.Context(), vendor.ID, change)

				require.ErrorIs(t, err, apperrors.ErrPINMismatch)
				require.Equal(t, "4321", change.New, "fields are kept on failure")
			})
		})

		tests := []struct {
			name   string
			change PinChange
			field  string
		}{
			{name: "old missing", change: PinChange{New: "4321", Confirm: "4321"}, field: "oldPin"},
			{name: "new missing", change: PinChange{Old: "0000", Confirm: "4321"}, field: "newPin"},
			{name: "confirm missing", change: PinChange{Old: "0000", New: "4321"}, field: "confirmPin"},
			{name: "confirm differs", change: PinChange{Old: "0000", New: "4321", Confirm: "1234"}, field: "confirmPin"},
			{name: "too short", change: PinChange{Old: "0000", New: "123", Confirm: "123"}, field: "newPin"},
			{name: "too long", change: PinChange{Old: "0000", New: "1234567", Confirm: "1234567"}, field: "newPin"},
			{name: "not digits", change: PinChange{Old: "0000", New: "12ab", Confirm: "12ab"}, field: "newPin"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				inTx(t, func(s *Service, _ repository.Storage) {
					vendor := createVendor(t, s, "tienda@example.com")
					change := tt.change

					err := s.ChangePIN(t.Context(), vendor.ID, &change)

					require.ErrorIs(t, err, apperrors.ErrInvalidInput)
					var fields apperrors.FieldErrors
					require.ErrorAs(t, err, &fields)
					require.Contains(t, fields, tt.field)
				})
			})
		}
	})

	t.Run("EnsureAdmin", func(t *testing.T) {
		t.Run("create when none", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				created, err := s.EnsureAdmin(t.Context(), "root@example.com", "secret")
				require.NoError(t, err)
				require.True(t, created)

				created, err = s.EnsureAdmin(t.Context(), "root@example.com", "secret")
				require.NoError(t, err)
				require.False(t, created, "second call is a no-op")
			})
		})

		t.Run("no credentials", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				_, err := s.EnsureAdmin(t.Context(), "", "")

				require.Error(t, err)
			})
		})
	})
}
