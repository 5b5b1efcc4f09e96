package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
	"github.com/nkiryanov/vendorpos/internal/logger"
	"github.com/nkiryanov/vendorpos/internal/models"
	"github.com/nkiryanov/vendorpos/internal/repository"
	"github.com/nkiryanov/vendorpos/internal/service/auth"
	"github.com/nkiryanov/vendorpos/internal/service/validate"
)

// PIN given to accounts created without one
const DefaultPIN = "0000"

type CreateAccount struct {
	Name     string
	Email    string
	Password string
	Role     models.Role

	// Vendors only. Default is models.DefaultLowBalanceThreshold
	LowBalanceThreshold *decimal.Decimal

	// Default is DefaultPIN
	PIN string
}

// Nil fields are left unchanged
type UpdateAccount struct {
	Name                *string
	Email               *string
	Password            *string
	LowBalanceThreshold *decimal.Decimal
}

type PinChange struct {
	Old     string
	New     string
	Confirm string
}

type Service struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
	logger  logger.Logger
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage, l logger.Logger) *Service {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		hasher:  hasher,
		storage: storage,
		logger:  l,
	}
}

func (s *Service) Create(ctx context.Context, in CreateAccount) (models.Account, error) {
	var account models.Account

	if in.PIN == "" {
		in.PIN = DefaultPIN
	}

	fields := apperrors.FieldErrors{}
	checkName(fields, in.Name)
	checkEmail(fields, in.Email)
	if in.Password == "" {
		fields["password"] = "password is required"
	}
	if err := validate.PIN(in.PIN); err != nil {
		fields["pin"] = err.Error()
	}

	switch in.Role {
	case models.RoleAdmin:
		if in.LowBalanceThreshold != nil {
			fields["lowBalanceThreshold"] = "only vendors have a low balance threshold"
		}
		account.Details = models.AdminDetails{}
	case models.RoleVendor:
		threshold := models.DefaultLowBalanceThreshold
		if in.LowBalanceThreshold != nil {
			threshold = *in.LowBalanceThreshold
			checkThreshold(fields, threshold)
		}
		account.Details = models.VendorDetails{LowBalanceThreshold: threshold}
	default:
		fields["role"] = "role must be admin or vendor"
	}

	if len(fields) > 0 {
		return account, fields
	}

	password, err := s.hasher.Hash(in.Password)
	if err != nil {
		return account, fmt.Errorf("can't use this as password, Err: %w", err)
	}
	pin, err := s.hasher.Hash(in.PIN)
	if err != nil {
		return account, fmt.Errorf("can't hash PIN, Err: %w", err)
	}

	account.Name = strings.TrimSpace(in.Name)
	account.Email = strings.TrimSpace(in.Email)
	account.HashedPassword = password
	account.HashedPIN = pin

	// Vendors get the account row and the balance row; both or neither
	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		account, err = st.Account().CreateAccount(ctx, account)
		return err
	})
	if err != nil {
		return account, fmt.Errorf("can't create account. Err: %w", err)
	}

	s.logger.Info("account created", "id", account.ID, "role", account.Role())
	return account, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.Account, error) {
	return s.storage.Account().GetAccountByID(ctx, id)
}

// All accounts, admins and vendors, ordered by creation
func (s *Service) List(ctx context.Context) ([]models.Account, error) {
	return s.storage.Account().ListAccounts(ctx, "")
}

func (s *Service) ListVendors(ctx context.Context) ([]models.Account, error) {
	return s.storage.Account().ListAccounts(ctx, models.RoleVendor)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateAccount) (models.Account, error) {
	var account models.Account

	fields := apperrors.FieldErrors{}
	if in.Name != nil {
		checkName(fields, *in.Name)
	}
	if in.Email != nil {
		checkEmail(fields, *in.Email)
	}
	if in.Password != nil && *in.Password == "" {
		fields["password"] = "password must not be empty"
	}
	if in.LowBalanceThreshold != nil {
		checkThreshold(fields, *in.LowBalanceThreshold)
	}
	if len(fields) > 0 {
		return account, fields
	}

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		account, err = st.Account().GetAccountByID(ctx, id)
		if err != nil {
			return err
		}

		if in.Name != nil {
			account.Name = strings.TrimSpace(*in.Name)
		}
		if in.Email != nil {
			account.Email = strings.TrimSpace(*in.Email)
		}
		if in.Password != nil {
			account.HashedPassword, err = s.hasher.Hash(*in.Password)
			if err != nil {
				return fmt.Errorf("can't use this as password, Err: %w", err)
			}
		}
		if in.LowBalanceThreshold != nil {
			vendor, ok := account.Vendor()
			if !ok {
				return apperrors.FieldErrors{"lowBalanceThreshold": "only vendors have a low balance threshold"}
			}
			vendor.LowBalanceThreshold = *in.LowBalanceThreshold
			account.Details = vendor
		}

		account, err = st.Account().UpdateAccount(ctx, account)
		return err
	})
	if err != nil {
		return models.Account{}, fmt.Errorf("can't update account. Err: %w", err)
	}

	return account, nil
}

// Delete account.
// Vendors must have zero balance; the last admin can't be deleted.
// Transactions of a deleted vendor are kept.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		account, err := st.Account().GetAccountByID(ctx, id)
		if err != nil {
			return err
		}

		switch account.Details.(type) {
		case models.VendorDetails:
			// Lock the balance so a concurrent transfer can't land after the check
			balance, err := st.Ledger().GetVendorBalance(ctx, id, true)
			if err != nil {
				return err
			}
			if !balance.Balance.IsZero() {
				return apperrors.ErrBalanceNotEmpty
			}
		case models.AdminDetails:
			admins, err := st.Account().CountAdmins(ctx)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return apperrors.ErrLastAdmin
			}
		}

		return st.Account().DeleteAccount(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("can't delete account. Err: %w", err)
	}

	s.logger.Info("account deleted", "id", id)
	return nil
}

// Change account PIN. On success all fields of p are cleared
func (s *Service) ChangePIN(ctx context.Context, id uuid.UUID, p *PinChange) error {
	fields := apperrors.FieldErrors{}
	if p.Old == "" {
		fields["oldPin"] = "current PIN is required"
	}
	if p.New == "" {
		fields["newPin"] = "new PIN is required"
	} else if err := validate.PIN(p.New); err != nil {
		fields["newPin"] = err.Error()
	}
	switch {
	case p.Confirm == "":
		fields["confirmPin"] = "PIN confirmation is required"
	case p.New != "" && p.Confirm != p.New:
		fields["confirmPin"] = "PIN confirmation does not match"
	}
	if len(fields) > 0 {
		return fields
	}

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		account, err := st.Account().GetAccountByID(ctx, id)
		if err != nil {
			return err
		}

		if err := s.hasher.Compare(account.HashedPIN, p.Old); err != nil {
			return apperrors.ErrPINMismatch
		}

		account.HashedPIN, err = s.hasher.Hash(p.New)
		if err != nil {
			return fmt.Errorf("can't hash PIN, Err: %w", err)
		}

		_, err = st.Account().UpdateAccount(ctx, account)
		return err
	})
	if err != nil {
		return fmt.Errorf("can't change PIN. Err: %w", err)
	}

	*p = PinChange{}
	return nil
}

// Create the first admin if there is no admin yet.
// Returns true if an account was created
func (s *Service) EnsureAdmin(ctx context.Context, email string, password string) (bool, error) {
	admins, err := s.storage.Account().CountAdmins(ctx)
	if err != nil {
		return false, fmt.Errorf("can't count admins. Err: %w", err)
	}
	if admins > 0 {
		return false, nil
	}

	if email == "" || password == "" {
		return false, errors.New("no admin account exists and admin credentials are not configured")
	}

	_, err = s.Create(ctx, CreateAccount{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return false, err
	}

	return true, nil
}

func checkName(fields apperrors.FieldErrors, name string) {
	if strings.TrimSpace(name) == "" {
		fields["name"] = "name is required"
	}
}

func checkEmail(fields apperrors.FieldErrors, email string) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		fields["email"] = "email is not valid"
	}
}

// Thresholds are stored as numeric(18, 2)
var maxThreshold = decimal.New(1, 16)

func checkThreshold(fields apperrors.FieldErrors, threshold decimal.Decimal) {
	switch {
	case !threshold.IsPositive():
		fields["lowBalanceThreshold"] = "threshold must be greater than zero"
	case !threshold.LessThan(maxThreshold):
		fields["lowBalanceThreshold"] = "threshold is too large"
	case !threshold.Truncate(2).Equal(threshold):
		fields["lowBalanceThreshold"] = "threshold must have at most 2 decimal places"
	}
}
