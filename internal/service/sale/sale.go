package sale

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
	"github.com/nkiryanov/vendorpos/internal/logger"
	"github.com/nkiryanov/vendorpos/internal/models"
	"github.com/nkiryanov/vendorpos/internal/service/ledger"
	"github.com/nkiryanov/vendorpos/internal/service/validate"
)

type State string

const (
	StateDraft     State = "Draft"
	StateValidated State = "Validated"
	StateConfirmed State = "Confirmed"
	StateCommitted State = "Committed"
	StateRejected  State = "Rejected"
)

// Recharge or package sale on its way to the ledger
type Sale struct {
	VendorID  uuid.UUID
	Type      models.TransactionType
	Phone     string
	Amount    decimal.Decimal
	PackageID string
	Detail    string

	state State

	// Set once the sale reaches a terminal state
	Transaction      models.Transaction
	NewVendorBalance decimal.Decimal
	RejectReason     error
}

func NewRecharge(vendorID uuid.UUID, phone string, amount decimal.Decimal) *Sale {
	return &Sale{
		VendorID: vendorID,
		Type:     models.TransactionRecharge,
		Phone:    phone,
		Amount:   amount,
		Detail:   RechargeDetail,
		state:    StateDraft,
	}
}

// Price and detail are taken from the catalog on Validate
func NewPackage(vendorID uuid.UUID, phone string, packageID string) *Sale {
	return &Sale{
		VendorID:  vendorID,
		Type:      models.TransactionPackage,
		Phone:     phone,
		PackageID: packageID,
		state:     StateDraft,
	}
}

func (s *Sale) State() State {
	return s.state
}

// Check fields. On failure the sale stays in Draft
func (s *Sale) Validate() error {
	if s.state != StateDraft {
		return fmt.Errorf("validate in %s: %w", s.state, apperrors.ErrInvalidSaleState)
	}

	fields := apperrors.FieldErrors{}
	if err := validate.PhoneNumber(s.Phone); err != nil {
		fields["phone"] = err.Error()
	}

	switch s.Type {
	case models.TransactionRecharge:
		if err := validate.RechargeAmount(s.Amount); err != nil {
			fields["amount"] = err.Error()
		}
	case models.TransactionPackage:
		pkg, ok := FindPackage(s.PackageID)
		if !ok {
			fields["packageId"] = apperrors.ErrPackageNotFound.Error()
			break
		}
		s.Amount = pkg.Price
		s.Detail = pkg.Name
	default:
		fields["type"] = fmt.Sprintf("unknown sale type %q", s.Type)
	}

	if len(fields) > 0 {
		return fields
	}

	s.state = StateValidated
	return nil
}

// Seller accepted the quote
func (s *Sale) Confirm() error {
	if s.state != StateValidated {
		return fmt.Errorf("confirm in %s: %w", s.state, apperrors.ErrInvalidSaleState)
	}
	s.state = StateConfirmed
	return nil
}

type debiter interface {
	Debit(ctx context.Context, vendorID uuid.UUID, amount decimal.Decimal, memo ledger.Memo) (ledger.DebitResult, error)
}

type Service struct {
	ledger debiter
	logger logger.Logger
}

func NewService(ledger debiter, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{ledger: ledger, logger: l}
}

// Debit the vendor and record the sale.
// Ledger refusals move the sale to Rejected, nothing is retried.
func (svc *Service) Commit(ctx context.Context, s *Sale) error {
	if s.state != StateConfirmed {
		return fmt.Errorf("commit in %s: %w", s.state, apperrors.ErrInvalidSaleState)
	}

	res, err := svc.ledger.Debit(ctx, s.VendorID, s.Amount, ledger.Memo{
		Type:   s.Type,
		Detail: s.Detail,
		Target: s.Phone,
	})

	switch {
	case err == nil:
		s.state = StateCommitted
		s.Transaction = res.Transaction
		s.NewVendorBalance = res.NewVendorBalance
		svc.logger.Info("Sale committed", "vendor_id", s.VendorID, "transaction_id", res.Transaction.ID, "amount", s.Amount.String())
		return nil
	case errors.Is(err, apperrors.ErrInsufficientFunds), errors.Is(err, apperrors.ErrAccountNotFound), errors.Is(err, apperrors.ErrInvalidAmount):
		s.state = StateRejected
		s.RejectReason = err
		return err
	default:
		// Outcome unknown or storage failure: the state is left as is, caller has to re-read balances
		return err
	}
}
