package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vendorpos/internal/models"
	"github.com/nkiryanov/vendorpos/internal/repository"
)

const DefaultCurrency = money.HNL

type Config struct {
	// Location to resolve calendar days in. UTC if nil
	Location *time.Location

	// ISO 4217 code used for display
	Currency string
}

// Read only queries over the transaction log and balances
type Service struct {
	storage  repository.Storage
	location *time.Location
	currency string
}

func NewService(cfg Config, storage repository.Storage) (*Service, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if money.GetCurrency(cfg.Currency) == nil {
		return nil, fmt.Errorf("unknown currency %q", cfg.Currency)
	}

	return &Service{
		storage:  storage,
		location: cfg.Location,
		currency: cfg.Currency,
	}, nil
}

func (s *Service) Currency() string {
	return s.currency
}

type Query struct {
	// Nil means every vendor and pool fundings too
	VendorID *uuid.UUID
	Period   Period
}

type Report struct {
	Transactions []models.Transaction
	Summary      Summary
}

func (s *Service) Transactions(ctx context.Context, q Query) ([]models.Transaction, error) {
	from, to := q.Period.Bounds(s.location)

	return s.storage.Transaction().ListTransactions(ctx, models.TransactionFilter{
		VendorID: q.VendorID,
		From:     from,
		To:       to,
	})
}

// Transactions with their summary
func (s *Service) Report(ctx context.Context, q Query) (Report, error) {
	txs, err := s.Transactions(ctx, q)
	if err != nil {
		return Report{}, err
	}

	return Report{Transactions: txs, Summary: Summarize(txs)}, nil
}

// Write CSV export for the query and return the file name for it
func (s *Service) Export(ctx context.Context, w io.Writer, q Query, layout Layout) (string, error) {
	txs, err := s.Transactions(ctx, q)
	if err != nil {
		return "", err
	}

	if err := Export(w, txs, layout, s.location); err != nil {
		return "", err
	}

	return ExportFilename(layout.Prefix(), q.Period), nil
}

// Vendors with balance under their threshold, order preserved
func LowBalanceVendors(accounts []models.Account) []models.Account {
	var low []models.Account
	for _, a := range accounts {
		switch d := a.Details.(type) {
		case models.VendorDetails:
			if d.IsLow() {
				low = append(low, a)
			}
		case models.AdminDetails:
		}
	}
	return low
}

type Dashboard struct {
	GlobalBalance     decimal.Decimal
	DailySales        Summary
	ActiveVendors     int
	LowBalanceVendors int
	Currency          string
}

// Pool balance, today's sales and vendor balance alerts
func (s *Service) Dashboard(ctx context.Context, now time.Time) (Dashboard, error) {
	pool, err := s.storage.Ledger().GetPool(ctx, false)
	if err != nil {
		return Dashboard{}, err
	}

	vendors, err := s.storage.Account().ListAccounts(ctx, models.RoleVendor)
	if err != nil {
		return Dashboard{}, err
	}

	from, to := Day(now.In(s.location)).Bounds(s.location)
	sales, err := s.storage.Transaction().ListTransactions(ctx, models.TransactionFilter{
		From:  from,
		To:    to,
		Types: models.SaleTypes,
	})
	if err != nil {
		return Dashboard{}, err
	}

	return Dashboard{
		GlobalBalance:     pool,
		DailySales:        Summarize(sales),
		ActiveVendors:     len(vendors),
		LowBalanceVendors: len(LowBalanceVendors(vendors)),
		Currency:          s.currency,
	}, nil
}
