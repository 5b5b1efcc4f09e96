package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionRecharge TransactionType = "Recharge"
	TransactionPackage  TransactionType = "Package"
	TransactionTransfer TransactionType = "Transfer"
	TransactionFunding  TransactionType = "Funding"
)

// Types that record money spent by a vendor
var SaleTypes = []TransactionType{TransactionRecharge, TransactionPackage}

func (t TransactionType) IsSale() bool {
	return t == TransactionRecharge || t == TransactionPackage
}

type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "Success"
	TransactionFailed  TransactionStatus = "Failed"
)

// Immutable record of a completed monetary event
type Transaction struct {
	ID          string
	Seq         int64
	VendorID    uuid.UUID // uuid.Nil for pool fundings
	ActorID     uuid.UUID
	Type        TransactionType
	Detail      string
	Target      string
	Amount      decimal.Decimal
	ProcessedAt time.Time
	Status      TransactionStatus

	// Filled on queries, empty if the vendor account was deleted
	VendorName string
}

type TransactionFilter struct {
	VendorID *uuid.UUID

	// Inclusive bounds, already resolved to instants
	From *time.Time
	To   *time.Time

	Types []TransactionType
}
