package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleVendor Role = "vendor"
)

// Default balance under which a vendor is reported as running low
var DefaultLowBalanceThreshold = decimal.NewFromInt(100)

type Account struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Name           string
	Email          string
	HashedPassword string
	HashedPIN      string

	// Either AdminDetails or VendorDetails
	Details AccountDetails
}

// AccountDetails holds role specific data.
// The set of implementations is closed: AdminDetails and VendorDetails.
type AccountDetails interface {
	Role() Role
	isAccountDetails()
}

// Admins operate the global pool and carry no balance of their own
type AdminDetails struct{}

func (AdminDetails) Role() Role        { return RoleAdmin }
func (AdminDetails) isAccountDetails() {}

type VendorDetails struct {
	Balance             decimal.Decimal
	LowBalanceThreshold decimal.Decimal
}

func (VendorDetails) Role() Role        { return RoleVendor }
func (VendorDetails) isAccountDetails() {}

// IsLow reports whether the vendor balance dropped below its threshold
func (v VendorDetails) IsLow() bool {
	return v.Balance.LessThan(v.LowBalanceThreshold)
}

func (a Account) Role() Role {
	if a.Details == nil {
		return ""
	}
	return a.Details.Role()
}

// Vendor returns vendor details if the account is a vendor
func (a Account) Vendor() (VendorDetails, bool) {
	v, ok := a.Details.(VendorDetails)
	return v, ok
}

func (a Account) IsAdmin() bool {
	_, ok := a.Details.(AdminDetails)
	return ok
}
