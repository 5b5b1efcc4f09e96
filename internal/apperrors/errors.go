package apperrors

import (
	"errors"
	"slices"
	"strings"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrAuthentication = errors.New("invalid credentials")
	ErrForbidden      = errors.New("operation not permitted for this account")

	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account with this email already exists")
	ErrBalanceNotEmpty      = errors.New("vendor balance is not empty")
	ErrLastAdmin            = errors.New("last admin account can not be deleted")
	ErrPINMismatch          = errors.New("current PIN does not match")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Returned when the caller stopped waiting but the ledger operation may still commit.
	// Balances have to be re-read before anything is resubmitted.
	ErrOutcomeUnknown = errors.New("operation outcome unknown")

	ErrInvalidSaleState = errors.New("sale is not in the expected state")
	ErrPackageNotFound  = errors.New("package not found")
)

// Field level validation failures. Matches ErrInvalidInput with errors.Is
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field, msg := range e {
		fields = append(fields, field+": "+msg)
	}
	slices.Sort(fields)
	return "invalid input: " + strings.Join(fields, "; ")
}

func (e FieldErrors) Unwrap() error {
	return ErrInvalidInput
}
