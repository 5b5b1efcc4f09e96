package validate

import (
	"errors"

	"github.com/shopspring/decimal"
)

const (
	PhoneLength  = 8
	PINMinLength = 4
	PINMaxLength = 6
)

var rechargeStep = decimal.NewFromInt(5)

// Destination phone: exactly 8 digits
func PhoneNumber(phone string) error {
	if len(phone) != PhoneLength {
		return errors.New("phone number must have exactly 8 digits")
	}
	if !digitsOnly(phone) {
		return errors.New("phone number must contain digits only")
	}
	return nil
}

// Recharge amounts are positive multiples of 5
func RechargeAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	if !amount.Mod(rechargeStep).IsZero() {
		return errors.New("amount must be a multiple of 5")
	}
	return nil
}

// PIN: 4 to 6 digits
func PIN(pin string) error {
	if len(pin) < PINMinLength {
		return errors.New("PIN must have at least 4 digits")
	}
	if len(pin) > PINMaxLength {
		return errors.New("PIN must have at most 6 digits")
	}
	if !digitsOnly(pin) {
		return errors.New("PIN must contain digits only")
	}
	return nil
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
