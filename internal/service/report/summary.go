package report

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vendorpos/internal/models"
)

type Summary struct {
	Count       int
	TotalAmount decimal.Decimal
}

// Count and total of sales at full precision, never rounded here.
// Transfers and fundings bring money in and are not counted
func Summarize(transactions []models.Transaction) Summary {
	s := Summary{TotalAmount: decimal.Zero}
	for _, t := range transactions {
		if !t.Type.IsSale() {
			continue
		}
		s.Count++
		s.TotalAmount = s.TotalAmount.Add(t.Amount)
	}
	return s
}

// Total formatted for people, e.g. "L230.00" for HNL
func (s Summary) Display(currency string) string {
	return FormatMoney(s.TotalAmount, currency)
}

// Round to currency minor units and format with its symbol.
// Unknown currency falls back to plain two decimals.
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2)
	}

	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
