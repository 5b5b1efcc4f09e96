package render

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount accepts JSON numbers and numeric strings.
// Anything not numeric decodes to zero and fails amount validation.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}

	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		a.Decimal = decimal.Zero
		return nil
	}

	a.Decimal = value
	return nil
}
