package alert

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Notional returns limit price times total quantity. ok is false when either
// field is not a decimal number, which is common since neither is validated
// on ingest.
func (r Record) Notional() (decimal.Decimal, bool) {
	price, err := decimal.NewFromString(strings.TrimSpace(r.LimitPrice))
	if err != nil {
		return decimal.Zero, false
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(r.TotalQuantity))
	if err != nil {
		return decimal.Zero, false
	}
	return price.Mul(qty), true
}
