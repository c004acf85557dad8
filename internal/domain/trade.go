package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is a single executed trade, either from the public feed or from
// the account's own fills. Immutable once observed.
type TradeRecord struct {
	ID        string
	Side      Side
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Timestamp time.Time
}

// TotalTradedAmount sums the traded amount over a set of records.
func TotalTradedAmount(records []TradeRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}
