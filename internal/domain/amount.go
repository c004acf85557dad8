package domain

import "github.com/shopspring/decimal"

// amountPrecision is the exchange's amount resolution in decimal places.
const amountPrecision = 8

// TruncateAmount cuts an amount down to the exchange's 8-decimal resolution.
// Truncation, not rounding: the engine must never promise more than it holds.
func TruncateAmount(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(amountPrecision)
}
