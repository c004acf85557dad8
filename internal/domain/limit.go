package domain

import "github.com/shopspring/decimal"

// CurrencyLimit carries the exchange-imposed order bounds for one currency.
// A zero MaxAmount means the exchange reported no upper bound.
type CurrencyLimit struct {
	Currency  string
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
}

// FindCurrencyLimit returns the limit for the given currency, or nil.
func FindCurrencyLimit(limits []CurrencyLimit, currency string) *CurrencyLimit {
	for i := range limits {
		if limits[i].Currency == currency {
			return &limits[i]
		}
	}
	return nil
}

// FeeSchedule holds the account's trading fees for the operating pair.
// Percentages are fractions (0.0025 means 0.25%).
type FeeSchedule struct {
	BuyPercent  decimal.Decimal
	SellPercent decimal.Decimal
	BuyFixed    decimal.Decimal
	SellFixed   decimal.Decimal
}
