package domain

import "github.com/shopspring/decimal"

// AccountBalanceItem is the balance of a single currency.
type AccountBalanceItem struct {
	Currency  string
	Available decimal.Decimal
	InOrders  decimal.Decimal
}

// Total returns available plus the amount locked in resting orders.
func (i AccountBalanceItem) Total() decimal.Decimal {
	return i.Available.Add(i.InOrders)
}

// AccountBalance maps currency codes to their balances.
type AccountBalance map[string]AccountBalanceItem

// Item returns the balance for the given currency; a zero balance when the
// account holds none of it.
func (b AccountBalance) Item(currency string) AccountBalanceItem {
	if item, ok := b[currency]; ok {
		return item
	}
	return AccountBalanceItem{Currency: currency}
}
