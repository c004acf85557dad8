package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenOrder is a read-only snapshot of a resting order owned by the account.
// The ID is opaque and unique while the order stays open.
type OpenOrder struct {
	ID        string
	Side      Side
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Timestamp time.Time
}

// NextBuyOrder returns the open buy order closest to the market (highest
// price), or nil.
func NextBuyOrder(orders []OpenOrder) *OpenOrder {
	return pickOrder(orders, SideBuy, func(candidate, best decimal.Decimal) bool {
		return candidate.GreaterThan(best)
	})
}

// LastBuyOrder returns the open buy order furthest from the market (lowest
// price), or nil.
func LastBuyOrder(orders []OpenOrder) *OpenOrder {
	return pickOrder(orders, SideBuy, func(candidate, best decimal.Decimal) bool {
		return candidate.LessThan(best)
	})
}

// NextSellOrder returns the open sell order closest to the market (lowest
// price), or nil.
func NextSellOrder(orders []OpenOrder) *OpenOrder {
	return pickOrder(orders, SideSell, func(candidate, best decimal.Decimal) bool {
		return candidate.LessThan(best)
	})
}

// LastSellOrder returns the open sell order furthest from the market (highest
// price), or nil.
func LastSellOrder(orders []OpenOrder) *OpenOrder {
	return pickOrder(orders, SideSell, func(candidate, best decimal.Decimal) bool {
		return candidate.GreaterThan(best)
	})
}

func pickOrder(orders []OpenOrder, side Side, better func(candidate, best decimal.Decimal) bool) *OpenOrder {
	var picked *OpenOrder
	for i := range orders {
		o := orders[i]
		if o.Side != side {
			continue
		}
		if picked == nil || better(o.Price, picked.Price) {
			picked = &o
		}
	}
	return picked
}
