package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderbookLevel is one price level of an orderbook side.
type OrderbookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Orderbook is a full snapshot of the book: bids descending by price, asks
// ascending by price, plus the exchange-reported aggregate volumes. Snapshots
// are replaced wholesale on each refresh, never patched.
type Orderbook struct {
	Bids      []OrderbookLevel
	Asks      []OrderbookLevel
	BidTotal  decimal.Decimal
	AskTotal  decimal.Decimal
	Timestamp time.Time
}

// MaxBidPrice returns the highest bid price, zero when the side is empty.
func (b Orderbook) MaxBidPrice() decimal.Decimal {
	best := decimal.Zero
	for _, l := range b.Bids {
		if l.Price.GreaterThan(best) {
			best = l.Price
		}
	}
	return best
}

// MinAskPrice returns the lowest ask price, zero when the side is empty.
func (b Orderbook) MinAskPrice() decimal.Decimal {
	best := decimal.Zero
	for i, l := range b.Asks {
		if i == 0 || l.Price.LessThan(best) {
			best = l.Price
		}
	}
	return best
}

// BidValueFrom sums price*quantity over bids priced at or above floor.
func (b Orderbook) BidValueFrom(floor decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.Bids {
		if l.Price.GreaterThanOrEqual(floor) {
			total = total.Add(l.Price.Mul(l.Quantity))
		}
	}
	return total
}

// AskValueTo sums price*quantity over asks priced at or below ceil.
func (b Orderbook) AskValueTo(ceil decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.Asks {
		if l.Price.LessThanOrEqual(ceil) {
			total = total.Add(l.Price.Mul(l.Quantity))
		}
	}
	return total
}

// BidsFrom returns bids priced at or above floor, preserving book order.
func (b Orderbook) BidsFrom(floor decimal.Decimal) []OrderbookLevel {
	return filterLevels(b.Bids, func(l OrderbookLevel) bool {
		return l.Price.GreaterThanOrEqual(floor)
	})
}

// AsksTo returns asks priced at or below ceil, preserving book order.
func (b Orderbook) AsksTo(ceil decimal.Decimal) []OrderbookLevel {
	return filterLevels(b.Asks, func(l OrderbookLevel) bool {
		return l.Price.LessThanOrEqual(ceil)
	})
}

// AsksFrom returns asks priced at or above floor, preserving book order.
func (b Orderbook) AsksFrom(floor decimal.Decimal) []OrderbookLevel {
	return filterLevels(b.Asks, func(l OrderbookLevel) bool {
		return l.Price.GreaterThanOrEqual(floor)
	})
}

// WeightedAveragePrice returns the quantity-weighted average price of the
// given levels, zero when they carry no quantity.
func WeightedAveragePrice(levels []OrderbookLevel) decimal.Decimal {
	value, qty := decimal.Zero, decimal.Zero
	for _, l := range levels {
		value = value.Add(l.Price.Mul(l.Quantity))
		qty = qty.Add(l.Quantity)
	}
	if qty.IsZero() {
		return decimal.Zero
	}
	return value.Div(qty)
}

func filterLevels(levels []OrderbookLevel, keep func(OrderbookLevel) bool) []OrderbookLevel {
	out := make([]OrderbookLevel, 0, len(levels))
	for _, l := range levels {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}
