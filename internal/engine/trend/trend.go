// Package trend classifies the market as bull or bear and judges whether the
// prevailing trend has enough order-book depth behind it to continue.
package trend

import (
	"github.com/shopspring/decimal"

	"github.com/pairbot/pairbot/internal/domain"
	"github.com/pairbot/pairbot/internal/engine/marketdata"
)

// Assessment is the classifier output for one decision cycle.
type Assessment struct {
	IsBull          bool
	ChangeRatio     decimal.Decimal
	BullContinuable bool
	BearContinuable bool
}

// Continuable reports whether the current trend, whichever direction, is
// supported by order-book depth.
func (a Assessment) Continuable() bool {
	if a.IsBull {
		return a.BullContinuable
	}
	return a.BearContinuable
}

// IsBull holds when buy pressure dominates on every axis: traded amount,
// weighted averages, tercile ordering, and at least one of the last prices
// sitting above its own average.
func IsBull(s marketdata.Stats) bool {
	return s.PublicPurchaseAmount.GreaterThan(s.PublicSaleAmount) &&
		s.AvgPurchase.GreaterThan(s.AvgSale) &&
		s.LowPurchase.GreaterThan(s.BestSale) &&
		s.LowPurchase.GreaterThan(s.LowSale) &&
		(s.LastPurchase.GreaterThan(s.AvgPurchase) || s.LastSale.GreaterThan(s.AvgSale))
}

// AverageChangeRatio is the mean of the four tercile-vs-average deviation
// ratios. A zero average contributes zero rather than dividing by it.
func AverageChangeRatio(s marketdata.Stats) decimal.Decimal {
	four := decimal.NewFromInt(4)
	sum := deviationRatio(s.BestSale, s.AvgSale).
		Add(deviationRatio(s.LowSale, s.AvgSale)).
		Add(deviationRatio(s.BestPurchase, s.AvgPurchase)).
		Add(deviationRatio(s.LowPurchase, s.AvgPurchase))
	return sum.Div(four)
}

func deviationRatio(tercile, avg decimal.Decimal) decimal.Decimal {
	if avg.IsZero() {
		return decimal.Zero
	}
	return tercile.Sub(avg).Abs().Div(avg)
}

// Classify runs the full per-cycle assessment against the latest stats and
// orderbook snapshot.
func Classify(s marketdata.Stats, book domain.Orderbook) Assessment {
	bull := IsBull(s)
	ratio := AverageChangeRatio(s)
	one := decimal.NewFromInt(1)

	a := Assessment{IsBull: bull, ChangeRatio: ratio}
	if bull {
		bidDepth := book.BidValueFrom(s.LowSale.Mul(one.Sub(ratio)))
		askDepth := book.AskValueTo(s.LowPurchase.Mul(one.Add(ratio)))
		a.BullContinuable = bidDepth.GreaterThan(askDepth)
	} else {
		bidDepth := book.BidValueFrom(s.BestSale.Mul(one.Sub(ratio)))
		askDepth := book.AskValueTo(s.BestPurchase.Mul(one.Add(ratio)))
		a.BearContinuable = bidDepth.LessThan(askDepth)
	}
	return a
}
