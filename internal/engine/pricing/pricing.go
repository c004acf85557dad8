// Package pricing proposes the buy and sell limit prices for a cycle by
// blending aggregated trade prices, an orderbook-implied quote, a
// profitability walk through the book, and a trend-driven skew.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/pairbot/pairbot/internal/domain"
	"github.com/pairbot/pairbot/internal/engine/marketdata"
	"github.com/pairbot/pairbot/internal/engine/trend"
)

// Snapshot carries the cycle inputs the proposer reads. All fields are
// immutable for the duration of the call.
type Snapshot struct {
	Pair    domain.Pair
	Stats   marketdata.Stats
	Trend   trend.Assessment
	Book    domain.Orderbook
	Balance domain.AccountBalance
	Fees    domain.FeeSchedule
}

// Proposer computes proposed prices. Sensitivity bounds both the
// stale-account-print divergence guard and the trend skew.
type Proposer struct {
	sensitivity decimal.Decimal
}

func NewProposer(sensitivity decimal.Decimal) *Proposer {
	return &Proposer{sensitivity: sensitivity}
}

var one = decimal.NewFromInt(1)

// SellPrice proposes the limit price for the next sell order.
func (p *Proposer) SellPrice(s Snapshot) decimal.Decimal {
	reasonableLast := p.reasonable(s.Stats.AccountLastSale, s.Stats.LastSale)

	implied := s.Book.MinAskPrice()
	if priority := s.Book.AsksTo(reasonableLast); len(priority) > 0 {
		implied = domain.WeightedAveragePrice(priority)
	}
	if !implied.IsPositive() {
		implied = reasonableLast
	}

	reasonableAvg := p.reasonable(s.Stats.AccountAvgSale, s.Stats.LastSale)
	candidate := decimal.Max(
		mean4(s.Stats.AvgSale, s.Stats.LastSale, s.Stats.BestSale, implied),
		pick(s.Trend.IsBull,
			decimal.Max(reasonableAvg, s.Stats.AvgSale),
			mean2(reasonableAvg, s.Stats.AvgSale)),
		pick(s.Trend.IsBull, s.Stats.BestSale, s.Stats.LowSale),
		implied,
	)

	priority := s.Book.AsksTo(candidate)
	exch, okExch := s.Balance[s.Pair.Base]
	target, okTarget := s.Balance[s.Pair.Quote]
	if len(priority) == 0 || !okExch || !okTarget {
		return candidate
	}

	current := exch.Total().Mul(s.Stats.LastSale).Add(target.Total())
	for _, lvl := range priority {
		netPrice := lvl.Price.Mul(one.Sub(s.Fees.SellPercent)).Sub(s.Fees.SellFixed).Ceil()
		projected := exch.Total().Mul(netPrice).Add(target.Total())
		if projected.GreaterThan(current) {
			// profitable fill already resting in the book
			return lvl.Price
		}
	}

	return candidate.Mul(one.Add(p.skew(s.Trend, false)))
}

// BuyPrice proposes the limit price for the next buy order. Unlike the sell
// side, a profitable bid found in the walk is adopted and then still skewed.
func (p *Proposer) BuyPrice(s Snapshot) decimal.Decimal {
	reasonableLast := p.reasonable(s.Stats.AccountLastPurchase, s.Stats.LastPurchase)

	implied := s.Book.MaxBidPrice()
	if priority := s.Book.BidsFrom(reasonableLast); len(priority) > 0 {
		implied = domain.WeightedAveragePrice(priority)
	}
	if !implied.IsPositive() {
		implied = reasonableLast
	}

	reasonableAvg := p.reasonable(s.Stats.AccountAvgPurchase, s.Stats.LastPurchase)
	candidate := decimal.Min(
		mean4(s.Stats.AvgPurchase, s.Stats.LastPurchase, s.Stats.BestPurchase, implied),
		pick(s.Trend.IsBull,
			decimal.Max(reasonableAvg, s.Stats.AvgPurchase),
			mean2(reasonableAvg, s.Stats.AvgPurchase)),
		pick(s.Trend.IsBull, s.Stats.BestPurchase, s.Stats.LowPurchase),
		implied,
	)

	priority := s.Book.BidsFrom(candidate)
	exch, okExch := s.Balance[s.Pair.Base]
	target, okTarget := s.Balance[s.Pair.Quote]
	if len(priority) == 0 || !okExch || !okTarget {
		return candidate
	}

	current := exch.Total().Mul(s.Stats.LastPurchase).Add(target.Total())
	for _, lvl := range priority {
		netPrice := lvl.Price.Mul(one.Sub(s.Fees.BuyPercent)).Sub(s.Fees.BuyFixed).Floor()
		projected := exch.Total().Mul(netPrice).Add(target.Total())
		if projected.GreaterThan(current) {
			candidate = lvl.Price
			break
		}
	}

	return candidate.Mul(one.Add(p.skew(s.Trend, true)))
}

// skew returns the trend adjustment fraction. In a bull market the proposal is
// pushed up by the change ratio bounded by sensitivity; a continuable bear
// market leaves the proposal untouched; a stalling bear market nudges the sell
// side up and the buy side down.
func (p *Proposer) skew(t trend.Assessment, buySide bool) decimal.Decimal {
	if t.IsBull {
		if t.BullContinuable {
			return decimal.Max(t.ChangeRatio, p.sensitivity)
		}
		return decimal.Min(t.ChangeRatio, p.sensitivity)
	}
	if t.BearContinuable {
		return decimal.Zero
	}
	adj := decimal.Min(t.ChangeRatio, p.sensitivity)
	if buySide {
		return adj.Neg()
	}
	return adj
}

// reasonable guards an account-derived price against the public last price:
// when they diverge by more than the sensitivity ratio the account print is
// considered stale and the public price wins.
func (p *Proposer) reasonable(account, public decimal.Decimal) decimal.Decimal {
	ref := account
	if !ref.IsPositive() {
		ref = public
	}
	denom := decimal.Min(public, ref)
	if denom.IsZero() {
		return public
	}
	if account.Sub(public).Abs().Div(denom).GreaterThan(p.sensitivity) {
		return public
	}
	return account
}

// SellPriceInPrinciple is the fee-adjusted order price for the sell side.
// Both in-principle prices apply the buy-side fee, matching the historical
// behavior this engine replicates.
func SellPriceInPrinciple(proposed decimal.Decimal, fees domain.FeeSchedule) decimal.Decimal {
	return proposed.Mul(one.Add(fees.BuyPercent)).Add(fees.BuyFixed).Ceil()
}

// BuyPriceInPrinciple is the fee-adjusted order price for the buy side.
func BuyPriceInPrinciple(proposed decimal.Decimal, fees domain.FeeSchedule) decimal.Decimal {
	return proposed.Mul(one.Sub(fees.BuyPercent)).Sub(fees.BuyFixed).Floor()
}

func mean2(a, b decimal.Decimal) decimal.Decimal {
	return a.Add(b).Div(decimal.NewFromInt(2))
}

func mean4(a, b, c, d decimal.Decimal) decimal.Decimal {
	return a.Add(b).Add(c).Add(d).Div(decimal.NewFromInt(4))
}

func pick(cond bool, a, b decimal.Decimal) decimal.Decimal {
	if cond {
		return a
	}
	return b
}
