// Package marketdata derives price statistics from windowed trade history.
// Every function is pure over the snapshot it is handed; a zero result means
// "unavailable", never a real quote.
package marketdata

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pairbot/pairbot/internal/domain"
)

// FilterWindow keeps records of the given side executed at or after since.
func FilterWindow(records []domain.TradeRecord, side domain.Side, since time.Time) []domain.TradeRecord {
	out := make([]domain.TradeRecord, 0, len(records))
	for _, r := range records {
		if r.Side == side && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out
}

// WeightedAverage returns sum(amount*price)/sum(amount) over the records,
// zero when the window is empty or carries no amount.
func WeightedAverage(records []domain.TradeRecord) decimal.Decimal {
	value, amount := decimal.Zero, decimal.Zero
	for _, r := range records {
		value = value.Add(r.Amount.Mul(r.Price))
		amount = amount.Add(r.Amount)
	}
	if amount.IsZero() {
		return decimal.Zero
	}
	return value.Div(amount)
}

// BestTercilePrice is the weighted average over the cheapest third of the
// records. With fewer than three records the tercile is empty and the result
// is zero.
func BestTercilePrice(records []domain.TradeRecord) decimal.Decimal {
	return WeightedAverage(tercile(records, func(a, b domain.TradeRecord) bool {
		return a.Price.LessThan(b.Price)
	}))
}

// LowTercilePrice is the weighted average over the most expensive third,
// the complement of BestTercilePrice. Zero when the tercile is empty.
func LowTercilePrice(records []domain.TradeRecord) decimal.Decimal {
	return WeightedAverage(tercile(records, func(a, b domain.TradeRecord) bool {
		return a.Price.GreaterThan(b.Price)
	}))
}

// LastPrice is the price of the most recent record by timestamp, zero for an
// empty window.
func LastPrice(records []domain.TradeRecord) decimal.Decimal {
	var last *domain.TradeRecord
	for i := range records {
		if last == nil || records[i].Timestamp.After(last.Timestamp) {
			last = &records[i]
		}
	}
	if last == nil {
		return decimal.Zero
	}
	return last.Price
}

// tercile sorts a copy by the given order and takes the first count/3 records.
func tercile(records []domain.TradeRecord, less func(a, b domain.TradeRecord) bool) []domain.TradeRecord {
	n := len(records) / 3
	if n == 0 {
		return nil
	}
	sorted := make([]domain.TradeRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	return sorted[:n]
}

// Stats bundles the per-cycle price statistics the classifier and proposer
// consume.
type Stats struct {
	PublicPurchaseAmount decimal.Decimal
	PublicSaleAmount     decimal.Decimal

	AvgPurchase  decimal.Decimal
	BestPurchase decimal.Decimal
	LowPurchase  decimal.Decimal
	LastPurchase decimal.Decimal

	AvgSale  decimal.Decimal
	BestSale decimal.Decimal
	LowSale  decimal.Decimal
	LastSale decimal.Decimal

	AccountAvgPurchase  decimal.Decimal
	AccountAvgSale      decimal.Decimal
	AccountLastPurchase decimal.Decimal
	AccountLastSale     decimal.Decimal
}

// Compute aggregates the four side-partitioned windows into Stats.
func Compute(publicPurchases, publicSales, accountPurchases, accountSales []domain.TradeRecord) Stats {
	return Stats{
		PublicPurchaseAmount: domain.TotalTradedAmount(publicPurchases),
		PublicSaleAmount:     domain.TotalTradedAmount(publicSales),

		AvgPurchase:  WeightedAverage(publicPurchases),
		BestPurchase: BestTercilePrice(publicPurchases),
		LowPurchase:  LowTercilePrice(publicPurchases),
		LastPurchase: LastPrice(publicPurchases),

		AvgSale:  WeightedAverage(publicSales),
		BestSale: BestTercilePrice(publicSales),
		LowSale:  LowTercilePrice(publicSales),
		LastSale: LastPrice(publicSales),

		AccountAvgPurchase:  WeightedAverage(accountPurchases),
		AccountAvgSale:      WeightedAverage(accountSales),
		AccountLastPurchase: LastPrice(accountPurchases),
		AccountLastSale:     LastPrice(accountSales),
	}
}
