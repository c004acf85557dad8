package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pairbot/pairbot/internal/domain"
	"github.com/pairbot/pairbot/internal/engine/marketdata"
	"github.com/pairbot/pairbot/internal/engine/trend"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func lvl(price, qty string) domain.OrderbookLevel {
	return domain.OrderbookLevel{Price: d(price), Quantity: d(qty)}
}

func balance(exchAvail, targetAvail string) domain.AccountBalance {
	return domain.AccountBalance{
		"BTC": {Currency: "BTC", Available: d(exchAvail)},
		"USD": {Currency: "USD", Available: d(targetAvail)},
	}
}

var pair = domain.Pair{Base: "BTC", Quote: "USD"}

func TestReasonable_DivergenceGuard(t *testing.T) {
	p := NewProposer(d("0.015"))

	tests := []struct {
		name    string
		account string
		public  string
		want    string
	}{
		{"account within sensitivity", "100.5", "100", "100.5"},
		{"account diverged", "200", "100", "100"},
		{"account unavailable", "0", "100", "100"},
		{"both unavailable", "0", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.reasonable(d(tt.account), d(tt.public))
			assert.True(t, got.Equal(d(tt.want)), "got %s", got)
		})
	}
}

func TestSellPrice_AdoptsProfitableAsk(t *testing.T) {
	p := NewProposer(d("0.015"))
	s := Snapshot{
		Pair: pair,
		Stats: marketdata.Stats{
			AvgSale:         d("100"),
			LastSale:        d("100"),
			BestSale:        d("99"),
			LowSale:         d("101"),
			AccountLastSale: d("100"),
			AccountAvgSale:  d("100"),
		},
		// a strong bull skew must not apply once a profitable ask is found
		Trend: trend.Assessment{IsBull: true, BullContinuable: true, ChangeRatio: d("0.5")},
		Book: domain.Orderbook{
			Asks: []domain.OrderbookLevel{lvl("100.2", "1")},
		},
		Balance: balance("1", "0"),
	}

	got := p.SellPrice(s)
	assert.True(t, got.Equal(d("100.2")), "got %s", got)
}

func TestSellPrice_SkewsWhenNoProfitableAsk(t *testing.T) {
	p := NewProposer(d("0.015"))
	s := Snapshot{
		Pair: pair,
		Stats: marketdata.Stats{
			AvgSale:  d("100"),
			LastSale: d("100"),
			BestSale: d("100"),
			LowSale:  d("100"),
		},
		Trend: trend.Assessment{IsBull: true, BullContinuable: true, ChangeRatio: d("0.02")},
		Book: domain.Orderbook{
			Asks: []domain.OrderbookLevel{lvl("99", "1")},
		},
		Balance: balance("1", "0"),
	}

	// candidate 100 skewed up by max(changeRatio, sensitivity)
	got := p.SellPrice(s)
	assert.True(t, got.Equal(d("102")), "got %s", got)
}

func TestSellPrice_EmptyBookReturnsCandidateUnskewed(t *testing.T) {
	p := NewProposer(d("0.015"))
	s := Snapshot{
		Pair: pair,
		Stats: marketdata.Stats{
			AvgSale:  d("100"),
			LastSale: d("100"),
			BestSale: d("100"),
			LowSale:  d("100"),
		},
		Trend:   trend.Assessment{IsBull: true, BullContinuable: true, ChangeRatio: d("0.5")},
		Balance: balance("1", "0"),
	}

	got := p.SellPrice(s)
	assert.True(t, got.Equal(d("100")), "got %s", got)
}

func TestBuyPrice_AdoptsBidThenSkews(t *testing.T) {
	p := NewProposer(d("0.015"))
	s := Snapshot{
		Pair: pair,
		Stats: marketdata.Stats{
			AvgPurchase:  d("100"),
			LastPurchase: d("98"),
			BestPurchase: d("100"),
			LowPurchase:  d("100"),
		},
		// bear continuable leaves the adopted bid untouched
		Trend: trend.Assessment{BearContinuable: true, ChangeRatio: d("0.02")},
		Book: domain.Orderbook{
			Bids: []domain.OrderbookLevel{lvl("99.5", "1"), lvl("99", "5")},
		},
		Balance: balance("1", "0"),
	}

	// candidate resolves to 99 but the walk adopts the first profitable bid
	got := p.BuyPrice(s)
	assert.True(t, got.Equal(d("99.5")), "got %s", got)
}

func TestBuyPrice_BearStallSkewsDown(t *testing.T) {
	p := NewProposer(d("0.015"))
	s := Snapshot{
		Pair: pair,
		Stats: marketdata.Stats{
			AvgPurchase:  d("100"),
			LastPurchase: d("100"),
			BestPurchase: d("100"),
			LowPurchase:  d("100"),
		},
		Trend: trend.Assessment{ChangeRatio: d("0.01")},
		Book: domain.Orderbook{
			Bids: []domain.OrderbookLevel{lvl("99.5", "1")},
		},
		Balance: balance("1", "0"),
	}

	// candidate 99.5, no profitable bid, skewed down by min(changeRatio, sensitivity)
	got := p.BuyPrice(s)
	assert.True(t, got.Equal(d("98.505")), "got %s", got)
}

func TestPriceInPrinciple_UsesBuyFeeBothSides(t *testing.T) {
	fees := domain.FeeSchedule{BuyPercent: d("0.03"), SellPercent: d("0.01")}

	sell := SellPriceInPrinciple(d("100"), fees)
	buy := BuyPriceInPrinciple(d("100"), fees)

	// the buy-side fee feeds both directions
	assert.True(t, sell.Equal(d("103")), "got %s", sell)
	assert.True(t, buy.Equal(d("97")), "got %s", buy)
}

func TestSkewTerms(t *testing.T) {
	p := NewProposer(d("0.015"))

	tests := []struct {
		name string
		a    trend.Assessment
		buy  bool
		want string
	}{
		{"bull continuable takes max", trend.Assessment{IsBull: true, BullContinuable: true, ChangeRatio: d("0.02")}, false, "0.02"},
		{"bull stalling takes min", trend.Assessment{IsBull: true, ChangeRatio: d("0.02")}, false, "0.015"},
		{"bear continuable is flat", trend.Assessment{BearContinuable: true, ChangeRatio: d("0.02")}, false, "0"},
		{"bear stalling sell side up", trend.Assessment{ChangeRatio: d("0.01")}, false, "0.01"},
		{"bear stalling buy side down", trend.Assessment{ChangeRatio: d("0.01")}, true, "-0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, p.skew(tt.a, tt.buy).Equal(d(tt.want)))
		})
	}
}
