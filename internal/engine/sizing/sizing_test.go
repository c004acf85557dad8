package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pairbot/pairbot/internal/domain"
	"github.com/pairbot/pairbot/internal/engine/marketdata"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var pair = domain.Pair{Base: "BTC", Quote: "USD"}

func testConfig() Config {
	return Config{
		OrderCapPctOnInit:  d("0.25"),
		OrderCapPctSteady:  d("0.6"),
		TargetReservePct:   d("0.1"),
		ExchangeReservePct: d("0.1"),
	}
}

func TestPortfolioValueInExchangeCurrency(t *testing.T) {
	got := PortfolioValueInExchangeCurrency(d("1"), d("50"), d("100"))
	assert.True(t, got.Equal(d("1.5")))

	// truncated, not rounded
	got = PortfolioValueInExchangeCurrency(d("0"), d("1"), d("3"))
	assert.True(t, got.Equal(d("0.33333333")))

	assert.True(t, PortfolioValueInExchangeCurrency(d("1"), d("50"), decimal.Zero).IsZero())
}

func TestComputeCaps(t *testing.T) {
	balance := domain.AccountBalance{
		"BTC": {Currency: "BTC", Available: d("1")},
		"USD": {Currency: "USD", Available: d("1000")},
	}

	caps := ComputeCaps(testConfig(), balance, pair, d("100"), d("100"), nil, nil)

	// buy cap (1000 + 1*100) * 0.25, sell cap (1 + 1000/100) * 0.25
	assert.True(t, caps.BuyTarget.Equal(d("275")), "got %s", caps.BuyTarget)
	assert.True(t, caps.SellExchange.Equal(d("2.75")), "got %s", caps.SellExchange)
	// max(1000/275, 1/2.75) truncated
	assert.Equal(t, 3, caps.BatchCycles)
}

func TestComputeCaps_LimitClamps(t *testing.T) {
	balance := domain.AccountBalance{
		"BTC": {Currency: "BTC", Available: d("1")},
		"USD": {Currency: "USD", Available: d("1000")},
	}
	exchLimit := &domain.CurrencyLimit{Currency: "BTC", MinAmount: d("0.1"), MaxAmount: d("2")}
	targetLimit := &domain.CurrencyLimit{Currency: "USD", MinAmount: d("5"), MaxAmount: d("100")}

	caps := ComputeCaps(testConfig(), balance, pair, d("100"), d("100"), exchLimit, targetLimit)

	// buy cap clamped to max lot 2 * 100, sell cap clamped to 100/100
	assert.True(t, caps.BuyTarget.Equal(d("200")), "got %s", caps.BuyTarget)
	assert.True(t, caps.SellExchange.Equal(d("1")), "got %s", caps.SellExchange)
	assert.Equal(t, 5, caps.BatchCycles)
}

func TestComputeCaps_FallbackToBalances(t *testing.T) {
	balance := domain.AccountBalance{
		"BTC": {Currency: "BTC", Available: d("2")},
		"USD": {Currency: "USD", Available: d("500")},
	}

	// a zero cap percentage degenerates both caps
	cfg := testConfig()
	cfg.OrderCapPctOnInit = decimal.Zero
	caps := ComputeCaps(cfg, balance, pair, d("100"), d("100"), nil, nil)

	assert.True(t, caps.BuyTarget.Equal(d("500")))
	assert.True(t, caps.SellExchange.Equal(d("2")))
	assert.Equal(t, 1, caps.BatchCycles)
}

func steadyInputs() Inputs {
	return Inputs{
		Pair: pair,
		Balance: domain.AccountBalance{
			"BTC": {Currency: "BTC", Available: d("1")},
			"USD": {Currency: "USD", Available: d("50")},
		},
		Stats: marketdata.Stats{
			LastPurchase: d("100"),
			LastSale:     d("105"),
		},
		BuyPrice:  d("100"),
		SellPrice: d("110"),
	}
}

func TestSize_SteadyState(t *testing.T) {
	s := NewSizer(testConfig())
	res := s.Size(steadyInputs())

	// buy: 0.6*1.5=0.9 costs 90 > 50 available, capped to 50/100=0.5,
	// then reserve-capped to 50*0.9/100
	assert.True(t, res.Buy.Amount.Equal(d("0.45")), "got %s", res.Buy.Amount)
	assert.True(t, res.Buy.ReserveBound)
	assert.True(t, res.Buy.Available)

	// sell: 0.6*(1+50/110) stays under both the balance and the reserve cap
	assert.True(t, res.Sell.Amount.Equal(d("0.87272727")), "got %s", res.Sell.Amount)
	assert.False(t, res.Sell.ReserveBound)
	assert.True(t, res.Sell.Available)
}

func TestSize_CostNeverExceedsBalance(t *testing.T) {
	s := NewSizer(testConfig())
	res := s.Size(steadyInputs())

	in := steadyInputs()
	target := in.Balance.Item(pair.Quote)
	exchange := in.Balance.Item(pair.Base)

	assert.True(t, res.Buy.Amount.Mul(in.BuyPrice).LessThanOrEqual(target.Available))
	assert.True(t, res.Sell.Amount.LessThanOrEqual(exchange.Available))
}

func TestSize_MinNotionalBlocksAvailability(t *testing.T) {
	s := NewSizer(testConfig())
	in := steadyInputs()
	in.TargetLimit = &domain.CurrencyLimit{Currency: "USD", MinAmount: d("50")}

	res := s.Size(in)

	// sized buy notional 45 sits below the 50 minimum
	assert.False(t, res.Buy.Available)
	assert.True(t, res.Sell.Available)
}

func TestSize_MinAmountClampUp(t *testing.T) {
	s := NewSizer(testConfig())
	in := steadyInputs()
	in.Balance = domain.AccountBalance{
		"BTC": {Currency: "BTC", Available: d("0.001")},
		"USD": {Currency: "USD", Available: d("0.5")},
	}
	in.ExchangeLimit = &domain.CurrencyLimit{Currency: "BTC", MinAmount: d("0.01")}

	res := s.Size(in)

	// neither balance can fund the exchange minimum
	assert.False(t, res.Buy.Available)
	assert.False(t, res.Sell.Available)
}

func TestSize_InitialCycleUsesCaps(t *testing.T) {
	s := NewSizer(testConfig())
	in := steadyInputs()
	in.Balance = domain.AccountBalance{
		"BTC": {Currency: "BTC", Available: d("10")},
		"USD": {Currency: "USD", Available: d("100000")},
	}
	in.InitialCycle = true
	in.Caps = Caps{BuyTarget: d("200"), SellExchange: d("0.5"), BatchCycles: 3}

	res := s.Size(in)

	// init sizing is generous but the startup caps bound it
	assert.True(t, res.Buy.Amount.Equal(d("2")), "got %s", res.Buy.Amount)
	assert.True(t, res.Sell.Amount.Equal(d("0.5")), "got %s", res.Sell.Amount)
}

func TestMaxSellableAmount(t *testing.T) {
	s := NewSizer(testConfig())
	in := steadyInputs()
	in.Fees = domain.FeeSchedule{SellPercent: d("0.003")}

	// 1 * (1-0.1) * (1-0.003)
	got := s.MaxSellableAmount(in)
	assert.True(t, got.Equal(d("0.8973")), "got %s", got)
}

func TestMaxBuyableAmount_ReserveProperty(t *testing.T) {
	s := NewSizer(testConfig())
	in := steadyInputs()
	in.Fees = domain.FeeSchedule{BuyPercent: d("0.0025")}

	maxBuy := s.MaxBuyableAmount(in)
	target := in.Balance.Item(pair.Quote)

	// cost never touches the reserved fraction of the target balance
	reserveFloor := target.Available.Mul(d("0.9"))
	assert.True(t, maxBuy.Mul(in.BuyPrice).LessThanOrEqual(reserveFloor))
}
