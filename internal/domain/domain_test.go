package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPair(t *testing.T) {
	p := Pair{Base: "BTC", Quote: "USD"}
	assert.Equal(t, "BTC_USD", p.String())
	assert.Equal(t, "BTCUSD", p.Symbol())
}

func TestSideFromString(t *testing.T) {
	s, ok := SideFromString("buy")
	require.True(t, ok)
	assert.Equal(t, SideBuy, s)

	s, ok = SideFromString("sell")
	require.True(t, ok)
	assert.Equal(t, SideSell, s)

	_, ok = SideFromString("hold")
	assert.False(t, ok)
}

func TestOrderbookHelpers(t *testing.T) {
	book := Orderbook{
		Bids: []OrderbookLevel{
			{Price: d("101"), Quantity: d("2")},
			{Price: d("100"), Quantity: d("1")},
			{Price: d("99"), Quantity: d("5")},
		},
		Asks: []OrderbookLevel{
			{Price: d("102"), Quantity: d("1")},
			{Price: d("103"), Quantity: d("4")},
		},
	}

	assert.True(t, book.MaxBidPrice().Equal(d("101")))
	assert.True(t, book.MinAskPrice().Equal(d("102")))

	// 101*2 + 100*1
	assert.True(t, book.BidValueFrom(d("100")).Equal(d("302")))
	// 102*1
	assert.True(t, book.AskValueTo(d("102")).Equal(d("102")))

	assert.Len(t, book.BidsFrom(d("100")), 2)
	assert.Len(t, book.AsksTo(d("102")), 1)
	assert.Len(t, book.AsksFrom(d("103")), 1)

	empty := Orderbook{}
	assert.True(t, empty.MaxBidPrice().IsZero())
	assert.True(t, empty.MinAskPrice().IsZero())
}

func TestWeightedAveragePrice(t *testing.T) {
	levels := []OrderbookLevel{
		{Price: d("100"), Quantity: d("3")},
		{Price: d("80"), Quantity: d("1")},
	}
	assert.True(t, WeightedAveragePrice(levels).Equal(d("95")))
	assert.True(t, WeightedAveragePrice(nil).IsZero())
}

func TestOpenOrderPicks(t *testing.T) {
	orders := []OpenOrder{
		{ID: "1", Side: SideBuy, Price: d("98")},
		{ID: "2", Side: SideBuy, Price: d("99")},
		{ID: "3", Side: SideSell, Price: d("101")},
		{ID: "4", Side: SideSell, Price: d("103")},
	}

	require.NotNil(t, NextBuyOrder(orders))
	assert.Equal(t, "2", NextBuyOrder(orders).ID)
	assert.Equal(t, "1", LastBuyOrder(orders).ID)
	assert.Equal(t, "3", NextSellOrder(orders).ID)
	assert.Equal(t, "4", LastSellOrder(orders).ID)

	assert.Nil(t, NextBuyOrder(nil))
	assert.Nil(t, NextSellOrder([]OpenOrder{{Side: SideBuy, Price: d("1")}}))
}

func TestAccountBalanceItem(t *testing.T) {
	b := AccountBalance{
		"BTC": {Currency: "BTC", Available: d("1.5"), InOrders: d("0.5")},
	}

	assert.True(t, b.Item("BTC").Total().Equal(d("2")))

	missing := b.Item("ETH")
	assert.Equal(t, "ETH", missing.Currency)
	assert.True(t, missing.Total().IsZero())
}

func TestFindCurrencyLimit(t *testing.T) {
	limits := []CurrencyLimit{
		{Currency: "BTC", MinAmount: d("0.01")},
		{Currency: "USD", MinAmount: d("5")},
	}

	got := FindCurrencyLimit(limits, "USD")
	require.NotNil(t, got)
	assert.True(t, got.MinAmount.Equal(d("5")))
	assert.Nil(t, FindCurrencyLimit(limits, "ETH"))
}

func TestTruncateAmount_Idempotent(t *testing.T) {
	x := d("0.123456789123")
	once := TruncateAmount(x)
	assert.True(t, once.Equal(d("0.12345678")))
	assert.True(t, TruncateAmount(once).Equal(once))
}

func TestTotalTradedAmount(t *testing.T) {
	records := []TradeRecord{
		{Amount: d("1.2"), Timestamp: time.Now()},
		{Amount: d("0.8"), Timestamp: time.Now()},
	}
	assert.True(t, TotalTradedAmount(records).Equal(d("2")))
	assert.True(t, TotalTradedAmount(nil).IsZero())
}

func TestSideDecisionDepreciating(t *testing.T) {
	dec := SideDecision{CurrentValue: d("100"), ProjectedValue: d("99.5")}
	assert.True(t, dec.Depreciating())

	dec.ProjectedValue = d("100")
	assert.False(t, dec.Depreciating())
}

func TestOutcomeJSON(t *testing.T) {
	for o := OutcomeExecuted; o <= OutcomeFailed; o++ {
		raw, err := json.Marshal(o)
		require.NoError(t, err)
		assert.Equal(t, `"`+o.String()+`"`, string(raw))

		var back Outcome
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, o, back)
	}

	var o Outcome
	assert.Error(t, json.Unmarshal([]byte(`"nonsense"`), &o))
}
