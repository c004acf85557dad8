package tui

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pairbot/pairbot/internal/domain"
)

func TestRender(t *testing.T) {
	pair := domain.Pair{Base: "BTC", Quote: "USD"}
	decision := domain.SideDecision{
		Side:           domain.SideSell,
		Price:          decimal.NewFromInt(35000),
		Amount:         decimal.RequireFromString("0.5"),
		CurrentValue:   decimal.NewFromInt(1000),
		ProjectedValue: decimal.NewFromInt(1010),
	}

	out := render(pair, decision)
	assert.Contains(t, out, "SELL BTC_USD")
	assert.Contains(t, out, "0.5 BTC")
	assert.Contains(t, out, "35000 USD")
	assert.Contains(t, out, "1000 -> 1010")
}
