package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/pairbot/pairbot/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}).
			Bold(true).
			Width(9)
)

// Renderer adapts RenderSummary for injection into the engine loop.
type Renderer struct{}

func (Renderer) RenderSummary(summary domain.DecisionSummary) string {
	return RenderSummary(summary)
}

// RenderSummary lays out one cycle's decision summary: balances, latest
// public and account prices, open orders per side, market status, and both
// side decisions with their portfolio projections.
func RenderSummary(s domain.DecisionSummary) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s", s.Pair, s.Time.Format("2006-01-02 15:04:05"))))
	b.WriteString("\n")

	b.WriteString(row("BALANCE", fmt.Sprintf("%s %s (in orders %s)   %s %s (in orders %s)",
		s.ExchangeBalance.Currency, s.ExchangeBalance.Available, s.ExchangeBalance.InOrders,
		s.TargetBalance.Currency, s.TargetBalance.Available, s.TargetBalance.InOrders)))
	b.WriteString(row("PUBLIC", fmt.Sprintf("last buy %s   last sell %s",
		priceCell(s.LastPublicBuy), priceCell(s.LastPublicSell))))
	b.WriteString(row("ACCOUNT", fmt.Sprintf("last buy %s   last sell %s",
		priceCell(s.LastAccountBuy), priceCell(s.LastAccountSell))))
	b.WriteString(row("ORDERS", fmt.Sprintf("buy next %s last %s   sell next %s last %s",
		orderCell(s.NextBuyOrder), orderCell(s.LastBuyOrder),
		orderCell(s.NextSellOrder), orderCell(s.LastSellOrder))))

	market := "bear"
	if s.Bull {
		market = "bull"
	}
	continuable := "not continuable"
	if s.TrendContinuable {
		continuable = "continuable"
	}
	b.WriteString(row("MARKET", fmt.Sprintf("%s, %s   stop line %s", market, continuable, s.StopLine)))

	b.WriteString(row("BUY", buyStyle.Render(sideCell(s.Buy, s.Pair))))
	b.WriteString(row("SELL", sellStyle.Render(sideCell(s.Sell, s.Pair))))
	return b.String()
}

func row(label, value string) string {
	return labelStyle.Render(label) + " " + value + "\n"
}

func sideCell(d domain.SideDecision, pair domain.Pair) string {
	return fmt.Sprintf("%s %s @ %s %s   value %s -> %s   %s",
		d.Amount, pair.Base, d.Price, pair.Quote,
		d.CurrentValue, d.ProjectedValue, d.Outcome)
}

func priceCell(price decimal.Decimal) string {
	if !price.IsPositive() {
		return "-"
	}
	return price.String()
}

func orderCell(order *domain.OpenOrder) string {
	if order == nil {
		return "-"
	}
	return fmt.Sprintf("%s@%s", order.Amount, order.Price)
}
