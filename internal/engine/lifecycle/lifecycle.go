// Package lifecycle drives each sized proposal through its terminal outcome:
// skip, hold, execute, or fail. It also evaluates stale resting orders for
// cancellation under a per-side cooldown.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pairbot/pairbot/internal/domain"
	"github.com/pairbot/pairbot/internal/engine/marketdata"
	"github.com/pairbot/pairbot/internal/engine/trend"
)

// OrderExecutor places and cancels orders on the exchange.
type OrderExecutor interface {
	PlaceOrder(ctx context.Context, side domain.Side, amount, price decimal.Decimal) (domain.OpenOrder, error)
	CancelOrder(ctx context.Context, id string) (bool, error)
}

// Notifier delivers fire-and-forget event messages.
type Notifier interface {
	Notify(text string)
}

// Confirmer asks the operator whether a proposal should go out. It is only
// consulted when auto-execution is off; the implementation owns any
// re-prompting.
type Confirmer interface {
	Confirm(ctx context.Context, decision domain.SideDecision) (bool, error)
}

// Config carries the strategy parameters the lifecycle depends on.
type Config struct {
	StopLine     decimal.Decimal
	Sensitivity  decimal.Decimal
	AutoExecute  bool
	BuyCooldown  time.Duration // account purchase lookback window
	SellCooldown time.Duration // account sale lookback window
}

// Cycle is the snapshot a single decision cycle operates on. Summary's Buy
// and Sell decisions arrive priced and sized; ProcessCycle assigns their
// outcomes in place.
type Cycle struct {
	Summary    *domain.DecisionSummary
	Trend      trend.Assessment
	Stats      marketdata.Stats
	Book       domain.Orderbook
	OpenOrders []domain.OpenOrder
	Balance    domain.AccountBalance
	Now        time.Time
}

// Report is what a processed cycle did to the outside world.
type Report struct {
	Crossed       bool
	PlacedBuy     *domain.OpenOrder
	PlacedSell    *domain.OpenOrder
	Cancellations []domain.CancellationEvent
	Requests      int // exchange API calls made
}

// Manager owns the per-side cancellation timestamps across cycles. One
// manager serves one (pair, account) engine and is driven by its goroutine
// only.
type Manager struct {
	cfg       Config
	executor  OrderExecutor
	notifier  Notifier
	confirmer Confirmer
	logger    *zap.Logger

	lastBuyCancel  time.Time
	lastSellCancel time.Time
}

func NewManager(cfg Config, executor OrderExecutor, notifier Notifier, confirmer Confirmer, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		executor:  executor,
		notifier:  notifier,
		confirmer: confirmer,
		logger:    logger,
	}
}

// ProcessCycle resolves both sides of the cycle and runs the cancellation
// sub-process. Execution failures are absorbed into the side's outcome, never
// returned.
func (m *Manager) ProcessCycle(ctx context.Context, c *Cycle) Report {
	var report Report

	pair := c.Summary.Pair
	buy := &c.Summary.Buy
	sell := &c.Summary.Sell

	if buy.Price.GreaterThan(sell.Price) {
		report.Crossed = true
		buy.Outcome = domain.OutcomeSkippedPriceCrossed
		sell.Outcome = domain.OutcomeSkippedPriceCrossed
		m.notifier.Notify(fmt.Sprintf(
			":warning: Buying higher than selling - BUY: %s / SELL: %s\n"+
				"Skipped order amount: %s %s (%s %s)",
			buy.Price, sell.Price,
			buy.Amount, pair.Base, buy.Amount.Mul(buy.Price).RoundBank(2), pair.Quote))
	} else {
		if proceed := m.resolve(buy, c.Trend); proceed {
			report.PlacedBuy = m.execute(ctx, c, buy, &report)
		}
		if proceed := m.resolve(sell, c.Trend); proceed {
			report.PlacedSell = m.execute(ctx, c, sell, &report)
		}
	}

	m.evaluateCancellations(ctx, c, &report)
	return report
}

// resolve walks the side through the skip and hold gates. True means the
// proposal survived every gate and should be executed.
func (m *Manager) resolve(d *domain.SideDecision, t trend.Assessment) bool {
	switch {
	case !d.Available && d.ReserveBound:
		d.Outcome = domain.OutcomeSkippedReserveLimited
	case !d.Available:
		d.Outcome = domain.OutcomeSkippedLowFunds
	case d.Depreciating():
		d.Outcome = domain.OutcomeSkippedDepreciating
	case d.ProjectedValue.LessThan(m.cfg.StopLine):
		d.Outcome = domain.OutcomeSkippedStopLine
	case m.trendHolds(d.Side, t):
		d.Outcome = domain.OutcomeHeld
	default:
		return true
	}
	return false
}

// trendHolds reports whether the trend says to wait this side out: buys wait
// while prices keep falling or a bull run has stalled, sells wait while
// prices keep rising or a stalled bear market offers nothing better.
func (m *Manager) trendHolds(side domain.Side, t trend.Assessment) bool {
	if side == domain.SideBuy {
		return t.BearContinuable || (t.IsBull && !t.BullContinuable)
	}
	return t.BullContinuable || (!t.IsBull && t.BearContinuable)
}

func (m *Manager) execute(ctx context.Context, c *Cycle, d *domain.SideDecision, report *Report) *domain.OpenOrder {
	if !m.cfg.AutoExecute {
		confirmed, err := m.confirmer.Confirm(ctx, *d)
		if err != nil {
			m.logger.Warn("confirmation aborted", zap.String("side", d.Side.String()), zap.Error(err))
			d.Outcome = domain.OutcomeRejected
			return nil
		}
		if !confirmed {
			d.Outcome = domain.OutcomeRejected
			return nil
		}
	}

	report.Requests++
	order, err := m.executor.PlaceOrder(ctx, d.Side, d.Amount, d.Price)
	if err != nil {
		m.logger.Error("order placement failed",
			zap.String("side", d.Side.String()),
			zap.String("amount", d.Amount.String()),
			zap.String("price", d.Price.String()),
			zap.Error(err))
		d.Outcome = domain.OutcomeFailed
		return nil
	}

	d.Outcome = domain.OutcomeExecuted
	m.notifyExecution(c, *d, order)
	return &order
}

func (m *Manager) notifyExecution(c *Cycle, d domain.SideDecision, order domain.OpenOrder) {
	pair := c.Summary.Pair
	emoji := ":smile: *[BUY]*"
	if d.Side == domain.SideSell {
		emoji = ":moneybag: *[SELL]*"
	}
	m.notifier.Notify(fmt.Sprintf(
		"%s Order %s - %s\n"+
			"*Executed:* %s %s\n"+
			"*Price:* %s %s\n"+
			"*Cost:* %s %s\n"+
			"*Current value:* %s %s\n"+
			"*Target value:* %s %s",
		emoji, order.ID, order.Timestamp.Format(time.RFC3339),
		order.Amount, pair.Base,
		order.Price, pair.Quote,
		order.Amount.Mul(order.Price).RoundBank(2), pair.Quote,
		d.CurrentValue, pair.Quote,
		d.ProjectedValue, pair.Quote))
}

// evaluateCancellations considers dropping the furthest resting order on each
// side. It only acts when both book sides carry volume, no fill of that side
// landed within the lookback window, book pressure runs against the order,
// the order price diverges from every reference price, and the stop-line
// survives the cancellation.
func (m *Manager) evaluateCancellations(ctx context.Context, c *Cycle, report *Report) {
	if !c.Book.BidTotal.IsPositive() || !c.Book.AskTotal.IsPositive() {
		return
	}

	s := c.Stats
	exchangeTotal := c.Balance.Item(c.Summary.Pair.Base).Total()
	targetTotal := c.Balance.Item(c.Summary.Pair.Quote).Total()

	lastBuy := domain.LastBuyOrder(c.OpenOrders)
	if lastBuy != nil && !s.AccountLastPurchase.IsPositive() &&
		c.Book.BidTotal.LessThanOrEqual(c.Book.AskTotal.Mul(s.LastSale)) &&
		m.divergesAll(lastBuy.Price, s.AvgPurchase, s.BestPurchase, s.LowPurchase, s.LastPurchase) {

		forward := domain.WeightedAveragePrice(c.Book.BidsFrom(lastBuy.Price))
		if forward.IsPositive() && m.diverges(lastBuy.Price, forward) {
			current := exchangeTotal.Mul(s.LastSale).Add(targetTotal)
			projected := current.
				Sub(lastBuy.Price.Mul(lastBuy.Amount)).
				Add(s.LastSale.Mul(lastBuy.Amount))
			if projected.GreaterThan(m.cfg.StopLine) {
				m.cancel(ctx, c, *lastBuy, report)
			}
		}
	}

	lastSell := domain.LastSellOrder(c.OpenOrders)
	if lastSell != nil && !s.AccountLastSale.IsPositive() &&
		c.Book.BidTotal.GreaterThanOrEqual(
			c.Book.AskTotal.Mul(s.LastPurchase).Mul(decimal.NewFromInt(1).Sub(c.Trend.ChangeRatio))) &&
		m.divergesAll(lastSell.Price, s.AvgPurchase, s.BestPurchase, s.LowPurchase, s.LastPurchase) {

		forward := domain.WeightedAveragePrice(c.Book.AsksFrom(lastSell.Price))
		if forward.IsPositive() && m.diverges(lastSell.Price, forward) {
			current := exchangeTotal.Mul(s.LastPurchase).Add(targetTotal)
			projected := current.
				Sub(lastSell.Price.Mul(lastSell.Amount)).
				Add(s.LastPurchase.Mul(lastSell.Amount))
			if projected.GreaterThan(m.cfg.StopLine) {
				m.cancel(ctx, c, *lastSell, report)
			}
		}
	}
}

// cancel enforces the per-side cooldown, asks the exchange, and on success
// records the event. One active cancellation per lookback window per side.
func (m *Manager) cancel(ctx context.Context, c *Cycle, order domain.OpenOrder, report *Report) {
	lastCancel, cooldown := m.lastBuyCancel, m.cfg.BuyCooldown
	if order.Side == domain.SideSell {
		lastCancel, cooldown = m.lastSellCancel, m.cfg.SellCooldown
	}
	if !lastCancel.IsZero() && lastCancel.Add(cooldown).After(c.Now) {
		return
	}

	report.Requests++
	ok, err := m.executor.CancelOrder(ctx, order.ID)
	if err != nil {
		m.logger.Error("order cancellation failed", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	if !ok {
		return
	}

	if order.Side == domain.SideBuy {
		m.lastBuyCancel = c.Now
	} else {
		m.lastSellCancel = c.Now
	}

	s := c.Stats
	pair := c.Summary.Pair
	exchangeTotal := c.Balance.Item(pair.Base).Total()
	targetTotal := c.Balance.Item(pair.Quote).Total()
	current := exchangeTotal.Mul(s.LastSale).Add(targetTotal)

	var projected, marketPrice decimal.Decimal
	if order.Side == domain.SideBuy {
		projected = exchangeTotal.Add(order.Amount).Mul(order.Price).
			Add(targetTotal).Sub(order.Amount.Mul(order.Price))
		marketPrice = s.LastPurchase
	} else {
		projected = exchangeTotal.Sub(order.Amount).Mul(order.Price).
			Add(targetTotal).Add(order.Amount.Mul(order.Price))
		marketPrice = s.LastSale
	}

	event := domain.CancellationEvent{
		Order:          order,
		Time:           c.Now,
		CurrentValue:   current,
		ProjectedValue: projected,
	}
	report.Cancellations = append(report.Cancellations, event)

	m.notifier.Notify(fmt.Sprintf(
		":cry: *[CANCELLATION]* Order %s - %s\n"+
			"*Amount:* %s %s\n"+
			"*Price:* %s %s\n"+
			"*Current price:* %s %s\n"+
			"*Current value:* %s %s\n"+
			"*Target value:* %s %s",
		order.ID, order.Timestamp.Format(time.RFC3339),
		order.Amount, pair.Base,
		order.Price, pair.Quote,
		marketPrice, pair.Quote,
		current, pair.Quote,
		projected, pair.Quote))
}

func (m *Manager) divergesAll(price decimal.Decimal, refs ...decimal.Decimal) bool {
	for _, ref := range refs {
		if !m.diverges(price, ref) {
			return false
		}
	}
	return true
}

// diverges reports whether two prices differ by more than the sensitivity
// ratio relative to the smaller of them. An unavailable reference never
// counts as divergence.
func (m *Manager) diverges(a, b decimal.Decimal) bool {
	denom := decimal.Min(a, b)
	if !denom.IsPositive() {
		return false
	}
	return a.Sub(b).Abs().Div(denom).GreaterThan(m.cfg.Sensitivity)
}
