// Package engine runs the decision loop: one sequential cycle at a time,
// fed by a fixed-order snapshot fetch, scheduled by a single queue that also
// owns request-allowance accounting and fee refreshes.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pairbot/pairbot/internal/domain"
	"github.com/pairbot/pairbot/internal/engine/lifecycle"
	"github.com/pairbot/pairbot/internal/engine/marketdata"
	"github.com/pairbot/pairbot/internal/engine/pricing"
	"github.com/pairbot/pairbot/internal/engine/ratelimit"
	"github.com/pairbot/pairbot/internal/engine/sizing"
	"github.com/pairbot/pairbot/internal/engine/trend"
	"github.com/pairbot/pairbot/internal/exchange"
)

const feeRefreshInterval = 3 * time.Minute

// Config carries every strategy parameter the engine needs. It is fixed for
// the engine's lifetime.
type Config struct {
	Pair domain.Pair

	PublicPurchaseWindow  time.Duration
	PublicSaleWindow      time.Duration
	AccountPurchaseWindow time.Duration
	AccountSaleWindow     time.Duration

	Sensitivity decimal.Decimal
	StopLine    decimal.Decimal
	AutoExecute bool

	Sizing sizing.Config
}

// Journal persists decisions and cancellations for replay.
type Journal interface {
	SaveDecision(summary domain.DecisionSummary) error
	SaveCancellation(event domain.CancellationEvent) error
}

// SummaryRenderer formats one cycle's decision summary for the console.
type SummaryRenderer interface {
	RenderSummary(summary domain.DecisionSummary) string
}

// Engine drives the trading loop for one pair on one account. All mutable
// state is owned by the Run goroutine; nothing here is safe for concurrent
// use.
type Engine struct {
	cfg       Config
	exchange  exchange.Exchange
	limiter   *ratelimit.Limiter
	proposer  *pricing.Proposer
	sizer     *sizing.Sizer
	lifecycle *lifecycle.Manager
	journal   Journal
	notifier  lifecycle.Notifier
	renderer  SummaryRenderer
	logger    *zap.Logger

	fees           domain.FeeSchedule
	exchangeLimit  *domain.CurrencyLimit
	targetLimit    *domain.CurrencyLimit
	caps           sizing.Caps
	batchRemaining int
}

func New(
	cfg Config,
	exch exchange.Exchange,
	journal Journal,
	notifier lifecycle.Notifier,
	confirmer lifecycle.Confirmer,
	renderer SummaryRenderer,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		exchange: exch,
		limiter:  ratelimit.New(),
		proposer: pricing.NewProposer(cfg.Sensitivity),
		sizer:    sizing.NewSizer(cfg.Sizing),
		lifecycle: lifecycle.NewManager(lifecycle.Config{
			StopLine:     cfg.StopLine,
			Sensitivity:  cfg.Sensitivity,
			AutoExecute:  cfg.AutoExecute,
			BuyCooldown:  cfg.AccountPurchaseWindow,
			SellCooldown: cfg.AccountSaleWindow,
		}, exch, notifier, confirmer, logger),
		journal:  journal,
		notifier: notifier,
		renderer: renderer,
		logger:   logger,
	}
}

// Prepare fetches currency limits, the fee schedule, and the starting
// portfolio, then derives the initial order caps. Any failure here is fatal:
// the engine must not start trading on a partial view of its constraints.
func (e *Engine) Prepare(ctx context.Context) error {
	limits, err := e.fetchCurrencyLimits(ctx)
	if err != nil {
		return errors.Wrap(err, "prepare: currency limits")
	}
	e.exchangeLimit = domain.FindCurrencyLimit(limits, e.cfg.Pair.Base)
	e.targetLimit = domain.FindCurrencyLimit(limits, e.cfg.Pair.Quote)

	e.limiter.Consume(1)
	fees, err := e.exchange.FeeSchedule(ctx)
	if err != nil {
		return errors.Wrap(err, "prepare: fee schedule")
	}
	e.fees = fees

	e.limiter.Consume(1)
	balance, err := e.exchange.AccountBalance(ctx)
	if err != nil {
		return errors.Wrap(err, "prepare: account balance")
	}

	e.limiter.Consume(1)
	history, err := e.exchange.PublicTradeHistory(ctx)
	if err != nil {
		return errors.Wrap(err, "prepare: public trade history")
	}

	now := time.Now()
	lastPurchase := marketdata.LastPrice(
		marketdata.FilterWindow(history, domain.SideBuy, now.Add(-e.cfg.PublicPurchaseWindow)))
	lastSale := marketdata.LastPrice(
		marketdata.FilterWindow(history, domain.SideSell, now.Add(-e.cfg.PublicSaleWindow)))

	e.caps = sizing.ComputeCaps(e.cfg.Sizing, balance, e.cfg.Pair, lastPurchase, lastSale,
		e.exchangeLimit, e.targetLimit)
	e.batchRemaining = e.caps.BatchCycles

	e.logger.Info("engine prepared",
		zap.String("pair", e.cfg.Pair.String()),
		zap.String("buy_cap", e.caps.BuyTarget.String()),
		zap.String("sell_cap", e.caps.SellExchange.String()),
		zap.Int("batch_cycles", e.caps.BatchCycles))
	return nil
}

// Run blocks until ctx is cancelled. A cycle in flight is finished before
// the loop stops.
func (e *Engine) Run(ctx context.Context) error {
	e.notifier.Notify(fmt.Sprintf(":smile: Trading engine started for %s", e.cfg.Pair))
	defer e.notifier.Notify(fmt.Sprintf(":wave: Trading engine stopped for %s", e.cfg.Pair))

	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	feeTick := time.NewTicker(feeRefreshInterval)
	defer feeTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-feeTick.C:
			e.refreshFees(ctx)
		case <-tick.C:
			e.limiter.Tick()
			now := time.Now()
			if e.limiter.Delay(now) > 0 {
				continue
			}
			if err := e.runCycle(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				e.logger.Warn("cycle aborted", zap.Error(err))
				e.limiter.Backoff(time.Now())
				continue
			}
			e.limiter.Throttle(time.Now())
		}
	}
}

func (e *Engine) refreshFees(ctx context.Context) {
	e.limiter.Consume(1)
	fees, err := e.exchange.FeeSchedule(ctx)
	if err != nil {
		e.logger.Warn("fee refresh failed", zap.Error(err))
		e.limiter.Backoff(time.Now())
		return
	}
	e.fees = fees
}

// runCycle performs one full decision cycle: snapshot fetch in fixed order,
// market analysis, pricing, sizing, then lifecycle resolution. A fetch error
// aborts the cycle before any decision is made.
func (e *Engine) runCycle(ctx context.Context) error {
	if e.batchRemaining > 0 {
		defer func() { e.batchRemaining-- }()
	}

	snap, err := e.fetchSnapshot(ctx)
	if err != nil {
		return err
	}

	now := snap.now
	publicPurchases := marketdata.FilterWindow(snap.publicHistory, domain.SideBuy,
		now.Add(-e.cfg.PublicPurchaseWindow))
	publicSales := marketdata.FilterWindow(snap.publicHistory, domain.SideSell,
		now.Add(-e.cfg.PublicSaleWindow))
	accountPurchases := marketdata.FilterWindow(snap.accountHistory, domain.SideBuy,
		now.Add(-e.cfg.AccountPurchaseWindow))
	accountSales := marketdata.FilterWindow(snap.accountHistory, domain.SideSell,
		now.Add(-e.cfg.AccountSaleWindow))

	stats := marketdata.Compute(publicPurchases, publicSales, accountPurchases, accountSales)
	assessment := trend.Classify(stats, snap.book)

	priceSnap := pricing.Snapshot{
		Pair:    e.cfg.Pair,
		Stats:   stats,
		Trend:   assessment,
		Book:    snap.book,
		Balance: snap.balance,
		Fees:    e.fees,
	}
	sellPrice := e.proposer.SellPrice(priceSnap)
	buyPrice := e.proposer.BuyPrice(priceSnap)

	sized := e.sizer.Size(sizing.Inputs{
		Pair:          e.cfg.Pair,
		Balance:       snap.balance,
		Fees:          e.fees,
		Stats:         stats,
		BuyPrice:      pricing.BuyPriceInPrinciple(buyPrice, e.fees),
		SellPrice:     pricing.SellPriceInPrinciple(sellPrice, e.fees),
		ExchangeLimit: e.exchangeLimit,
		TargetLimit:   e.targetLimit,
		Caps:          e.caps,
		InitialCycle:  e.batchRemaining > 0,
	})

	summary := &domain.DecisionSummary{
		Pair:             e.cfg.Pair,
		Time:             now,
		ExchangeBalance:  snap.balance.Item(e.cfg.Pair.Base),
		TargetBalance:    snap.balance.Item(e.cfg.Pair.Quote),
		LastPublicBuy:    stats.LastPurchase,
		LastPublicSell:   stats.LastSale,
		LastAccountBuy:   stats.AccountLastPurchase,
		LastAccountSell:  stats.AccountLastSale,
		NextBuyOrder:     domain.NextBuyOrder(snap.openOrders),
		NextSellOrder:    domain.NextSellOrder(snap.openOrders),
		LastBuyOrder:     domain.LastBuyOrder(snap.openOrders),
		LastSellOrder:    domain.LastSellOrder(snap.openOrders),
		Bull:             assessment.IsBull,
		TrendContinuable: assessment.Continuable(),
		StopLine:         e.cfg.StopLine,
		Buy: domain.SideDecision{
			Side:           domain.SideBuy,
			Price:          buyPrice,
			Amount:         sized.Buy.Amount,
			Available:      sized.Buy.Available,
			ReserveBound:   sized.Buy.ReserveBound,
			CurrentValue:   sized.Buy.CurrentValue,
			ProjectedValue: sized.Buy.ProjectedValue,
		},
		Sell: domain.SideDecision{
			Side:           domain.SideSell,
			Price:          sellPrice,
			Amount:         sized.Sell.Amount,
			Available:      sized.Sell.Available,
			ReserveBound:   sized.Sell.ReserveBound,
			CurrentValue:   sized.Sell.CurrentValue,
			ProjectedValue: sized.Sell.ProjectedValue,
		},
	}

	report := e.lifecycle.ProcessCycle(ctx, &lifecycle.Cycle{
		Summary:    summary,
		Trend:      assessment,
		Stats:      stats,
		Book:       snap.book,
		OpenOrders: snap.openOrders,
		Balance:    snap.balance,
		Now:        now,
	})
	e.limiter.Consume(report.Requests)

	if err := e.journal.SaveDecision(*summary); err != nil {
		e.logger.Warn("journal decision write failed", zap.Error(err))
	}
	for _, event := range report.Cancellations {
		if err := e.journal.SaveCancellation(event); err != nil {
			e.logger.Warn("journal cancellation write failed", zap.Error(err))
		}
	}

	if e.renderer != nil {
		fmt.Println(e.renderer.RenderSummary(*summary))
	}
	e.logCycle(summary, report)
	return nil
}

// snapshot is one cycle's consistent view of the market and the account.
type snapshot struct {
	now            time.Time
	publicHistory  []domain.TradeRecord
	accountHistory []domain.TradeRecord
	book           domain.Orderbook
	balance        domain.AccountBalance
	openOrders     []domain.OpenOrder
}

// fetchSnapshot pulls cycle data in a fixed order: public history, orderbook,
// account history, fees, balances, open orders. Decisions in the cycle only
// ever observe this one snapshot.
func (e *Engine) fetchSnapshot(ctx context.Context) (snapshot, error) {
	var snap snapshot
	snap.now = time.Now()

	e.limiter.Consume(1)
	publicHistory, err := e.exchange.PublicTradeHistory(ctx)
	if err != nil {
		return snapshot{}, errors.Wrap(err, "fetch public trade history")
	}
	snap.publicHistory = publicHistory

	e.limiter.Consume(1)
	book, err := e.exchange.Orderbook(ctx)
	if err != nil {
		return snapshot{}, errors.Wrap(err, "fetch orderbook")
	}
	snap.book = book

	window := e.cfg.AccountPurchaseWindow
	if e.cfg.AccountSaleWindow > window {
		window = e.cfg.AccountSaleWindow
	}
	e.limiter.Consume(1)
	accountHistory, err := e.exchange.AccountTradeHistory(ctx,
		snap.now.Add(-window), snap.now.Add(window))
	if err != nil {
		return snapshot{}, errors.Wrap(err, "fetch account trade history")
	}
	snap.accountHistory = accountHistory

	e.limiter.Consume(1)
	fees, err := e.exchange.FeeSchedule(ctx)
	if err != nil {
		return snapshot{}, errors.Wrap(err, "fetch fee schedule")
	}
	e.fees = fees

	e.limiter.Consume(1)
	balance, err := e.exchange.AccountBalance(ctx)
	if err != nil {
		return snapshot{}, errors.Wrap(err, "fetch account balance")
	}
	snap.balance = balance

	e.limiter.Consume(1)
	openOrders, err := e.exchange.OpenOrders(ctx)
	if err != nil {
		return snapshot{}, errors.Wrap(err, "fetch open orders")
	}
	snap.openOrders = openOrders

	return snap, nil
}

func (e *Engine) fetchCurrencyLimits(ctx context.Context) ([]domain.CurrencyLimit, error) {
	e.limiter.Consume(1)
	return e.exchange.CurrencyLimits(ctx)
}

func (e *Engine) logCycle(summary *domain.DecisionSummary, report lifecycle.Report) {
	e.logger.Info("cycle decided",
		zap.Time("time", summary.Time),
		zap.Bool("bull", summary.Bull),
		zap.Bool("continuable", summary.TrendContinuable),
		zap.String("buy_price", summary.Buy.Price.String()),
		zap.String("buy_amount", summary.Buy.Amount.String()),
		zap.String("buy_outcome", summary.Buy.Outcome.String()),
		zap.String("sell_price", summary.Sell.Price.String()),
		zap.String("sell_amount", summary.Sell.Amount.String()),
		zap.String("sell_outcome", summary.Sell.Outcome.String()),
		zap.Int("cancellations", len(report.Cancellations)),
		zap.Int("requests", report.Requests),
		zap.Int("batch_remaining", e.batchRemaining))
}
