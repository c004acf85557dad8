// Package sizing turns proposed prices into order amounts, honoring exchange
// lot limits, fee adjustments, the reserve ratio, and the larger
// capital-deployment caps used during the initial batch cycles.
package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/pairbot/pairbot/internal/domain"
	"github.com/pairbot/pairbot/internal/engine/marketdata"
)

var one = decimal.NewFromInt(1)

// PortfolioValueInExchangeCurrency values the given holdings in exchange
// (base) currency terms, truncated to the order amount precision. A
// non-positive price yields zero.
func PortfolioValueInExchangeCurrency(exchangeValue, targetValue, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return domain.TruncateAmount(exchangeValue.Add(targetValue.Div(price)))
}

// PortfolioValueInTargetCurrency values the given holdings in target (quote)
// currency terms, rounded to cents.
func PortfolioValueInTargetCurrency(exchangeValue, targetValue, price decimal.Decimal) decimal.Decimal {
	return exchangeValue.Mul(price).Add(targetValue).RoundBank(2)
}

// Config carries the strategy parameters sizing depends on.
type Config struct {
	OrderCapPctOnInit  decimal.Decimal
	OrderCapPctSteady  decimal.Decimal
	TargetReservePct   decimal.Decimal
	ExchangeReservePct decimal.Decimal
}

// Caps are the one-off buying/selling bounds applied while initial batch
// cycles remain, derived at engine start from account totals and exchange
// limits.
type Caps struct {
	BuyTarget    decimal.Decimal // target-currency value cap for a single buy
	SellExchange decimal.Decimal // exchange-currency amount cap for a single sell
	BatchCycles  int
}

// ComputeCaps derives the initial caps from the starting balances. The caps
// are clamped into the exchange's per-pair lot limits converted through the
// last public prices, and fall back to the full respective balance when the
// arithmetic degenerates.
func ComputeCaps(
	cfg Config,
	balance domain.AccountBalance,
	pair domain.Pair,
	lastPurchase, lastSale decimal.Decimal,
	exchangeLimit, targetLimit *domain.CurrencyLimit,
) Caps {
	exchangeTotal := balance.Item(pair.Base).Total()
	targetTotal := balance.Item(pair.Quote).Total()

	buyCap := targetTotal.Add(exchangeTotal.Mul(lastPurchase)).Mul(cfg.OrderCapPctOnInit)
	sellCap := exchangeTotal.Add(safeDiv(targetTotal, lastSale)).Mul(cfg.OrderCapPctOnInit)

	if exchangeLimit != nil {
		if max := exchangeLimit.MaxAmount.Mul(lastPurchase); exchangeLimit.MaxAmount.IsPositive() && max.LessThan(buyCap) {
			buyCap = max
		}
		if min := exchangeLimit.MinAmount.Mul(lastPurchase); min.GreaterThanOrEqual(buyCap) {
			buyCap = min
		}
	}
	if targetLimit != nil {
		if max := safeDiv(targetLimit.MaxAmount, lastSale); targetLimit.MaxAmount.IsPositive() && max.LessThan(sellCap) {
			sellCap = max
		}
		if min := safeDiv(targetLimit.MinAmount, lastSale); min.GreaterThanOrEqual(sellCap) {
			sellCap = min
		}
	}

	if !buyCap.IsPositive() {
		buyCap = targetTotal
	}
	if !sellCap.IsPositive() {
		sellCap = exchangeTotal
	}

	cycles := decimal.Zero
	if buyCap.IsPositive() {
		cycles = targetTotal.Div(buyCap)
	}
	if sellCap.IsPositive() {
		if c := exchangeTotal.Div(sellCap); c.GreaterThan(cycles) {
			cycles = c
		}
	}

	return Caps{
		BuyTarget:    buyCap,
		SellExchange: sellCap,
		BatchCycles:  int(cycles.IntPart()),
	}
}

// Inputs is the per-cycle sizing snapshot.
type Inputs struct {
	Pair          domain.Pair
	Balance       domain.AccountBalance
	Fees          domain.FeeSchedule
	Stats         marketdata.Stats
	BuyPrice      decimal.Decimal // buy price in principle
	SellPrice     decimal.Decimal // sell price in principle
	ExchangeLimit *domain.CurrencyLimit
	TargetLimit   *domain.CurrencyLimit
	Caps          Caps
	InitialCycle  bool // initial batch cycles still remaining
}

// SideSizing is the sized outcome for one order side.
type SideSizing struct {
	Amount         decimal.Decimal
	Available      bool
	ReserveBound   bool
	CurrentValue   decimal.Decimal
	ProjectedValue decimal.Decimal
}

// Result pairs the sized buy and sell sides of one cycle.
type Result struct {
	Buy  SideSizing
	Sell SideSizing
}

// Sizer computes order amounts under a fixed strategy configuration.
type Sizer struct {
	cfg Config
}

func NewSizer(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// MaxBuyableAmount is the largest fee-adjusted buy the target-currency
// reserve permits at the given price.
func (s *Sizer) MaxBuyableAmount(in Inputs) decimal.Decimal {
	target := in.Balance.Item(in.Pair.Quote)
	amount := safeDiv(target.Available.Mul(one.Sub(s.cfg.TargetReservePct)), in.BuyPrice).
		Mul(one.Sub(in.Fees.BuyPercent)).Sub(in.Fees.BuyFixed)
	return domain.TruncateAmount(amount)
}

// MaxSellableAmount is the largest fee-adjusted sell the exchange-currency
// reserve permits.
func (s *Sizer) MaxSellableAmount(in Inputs) decimal.Decimal {
	exchange := in.Balance.Item(in.Pair.Base)
	return exchange.Available.Mul(one.Sub(s.cfg.ExchangeReservePct)).
		Mul(one.Sub(in.Fees.SellPercent)).Sub(in.Fees.SellFixed)
}

// Size computes both order amounts for the cycle.
func (s *Sizer) Size(in Inputs) Result {
	exchange := in.Balance.Item(in.Pair.Base)
	target := in.Balance.Item(in.Pair.Quote)

	var buyAmount, sellAmount decimal.Decimal
	if in.InitialCycle {
		exchangeValue := exchange.Available.Add(safeDiv(target.InOrders, in.Stats.LastPurchase))
		targetValue := target.Available.Add(exchange.InOrders.Mul(in.Stats.LastSale))

		buyAmount = s.cfg.OrderCapPctOnInit.
			Mul(PortfolioValueInExchangeCurrency(exchangeValue, targetValue, in.BuyPrice)).
			Mul(one.Sub(in.Fees.BuyPercent)).Sub(in.Fees.BuyFixed)
		sellAmount = s.cfg.OrderCapPctOnInit.
			Mul(PortfolioValueInExchangeCurrency(exchangeValue, targetValue, in.SellPrice)).
			Mul(one.Sub(in.Fees.SellPercent)).Sub(in.Fees.SellFixed)

		if buyCapAmount := safeDiv(in.Caps.BuyTarget, in.Stats.LastPurchase); buyAmount.GreaterThan(buyCapAmount) {
			buyAmount = buyCapAmount
		}
		if sellAmount.GreaterThan(in.Caps.SellExchange) {
			sellAmount = in.Caps.SellExchange
		}
	} else {
		buyAmount = s.cfg.OrderCapPctSteady.
			Mul(PortfolioValueInExchangeCurrency(exchange.Available, target.Available, in.BuyPrice)).
			Mul(one.Sub(in.Fees.BuyPercent)).Sub(in.Fees.BuyFixed)
		sellAmount = s.cfg.OrderCapPctSteady.
			Mul(PortfolioValueInExchangeCurrency(exchange.Available, target.Available, in.SellPrice)).
			Mul(one.Sub(in.Fees.SellPercent)).Sub(in.Fees.SellFixed)
	}

	minAmount := limitMin(in.ExchangeLimit)
	minNotional := limitMin(in.TargetLimit)
	if minAmount.GreaterThan(buyAmount) {
		buyAmount = minAmount
	}
	if minAmount.GreaterThan(sellAmount) {
		sellAmount = minAmount
	}

	// insufficient balance caps the amount to what the balance, less fees,
	// can actually cover
	buyAvailable := buyAmount.IsPositive() && buyAmount.Mul(in.BuyPrice).LessThanOrEqual(target.Available)
	sellAvailable := sellAmount.IsPositive() && sellAmount.LessThanOrEqual(exchange.Available)
	if !buyAvailable && target.Available.IsPositive() {
		buyAmount = safeDiv(target.Available, in.Stats.LastPurchase).
			Mul(one.Sub(in.Fees.BuyPercent)).Sub(in.Fees.BuyFixed)
	}
	if !sellAvailable && exchange.Available.IsPositive() {
		sellAmount = exchange.Available.Mul(one.Sub(in.Fees.SellPercent)).Sub(in.Fees.SellFixed)
	}

	buy := SideSizing{
		CurrentValue: PortfolioValueInTargetCurrency(exchange.Total(), target.Total(), in.Stats.LastSale),
		ProjectedValue: exchange.Total().Add(buyAmount).Add(safeDiv(target.Total(), in.BuyPrice)).
			Mul(in.Stats.LastSale).RoundBank(2),
	}
	sell := SideSizing{
		CurrentValue:   PortfolioValueInTargetCurrency(exchange.Total(), target.Total(), in.Stats.LastPurchase),
		ProjectedValue: PortfolioValueInTargetCurrency(exchange.Total(), target.Total(), in.SellPrice),
	}

	if maxBuy := s.MaxBuyableAmount(in); buyAmount.GreaterThan(maxBuy) {
		buyAmount = maxBuy
		buy.ReserveBound = true
	}
	if maxSell := s.MaxSellableAmount(in); sellAmount.GreaterThan(maxSell) {
		sellAmount = maxSell
		sell.ReserveBound = true
	}

	buyAmount = domain.TruncateAmount(buyAmount)
	sellAmount = domain.TruncateAmount(sellAmount)

	buy.Amount = buyAmount
	buy.Available = buyAmount.IsPositive() &&
		buyAmount.Mul(in.BuyPrice).LessThanOrEqual(target.Available) &&
		buyAmount.GreaterThanOrEqual(minAmount) &&
		buyAmount.Mul(in.BuyPrice).GreaterThanOrEqual(minNotional)

	sell.Amount = sellAmount
	sell.Available = sellAmount.IsPositive() &&
		sellAmount.LessThanOrEqual(exchange.Available) &&
		sellAmount.GreaterThanOrEqual(minAmount) &&
		sellAmount.Mul(in.SellPrice).GreaterThanOrEqual(minNotional)

	return Result{Buy: buy, Sell: sell}
}

func limitMin(limit *domain.CurrencyLimit) decimal.Decimal {
	if limit == nil || !limit.MinAmount.IsPositive() {
		return decimal.Zero
	}
	return limit.MinAmount
}

func safeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}
