// Package binance implements the exchange port on top of the Binance spot
// API via go-binance.
package binance

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pairbot/pairbot/internal/domain"
)

const (
	recentTradesLimit = 500
	depthLimit        = 100
)

// Client adapts a Binance spot client to the exchange port for one pair.
type Client struct {
	api    *binance.Client
	pair   domain.Pair
	logger *zap.Logger
}

func New(api *binance.Client, pair domain.Pair, logger *zap.Logger) *Client {
	return &Client{api: api, pair: pair, logger: logger}
}

func (c *Client) PublicTradeHistory(ctx context.Context) ([]domain.TradeRecord, error) {
	trades, err := c.api.NewRecentTradesService().
		Symbol(c.pair.Symbol()).
		Limit(recentTradesLimit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch recent trades")
	}

	records := make([]domain.TradeRecord, 0, len(trades))
	for _, t := range trades {
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "trade %d price", t.ID)
		}
		amount, err := decimal.NewFromString(t.Quantity)
		if err != nil {
			return nil, errors.Wrapf(err, "trade %d quantity", t.ID)
		}
		// a maker buyer means the aggressor sold into the book
		side := domain.SideBuy
		if t.IsBuyerMaker {
			side = domain.SideSell
		}
		records = append(records, domain.TradeRecord{
			ID:        strconv.FormatInt(t.ID, 10),
			Side:      side,
			Amount:    amount,
			Price:     price,
			Timestamp: time.UnixMilli(t.Time).UTC(),
		})
	}
	return records, nil
}

func (c *Client) Orderbook(ctx context.Context) (domain.Orderbook, error) {
	depth, err := c.api.NewDepthService().
		Symbol(c.pair.Symbol()).
		Limit(depthLimit).
		Do(ctx)
	if err != nil {
		return domain.Orderbook{}, errors.Wrap(err, "fetch depth")
	}

	book := domain.Orderbook{Timestamp: time.Now().UTC()}
	// Binance reports no aggregate volumes, so the totals are derived from
	// the visible depth: bid total in quote currency, ask total in base.
	for _, b := range depth.Bids {
		price, qty, err := parseLevel(b.Price, b.Quantity)
		if err != nil {
			return domain.Orderbook{}, errors.Wrap(err, "depth bid")
		}
		book.Bids = append(book.Bids, domain.OrderbookLevel{Price: price, Quantity: qty})
		book.BidTotal = book.BidTotal.Add(price.Mul(qty))
	}
	for _, a := range depth.Asks {
		price, qty, err := parseLevel(a.Price, a.Quantity)
		if err != nil {
			return domain.Orderbook{}, errors.Wrap(err, "depth ask")
		}
		book.Asks = append(book.Asks, domain.OrderbookLevel{Price: price, Quantity: qty})
		book.AskTotal = book.AskTotal.Add(qty)
	}
	return book, nil
}

func (c *Client) AccountTradeHistory(ctx context.Context, from, to time.Time) ([]domain.TradeRecord, error) {
	trades, err := c.api.NewListTradesService().
		Symbol(c.pair.Symbol()).
		StartTime(from.UnixMilli()).
		EndTime(to.UnixMilli()).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch account trades")
	}

	records := make([]domain.TradeRecord, 0, len(trades))
	for _, t := range trades {
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "account trade %d price", t.ID)
		}
		amount, err := decimal.NewFromString(t.Quantity)
		if err != nil {
			return nil, errors.Wrapf(err, "account trade %d quantity", t.ID)
		}
		side := domain.SideSell
		if t.IsBuyer {
			side = domain.SideBuy
		}
		records = append(records, domain.TradeRecord{
			ID:        strconv.FormatInt(t.ID, 10),
			Side:      side,
			Amount:    amount,
			Price:     price,
			Timestamp: time.UnixMilli(t.Time).UTC(),
		})
	}
	return records, nil
}

func (c *Client) FeeSchedule(ctx context.Context) (domain.FeeSchedule, error) {
	fees, err := c.api.NewTradeFeeService().
		Symbol(c.pair.Symbol()).
		Do(ctx)
	if err != nil {
		return domain.FeeSchedule{}, errors.Wrap(err, "fetch trade fees")
	}
	if len(fees) == 0 {
		return domain.FeeSchedule{}, errors.Errorf("no fee entry for %s", c.pair.Symbol())
	}

	// taker commission bounds both sides, limit orders can only do better
	taker, err := decimal.NewFromString(fees[0].TakerCommission)
	if err != nil {
		return domain.FeeSchedule{}, errors.Wrap(err, "parse taker commission")
	}
	return domain.FeeSchedule{BuyPercent: taker, SellPercent: taker}, nil
}

func (c *Client) AccountBalance(ctx context.Context) (domain.AccountBalance, error) {
	account, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch account")
	}

	balance := make(domain.AccountBalance, len(account.Balances))
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s free balance", b.Asset)
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s locked balance", b.Asset)
		}
		balance[b.Asset] = domain.AccountBalanceItem{
			Currency:  b.Asset,
			Available: free,
			InOrders:  locked,
		}
	}
	return balance, nil
}

func (c *Client) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	orders, err := c.api.NewListOpenOrdersService().
		Symbol(c.pair.Symbol()).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch open orders")
	}

	result := make([]domain.OpenOrder, 0, len(orders))
	for _, o := range orders {
		price, err := decimal.NewFromString(o.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "open order %d price", o.OrderID)
		}
		amount, err := decimal.NewFromString(o.OrigQuantity)
		if err != nil {
			return nil, errors.Wrapf(err, "open order %d quantity", o.OrderID)
		}
		side := domain.SideSell
		if o.Side == binance.SideTypeBuy {
			side = domain.SideBuy
		}
		result = append(result, domain.OpenOrder{
			ID:        strconv.FormatInt(o.OrderID, 10),
			Side:      side,
			Amount:    amount,
			Price:     price,
			Timestamp: time.UnixMilli(o.Time).UTC(),
		})
	}
	return result, nil
}

func (c *Client) PlaceOrder(ctx context.Context, side domain.Side, amount, price decimal.Decimal) (domain.OpenOrder, error) {
	binanceSide := binance.SideTypeSell
	if side == domain.SideBuy {
		binanceSide = binance.SideTypeBuy
	}

	resp, err := c.api.NewCreateOrderService().
		Symbol(c.pair.Symbol()).
		Side(binanceSide).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(amount.String()).
		Price(price.String()).
		NewClientOrderID("pairbot-" + uuid.NewString()).
		Do(ctx)
	if err != nil {
		return domain.OpenOrder{}, errors.Wrap(err, "create order")
	}

	placedAmount, err := decimal.NewFromString(resp.OrigQuantity)
	if err != nil {
		placedAmount = amount
	}
	placedPrice, err := decimal.NewFromString(resp.Price)
	if err != nil || placedPrice.IsZero() {
		placedPrice = price
	}
	return domain.OpenOrder{
		ID:        strconv.FormatInt(resp.OrderID, 10),
		Side:      side,
		Amount:    placedAmount,
		Price:     placedPrice,
		Timestamp: time.UnixMilli(resp.TransactTime).UTC(),
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, id string) (bool, error) {
	orderID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return false, errors.Wrapf(err, "parse order id %q", id)
	}

	_, err = c.api.NewCancelOrderService().
		Symbol(c.pair.Symbol()).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		if apiErr, ok := err.(*common.APIError); ok && apiErr.Code == -2011 {
			// order already gone
			c.logger.Debug("cancel on missing order", zap.String("id", id))
			return false, nil
		}
		return false, errors.Wrapf(err, "cancel order %s", id)
	}
	return true, nil
}

func (c *Client) CurrencyLimits(ctx context.Context) ([]domain.CurrencyLimit, error) {
	info, err := c.api.NewExchangeInfoService().
		Symbol(c.pair.Symbol()).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch exchange info")
	}

	for _, s := range info.Symbols {
		if s.Symbol != c.pair.Symbol() {
			continue
		}

		limits := make([]domain.CurrencyLimit, 0, 2)
		if lot := s.LotSizeFilter(); lot != nil {
			minQty, err := decimal.NewFromString(lot.MinQuantity)
			if err != nil {
				return nil, errors.Wrap(err, "parse lot min quantity")
			}
			maxQty, err := decimal.NewFromString(lot.MaxQuantity)
			if err != nil {
				return nil, errors.Wrap(err, "parse lot max quantity")
			}
			limits = append(limits, domain.CurrencyLimit{
				Currency:  c.pair.Base,
				MinAmount: minQty,
				MaxAmount: maxQty,
			})
		}
		if notional := s.NotionalFilter(); notional != nil {
			minNotional, err := decimal.NewFromString(notional.MinNotional)
			if err != nil {
				return nil, errors.Wrap(err, "parse min notional")
			}
			limits = append(limits, domain.CurrencyLimit{
				Currency:  c.pair.Quote,
				MinAmount: minNotional,
			})
		}
		if len(limits) == 0 {
			return nil, errors.Errorf("exchange info for %s carries no size filters", c.pair.Symbol())
		}
		return limits, nil
	}
	return nil, errors.Errorf("exchange info carries no entry for %s", c.pair.Symbol())
}

func parseLevel(priceStr, qtyStr string) (price, qty decimal.Decimal, err error) {
	price, err = decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, errors.Wrapf(err, "parse price %q", priceStr)
	}
	qty, err = decimal.NewFromString(qtyStr)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, errors.Wrapf(err, "parse quantity %q", qtyStr)
	}
	return price, qty, nil
}
