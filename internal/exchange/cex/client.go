// Package cex implements the exchange port against the CEX.IO REST API.
// Public data travels over GET; account calls are JSON POSTs carrying a
// nonce, the API key, and an HMAC signature.
package cex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pairbot/pairbot/internal/domain"
	"github.com/pairbot/pairbot/internal/exchange"
)

const defaultBaseURL = "https://cex.io/api"

var hundred = decimal.NewFromInt(100)

// Client talks to CEX.IO for one trading pair.
type Client struct {
	httpClient *http.Client
	baseURL    string
	pair       domain.Pair
	signer     *exchange.HMACSigner
	nonces     *exchange.NonceSource
	logger     *zap.Logger
}

// Option tweaks client construction.
type Option func(*Client)

// WithBaseURL points the client at a different API root, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func New(pair domain.Pair, signer *exchange.HMACSigner, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		pair:       pair,
		signer:     signer,
		nonces:     &exchange.NonceSource{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tradeEntry struct {
	Type   string          `json:"type"`
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
	TID    json.Number     `json:"tid"`
}

func (c *Client) PublicTradeHistory(ctx context.Context) ([]domain.TradeRecord, error) {
	var entries []tradeEntry
	path := fmt.Sprintf("/trade_history/%s/%s/", c.pair.Base, c.pair.Quote)
	if err := c.get(ctx, path, &entries); err != nil {
		return nil, errors.Wrap(err, "fetch public trade history")
	}

	records := make([]domain.TradeRecord, 0, len(entries))
	for _, e := range entries {
		side, ok := domain.SideFromString(e.Type)
		if !ok {
			return nil, errors.Errorf("unknown trade type %q", e.Type)
		}
		ts, err := parseUnixSeconds(e.Date)
		if err != nil {
			return nil, errors.Wrapf(err, "trade %s timestamp", e.TID)
		}
		records = append(records, domain.TradeRecord{
			ID:        e.TID.String(),
			Side:      side,
			Amount:    e.Amount,
			Price:     e.Price,
			Timestamp: ts,
		})
	}
	return records, nil
}

type orderbookResponse struct {
	Timestamp int64               `json:"timestamp"`
	Bids      [][]decimal.Decimal `json:"bids"`
	Asks      [][]decimal.Decimal `json:"asks"`
	SellTotal decimal.Decimal     `json:"sell_total"`
	BuyTotal  decimal.Decimal     `json:"buy_total"`
}

func (c *Client) Orderbook(ctx context.Context) (domain.Orderbook, error) {
	var resp orderbookResponse
	path := fmt.Sprintf("/order_book/%s/%s/", c.pair.Base, c.pair.Quote)
	if err := c.get(ctx, path, &resp); err != nil {
		return domain.Orderbook{}, errors.Wrap(err, "fetch orderbook")
	}

	bids, err := toLevels(resp.Bids)
	if err != nil {
		return domain.Orderbook{}, errors.Wrap(err, "orderbook bids")
	}
	asks, err := toLevels(resp.Asks)
	if err != nil {
		return domain.Orderbook{}, errors.Wrap(err, "orderbook asks")
	}

	return domain.Orderbook{
		Bids:      bids,
		Asks:      asks,
		BidTotal:  resp.BuyTotal,
		AskTotal:  resp.SellTotal,
		Timestamp: time.Unix(resp.Timestamp, 0).UTC(),
	}, nil
}

type archivedOrder struct {
	ID     json.Number     `json:"id"`
	Type   string          `json:"type"`
	Time   string          `json:"time"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

func (c *Client) AccountTradeHistory(ctx context.Context, from, to time.Time) ([]domain.TradeRecord, error) {
	nonce := c.nonces.Next()
	body := map[string]any{
		"key":       c.signer.Key(),
		"signature": c.signer.Sign(nonce),
		"nonce":     nonce,
		"dateFrom":  from.Unix(),
		"dateTo":    to.Unix(),
	}

	var entries []archivedOrder
	path := fmt.Sprintf("/archived_orders/%s/%s", c.pair.Base, c.pair.Quote)
	if err := c.post(ctx, path, body, &entries); err != nil {
		return nil, errors.Wrap(err, "fetch account trade history")
	}

	records := make([]domain.TradeRecord, 0, len(entries))
	for _, e := range entries {
		side, ok := domain.SideFromString(e.Type)
		if !ok {
			return nil, errors.Errorf("unknown order type %q", e.Type)
		}
		ts, err := parseOrderTime(e.Time)
		if err != nil {
			return nil, errors.Wrapf(err, "archived order %s timestamp", e.ID)
		}
		records = append(records, domain.TradeRecord{
			ID:        e.ID.String(),
			Side:      side,
			Amount:    e.Amount,
			Price:     e.Price,
			Timestamp: ts,
		})
	}
	return records, nil
}

type feeResponse struct {
	OK   string                     `json:"ok"`
	Data map[string]json.RawMessage `json:"data"`
}

type pairFees struct {
	Buy  decimal.Decimal `json:"buy"`
	Sell decimal.Decimal `json:"sell"`
}

func (c *Client) FeeSchedule(ctx context.Context) (domain.FeeSchedule, error) {
	var resp feeResponse
	if err := c.post(ctx, "/get_myfee", c.signedBody(nil), &resp); err != nil {
		return domain.FeeSchedule{}, errors.Wrap(err, "fetch fee schedule")
	}

	key := c.pair.Base + ":" + c.pair.Quote
	raw, ok := resp.Data[key]
	if !ok {
		return domain.FeeSchedule{}, errors.Errorf("fee schedule has no entry for %s", key)
	}
	var fees pairFees
	if err := json.Unmarshal(raw, &fees); err != nil {
		return domain.FeeSchedule{}, errors.Wrapf(err, "decode fees for %s", key)
	}

	// the API reports percents, the engine works with fractions
	return domain.FeeSchedule{
		BuyPercent:  fees.Buy.Div(hundred),
		SellPercent: fees.Sell.Div(hundred),
	}, nil
}

type balanceEntry struct {
	Available decimal.Decimal `json:"available"`
	Orders    decimal.Decimal `json:"orders"`
}

func (c *Client) AccountBalance(ctx context.Context) (domain.AccountBalance, error) {
	var resp map[string]json.RawMessage
	if err := c.post(ctx, "/balance/", c.signedBody(nil), &resp); err != nil {
		return nil, errors.Wrap(err, "fetch account balance")
	}

	balance := make(domain.AccountBalance, len(resp))
	for currency, raw := range resp {
		// scalar metadata keys like timestamp and username are skipped
		if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
			continue
		}
		var entry balanceEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errors.Wrapf(err, "decode balance for %s", currency)
		}
		balance[currency] = domain.AccountBalanceItem{
			Currency:  currency,
			Available: entry.Available,
			InOrders:  entry.Orders,
		}
	}
	return balance, nil
}

type openOrderEntry struct {
	ID     string          `json:"id"`
	Time   string          `json:"time"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

func (c *Client) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	var entries []openOrderEntry
	path := fmt.Sprintf("/open_orders/%s/%s", c.pair.Base, c.pair.Quote)
	if err := c.post(ctx, path, c.signedBody(nil), &entries); err != nil {
		return nil, errors.Wrap(err, "fetch open orders")
	}

	orders := make([]domain.OpenOrder, 0, len(entries))
	for _, e := range entries {
		side, ok := domain.SideFromString(e.Type)
		if !ok {
			return nil, errors.Errorf("unknown order type %q", e.Type)
		}
		ts, err := parseOrderTime(e.Time)
		if err != nil {
			return nil, errors.Wrapf(err, "open order %s timestamp", e.ID)
		}
		orders = append(orders, domain.OpenOrder{
			ID:        e.ID,
			Side:      side,
			Amount:    e.Amount,
			Price:     e.Price,
			Timestamp: ts,
		})
	}
	return orders, nil
}

type placedOrderResponse struct {
	ID     string          `json:"id"`
	Time   json.Number     `json:"time"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
	Error  string          `json:"error"`
}

func (c *Client) PlaceOrder(ctx context.Context, side domain.Side, amount, price decimal.Decimal) (domain.OpenOrder, error) {
	body := c.signedBody(map[string]any{
		"type":   side.String(),
		"amount": amount,
		"price":  price,
	})

	var resp placedOrderResponse
	path := fmt.Sprintf("/place_order/%s/%s", c.pair.Base, c.pair.Quote)
	if err := c.post(ctx, path, body, &resp); err != nil {
		return domain.OpenOrder{}, errors.Wrap(err, "place order")
	}
	if resp.Error != "" {
		return domain.OpenOrder{}, errors.Errorf("place order rejected: %s", resp.Error)
	}
	if resp.ID == "" {
		return domain.OpenOrder{}, errors.New("place order response carries no order id")
	}

	ts := time.Now().UTC()
	if ms, err := resp.Time.Int64(); err == nil && ms > 0 {
		ts = time.UnixMilli(ms).UTC()
	}
	return domain.OpenOrder{
		ID:        resp.ID,
		Side:      side,
		Amount:    resp.Amount,
		Price:     resp.Price,
		Timestamp: ts,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, id string) (bool, error) {
	body := c.signedBody(map[string]any{"id": id})

	var resp json.RawMessage
	if err := c.post(ctx, "/cancel_order/", body, &resp); err != nil {
		return false, errors.Wrap(err, "cancel order")
	}

	ok, err := strconv.ParseBool(strings.Trim(string(resp), `"`))
	if err != nil {
		return false, errors.Errorf("unexpected cancel_order response: %s", resp)
	}
	return ok, nil
}

type currencyLimitsResponse struct {
	OK   string `json:"ok"`
	Data struct {
		Pairs []struct {
			Symbol1      string          `json:"symbol1"`
			Symbol2      string          `json:"symbol2"`
			MinLotSize   decimal.Decimal `json:"minLotSize"`
			MinLotSizeS2 decimal.Decimal `json:"minLotSizeS2"`
			MaxLotSize   decimal.Decimal `json:"maxLotSize"`
		} `json:"pairs"`
	} `json:"data"`
}

func (c *Client) CurrencyLimits(ctx context.Context) ([]domain.CurrencyLimit, error) {
	var resp currencyLimitsResponse
	if err := c.get(ctx, "/currency_limits", &resp); err != nil {
		return nil, errors.Wrap(err, "fetch currency limits")
	}

	for _, p := range resp.Data.Pairs {
		if p.Symbol1 != c.pair.Base || p.Symbol2 != c.pair.Quote {
			continue
		}
		return []domain.CurrencyLimit{
			{Currency: p.Symbol1, MinAmount: p.MinLotSize, MaxAmount: p.MaxLotSize},
			{Currency: p.Symbol2, MinAmount: p.MinLotSizeS2},
		}, nil
	}
	return nil, errors.Errorf("currency limits carry no entry for %s", c.pair)
}

// signedBody builds the base signed payload and merges extra request fields.
func (c *Client) signedBody(extra map[string]any) map[string]any {
	nonce := c.nonces.Next()
	body := map[string]any{
		"key":       c.signer.Key(),
		"signature": c.signer.Sign(nonce),
		"nonce":     nonce,
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: unexpected status %d: %s", req.URL.Path, resp.StatusCode, truncate(raw))
	}

	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
		return errors.Errorf("%s: %s", req.URL.Path, apiErr.Error)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Debug("undecodable exchange response",
			zap.String("path", req.URL.Path),
			zap.ByteString("body", raw[:min(len(raw), 512)]))
		return errors.Wrapf(err, "decode %s response", req.URL.Path)
	}
	return nil
}

func toLevels(raw [][]decimal.Decimal) ([]domain.OrderbookLevel, error) {
	levels := make([]domain.OrderbookLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, errors.Errorf("malformed level %v", pair)
		}
		levels = append(levels, domain.OrderbookLevel{Price: pair[0], Quantity: pair[1]})
	}
	return levels, nil
}

// parseUnixSeconds handles the string epoch-seconds timestamps of public
// trade history.
func parseUnixSeconds(s string) (time.Time, error) {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", s)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// parseOrderTime handles the two formats order timestamps arrive in:
// epoch milliseconds or RFC3339.
func parseOrderTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse order time %q", s)
	}
	return ts.UTC(), nil
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
