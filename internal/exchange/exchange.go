// Package exchange defines the port the trading engine speaks to a spot
// exchange through, plus the request-signing contract shared by its
// implementations.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pairbot/pairbot/internal/domain"
)

// Exchange is the full surface one (pair, account) engine needs. Adapters are
// bound to their pair at construction. All calls block until the exchange
// answers or ctx is done; a nil error implies the returned value passed
// boundary validation.
type Exchange interface {
	// PublicTradeHistory returns recent public executions, newest first or
	// oldest first depending on the venue; callers filter by timestamp.
	PublicTradeHistory(ctx context.Context) ([]domain.TradeRecord, error)
	Orderbook(ctx context.Context) (domain.Orderbook, error)
	AccountTradeHistory(ctx context.Context, from, to time.Time) ([]domain.TradeRecord, error)
	FeeSchedule(ctx context.Context) (domain.FeeSchedule, error)
	AccountBalance(ctx context.Context) (domain.AccountBalance, error)
	OpenOrders(ctx context.Context) ([]domain.OpenOrder, error)
	PlaceOrder(ctx context.Context, side domain.Side, amount, price decimal.Decimal) (domain.OpenOrder, error)
	CancelOrder(ctx context.Context, id string) (bool, error)
	CurrencyLimits(ctx context.Context) ([]domain.CurrencyLimit, error)
}
