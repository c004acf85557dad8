// Package domain defines the core data structures shared by the trading engine.
package domain

import "fmt"

// Pair is a trading pair: base (exchange) currency traded against the quote
// (target) currency.
type Pair struct {
	// Base currency symbol, e.g. BTC.
	Base string
	// Quote currency symbol, e.g. USD.
	Quote string
}

// String returns the underscore-separated representation, e.g. "BTC_USD".
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Base, p.Quote)
}

// Symbol returns the concatenated representation, e.g. "BTCUSD".
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Base, p.Quote)
}
