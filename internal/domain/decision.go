package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is the terminal state of one side's evaluation within a cycle.
type Outcome int

const (
	OutcomeExecuted Outcome = iota
	OutcomeHeld
	OutcomeSkippedLowFunds
	OutcomeSkippedReserveLimited
	OutcomeSkippedDepreciating
	OutcomeSkippedPriceCrossed
	OutcomeSkippedStopLine
	OutcomeRejected
	OutcomeFailed
)

// String returns a human-readable outcome label.
func (o Outcome) String() string {
	switch o {
	case OutcomeExecuted:
		return "executed"
	case OutcomeHeld:
		return "held"
	case OutcomeSkippedLowFunds:
		return "skipped_low_funds"
	case OutcomeSkippedReserveLimited:
		return "skipped_reserve_limited"
	case OutcomeSkippedDepreciating:
		return "skipped_depreciating"
	case OutcomeSkippedPriceCrossed:
		return "skipped_price_crossed"
	case OutcomeSkippedStopLine:
		return "skipped_stop_line"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the outcome as its label.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON decodes an outcome label.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	for candidate := OutcomeExecuted; candidate <= OutcomeFailed; candidate++ {
		if candidate.String() == label {
			*o = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", label)
}

// SideDecision is the fully priced and sized proposal for one side of the
// book, together with its projected portfolio impact.
type SideDecision struct {
	Side           Side
	Price          decimal.Decimal
	Amount         decimal.Decimal
	Available      bool
	ReserveBound   bool
	CurrentValue   decimal.Decimal
	ProjectedValue decimal.Decimal
	Outcome        Outcome
}

// Depreciating reports whether executing the proposal would lower the
// portfolio value.
func (d SideDecision) Depreciating() bool {
	return d.ProjectedValue.LessThan(d.CurrentValue)
}

// DecisionSummary is everything a cycle decided, for rendering and journaling.
type DecisionSummary struct {
	Pair             Pair
	Time             time.Time
	ExchangeBalance  AccountBalanceItem
	TargetBalance    AccountBalanceItem
	LastPublicBuy    decimal.Decimal
	LastPublicSell   decimal.Decimal
	LastAccountBuy   decimal.Decimal
	LastAccountSell  decimal.Decimal
	NextBuyOrder     *OpenOrder
	NextSellOrder    *OpenOrder
	LastBuyOrder     *OpenOrder
	LastSellOrder    *OpenOrder
	Bull             bool
	TrendContinuable bool
	StopLine         decimal.Decimal
	Buy              SideDecision
	Sell             SideDecision
}

// CancellationEvent records a cancelled resting order and the projected
// portfolio value that justified the cancellation.
type CancellationEvent struct {
	Order          OpenOrder
	Time           time.Time
	CurrentValue   decimal.Decimal
	ProjectedValue decimal.Decimal
}
