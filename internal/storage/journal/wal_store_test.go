package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairbot/pairbot/internal/domain"
)

func newTestStore(t *testing.T) *WALStore {
	t.Helper()
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testSummary() domain.DecisionSummary {
	return domain.DecisionSummary{
		Pair: domain.Pair{Base: "BTC", Quote: "USD"},
		Time: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Buy: domain.SideDecision{
			Side:    domain.SideBuy,
			Price:   decimal.NewFromInt(100),
			Amount:  decimal.RequireFromString("0.5"),
			Outcome: domain.OutcomeExecuted,
		},
		Sell: domain.SideDecision{
			Side:    domain.SideSell,
			Price:   decimal.NewFromInt(110),
			Outcome: domain.OutcomeSkippedLowFunds,
		},
	}
}

func TestSaveAndReplayDecisions(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveDecision(testSummary()))
	require.NoError(t, store.SaveDecision(testSummary()))

	records, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, KindDecision, records[0].Kind)
	require.NotNil(t, records[0].Decision)
	assert.Equal(t, "BTC", records[0].Decision.Pair.Base)
	assert.True(t, records[0].Decision.Buy.Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, domain.OutcomeSkippedLowFunds, records[0].Decision.Sell.Outcome)
	assert.Equal(t, uint64(1), records[0].Index)
	assert.Equal(t, uint64(2), records[1].Index)
}

func TestSaveCancellation(t *testing.T) {
	store := newTestStore(t)

	event := domain.CancellationEvent{
		Order: domain.OpenOrder{
			ID:     "42",
			Side:   domain.SideBuy,
			Price:  decimal.NewFromInt(95),
			Amount: decimal.NewFromInt(1),
		},
		Time:           time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
		CurrentValue:   decimal.NewFromInt(1000),
		ProjectedValue: decimal.NewFromInt(1010),
	}
	require.NoError(t, store.SaveCancellation(event))

	records, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, KindCancellation, records[0].Kind)
	require.NotNil(t, records[0].Cancellation)
	assert.Equal(t, "42", records[0].Cancellation.Order.ID)
	assert.True(t, records[0].Cancellation.ProjectedValue.Equal(decimal.NewFromInt(1010)))
}

func TestEventsAfterSkipsReplayed(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveDecision(testSummary()))
	first := store.CurrentIndex()
	require.NoError(t, store.SaveDecision(testSummary()))

	records, err := store.EventsAfter(first)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, first+1, records[0].Index)

	records, err = store.EventsAfter(store.CurrentIndex())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestValidation(t *testing.T) {
	store := newTestStore(t)

	assert.Error(t, store.SaveDecision(domain.DecisionSummary{}))
	assert.Error(t, store.SaveCancellation(domain.CancellationEvent{}))
}
