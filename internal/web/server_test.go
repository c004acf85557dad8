package web

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pairbot/pairbot/internal/domain"
	"github.com/pairbot/pairbot/internal/storage/journal"
)

type fakeJournal struct {
	records []journal.Record
}

func (f *fakeJournal) EventsAfter(index uint64) ([]journal.Record, error) {
	var out []journal.Record
	for _, r := range f.records {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

func testRecords() []journal.Record {
	summary := domain.DecisionSummary{
		Pair: domain.Pair{Base: "BTC", Quote: "USD"},
		Buy:  domain.SideDecision{Price: decimal.NewFromInt(100), Outcome: domain.OutcomeExecuted},
		Sell: domain.SideDecision{Price: decimal.NewFromInt(110), Outcome: domain.OutcomeHeld},
	}
	event := domain.CancellationEvent{
		Order: domain.OpenOrder{ID: "7", Side: domain.SideBuy, Price: decimal.NewFromInt(95)},
		Time:  time.Now().UTC(),
	}
	return []journal.Record{
		{Index: 1, Kind: journal.KindDecision, Decision: &summary},
		{Index: 2, Kind: journal.KindCancellation, Cancellation: &event},
	}
}

func readEvents(t *testing.T, resp *http.Response, want int) []string {
	t.Helper()

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimPrefix(line, "event: "))
		}
		if len(events) == want {
			break
		}
	}
	return events
}

func TestJournalStreamReplaysRecords(t *testing.T) {
	server := NewServer("", &fakeJournal{records: testRecords()}, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(server.handleJournalStream))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	events := readEvents(t, resp, 2)
	assert.Equal(t, []string{"decision", "cancellation"}, events)
}

func TestJournalStreamResumesFromLastEventID(t *testing.T) {
	server := NewServer("", &fakeJournal{records: testRecords()}, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(server.handleJournalStream))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	events := readEvents(t, resp, 1)
	assert.Equal(t, []string{"cancellation"}, events)
}

func TestJournalStreamEmptyJournal(t *testing.T) {
	server := NewServer("", &fakeJournal{}, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(server.handleJournalStream))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	events := readEvents(t, resp, 1)
	assert.Equal(t, []string{"no_data"}, events)
}

func TestParseLastEventID(t *testing.T) {
	assert.Equal(t, uint64(0), parseLastEventID("", ""))
	assert.Equal(t, uint64(42), parseLastEventID("42", ""))
	assert.Equal(t, uint64(7), parseLastEventID("", "7"))
	assert.Equal(t, uint64(42), parseLastEventID("42", "7"))
	assert.Equal(t, uint64(0), parseLastEventID("junk", ""))
}

func TestIndexPage(t *testing.T) {
	server := NewServer("", &fakeJournal{}, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(server.handleIndex))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}
