// Package web serves a minimal dashboard streaming journal records over SSE.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pairbot/pairbot/internal/storage/journal"
)

const journalPollInterval = 3 * time.Second

type journalReader interface {
	EventsAfter(index uint64) ([]journal.Record, error)
}

// Server exposes the dashboard page and the journal SSE stream.
type Server struct {
	addr   string
	store  journalReader
	logger *zap.Logger
}

func NewServer(addr string, store journalReader, logger *zap.Logger) *Server {
	return &Server{addr: addr, store: store, logger: logger}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/journal/stream", s.handleJournalStream)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("dashboard shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("dashboard listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "dashboard server")
	}
	return nil
}

func (s *Server) handleJournalStream(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "journal not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	poll := time.NewTicker(journalPollInterval)
	defer poll.Stop()

	lastIndex := parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	send := func() error {
		records, err := s.store.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: %s\n", record.Kind)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := send(); err != nil {
		s.logger.Warn("journal stream initial load", zap.Error(err))
		http.Error(w, "failed to load journal", http.StatusInternalServerError)
		return
	}
	if lastIndex == 0 {
		fmt.Fprintf(w, "event: no_data\ndata: {}\n\n")
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-poll.C:
			if err := send(); err != nil {
				s.logger.Warn("journal stream poll", zap.Error(err))
			}
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}

// parseLastEventID extracts an SSE resume index from the Last-Event-ID
// header, falling back to a query parameter for manual reconnects.
func parseLastEventID(headerVal, queryVal string) uint64 {
	raw := strings.TrimSpace(headerVal)
	if raw == "" {
		raw = strings.TrimSpace(queryVal)
	}
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>pairbot</title>
<style>
body { font-family: monospace; background: #111; color: #ddd; margin: 2em; }
h1 { font-size: 1.2em; }
table { border-collapse: collapse; width: 100%; }
td, th { border: 1px solid #333; padding: 4px 8px; text-align: left; font-size: 0.85em; }
.executed { color: #7c7; }
.cancellation { color: #c77; }
</style>
</head>
<body>
<h1>pairbot decision journal</h1>
<table id="journal">
<tr><th>#</th><th>kind</th><th>detail</th></tr>
</table>
<script>
const table = document.getElementById('journal');
const source = new EventSource('/journal/stream');
function addRow(id, kind, detail) {
  const row = table.insertRow(1);
  row.className = kind;
  row.insertCell().textContent = id;
  row.insertCell().textContent = kind;
  row.insertCell().textContent = detail;
}
source.addEventListener('decision', e => {
  const d = JSON.parse(e.data).decision;
  addRow(e.lastEventId, 'decision',
    'buy ' + d.Buy.Amount + '@' + d.Buy.Price + ' [' + d.Buy.Outcome + '] ' +
    'sell ' + d.Sell.Amount + '@' + d.Sell.Price + ' [' + d.Sell.Outcome + ']');
});
source.addEventListener('cancellation', e => {
  const c = JSON.parse(e.data).cancellation;
  addRow(e.lastEventId, 'cancellation', c.Order.ID + ' @' + c.Order.Price);
});
</script>
</body>
</html>`
