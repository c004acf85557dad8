// Package journal persists cycle decisions and order cancellations in a
// write-ahead log so dashboards can replay them after restarts.
package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/pairbot/pairbot/internal/domain"
)

const (
	DefaultDir   = "./wal/journal"
	segmentLimit = 100
	maxSegments  = 10

	decisionKeyPrefix     = "decision_"
	cancellationKeyPrefix = "cancellation_"
)

// Kind discriminates journal record types.
type Kind string

const (
	KindDecision     Kind = "decision"
	KindCancellation Kind = "cancellation"
)

// Record is one replayed journal entry.
type Record struct {
	Index        uint64                    `json:"index"`
	Kind         Kind                      `json:"kind"`
	Decision     *domain.DecisionSummary   `json:"decision,omitempty"`
	Cancellation *domain.CancellationEvent `json:"cancellation,omitempty"`
}

// WALStore persists journal records in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// SaveDecision writes a cycle decision summary to the WAL.
func (s *WALStore) SaveDecision(summary domain.DecisionSummary) error {
	if s == nil || s.wal == nil {
		return errors.New("journal is not initialized")
	}
	if summary.Pair.Base == "" || summary.Pair.Quote == "" {
		return errors.New("decision summary pair is required")
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, "marshal decision summary")
	}

	return s.write(fmt.Sprintf("%s%s", decisionKeyPrefix, summary.Pair), payload)
}

// SaveCancellation writes an order cancellation event to the WAL.
func (s *WALStore) SaveCancellation(event domain.CancellationEvent) error {
	if s == nil || s.wal == nil {
		return errors.New("journal is not initialized")
	}
	if event.Order.ID == "" {
		return errors.New("cancellation event order id is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal cancellation event")
	}

	return s.write(fmt.Sprintf("%s%s", cancellationKeyPrefix, event.Order.ID), payload)
}

func (s *WALStore) write(key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// EventsAfter returns all journal records written after the provided WAL
// index.
func (s *WALStore) EventsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(key, decisionKeyPrefix):
			var summary domain.DecisionSummary
			if err := json.Unmarshal(payload, &summary); err != nil {
				return nil, errors.Wrap(err, "decode decision summary")
			}
			records = append(records, Record{Index: idx, Kind: KindDecision, Decision: &summary})
		case strings.HasPrefix(key, cancellationKeyPrefix):
			var event domain.CancellationEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return nil, errors.Wrap(err, "decode cancellation event")
			}
			records = append(records, Record{Index: idx, Kind: KindCancellation, Cancellation: &event})
		}
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
