package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger keeps records in memory. Useful for tests and dry runs;
// offers the same append-only contract but no durability.
type MemoryLedger struct {
	mu   sync.Mutex
	recs []Record
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemory() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Append(_ context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
	return nil
}

func (l *MemoryLedger) RecordsForDecision(_ context.Context, decisionID string) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Record
	for _, rec := range l.recs {
		if rec.DecisionID == decisionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *MemoryLedger) RecordsSince(_ context.Context, from time.Time) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Record
	for _, rec := range l.recs {
		if !rec.RecordedAt.Before(from) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *MemoryLedger) All(_ context.Context) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.recs))
	copy(out, l.recs)
	return out, nil
}

func (l *MemoryLedger) Close() error { return nil }
