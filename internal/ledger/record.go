package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event names a state transition in a decision's lifecycle.
type Event string

const (
	EventProposed        Event = "proposed"
	EventSubmitted       Event = "submitted"
	EventConfirmed       Event = "confirmed"
	EventRejected        Event = "rejected"
	EventSettledWon      Event = "settled_won"
	EventSettledLost     Event = "settled_lost"
	EventSettledCanceled Event = "settled_canceled"
)

// Record is one append-only audit entry. Records are never mutated or
// deleted once written; the ledger is the sole source of truth for
// rebuilding risk state after a restart.
type Record struct {
	ID          string          `json:"id"`
	DecisionID  string          `json:"decision_id"`
	Condition   string          `json:"condition"`
	Event       Event           `json:"event"`
	Sport       string          `json:"sport"`
	Market      string          `json:"market"`
	Outcome     string          `json:"outcome"`
	Stake       decimal.Decimal `json:"stake"`
	Price       float64         `json:"price"`
	EdgePercent float64         `json:"edge_percent"`
	Reason      string          `json:"reason,omitempty"`
	ExternalID  string          `json:"external_id,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// NewRecord builds a record with a fresh id and the given timestamp.
func NewRecord(decisionID, condition string, event Event, recordedAt time.Time) Record {
	return Record{
		ID:         uuid.NewString(),
		DecisionID: decisionID,
		Condition:  condition,
		Event:      event,
		RecordedAt: recordedAt.UTC(),
	}
}
