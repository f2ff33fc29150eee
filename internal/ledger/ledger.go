package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nvoloshin/betfuse/internal/pkg/config"
)

// ErrUnwritable marks a ledger append that could not be durably stored.
// Callers treat it as fatal for decisioning: no bet may proceed unaudited.
var ErrUnwritable = errors.New("ledger: append failed")

// Ledger is an append-only audit trail. Appends must be safe for
// concurrent callers; per decision id the append order is the causal
// order of events.
type Ledger interface {
	Append(ctx context.Context, rec Record) error
	RecordsForDecision(ctx context.Context, decisionID string) ([]Record, error)
	RecordsSince(ctx context.Context, from time.Time) ([]Record, error)
	All(ctx context.Context) ([]Record, error)
	Close() error
}

// Open builds the backend named in cfg. SQLite is the default embedded
// choice; Postgres is for deployments that already run one.
func Open(cfg config.LedgerConfig) (Ledger, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "postgres":
		return NewPostgres(cfg.PostgresDSN)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("ledger: unknown backend %q", cfg.Backend)
	}
}
