package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id VARCHAR(64) PRIMARY KEY,
	decision_id VARCHAR(64) NOT NULL,
	condition_key VARCHAR(500) NOT NULL,
	event VARCHAR(50) NOT NULL,
	sport VARCHAR(100) NOT NULL DEFAULT '',
	market VARCHAR(100) NOT NULL DEFAULT '',
	outcome VARCHAR(100) NOT NULL DEFAULT '',
	stake DECIMAL(14, 4) NOT NULL DEFAULT 0,
	price DECIMAL(10, 4) NOT NULL DEFAULT 0,
	edge_percent DECIMAL(8, 4) NOT NULL DEFAULT 0,
	reason VARCHAR(500) NOT NULL DEFAULT '',
	external_id VARCHAR(200) NOT NULL DEFAULT '',
	recorded_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_audit_records_decision ON audit_records(decision_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_audit_records_recorded ON audit_records(recorded_at);
`

// PostgresLedger stores audit records in PostgreSQL.
type PostgresLedger struct {
	db *sql.DB
}

var _ Ledger = (*PostgresLedger)(nil)

// NewPostgres connects using the given DSN and initializes the schema.
func NewPostgres(dsn string) (*PostgresLedger, error) {
	if dsn == "" {
		return nil, fmt.Errorf("ledger: postgres DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: initialize schema: %w", err)
	}

	slog.Info("PostgreSQL audit ledger initialized")
	return &PostgresLedger{db: db}, nil
}

func (l *PostgresLedger) Append(ctx context.Context, rec Record) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_records (
			id, decision_id, condition_key, event, sport, market, outcome,
			stake, price, edge_percent, reason, external_id, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.DecisionID, rec.Condition, string(rec.Event),
		rec.Sport, rec.Market, rec.Outcome,
		rec.Stake.String(), rec.Price, rec.EdgePercent,
		rec.Reason, rec.ExternalID, rec.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	return nil
}

func (l *PostgresLedger) RecordsForDecision(ctx context.Context, decisionID string) ([]Record, error) {
	return l.query(ctx, `
		SELECT id, decision_id, condition_key, event, sport, market, outcome,
		       stake, price, edge_percent, reason, external_id, recorded_at
		FROM audit_records WHERE decision_id = $1 ORDER BY recorded_at, id`, decisionID)
}

func (l *PostgresLedger) RecordsSince(ctx context.Context, from time.Time) ([]Record, error) {
	return l.query(ctx, `
		SELECT id, decision_id, condition_key, event, sport, market, outcome,
		       stake, price, edge_percent, reason, external_id, recorded_at
		FROM audit_records WHERE recorded_at >= $1 ORDER BY recorded_at, id`, from.UTC())
}

func (l *PostgresLedger) All(ctx context.Context) ([]Record, error) {
	return l.query(ctx, `
		SELECT id, decision_id, condition_key, event, sport, market, outcome,
		       stake, price, edge_percent, reason, external_id, recorded_at
		FROM audit_records ORDER BY recorded_at, id`)
}

func (l *PostgresLedger) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var event, stake string
		if err := rows.Scan(
			&rec.ID, &rec.DecisionID, &rec.Condition, &event,
			&rec.Sport, &rec.Market, &rec.Outcome,
			&stake, &rec.Price, &rec.EdgePercent,
			&rec.Reason, &rec.ExternalID, &rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("ledger: scan row: %w", err)
		}
		rec.Event = Event(event)
		rec.Stake, err = decimal.NewFromString(stake)
		if err != nil {
			return nil, fmt.Errorf("ledger: bad stake %q in record %s: %w", stake, rec.ID, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (l *PostgresLedger) Close() error {
	return l.db.Close()
}
