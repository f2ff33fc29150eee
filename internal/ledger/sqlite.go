package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit_records (
    id           TEXT PRIMARY KEY,
    decision_id  TEXT    NOT NULL,
    condition_key TEXT   NOT NULL,
    event        TEXT    NOT NULL,
    sport        TEXT    NOT NULL DEFAULT '',
    market       TEXT    NOT NULL DEFAULT '',
    outcome      TEXT    NOT NULL DEFAULT '',
    stake        TEXT    NOT NULL DEFAULT '0',
    price        REAL    NOT NULL DEFAULT 0,
    edge_percent REAL    NOT NULL DEFAULT 0,
    reason       TEXT    NOT NULL DEFAULT '',
    external_id  TEXT    NOT NULL DEFAULT '',
    recorded_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_decision ON audit_records(decision_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_audit_recorded ON audit_records(recorded_at);
`

// SQLiteLedger stores audit records in an embedded SQLite database
// (pure Go driver, no CGo).
type SQLiteLedger struct {
	db *sql.DB
}

var _ Ledger = (*SQLiteLedger)(nil)

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLiteLedger, error) {
	if path == "" {
		path = "betfuse-ledger.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite %q: %w", path, err)
	}
	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: apply sqlite schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) Append(ctx context.Context, rec Record) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_records
			(id, decision_id, condition_key, event, sport, market, outcome,
			 stake, price, edge_percent, reason, external_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (l *SQLiteLedger) RecordsForDecision(ctx context.Context, decisionID string) ([]Record, error) {
	return l.query(ctx, `
		SELECT id, decision_id, condition_key, event, sport, market, outcome,
		       stake, price, edge_percent, reason, external_id, recorded_at
		FROM audit_records WHERE decision_id = ? ORDER BY recorded_at, id`, decisionID)
}

func (l *SQLiteLedger) RecordsSince(ctx context.Context, from time.Time) ([]Record, error) {
	return l.query(ctx, `
		SELECT id, decision_id, condition_key, event, sport, market, outcome,
		       stake, price, edge_percent, reason, external_id, recorded_at
		FROM audit_records WHERE recorded_at >= ? ORDER BY recorded_at, id`, from.UTC())
}

func (l *SQLiteLedger) All(ctx context.Context) ([]Record, error) {
	return l.query(ctx, `
		SELECT id, decision_id, condition_key, event, sport, market, outcome,
		       stake, price, edge_percent, reason, external_id, recorded_at
		FROM audit_records ORDER BY recorded_at, id`)
}

func (l *SQLiteLedger) query(ctx context.Context, q string, args ...any) ([]Record, error) {
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

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
