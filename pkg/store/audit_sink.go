package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Unclefole/operatorkit/pkg/contracts"
)

// SQLiteAuditSink persists audit events. Each Append runs in its own
// transaction, which strengthens the "persist immediately" contract to an
// atomic write: an event is either fully durable or absent, never torn.
type SQLiteAuditSink struct {
	db *sql.DB
}

// NewSQLiteAuditSink migrates the audit table and returns the sink.
func NewSQLiteAuditSink(db *sql.DB) (*SQLiteAuditSink, error) {
	s := &SQLiteAuditSink{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteAuditSink) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL UNIQUE,
		schema_version TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		draft_id TEXT NOT NULL,
		side_effect_kind TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		approval_timestamp DATETIME,
		execution_timestamp DATETIME,
		previous_hash TEXT NOT NULL DEFAULT '',
		entry_hash TEXT NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("store: migrate audit_events: %w", err)
	}
	return nil
}

// Append durably inserts one event.
func (s *SQLiteAuditSink) Append(event contracts.AuditEvent) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin append: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO audit_events
		(event_id, schema_version, timestamp, draft_id, side_effect_kind,
		 outcome, detail, approval_timestamp, execution_timestamp,
		 previous_hash, entry_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.SchemaVersion,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.DraftID,
		string(event.SideEffectKind),
		string(event.Outcome),
		event.Detail,
		event.ApprovalTimestamp.UTC().Format(time.RFC3339Nano),
		event.ExecutionTimestamp.UTC().Format(time.RFC3339Nano),
		event.PreviousHash,
		event.EntryHash,
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("store: insert audit event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit audit event: %w", err)
	}
	return nil
}

// Trim deletes the n oldest persisted events (FIFO eviction).
func (s *SQLiteAuditSink) Trim(n int) error {
	if n <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM audit_events WHERE seq IN (
			SELECT seq FROM audit_events ORDER BY seq ASC LIMIT ?
		)`, n)
	if err != nil {
		return fmt.Errorf("store: trim audit events: %w", err)
	}
	return nil
}

// PurgeAll empties the persisted trail. Only the explicit, user-initiated
// purge path calls this.
func (s *SQLiteAuditSink) PurgeAll() error {
	if _, err := s.db.Exec(`DELETE FROM audit_events`); err != nil {
		return fmt.Errorf("store: purge audit events: %w", err)
	}
	return nil
}

// Load returns all persisted events, oldest first.
func (s *SQLiteAuditSink) Load() ([]contracts.AuditEvent, error) {
	rows, err := s.db.Query(`
		SELECT event_id, schema_version, timestamp, draft_id,
		       side_effect_kind, outcome, detail, approval_timestamp,
		       execution_timestamp, previous_hash, entry_hash
		FROM audit_events ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: load audit events: %w", err)
	}
	defer rows.Close()

	var events []contracts.AuditEvent
	for rows.Next() {
		var (
			evt                    contracts.AuditEvent
			kind, outcome          string
			ts, approvalTS, execTS string
		)
		if err := rows.Scan(&evt.ID, &evt.SchemaVersion, &ts, &evt.DraftID,
			&kind, &outcome, &evt.Detail, &approvalTS, &execTS,
			&evt.PreviousHash, &evt.EntryHash); err != nil {
			return nil, fmt.Errorf("store: scan audit event: %w", err)
		}
		evt.SideEffectKind = contracts.SideEffectKind(kind)
		evt.Outcome = contracts.EffectOutcome(outcome)
		if evt.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		if evt.ApprovalTimestamp, err = parseTime(approvalTS); err != nil {
			return nil, err
		}
		if evt.ExecutionTimestamp, err = parseTime(execTS); err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: parse timestamp %q: %w", value, err)
	}
	return t, nil
}
