package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Unclefole/operatorkit/pkg/contracts"
)

// SQLiteHistoryStore is the memory/history sink: it durably records every
// terminal ExecutionResult. The engine calls Save fire-and-forget; the
// durability burden sits here, in the committed transaction.
type SQLiteHistoryStore struct {
	db *sql.DB
}

func NewSQLiteHistoryStore(db *sql.DB) (*SQLiteHistoryStore, error) {
	s := &SQLiteHistoryStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteHistoryStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS execution_history (
		id TEXT PRIMARY KEY,
		recorded_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		result JSON NOT NULL
	);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("store: migrate execution_history: %w", err)
	}
	return nil
}

// Save records one terminal result.
func (s *SQLiteHistoryStore) Save(ctx context.Context, result contracts.ExecutionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: marshal execution result: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin history save: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO execution_history (id, recorded_at, status, message, result)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(),
		time.Now().UTC().Format(time.RFC3339Nano),
		string(result.Status),
		result.Message,
		string(payload),
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("store: insert history row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit history row: %w", err)
	}
	return nil
}

// Recent returns the most recent results, newest first.
func (s *SQLiteHistoryStore) Recent(ctx context.Context, limit int) ([]contracts.ExecutionResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT result FROM execution_history
		ORDER BY recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}
	defer rows.Close()

	var results []contracts.ExecutionResult
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan history row: %w", err)
		}
		var result contracts.ExecutionResult
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("store: decode history row: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
