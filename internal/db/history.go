package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/caretaker/pkg/models"
)

// The history log is append-only. insertHistory is the only statement that
// touches task_history besides reads; there is no update or delete path.
func (db *DB) insertHistory(ctx context.Context, exec executor, e *models.HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	previous, err := json.Marshal(e.PreviousValues)
	if err != nil {
		return fmt.Errorf("failed to marshal previous values: %w", err)
	}
	next, err := json.Marshal(e.NewValues)
	if err != nil {
		return fmt.Errorf("failed to marshal new values: %w", err)
	}

	query := `
		INSERT INTO task_history (id, task_id, action, previous_values, new_values)
		VALUES (?, ?, ?, ?, ?)
		RETURNING created_at
	`
	err = exec.QueryRowContext(ctx, query, e.ID, e.TaskID, e.Action, string(previous), string(next)).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// ListTaskHistory returns a task's history entries newest-first.
func (db *DB) ListTaskHistory(ctx context.Context, taskID string) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, task_id, action, previous_values, new_values, created_at
		FROM task_history
		WHERE task_id = ?
		ORDER BY created_at DESC, rowid DESC
	`
	rows, err := db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		e := &models.HistoryEntry{}
		var previous, next string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Action, &previous, &next, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(previous), &e.PreviousValues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal previous values: %w", err)
		}
		if err := json.Unmarshal([]byte(next), &e.NewValues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal new values: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}
