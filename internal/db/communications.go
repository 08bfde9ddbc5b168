package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/caretaker/pkg/models"
)

// CreateCommunication appends a communication record. Records are written
// in pending status; only ResolveCommunication may move them afterwards.
func (db *DB) CreateCommunication(ctx context.Context, c *models.Communication) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = models.CommunicationPending
	}

	exists, err := db.taskExists(ctx, c.TaskID)
	if err != nil {
		return err
	}
	if !exists {
		return models.NotFoundf("task %s", c.TaskID)
	}

	query := `
		INSERT INTO communications (id, task_id, method, recipient, subject, message, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at
	`
	err = db.QueryRowContext(ctx, query,
		c.ID, c.TaskID, c.Method, c.Recipient, c.Subject, c.Message, c.Status, c.ErrorMessage,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create communication: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// ResolveCommunication moves a pending record to sent or failed. It is the
// eventual status correction path and never re-dispatches: resolving an
// already-resolved record is rejected, so delivery outcomes are settled
// exactly once.
func (db *DB) ResolveCommunication(ctx context.Context, id string, status models.CommunicationStatus, errorMessage *string) error {
	if status != models.CommunicationSent && status != models.CommunicationFailed {
		return models.Validationf("communication can only resolve to sent or failed, got %q", status)
	}

	query := `
		UPDATE communications
		SET status = ?, error_message = ?
		WHERE id = ? AND status = 'pending'
	`
	res, err := db.ExecContext(ctx, query, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to resolve communication: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.NotFoundf("pending communication %s", id)
	}

	db.triggerChange(ctx)
	return nil
}

// ListTaskCommunications returns a task's communications newest-first.
func (db *DB) ListTaskCommunications(ctx context.Context, taskID string) ([]*models.Communication, error) {
	query := `
		SELECT id, task_id, method, recipient, subject, message, status, error_message, created_at
		FROM communications
		WHERE task_id = ?
		ORDER BY created_at DESC, rowid DESC
	`
	rows, err := db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list communications: %w", err)
	}
	defer rows.Close()

	var comms []*models.Communication
	for rows.Next() {
		c := &models.Communication{}
		err := rows.Scan(&c.ID, &c.TaskID, &c.Method, &c.Recipient, &c.Subject, &c.Message, &c.Status, &c.ErrorMessage, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan communication: %w", err)
		}
		comms = append(comms, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return comms, nil
}

func (db *DB) taskExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check task: %w", err)
	}
	return n > 0, nil
}
