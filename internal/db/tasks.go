package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/caretaker/internal/audit"
	"github.com/ldi/caretaker/internal/lifecycle"
	"github.com/ldi/caretaker/pkg/models"
)

const taskColumns = `id, title, description, category, priority, status, due_date, assigned_to,
	       property_id, unit_id, tenant_id, vendor_id, rent_payment_id,
	       is_recurring, recurrence_period, communication_method,
	       recipient_email, recipient_phone, created_at, updated_at`

// CreateTask validates and inserts a new task. Missing fields get creation
// defaults (status pending, priority medium); attachments on the task are
// stored as metadata rows in the same transaction.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	lifecycle.Normalize(t)
	if err := lifecycle.ValidateTask(t); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := db.insertTask(ctx, tx, t); err != nil {
		return err
	}
	for i := range t.Attachments {
		if err := db.insertAttachment(ctx, tx, t.ID, &t.Attachments[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) insertTask(ctx context.Context, exec executor, t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
		INSERT INTO tasks (id, title, description, category, priority, status, due_date, assigned_to,
		                   property_id, unit_id, tenant_id, vendor_id, rent_payment_id,
		                   is_recurring, recurrence_period, communication_method,
		                   recipient_email, recipient_phone)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := exec.QueryRowContext(ctx, query,
		t.ID, t.Title, t.Description, t.Category, t.Priority, t.Status, t.DueDate, t.AssignedTo,
		t.PropertyID, t.UnitID, t.TenantID, t.VendorID, t.RentPaymentID,
		boolToInt(t.IsRecurring), periodValue(t.RecurrencePeriod), t.CommunicationMethod,
		t.RecipientEmail, t.RecipientPhone,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (db *DB) insertAttachment(ctx context.Context, exec executor, taskID string, a *models.Attachment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.TaskID = taskID

	query := `
		INSERT INTO task_attachments (id, task_id, file_name, content_type, size_bytes)
		VALUES (?, ?, ?, ?, ?)
		RETURNING created_at
	`
	err := exec.QueryRowContext(ctx, query, a.ID, taskID, a.FileName, a.ContentType, a.SizeBytes).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

// GetTask retrieves a task by its ID, including attachment metadata.
// Returns nil if the task does not exist.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := db.getTask(ctx, db.DB, id)
	if err != nil || t == nil {
		return t, err
	}
	t.Attachments, err = db.listAttachments(ctx, db.DB, id)
	return t, err
}

func (db *DB) getTask(ctx context.Context, exec executor, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	t, err := scanTask(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// TaskFilter narrows ListTasks. Nil fields match everything.
type TaskFilter struct {
	Status     *models.TaskStatus
	PropertyID *string
	TenantID   *string
}

// ListTasks returns tasks newest-first, optionally filtered.
func (db *DB) ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := []any{}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.PropertyID != nil {
		query += " AND property_id = ?"
		args = append(args, *filter.PropertyID)
	}
	if filter.TenantID != nil {
		query += " AND tenant_id = ?"
		args = append(args, *filter.TenantID)
	}

	query += " ORDER BY created_at DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tasks, nil
}

// PatchTask applies a partial update. The current row is read, the patch is
// merged and validated, and the field diff is recorded as a history entry,
// all in one transaction so the diff is always computed against the stored
// value. A patch that changes nothing writes nothing, including history.
// Returns the updated task and the history entry, which is nil for no-ops.
func (db *DB) PatchTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, *models.HistoryEntry, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := db.getTask(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, models.NotFoundf("task %s", id)
	}

	var reopened bool
	if patch.Status != nil {
		tr, err := lifecycle.ValidateTransition(current.Status, *patch.Status)
		if err != nil {
			return nil, nil, err
		}
		reopened = tr.ReopensTerminal
	}

	merged := lifecycle.Apply(*current, patch)
	if err := lifecycle.ValidateTask(&merged); err != nil {
		return nil, nil, err
	}

	diff := audit.TaskDiff(*current, merged)
	if diff.Empty() {
		current.Attachments, err = db.listAttachments(ctx, tx, id)
		if err != nil {
			return nil, nil, err
		}
		return current, nil, tx.Commit()
	}

	query := `
		UPDATE tasks
		SET title = ?, description = ?, category = ?, priority = ?, status = ?, due_date = ?,
		    assigned_to = ?, is_recurring = ?, recurrence_period = ?, communication_method = ?,
		    recipient_email = ?, recipient_phone = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err = tx.QueryRowContext(ctx, query,
		merged.Title, merged.Description, merged.Category, merged.Priority, merged.Status, merged.DueDate,
		merged.AssignedTo, boolToInt(merged.IsRecurring), periodValue(merged.RecurrencePeriod), merged.CommunicationMethod,
		merged.RecipientEmail, merged.RecipientPhone, id,
	).Scan(&merged.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update task: %w", err)
	}

	action := diff.Label()
	if reopened {
		action = fmt.Sprintf("%s (reopened from %s)", action, current.Status)
	}

	entry := &models.HistoryEntry{
		TaskID:         id,
		Action:         action,
		PreviousValues: diff.Previous,
		NewValues:      diff.Next,
	}
	if err := db.insertHistory(ctx, tx, entry); err != nil {
		return nil, nil, err
	}

	merged.Attachments, err = db.listAttachments(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return &merged, entry, nil
}

// DeleteTask deletes a task by its ID. History, communications, and
// attachment metadata cascade with it.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.NotFoundf("task %s", id)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) listAttachments(ctx context.Context, exec executor, taskID string) ([]models.Attachment, error) {
	query := `
		SELECT id, task_id, file_name, content_type, size_bytes, created_at
		FROM task_attachments
		WHERE task_id = ?
		ORDER BY created_at ASC
	`
	rows, err := exec.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.FileName, &a.ContentType, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return attachments, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable) (*models.Task, error) {
	t := &models.Task{}
	var isRecurring int
	var period *string
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Category, &t.Priority, &t.Status, &t.DueDate, &t.AssignedTo,
		&t.PropertyID, &t.UnitID, &t.TenantID, &t.VendorID, &t.RentPaymentID,
		&isRecurring, &period, &t.CommunicationMethod,
		&t.RecipientEmail, &t.RecipientPhone, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.IsRecurring = isRecurring == 1
	if period != nil {
		p := models.RecurrencePeriod(*period)
		t.RecurrencePeriod = &p
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func periodValue(p *models.RecurrencePeriod) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}
