package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/caretaker/internal/lifecycle"
	"github.com/ldi/caretaker/pkg/models"
)

// CommitBatch validates and persists everything staged under a session in a
// single transaction. A validation failure on any item rolls the whole
// batch back.
func (db *DB) CommitBatch(ctx context.Context, sessionID string) error {
	items := db.Staging.GetAndClear(sessionID)
	if items == nil {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range items.Tasks {
		lifecycle.Normalize(t)
		if err := lifecycle.ValidateTask(t); err != nil {
			return fmt.Errorf("staged task %q rejected: %w", t.Title, err)
		}
		if err := db.insertTask(ctx, tx, t); err != nil {
			return fmt.Errorf("failed to create staged task %q: %w", t.Title, err)
		}
	}

	for _, e := range items.Expenses {
		if err := validateExpense(e); err != nil {
			return fmt.Errorf("staged expense rejected: %w", err)
		}
		if err := db.insertExpense(ctx, tx, e); err != nil {
			return fmt.Errorf("failed to create staged expense: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) insertExpense(ctx context.Context, exec executor, e *models.Expense) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	query := `
		INSERT INTO expenses (id, property_id, category, description, amount, date,
		                      is_recurring, recurrence_period, vendor_name, notes,
		                      start_date, end_date, document_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := exec.QueryRowContext(ctx, query,
		e.ID, e.PropertyID, e.Category, e.Description, e.Amount, e.Date,
		boolToInt(e.IsRecurring), periodValue(e.RecurrencePeriod), e.VendorName, e.Notes,
		e.StartDate, e.EndDate, e.DocumentName,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}
