package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ldi/caretaker/pkg/models"
)

const expenseColumns = `id, property_id, category, description, amount, date,
	       is_recurring, recurrence_period, vendor_name, notes,
	       start_date, end_date, document_name, created_at, updated_at`

func validateExpense(e *models.Expense) error {
	if strings.TrimSpace(e.PropertyID) == "" {
		return models.Validationf("propertyId is required")
	}
	if strings.TrimSpace(e.Category) == "" {
		return models.Validationf("category is required")
	}
	if _, err := models.ParseAmount(e.Amount); err != nil {
		return err
	}
	if e.IsRecurring {
		if e.RecurrencePeriod == nil {
			return models.Validationf("recurring expense requires a recurrence period")
		}
		if !e.RecurrencePeriod.ValidForExpense() {
			return models.Validationf("unrecognized expense recurrence period %q", *e.RecurrencePeriod)
		}
	} else if e.RecurrencePeriod != nil {
		return models.Validationf("recurrence period set on a non-recurring expense")
	}
	if e.StartDate != nil && e.EndDate != nil && e.EndDate.Before(*e.StartDate) {
		return models.Validationf("endDate precedes startDate")
	}
	return nil
}

// CreateExpense validates and inserts a new expense.
func (db *DB) CreateExpense(ctx context.Context, e *models.Expense) error {
	if err := validateExpense(e); err != nil {
		return err
	}
	if err := db.insertExpense(ctx, db.DB, e); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

// GetExpense retrieves an expense by its ID. Returns nil if not found.
func (db *DB) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`
	e, err := scanExpense(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns expenses newest-first, optionally scoped to a property.
func (db *DB) ListExpenses(ctx context.Context, propertyID *string) ([]*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE 1=1`
	args := []any{}

	if propertyID != nil {
		query += " AND property_id = ?"
		args = append(args, *propertyID)
	}
	query += " ORDER BY date DESC, created_at DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return expenses, nil
}

// PatchExpense applies a partial update against the stored row.
func (db *DB) PatchExpense(ctx context.Context, id string, patch models.ExpensePatch) (*models.Expense, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`
	current, err := scanExpense(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.NotFoundf("expense %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	merged := applyExpensePatch(*current, patch)
	if err := validateExpense(&merged); err != nil {
		return nil, err
	}

	update := `
		UPDATE expenses
		SET category = ?, description = ?, amount = ?, date = ?,
		    is_recurring = ?, recurrence_period = ?, vendor_name = ?, notes = ?,
		    start_date = ?, end_date = ?, document_name = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err = tx.QueryRowContext(ctx, update,
		merged.Category, merged.Description, merged.Amount, merged.Date,
		boolToInt(merged.IsRecurring), periodValue(merged.RecurrencePeriod), merged.VendorName, merged.Notes,
		merged.StartDate, merged.EndDate, merged.DocumentName, id,
	).Scan(&merged.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return &merged, nil
}

func applyExpensePatch(e models.Expense, p models.ExpensePatch) models.Expense {
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.IsRecurring != nil {
		e.IsRecurring = *p.IsRecurring
		if !e.IsRecurring {
			e.RecurrencePeriod = nil
		}
	}
	if p.RecurrencePeriod != nil {
		e.RecurrencePeriod = p.RecurrencePeriod
	}
	if p.VendorName != nil {
		e.VendorName = p.VendorName
	}
	if p.Notes != nil {
		e.Notes = p.Notes
	}
	if p.StartDate != nil {
		e.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		e.EndDate = p.EndDate
	}
	if p.DocumentName != nil {
		e.DocumentName = p.DocumentName
	}
	return e
}

func scanExpense(row scannable) (*models.Expense, error) {
	e := &models.Expense{}
	var isRecurring int
	var period *string
	err := row.Scan(
		&e.ID, &e.PropertyID, &e.Category, &e.Description, &e.Amount, &e.Date,
		&isRecurring, &period, &e.VendorName, &e.Notes,
		&e.StartDate, &e.EndDate, &e.DocumentName, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.IsRecurring = isRecurring == 1
	if period != nil {
		p := models.RecurrencePeriod(*period)
		e.RecurrencePeriod = &p
	}
	return e, nil
}
