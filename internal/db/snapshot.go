package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ldi/caretaker/pkg/models"
)

// snapshotLine is one JSONL record of a portfolio snapshot.
type snapshotLine struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EnableAutoSnapshot subscribes a snapshot export to the change
// notification hook, so every successful write refreshes the file.
func (db *DB) EnableAutoSnapshot(path string) {
	db.SetOnChange(func(ctx context.Context) {
		// Hooks are best-effort; an export failure must not fail the
		// write that triggered it.
		_ = db.ExportSnapshot(ctx, path)
	})
}

// ExportSnapshot writes every task, expense, billing record, rent payment,
// communication, and history entry as one JSON line each, atomically via a
// temp file rename. Output ordering is fixed, so identical data produces an
// identical file.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	w := bufio.NewWriter(tempFile)
	if err := db.writeSnapshotLines(ctx, w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func (db *DB) writeSnapshotLines(ctx context.Context, w *bufio.Writer) error {
	tasks, err := db.ListTasks(ctx, TaskFilter{})
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if err := writeLine(w, "task", t); err != nil {
			return err
		}
	}

	expenses, err := db.ListExpenses(ctx, nil)
	if err != nil {
		return err
	}
	for _, e := range expenses {
		if err := writeLine(w, "expense", e); err != nil {
			return err
		}
	}

	billing, err := db.queryBillingRecords(ctx, `SELECT `+billingColumns+` FROM billing_records ORDER BY created_at, id`)
	if err != nil {
		return err
	}
	for _, b := range billing {
		if err := writeLine(w, "billing_record", b); err != nil {
			return err
		}
	}

	payments, err := db.ListRentPayments(ctx, nil)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if err := writeLine(w, "rent_payment", p); err != nil {
			return err
		}
	}

	for _, t := range tasks {
		comms, err := db.ListTaskCommunications(ctx, t.ID)
		if err != nil {
			return err
		}
		for _, c := range comms {
			if err := writeLine(w, "communication", c); err != nil {
				return err
			}
		}
		history, err := db.ListTaskHistory(ctx, t.ID)
		if err != nil {
			return err
		}
		for _, h := range history {
			if err := writeLine(w, "history", h); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeLine(w *bufio.Writer, kind string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot record: %w", err)
	}
	line, err := json.Marshal(snapshotLine{Type: kind, Data: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot line: %w", err)
	}
	if _, err := w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write snapshot line: %w", err)
	}
	return nil
}

// ImportSnapshot reads a JSONL snapshot into the database in a single
// transaction. Records keep their snapshot IDs; rows that already exist are
// left alone, so importing into a populated database is additive.
func (db *DB) ImportSnapshot(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var line snapshotLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return fmt.Errorf("failed to parse snapshot line %d: %w", lineNo, err)
		}
		if err := importLine(ctx, tx, line); err != nil {
			return fmt.Errorf("failed to import snapshot line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func importLine(ctx context.Context, exec executor, line snapshotLine) error {
	switch line.Type {
	case "task":
		var t models.Task
		if err := json.Unmarshal(line.Data, &t); err != nil {
			return err
		}
		query := `
			INSERT OR IGNORE INTO tasks (id, title, description, category, priority, status, due_date, assigned_to,
			                             property_id, unit_id, tenant_id, vendor_id, rent_payment_id,
			                             is_recurring, recurrence_period, communication_method,
			                             recipient_email, recipient_phone, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := exec.ExecContext(ctx, query,
			t.ID, t.Title, t.Description, t.Category, t.Priority, t.Status, t.DueDate, t.AssignedTo,
			t.PropertyID, t.UnitID, t.TenantID, t.VendorID, t.RentPaymentID,
			boolToInt(t.IsRecurring), periodValue(t.RecurrencePeriod), t.CommunicationMethod,
			t.RecipientEmail, t.RecipientPhone, t.CreatedAt, t.UpdatedAt,
		)
		return err
	case "expense":
		var e models.Expense
		if err := json.Unmarshal(line.Data, &e); err != nil {
			return err
		}
		query := `
			INSERT OR IGNORE INTO expenses (id, property_id, category, description, amount, date,
			                                is_recurring, recurrence_period, vendor_name, notes,
			                                start_date, end_date, document_name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := exec.ExecContext(ctx, query,
			e.ID, e.PropertyID, e.Category, e.Description, e.Amount, e.Date,
			boolToInt(e.IsRecurring), periodValue(e.RecurrencePeriod), e.VendorName, e.Notes,
			e.StartDate, e.EndDate, e.DocumentName, e.CreatedAt, e.UpdatedAt,
		)
		return err
	case "billing_record":
		var b models.BillingRecord
		if err := json.Unmarshal(line.Data, &b); err != nil {
			return err
		}
		query := `
			INSERT OR IGNORE INTO billing_records (id, tenant_id, unit_id, amount, billing_period, due_date, status, type, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := exec.ExecContext(ctx, query, b.ID, b.TenantID, b.UnitID, b.Amount, b.BillingPeriod, b.DueDate, b.Status, b.Type, b.CreatedAt, b.UpdatedAt)
		return err
	case "rent_payment":
		var p models.RentPayment
		if err := json.Unmarshal(line.Data, &p); err != nil {
			return err
		}
		query := `
			INSERT OR IGNORE INTO rent_payments (id, tenant_id, unit_id, amount, paid_date, payment_method, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := exec.ExecContext(ctx, query, p.ID, p.TenantID, p.UnitID, p.Amount, p.PaidDate, p.PaymentMethod, p.Notes, p.CreatedAt, p.UpdatedAt)
		return err
	case "communication":
		var c models.Communication
		if err := json.Unmarshal(line.Data, &c); err != nil {
			return err
		}
		query := `
			INSERT OR IGNORE INTO communications (id, task_id, method, recipient, subject, message, status, error_message, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := exec.ExecContext(ctx, query, c.ID, c.TaskID, c.Method, c.Recipient, c.Subject, c.Message, c.Status, c.ErrorMessage, c.CreatedAt)
		return err
	case "history":
		var h models.HistoryEntry
		if err := json.Unmarshal(line.Data, &h); err != nil {
			return err
		}
		previous, err := json.Marshal(h.PreviousValues)
		if err != nil {
			return err
		}
		next, err := json.Marshal(h.NewValues)
		if err != nil {
			return err
		}
		query := `
			INSERT OR IGNORE INTO task_history (id, task_id, action, previous_values, new_values, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		_, err = exec.ExecContext(ctx, query, h.ID, h.TaskID, h.Action, string(previous), string(next), h.CreatedAt)
		return err
	default:
		return fmt.Errorf("unknown snapshot record type %q", line.Type)
	}
}
