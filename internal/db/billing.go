package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/caretaker/pkg/models"
)

const billingColumns = `id, tenant_id, unit_id, amount, billing_period, due_date, status, type, created_at, updated_at`

func validateBillingRecord(b *models.BillingRecord) error {
	if strings.TrimSpace(b.TenantID) == "" {
		return models.Validationf("tenantId is required")
	}
	if strings.TrimSpace(b.UnitID) == "" {
		return models.Validationf("unitId is required")
	}
	if _, err := models.ParseAmount(b.Amount); err != nil {
		return err
	}
	if _, err := time.Parse("2006-01", b.BillingPeriod); err != nil {
		return models.Validationf("billingPeriod %q is not YYYY-MM", b.BillingPeriod)
	}
	if !b.Status.Valid() {
		return models.Validationf("unrecognized billing status %q", b.Status)
	}
	return nil
}

// CreateBillingRecord validates and inserts a billing record.
func (db *DB) CreateBillingRecord(ctx context.Context, b *models.BillingRecord) error {
	if b.Status == "" {
		b.Status = models.BillingPending
	}
	if b.Type == "" {
		b.Type = "rent"
	}
	if err := validateBillingRecord(b); err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	query := `
		INSERT INTO billing_records (id, tenant_id, unit_id, amount, billing_period, due_date, status, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := db.QueryRowContext(ctx, query,
		b.ID, b.TenantID, b.UnitID, b.Amount, b.BillingPeriod, b.DueDate, b.Status, b.Type,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create billing record: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// UpdateBillingRecord overwrites amount and status of an existing record.
func (db *DB) UpdateBillingRecord(ctx context.Context, id string, amount *string, status *models.BillingStatus) (*models.BillingRecord, error) {
	current, err := db.GetBillingRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, models.NotFoundf("billing record %s", id)
	}

	if amount != nil {
		if _, err := models.ParseAmount(*amount); err != nil {
			return nil, err
		}
		current.Amount = *amount
	}
	if status != nil {
		if !status.Valid() {
			return nil, models.Validationf("unrecognized billing status %q", *status)
		}
		current.Status = *status
	}

	query := `
		UPDATE billing_records
		SET amount = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err = db.QueryRowContext(ctx, query, current.Amount, current.Status, id).Scan(&current.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update billing record: %w", err)
	}

	db.triggerChange(ctx)
	return current, nil
}

// GetBillingRecord retrieves a billing record by ID. Returns nil if not found.
func (db *DB) GetBillingRecord(ctx context.Context, id string) (*models.BillingRecord, error) {
	query := `SELECT ` + billingColumns + ` FROM billing_records WHERE id = ?`
	b, err := scanBillingRecord(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get billing record: %w", err)
	}
	return b, nil
}

// ListTenantBillingRecords returns a tenant's billing records newest-first.
func (db *DB) ListTenantBillingRecords(ctx context.Context, tenantID string) ([]*models.BillingRecord, error) {
	query := `SELECT ` + billingColumns + ` FROM billing_records WHERE tenant_id = ? ORDER BY created_at DESC`
	return db.queryBillingRecords(ctx, query, tenantID)
}

// ListBillingRecordsForPeriod returns all billing records for a period.
func (db *DB) ListBillingRecordsForPeriod(ctx context.Context, period string) ([]*models.BillingRecord, error) {
	query := `SELECT ` + billingColumns + ` FROM billing_records WHERE billing_period = ?`
	return db.queryBillingRecords(ctx, query, period)
}

// MarkOverdueBillingRecords flips pending records whose due date has passed
// to overdue and returns how many rows moved.
func (db *DB) MarkOverdueBillingRecords(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE billing_records
		SET status = 'overdue', updated_at = CURRENT_TIMESTAMP
		WHERE status = 'pending' AND due_date < ?
	`
	res, err := db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue billing records: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		db.triggerChange(ctx)
	}
	return int(rows), nil
}

func (db *DB) queryBillingRecords(ctx context.Context, query string, args ...any) ([]*models.BillingRecord, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.BillingRecord
	for rows.Next() {
		b, err := scanBillingRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan billing record: %w", err)
		}
		records = append(records, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

func scanBillingRecord(row scannable) (*models.BillingRecord, error) {
	b := &models.BillingRecord{}
	err := row.Scan(&b.ID, &b.TenantID, &b.UnitID, &b.Amount, &b.BillingPeriod, &b.DueDate, &b.Status, &b.Type, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

const paymentColumns = `id, tenant_id, unit_id, amount, paid_date, payment_method, notes, created_at, updated_at`

// CreateRentPayment validates and inserts a rent payment.
func (db *DB) CreateRentPayment(ctx context.Context, p *models.RentPayment) error {
	if strings.TrimSpace(p.TenantID) == "" {
		return models.Validationf("tenantId is required")
	}
	if strings.TrimSpace(p.UnitID) == "" {
		return models.Validationf("unitId is required")
	}
	if _, err := models.ParseAmount(p.Amount); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.PaidDate.IsZero() {
		p.PaidDate = time.Now().UTC()
	}

	query := `
		INSERT INTO rent_payments (id, tenant_id, unit_id, amount, paid_date, payment_method, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := db.QueryRowContext(ctx, query,
		p.ID, p.TenantID, p.UnitID, p.Amount, p.PaidDate, p.PaymentMethod, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rent payment: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// UpdateRentPayment overwrites amount and notes of an existing payment.
func (db *DB) UpdateRentPayment(ctx context.Context, id string, amount *string, notes *string) (*models.RentPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM rent_payments WHERE id = ?`
	current, err := scanRentPayment(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.NotFoundf("rent payment %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rent payment: %w", err)
	}

	if amount != nil {
		if _, err := models.ParseAmount(*amount); err != nil {
			return nil, err
		}
		current.Amount = *amount
	}
	if notes != nil {
		current.Notes = notes
	}

	update := `
		UPDATE rent_payments
		SET amount = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err = db.QueryRowContext(ctx, update, current.Amount, current.Notes, id).Scan(&current.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update rent payment: %w", err)
	}

	db.triggerChange(ctx)
	return current, nil
}

// ListRentPayments returns payments newest-first, optionally scoped to a tenant.
func (db *DB) ListRentPayments(ctx context.Context, tenantID *string) ([]*models.RentPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM rent_payments WHERE 1=1`
	args := []any{}
	if tenantID != nil {
		query += " AND tenant_id = ?"
		args = append(args, *tenantID)
	}
	query += " ORDER BY paid_date DESC, created_at DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.RentPayment
	for rows.Next() {
		p, err := scanRentPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rent payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return payments, nil
}

func scanRentPayment(row scannable) (*models.RentPayment, error) {
	p := &models.RentPayment{}
	err := row.Scan(&p.ID, &p.TenantID, &p.UnitID, &p.Amount, &p.PaidDate, &p.PaymentMethod, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}
