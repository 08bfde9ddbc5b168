package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/caretaker/pkg/models"
)

// The property/unit/tenant/vendor tables are read-only collaborator
// projections: this core lists them for display-name resolution and billing
// generation but never exposes a mutation path. Seed is the only writer and
// exists for init and tests.

// ListProperties returns all properties ordered by name.
func (db *DB) ListProperties(ctx context.Context) ([]*models.Property, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, address FROM properties ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	var properties []*models.Property
	for rows.Next() {
		p := &models.Property{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Address); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

// ListUnits returns all units ordered by name.
func (db *DB) ListUnits(ctx context.Context) ([]*models.Unit, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, property_id, name, tenant_id, rent_amount FROM units ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	var units []*models.Unit
	for rows.Next() {
		u := &models.Unit{}
		if err := rows.Scan(&u.ID, &u.PropertyID, &u.Name, &u.TenantID, &u.RentAmount); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// ListOccupiedUnits returns units with a tenant assigned; billing
// generation raises one rent charge per occupied unit.
func (db *DB) ListOccupiedUnits(ctx context.Context) ([]*models.Unit, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, property_id, name, tenant_id, rent_amount FROM units WHERE tenant_id IS NOT NULL ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list occupied units: %w", err)
	}
	defer rows.Close()

	var units []*models.Unit
	for rows.Next() {
		u := &models.Unit{}
		if err := rows.Scan(&u.ID, &u.PropertyID, &u.Name, &u.TenantID, &u.RentAmount); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// ListTenants returns all tenants ordered by name.
func (db *DB) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, email, phone FROM tenants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		t := &models.Tenant{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Email, &t.Phone); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// GetTenant retrieves a tenant by ID. Returns nil if not found.
func (db *DB) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	t := &models.Tenant{}
	err := db.QueryRowContext(ctx, `SELECT id, name, email, phone FROM tenants WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Email, &t.Phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// ListVendors returns all vendors ordered by name.
func (db *DB) ListVendors(ctx context.Context) ([]*models.Vendor, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, email, phone, service FROM vendors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []*models.Vendor
	for rows.Next() {
		v := &models.Vendor{}
		if err := rows.Scan(&v.ID, &v.Name, &v.Email, &v.Phone, &v.Service); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// Seed populates the collaborator tables with a small demo portfolio.
func (db *DB) Seed(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	propertyID := uuid.New().String()
	tenantID := uuid.New().String()
	vacantUnitID := uuid.New().String()
	occupiedUnitID := uuid.New().String()
	vendorID := uuid.New().String()

	statements := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO properties (id, name, address) VALUES (?, ?, ?)`,
			[]any{propertyID, "Maple Court", "12 Maple St"}},
		{`INSERT INTO tenants (id, name, email, phone) VALUES (?, ?, ?, ?)`,
			[]any{tenantID, "Jordan Reyes", "jordan@example.com", "+1 555 010 0001"}},
		{`INSERT INTO units (id, property_id, name, tenant_id, rent_amount) VALUES (?, ?, ?, ?, ?)`,
			[]any{occupiedUnitID, propertyID, "Unit 1A", tenantID, "1200"}},
		{`INSERT INTO units (id, property_id, name, tenant_id, rent_amount) VALUES (?, ?, ?, ?, ?)`,
			[]any{vacantUnitID, propertyID, "Unit 1B", nil, "1100"}},
		{`INSERT INTO vendors (id, name, email, phone, service) VALUES (?, ?, ?, ?, ?)`,
			[]any{vendorID, "Ace Plumbing", "dispatch@aceplumbing.example", "+1 555 010 0002", "plumbing"}},
	}

	for _, s := range statements {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return fmt.Errorf("failed to seed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}
