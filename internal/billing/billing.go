// Package billing raises rent charges against occupied units and settles
// tenant balances. Generation is always caller-invoked; there is no
// scheduler behind it.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/ldi/caretaker/pkg/models"
)

// Store is the persistence surface the engine needs.
type Store interface {
	ListOccupiedUnits(ctx context.Context) ([]*models.Unit, error)
	ListBillingRecordsForPeriod(ctx context.Context, period string) ([]*models.BillingRecord, error)
	CreateBillingRecord(ctx context.Context, b *models.BillingRecord) error
	MarkOverdueBillingRecords(ctx context.Context, now time.Time) (int, error)
	ListTenantBillingRecords(ctx context.Context, tenantID string) ([]*models.BillingRecord, error)
	ListRentPayments(ctx context.Context, tenantID *string) ([]*models.RentPayment, error)
}

type Engine struct {
	store Store
}

func New(store Store) *Engine {
	return &Engine{store: store}
}

// GenerateMonthly raises one pending rent record per occupied unit that
// does not already have one for the period ("YYYY-MM"). Rent is due on the
// first of the month. Returns how many records were created.
func (e *Engine) GenerateMonthly(ctx context.Context, period string) (int, error) {
	start, err := time.Parse("2006-01", period)
	if err != nil {
		return 0, models.Validationf("billing period %q is not YYYY-MM", period)
	}

	units, err := e.store.ListOccupiedUnits(ctx)
	if err != nil {
		return 0, err
	}
	existing, err := e.store.ListBillingRecordsForPeriod(ctx, period)
	if err != nil {
		return 0, err
	}

	billed := make(map[string]bool, len(existing))
	for _, b := range existing {
		billed[b.UnitID] = true
	}

	generated := 0
	for _, u := range units {
		if billed[u.ID] || u.TenantID == nil {
			continue
		}
		record := &models.BillingRecord{
			TenantID:      *u.TenantID,
			UnitID:        u.ID,
			Amount:        u.RentAmount,
			BillingPeriod: period,
			DueDate:       start,
			Status:        models.BillingPending,
			Type:          "rent",
		}
		if err := e.store.CreateBillingRecord(ctx, record); err != nil {
			return generated, fmt.Errorf("failed to bill unit %s: %w", u.Name, err)
		}
		generated++
	}
	return generated, nil
}

// RunAutomatic generates the current period's records and flips past-due
// pending records to overdue. Returns the generated and updated counts.
func (e *Engine) RunAutomatic(ctx context.Context, now time.Time) (generated, updated int, err error) {
	generated, err = e.GenerateMonthly(ctx, now.Format("2006-01"))
	if err != nil {
		return 0, 0, err
	}
	updated, err = e.store.MarkOverdueBillingRecords(ctx, now)
	if err != nil {
		return generated, 0, err
	}
	return generated, updated, nil
}

// OutstandingBalance is the sum of a tenant's unpaid billing amounts minus
// everything they have paid, floored at zero.
func (e *Engine) OutstandingBalance(ctx context.Context, tenantID string) (float64, error) {
	records, err := e.store.ListTenantBillingRecords(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	payments, err := e.store.ListRentPayments(ctx, &tenantID)
	if err != nil {
		return 0, err
	}

	var owed float64
	for _, b := range records {
		if b.Status == models.BillingPaid {
			continue
		}
		amount, err := models.ParseAmount(b.Amount)
		if err != nil {
			return 0, err
		}
		owed += amount
	}

	var paid float64
	for _, p := range payments {
		amount, err := models.ParseAmount(p.Amount)
		if err != nil {
			return 0, err
		}
		paid += amount
	}

	balance := owed - paid
	if balance < 0 {
		balance = 0
	}
	return balance, nil
}
