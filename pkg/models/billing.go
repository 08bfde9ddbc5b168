package models

import "time"

type BillingStatus string

const (
	BillingPending BillingStatus = "pending"
	BillingPaid    BillingStatus = "paid"
	BillingOverdue BillingStatus = "overdue"
)

func (s BillingStatus) Valid() bool {
	switch s {
	case BillingPending, BillingPaid, BillingOverdue:
		return true
	}
	return false
}

// BillingRecord is a charge raised against a tenant for a billing period.
// Amounts travel as decimal strings end to end; BillingPeriod is "YYYY-MM".
type BillingRecord struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenantId"`
	UnitID        string        `json:"unitId"`
	Amount        string        `json:"amount"`
	BillingPeriod string        `json:"billingPeriod"`
	DueDate       time.Time     `json:"dueDate"`
	Status        BillingStatus `json:"status"`
	Type          string        `json:"type"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type RentPayment struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenantId"`
	UnitID        string    `json:"unitId"`
	Amount        string    `json:"amount"`
	PaidDate      time.Time `json:"paidDate"`
	PaymentMethod string    `json:"paymentMethod"`
	Notes         *string   `json:"notes"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
