package models

import "time"

type Expense struct {
	ID               string            `json:"id"`
	PropertyID       string            `json:"propertyId"`
	Category         string            `json:"category"`
	Description      string            `json:"description"`
	Amount           string            `json:"amount"`
	Date             time.Time         `json:"date"`
	IsRecurring      bool              `json:"isRecurring"`
	RecurrencePeriod *RecurrencePeriod `json:"recurrencePeriod"`
	VendorName       *string           `json:"vendorName"`
	Notes            *string           `json:"notes"`
	StartDate        *time.Time        `json:"startDate"`
	EndDate          *time.Time        `json:"endDate"`
	DocumentName     *string           `json:"documentName"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// ExpensePatch is a partial expense update. Nil fields are left unchanged.
type ExpensePatch struct {
	Category         *string           `json:"category"`
	Description      *string           `json:"description"`
	Amount           *string           `json:"amount"`
	Date             *time.Time        `json:"date"`
	IsRecurring      *bool             `json:"isRecurring"`
	RecurrencePeriod *RecurrencePeriod `json:"recurrencePeriod"`
	VendorName       *string           `json:"vendorName"`
	Notes            *string           `json:"notes"`
	StartDate        *time.Time        `json:"startDate"`
	EndDate          *time.Time        `json:"endDate"`
	DocumentName     *string           `json:"documentName"`
}
