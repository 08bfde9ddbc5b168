package models

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is a recognized task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is completed or cancelled. Terminal statuses
// are not absorbing: tasks may be reopened, and the reopen is recorded in
// the task's history.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

type RecurrencePeriod string

const (
	RecurrenceWeekly    RecurrencePeriod = "weekly"
	RecurrenceMonthly   RecurrencePeriod = "monthly"
	RecurrenceQuarterly RecurrencePeriod = "quarterly"
	RecurrenceYearly    RecurrencePeriod = "yearly"
)

// ValidForTask reports whether p is a recognized task recurrence period.
// Tasks additionally allow weekly, which carries no amortization rule.
func (p RecurrencePeriod) ValidForTask() bool {
	return p == RecurrenceWeekly || p.ValidForExpense()
}

// ValidForExpense reports whether p is a recognized expense recurrence period.
func (p RecurrencePeriod) ValidForExpense() bool {
	switch p {
	case RecurrenceMonthly, RecurrenceQuarterly, RecurrenceYearly:
		return true
	}
	return false
}

type CommunicationMethod string

const (
	CommunicationNone  CommunicationMethod = "none"
	CommunicationEmail CommunicationMethod = "email"
	CommunicationSMS   CommunicationMethod = "sms"
	CommunicationBoth  CommunicationMethod = "both"
)

func (m CommunicationMethod) Valid() bool {
	switch m {
	case CommunicationNone, CommunicationEmail, CommunicationSMS, CommunicationBoth:
		return true
	}
	return false
}

type Task struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Description         string              `json:"description"`
	Category            string              `json:"category"`
	Priority            TaskPriority        `json:"priority"`
	Status              TaskStatus          `json:"status"`
	DueDate             *time.Time          `json:"dueDate"`
	AssignedTo          *string             `json:"assignedTo"`
	PropertyID          *string             `json:"propertyId"`
	UnitID              *string             `json:"unitId"`
	TenantID            *string             `json:"tenantId"`
	VendorID            *string             `json:"vendorId"`
	RentPaymentID       *string             `json:"rentPaymentId"`
	IsRecurring         bool                `json:"isRecurring"`
	RecurrencePeriod    *RecurrencePeriod   `json:"recurrencePeriod"`
	CommunicationMethod CommunicationMethod `json:"communicationMethod"`
	RecipientEmail      *string             `json:"recipientEmail"`
	RecipientPhone      *string             `json:"recipientPhone"`
	Attachments         []Attachment        `json:"attachments,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// Attachment is stored metadata for a file uploaded alongside a task.
// File contents live in external storage and are not managed here.
type Attachment struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TaskPatch is a partial task update. Nil fields are left unchanged.
type TaskPatch struct {
	Title               *string              `json:"title"`
	Description         *string              `json:"description"`
	Category            *string              `json:"category"`
	Priority            *TaskPriority        `json:"priority"`
	Status              *TaskStatus          `json:"status"`
	DueDate             *time.Time           `json:"dueDate"`
	AssignedTo          *string              `json:"assignedTo"`
	IsRecurring         *bool                `json:"isRecurring"`
	RecurrencePeriod    *RecurrencePeriod    `json:"recurrencePeriod"`
	CommunicationMethod *CommunicationMethod `json:"communicationMethod"`
	RecipientEmail      *string              `json:"recipientEmail"`
	RecipientPhone      *string              `json:"recipientPhone"`
}
