package lifecycle

import (
	"errors"
	"testing"

	"github.com/ldi/caretaker/pkg/models"
)

func TestValidateTransitionTotalRelation(t *testing.T) {
	statuses := []models.TaskStatus{
		models.TaskStatusPending,
		models.TaskStatusInProgress,
		models.TaskStatusCompleted,
		models.TaskStatusCancelled,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			tr, err := ValidateTransition(from, to)
			if err != nil {
				t.Errorf("Expected %s -> %s to be accepted, got %v", from, to, err)
				continue
			}
			wantReopen := from.Terminal() && !to.Terminal()
			if tr.ReopensTerminal != wantReopen {
				t.Errorf("%s -> %s: expected ReopensTerminal=%v, got %v", from, to, wantReopen, tr.ReopensTerminal)
			}
		}
	}
}

func TestValidateTransitionUnknownStatus(t *testing.T) {
	_, err := ValidateTransition(models.TaskStatusPending, models.TaskStatus("archived"))
	if !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}

	_, err = ValidateTransition(models.TaskStatus(""), models.TaskStatusPending)
	if !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	task := models.Task{Title: "Fix boiler"}
	Normalize(&task)

	if task.Status != models.TaskStatusPending {
		t.Errorf("Expected default status pending, got %s", task.Status)
	}
	if task.Priority != models.TaskPriorityMedium {
		t.Errorf("Expected default priority medium, got %s", task.Priority)
	}
	if task.Category != "general" {
		t.Errorf("Expected default category general, got %s", task.Category)
	}
	if task.CommunicationMethod != models.CommunicationNone {
		t.Errorf("Expected default communication method none, got %s", task.CommunicationMethod)
	}
}

func TestNormalizeKeepsExplicitStatus(t *testing.T) {
	task := models.Task{Title: "Inspect roof", Status: models.TaskStatusInProgress}
	Normalize(&task)

	if task.Status != models.TaskStatusInProgress {
		t.Errorf("Expected explicit status preserved, got %s", task.Status)
	}
}

func TestValidateTask(t *testing.T) {
	email := "tenant@example.com"
	phone := "+1 555 0100"
	weekly := models.RecurrenceWeekly

	valid := models.Task{
		Title:               "Monthly inspection",
		Category:            "inspection",
		Priority:            models.TaskPriorityHigh,
		Status:              models.TaskStatusPending,
		IsRecurring:         true,
		RecurrencePeriod:    &weekly,
		CommunicationMethod: models.CommunicationBoth,
		RecipientEmail:      &email,
		RecipientPhone:      &phone,
	}
	if err := ValidateTask(&valid); err != nil {
		t.Fatalf("Expected valid task, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*models.Task)
		kind   error
	}{
		{"missing title", func(x *models.Task) { x.Title = " " }, models.ErrValidation},
		{"bad priority", func(x *models.Task) { x.Priority = "critical" }, models.ErrValidation},
		{"bad status", func(x *models.Task) { x.Status = "done" }, models.ErrInvalidState},
		{"recurring without period", func(x *models.Task) { x.RecurrencePeriod = nil }, models.ErrValidation},
		{"period without recurring", func(x *models.Task) { x.IsRecurring = false }, models.ErrValidation},
		{"email method without email", func(x *models.Task) {
			x.CommunicationMethod = models.CommunicationEmail
			x.RecipientEmail = nil
		}, models.ErrValidation},
		{"sms method without phone", func(x *models.Task) {
			x.CommunicationMethod = models.CommunicationSMS
			x.RecipientPhone = nil
		}, models.ErrValidation},
		{"both method missing phone", func(x *models.Task) { x.RecipientPhone = nil }, models.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid
			tt.mutate(&task)
			err := ValidateTask(&task)
			if !errors.Is(err, tt.kind) {
				t.Errorf("Expected %v, got %v", tt.kind, err)
			}
		})
	}
}

func TestApplyMergesOnlySetFields(t *testing.T) {
	title := "New title"
	status := models.TaskStatusCompleted

	original := models.Task{
		Title:       "Old title",
		Description: "Keep me",
		Status:      models.TaskStatusPending,
		Priority:    models.TaskPriorityLow,
	}

	merged := Apply(original, models.TaskPatch{Title: &title, Status: &status})

	if merged.Title != "New title" {
		t.Errorf("Expected patched title, got %s", merged.Title)
	}
	if merged.Status != models.TaskStatusCompleted {
		t.Errorf("Expected patched status, got %s", merged.Status)
	}
	if merged.Description != "Keep me" {
		t.Errorf("Expected untouched description, got %s", merged.Description)
	}
	if original.Title != "Old title" || original.Status != models.TaskStatusPending {
		t.Errorf("Expected original snapshot unchanged")
	}
}

func TestApplyClearsPeriodWhenRecurringDisabled(t *testing.T) {
	monthly := models.RecurrenceMonthly
	recurring := false

	original := models.Task{
		Title:            "Gutter cleaning",
		IsRecurring:      true,
		RecurrencePeriod: &monthly,
	}

	merged := Apply(original, models.TaskPatch{IsRecurring: &recurring})
	if merged.RecurrencePeriod != nil {
		t.Errorf("Expected recurrence period cleared, got %v", *merged.RecurrencePeriod)
	}
}
