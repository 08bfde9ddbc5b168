// Package lifecycle governs task status transitions and field validation.
//
// The status relation is deliberately total: the task surface exposes a
// free-form status select, so every recognized status is reachable from
// every other. Only unrecognized status values are rejected. Completed and
// cancelled are terminal in name only; moving out of them is allowed and is
// reported so the caller can preserve the prior terminal status in the
// task's history.
package lifecycle

import (
	"strings"

	"github.com/ldi/caretaker/pkg/models"
)

// Transition is an accepted status change.
type Transition struct {
	From models.TaskStatus
	To   models.TaskStatus

	// ReopensTerminal is set when the task leaves completed or cancelled
	// for pending or in_progress.
	ReopensTerminal bool
}

// ValidateTransition checks a requested status change. An unrecognized
// status on either side fails with an invalid-state error before anything
// is written.
func ValidateTransition(from, to models.TaskStatus) (Transition, error) {
	if !from.Valid() {
		return Transition{}, models.InvalidStatef("unrecognized status %q", from)
	}
	if !to.Valid() {
		return Transition{}, models.InvalidStatef("unrecognized status %q", to)
	}
	return Transition{
		From:            from,
		To:              to,
		ReopensTerminal: from.Terminal() && !to.Terminal(),
	}, nil
}

// Normalize fills creation defaults in place: status pending, priority
// medium, category general, communication method none.
func Normalize(t *models.Task) {
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.Priority == "" {
		t.Priority = models.TaskPriorityMedium
	}
	if strings.TrimSpace(t.Category) == "" {
		t.Category = "general"
	}
	if t.CommunicationMethod == "" {
		t.CommunicationMethod = models.CommunicationNone
	}
}

// ValidateTask checks a full task snapshot: enum membership, the
// recurrence-period pairing, and the communication recipient pairing.
func ValidateTask(t *models.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return models.Validationf("title is required")
	}
	if !t.Status.Valid() {
		return models.InvalidStatef("unrecognized status %q", t.Status)
	}
	if !t.Priority.Valid() {
		return models.Validationf("unrecognized priority %q", t.Priority)
	}
	if !t.CommunicationMethod.Valid() {
		return models.Validationf("unrecognized communication method %q", t.CommunicationMethod)
	}

	if t.IsRecurring {
		if t.RecurrencePeriod == nil {
			return models.Validationf("recurring task requires a recurrence period")
		}
		if !t.RecurrencePeriod.ValidForTask() {
			return models.Validationf("unrecognized recurrence period %q", *t.RecurrencePeriod)
		}
	} else if t.RecurrencePeriod != nil {
		return models.Validationf("recurrence period set on a non-recurring task")
	}

	switch t.CommunicationMethod {
	case models.CommunicationEmail:
		if !present(t.RecipientEmail) {
			return models.Validationf("communication method email requires a recipient email")
		}
	case models.CommunicationSMS:
		if !present(t.RecipientPhone) {
			return models.Validationf("communication method sms requires a recipient phone")
		}
	case models.CommunicationBoth:
		if !present(t.RecipientEmail) || !present(t.RecipientPhone) {
			return models.Validationf("communication method both requires a recipient email and phone")
		}
	}

	return nil
}

// Apply merges a patch onto a task snapshot and returns the merged value.
// The input task is not modified; callers diff the two snapshots for audit.
func Apply(t models.Task, p models.TaskPatch) models.Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.AssignedTo != nil {
		t.AssignedTo = p.AssignedTo
	}
	if p.IsRecurring != nil {
		t.IsRecurring = *p.IsRecurring
		if !t.IsRecurring {
			t.RecurrencePeriod = nil
		}
	}
	if p.RecurrencePeriod != nil {
		t.RecurrencePeriod = p.RecurrencePeriod
	}
	if p.CommunicationMethod != nil {
		t.CommunicationMethod = *p.CommunicationMethod
	}
	if p.RecipientEmail != nil {
		t.RecipientEmail = p.RecipientEmail
	}
	if p.RecipientPhone != nil {
		t.RecipientPhone = p.RecipientPhone
	}
	return t
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
