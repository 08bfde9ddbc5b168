package audit

import (
	"testing"
	"time"

	"github.com/ldi/caretaker/pkg/models"
)

func TestTaskDiffSingleField(t *testing.T) {
	previous := models.Task{Title: "Paint hallway", Status: models.TaskStatusPending}
	next := previous
	next.Status = models.TaskStatusCompleted

	d := TaskDiff(previous, next)

	if d.Empty() {
		t.Fatal("Expected non-empty diff")
	}
	if got := d.Previous["status"]; got != "pending" {
		t.Errorf("Expected previous status pending, got %v", got)
	}
	if got := d.Next["status"]; got != "completed" {
		t.Errorf("Expected next status completed, got %v", got)
	}
	if len(d.Previous) != 1 || len(d.Next) != 1 {
		t.Errorf("Expected only the changed key, got %v / %v", d.Previous, d.Next)
	}
	if got := d.Label(); got != "status: pending -> completed" {
		t.Errorf("Unexpected label: %q", got)
	}
}

func TestTaskDiffNoOpIsEmpty(t *testing.T) {
	email := "a@b.example"
	due := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	task := models.Task{
		Title:               "Replace filter",
		Status:              models.TaskStatusInProgress,
		DueDate:             &due,
		RecipientEmail:      &email,
		CommunicationMethod: models.CommunicationEmail,
	}

	// Same values through fresh pointers must still count as unchanged.
	email2 := "a@b.example"
	due2 := due
	same := task
	same.RecipientEmail = &email2
	same.DueDate = &due2

	d := TaskDiff(task, same)
	if !d.Empty() {
		t.Errorf("Expected empty diff, got %v -> %v", d.Previous, d.Next)
	}
}

func TestTaskDiffMultipleFieldsEnumeratedInOrder(t *testing.T) {
	previous := models.Task{
		Title:    "Inspect unit 4",
		Priority: models.TaskPriorityLow,
		Status:   models.TaskStatusPending,
	}
	next := previous
	next.Priority = models.TaskPriorityUrgent
	next.Status = models.TaskStatusInProgress

	d := TaskDiff(previous, next)

	want := "priority: low -> urgent, status: pending -> in_progress"
	if got := d.Label(); got != want {
		t.Errorf("Expected label %q, got %q", want, got)
	}
}

func TestTaskDiffNilToValue(t *testing.T) {
	assignee := "sam"
	previous := models.Task{Title: "Mow lawn"}
	next := previous
	next.AssignedTo = &assignee

	d := TaskDiff(previous, next)

	if got := d.Previous["assignedTo"]; got != nil {
		t.Errorf("Expected previous assignedTo nil, got %v", got)
	}
	if got := d.Next["assignedTo"]; got != "sam" {
		t.Errorf("Expected next assignedTo sam, got %v", got)
	}
	if got := d.Label(); got != "assignedTo: none -> sam" {
		t.Errorf("Unexpected label: %q", got)
	}
}
