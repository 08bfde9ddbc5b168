package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ldi/caretaker/pkg/models"
)

func TestTaskCRUD(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	task := &models.Task{
		Title:       "Replace smoke detectors",
		Description: "All units, building A",
		Category:    "maintenance",
		Priority:    models.TaskPriorityHigh,
		DueDate:     &due,
		Attachments: []models.Attachment{
			{FileName: "quote.pdf", ContentType: "application/pdf", SizeBytes: 84213},
		},
	}

	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	if len(task.ID) != 36 || !strings.Contains(task.ID, "-") {
		t.Errorf("Expected UUID task ID, got %s", task.ID)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("Expected default status pending, got %s", task.Status)
	}
	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Errorf("Expected CreatedAt and UpdatedAt to be set")
	}

	fetched, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if fetched == nil {
		t.Fatal("Task not found")
	}
	if fetched.Title != task.Title {
		t.Errorf("Expected title %s, got %s", task.Title, fetched.Title)
	}
	if fetched.DueDate == nil || !fetched.DueDate.Equal(due) {
		t.Errorf("Expected due date %v, got %v", due, fetched.DueDate)
	}
	if len(fetched.Attachments) != 1 || fetched.Attachments[0].FileName != "quote.pdf" {
		t.Errorf("Expected attachment metadata, got %v", fetched.Attachments)
	}

	if err := db.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("Failed to delete task: %v", err)
	}
	fetched, err = db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if fetched != nil {
		t.Error("Expected task gone after delete")
	}

	if err := db.DeleteTask(ctx, task.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on double delete, got %v", err)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.CreateTask(ctx, &models.Task{Title: "Bad priority", Priority: "critical"})
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}

	err = db.CreateTask(ctx, &models.Task{Title: "Bad status", Status: "done"})
	if !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}
}

func TestPatchTaskRecordsHistory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task := &models.Task{Title: "Clean gutters"}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	completed := models.TaskStatusCompleted
	updated, entry, err := db.PatchTask(ctx, task.ID, models.TaskPatch{Status: &completed})
	if err != nil {
		t.Fatalf("Failed to patch task: %v", err)
	}
	if updated.Status != models.TaskStatusCompleted {
		t.Errorf("Expected status completed, got %s", updated.Status)
	}
	if entry == nil {
		t.Fatal("Expected a history entry")
	}
	if entry.PreviousValues["status"] != "pending" || entry.NewValues["status"] != "completed" {
		t.Errorf("Unexpected diff: %v -> %v", entry.PreviousValues, entry.NewValues)
	}
	if len(entry.PreviousValues) != 1 {
		t.Errorf("Expected only the changed key in the diff, got %v", entry.PreviousValues)
	}

	history, err := db.ListTaskHistory(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to list history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(history))
	}
	if history[0].Action != "status: pending -> completed" {
		t.Errorf("Unexpected action label: %q", history[0].Action)
	}
}

func TestPatchTaskNoOpWritesNothing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task := &models.Task{Title: "Trim hedges", Priority: models.TaskPriorityLow}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	low := models.TaskPriorityLow
	_, entry, err := db.PatchTask(ctx, task.ID, models.TaskPatch{Priority: &low})
	if err != nil {
		t.Fatalf("Failed to patch task: %v", err)
	}
	if entry != nil {
		t.Errorf("Expected no history entry for a no-op patch, got %v", entry)
	}

	history, err := db.ListTaskHistory(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to list history: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history, got %d entries", len(history))
	}
}

func TestPatchTaskUnknownStatusRejectedBeforeWrite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task := &models.Task{Title: "Repaint fence"}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	bogus := models.TaskStatus("archived")
	_, _, err := db.PatchTask(ctx, task.ID, models.TaskPatch{Status: &bogus})
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState, got %v", err)
	}

	// All-or-nothing: the rejected transition left no trace.
	fetched, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if fetched.Status != models.TaskStatusPending {
		t.Errorf("Expected status untouched, got %s", fetched.Status)
	}
	history, err := db.ListTaskHistory(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to list history: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no history writes, got %d", len(history))
	}
}

func TestPatchTaskReopenPreservesTerminalStatus(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task := &models.Task{Title: "Annual inspection", Status: models.TaskStatusCompleted}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	pending := models.TaskStatusPending
	_, entry, err := db.PatchTask(ctx, task.ID, models.TaskPatch{Status: &pending})
	if err != nil {
		t.Fatalf("Failed to reopen task: %v", err)
	}
	if entry == nil {
		t.Fatal("Expected a history entry")
	}
	if entry.PreviousValues["status"] != "completed" {
		t.Errorf("Expected prior terminal status preserved, got %v", entry.PreviousValues["status"])
	}
	if !strings.Contains(entry.Action, "(reopened from completed)") {
		t.Errorf("Expected reopen marker in action, got %q", entry.Action)
	}
}

func TestPatchTaskNotFound(t *testing.T) {
	db := openTestDB(t)

	title := "whatever"
	_, _, err := db.PatchTask(context.Background(), "no-such-id", models.TaskPatch{Title: &title})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListTasksFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	propertyID := "prop-1"
	tasks := []*models.Task{
		{Title: "A", Status: models.TaskStatusPending, PropertyID: &propertyID},
		{Title: "B", Status: models.TaskStatusCompleted, PropertyID: &propertyID},
		{Title: "C", Status: models.TaskStatusPending},
	}
	for _, task := range tasks {
		if err := db.CreateTask(ctx, task); err != nil {
			t.Fatalf("Failed to create task: %v", err)
		}
	}

	pending := models.TaskStatusPending
	got, err := db.ListTasks(ctx, TaskFilter{Status: &pending})
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 pending tasks, got %d", len(got))
	}

	got, err = db.ListTasks(ctx, TaskFilter{Status: &pending, PropertyID: &propertyID})
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(got) != 1 || got[0].Title != "A" {
		t.Errorf("Expected only task A, got %v", got)
	}
}
