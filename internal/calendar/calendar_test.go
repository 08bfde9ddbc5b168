package calendar

import (
	"testing"
	"time"

	"github.com/ldi/caretaker/pkg/models"
)

func countDays(grid []Cell) (padding, days int) {
	for _, c := range grid {
		if c.Date == nil {
			padding++
		} else {
			days++
		}
	}
	return padding, days
}

func TestBuildMonthGridLeapYear(t *testing.T) {
	grid := BuildMonthGrid(2024, time.February, nil)
	padding, days := countDays(grid)
	if days != 29 {
		t.Errorf("Expected 29 day cells for February 2024, got %d", days)
	}
	// 2024-02-01 was a Thursday.
	if padding != 4 {
		t.Errorf("Expected 4 padding cells, got %d", padding)
	}
	if len(grid) != padding+days {
		t.Errorf("Expected grid length %d, got %d", padding+days, len(grid))
	}

	grid = BuildMonthGrid(2023, time.February, nil)
	_, days = countDays(grid)
	if days != 28 {
		t.Errorf("Expected 28 day cells for February 2023, got %d", days)
	}
}

func TestBuildMonthGridNoTailPadding(t *testing.T) {
	grid := BuildMonthGrid(2024, time.March, nil)
	last := grid[len(grid)-1]
	if last.Date == nil {
		t.Fatal("Expected last cell to be a real day, got padding")
	}
	if last.Date.Day() != 31 {
		t.Errorf("Expected last cell 31, got %d", last.Date.Day())
	}
	if grid[0].Date != nil {
		// 2024-03-01 was a Friday, so the grid starts with padding.
		t.Errorf("Expected leading padding for March 2024")
	}
}

func TestBuildMonthGridBucketsByDateOnly(t *testing.T) {
	due := time.Date(2024, 3, 15, 16, 45, 12, 0, time.UTC)
	task := &models.Task{ID: "t1", Title: "Service HVAC", DueDate: &due}

	grid := BuildMonthGrid(2024, time.March, []*models.Task{task})

	hits := 0
	for _, cell := range grid {
		if len(cell.Tasks) == 0 {
			continue
		}
		hits += len(cell.Tasks)
		if cell.Date == nil || cell.Date.Day() != 15 {
			t.Errorf("Task bucketed into wrong cell: %v", cell.Date)
		}
	}
	if hits != 1 {
		t.Errorf("Expected task in exactly one cell, got %d", hits)
	}
}

func TestBuildMonthGridDeterministic(t *testing.T) {
	due := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	tasks := []*models.Task{{ID: "t1", DueDate: &due}}

	a := BuildMonthGrid(2024, time.March, tasks)
	b := BuildMonthGrid(2024, time.March, tasks)

	if len(a) != len(b) {
		t.Fatalf("Expected identical grids, lengths %d vs %d", len(a), len(b))
	}
	for i := range a {
		if (a[i].Date == nil) != (b[i].Date == nil) {
			t.Fatalf("Cell %d differs in padding", i)
		}
		if a[i].Date != nil && !a[i].Date.Equal(*b[i].Date) {
			t.Fatalf("Cell %d differs in date", i)
		}
		if len(a[i].Tasks) != len(b[i].Tasks) {
			t.Fatalf("Cell %d differs in tasks", i)
		}
	}
}

func TestBuildWeekGridStartsSunday(t *testing.T) {
	// 2024-03-13 was a Wednesday; its week starts Sunday 2024-03-10.
	ref := time.Date(2024, 3, 13, 11, 30, 0, 0, time.UTC)
	grid := BuildWeekGrid(ref, nil)

	if len(grid) != 7 {
		t.Fatalf("Expected 7 cells, got %d", len(grid))
	}
	if grid[0].Date.Weekday() != time.Sunday || grid[0].Date.Day() != 10 {
		t.Errorf("Expected week to start Sunday the 10th, got %v", grid[0].Date)
	}
	if grid[6].Date.Weekday() != time.Saturday || grid[6].Date.Day() != 16 {
		t.Errorf("Expected week to end Saturday the 16th, got %v", grid[6].Date)
	}
}

func TestBuildDayGrid(t *testing.T) {
	due := time.Date(2024, 3, 13, 23, 59, 0, 0, time.UTC)
	other := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	tasks := []*models.Task{
		{ID: "match", DueDate: &due},
		{ID: "next-day", DueDate: &other},
		{ID: "no-due"},
	}

	grid := BuildDayGrid(time.Date(2024, 3, 13, 6, 0, 0, 0, time.UTC), tasks)

	if len(grid) != 1 {
		t.Fatalf("Expected 1 cell, got %d", len(grid))
	}
	if len(grid[0].Tasks) != 1 || grid[0].Tasks[0].ID != "match" {
		t.Errorf("Expected only the matching task, got %v", grid[0].Tasks)
	}
}
