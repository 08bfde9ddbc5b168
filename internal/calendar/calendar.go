// Package calendar builds date-bucketed grids for the month, week, and day
// task views. Builders are pure: the same inputs always produce the same
// grid.
package calendar

import (
	"time"

	"github.com/ldi/caretaker/pkg/models"
)

// Cell is one slot of a calendar grid. A nil Date marks a leading padding
// cell before the first of the month; Tasks holds the tasks whose due date
// falls on Date, ignoring time of day.
type Cell struct {
	Date  *time.Time     `json:"date"`
	Tasks []*models.Task `json:"tasks"`
}

// BuildMonthGrid returns the grid for a month: one nil padding cell per
// weekday before the first (Sunday = 0), then one cell per day of the
// month. The tail is never padded.
func BuildMonthGrid(year int, month time.Month, tasks []*models.Task) []Cell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := daysIn(year, month)
	padding := int(first.Weekday())

	grid := make([]Cell, 0, padding+days)
	for i := 0; i < padding; i++ {
		grid = append(grid, Cell{})
	}
	for day := 1; day <= days; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		grid = append(grid, Cell{Date: &date, Tasks: tasksOn(date, tasks)})
	}
	return grid
}

// BuildWeekGrid returns seven cells starting from the Sunday of the week
// containing ref.
func BuildWeekGrid(ref time.Time, tasks []*models.Task) []Cell {
	start := truncate(ref).AddDate(0, 0, -int(ref.Weekday()))

	grid := make([]Cell, 0, 7)
	for i := 0; i < 7; i++ {
		date := start.AddDate(0, 0, i)
		grid = append(grid, Cell{Date: &date, Tasks: tasksOn(date, tasks)})
	}
	return grid
}

// BuildDayGrid returns the single cell for the day containing ref.
func BuildDayGrid(ref time.Time, tasks []*models.Task) []Cell {
	date := truncate(ref)
	return []Cell{{Date: &date, Tasks: tasksOn(date, tasks)}}
}

func tasksOn(date time.Time, tasks []*models.Task) []*models.Task {
	var matched []*models.Task
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		if sameDay(*t.DueDate, date) {
			matched = append(matched, t)
		}
	}
	return matched
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
