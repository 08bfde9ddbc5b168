package models

import "time"

// HistoryEntry is an immutable audit record of a field-level change to a
// task. Entries are append-only and read newest-first; PreviousValues and
// NewValues hold only the keys that changed.
type HistoryEntry struct {
	ID             string         `json:"id"`
	TaskID         string         `json:"taskId"`
	Action         string         `json:"action"`
	PreviousValues map[string]any `json:"previousValues"`
	NewValues      map[string]any `json:"newValues"`
	CreatedAt      time.Time      `json:"createdAt"`
}
