// Package audit computes field-level diffs between task snapshots for the
// append-only history log.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/ldi/caretaker/pkg/models"
)

// Diff holds the changed fields of a mutation. Previous and Next contain
// only the keys whose values actually differ; a field patched to its
// current value never appears.
type Diff struct {
	fields   []string
	Previous map[string]any
	Next     map[string]any
}

// Empty reports whether the mutation was a true no-op. Empty diffs must not
// produce a history entry.
func (d Diff) Empty() bool { return len(d.fields) == 0 }

// Label derives the short action description, one "field: old -> new"
// clause per changed field, in a fixed field order.
func (d Diff) Label() string {
	clauses := make([]string, 0, len(d.fields))
	for _, f := range d.fields {
		clauses = append(clauses, fmt.Sprintf("%s: %s -> %s", f, render(d.Previous[f]), render(d.Next[f])))
	}
	return strings.Join(clauses, ", ")
}

// TaskDiff compares two task snapshots over the mutable fields.
func TaskDiff(previous, next models.Task) Diff {
	d := Diff{
		Previous: map[string]any{},
		Next:     map[string]any{},
	}

	d.compare("title", previous.Title, next.Title)
	d.compare("description", previous.Description, next.Description)
	d.compare("category", previous.Category, next.Category)
	d.compare("priority", string(previous.Priority), string(next.Priority))
	d.compare("status", string(previous.Status), string(next.Status))
	d.compareTime("dueDate", previous.DueDate, next.DueDate)
	d.comparePtr("assignedTo", previous.AssignedTo, next.AssignedTo)
	d.compareBool("isRecurring", previous.IsRecurring, next.IsRecurring)
	d.comparePtr("recurrencePeriod", periodPtr(previous.RecurrencePeriod), periodPtr(next.RecurrencePeriod))
	d.compare("communicationMethod", string(previous.CommunicationMethod), string(next.CommunicationMethod))
	d.comparePtr("recipientEmail", previous.RecipientEmail, next.RecipientEmail)
	d.comparePtr("recipientPhone", previous.RecipientPhone, next.RecipientPhone)

	return d
}

func (d *Diff) compare(field, prev, next string) {
	if prev == next {
		return
	}
	d.record(field, prev, next)
}

func (d *Diff) compareBool(field string, prev, next bool) {
	if prev == next {
		return
	}
	d.record(field, prev, next)
}

func (d *Diff) comparePtr(field string, prev, next *string) {
	if equalPtr(prev, next) {
		return
	}
	d.record(field, deref(prev), deref(next))
}

func (d *Diff) compareTime(field string, prev, next *time.Time) {
	if prev == nil && next == nil {
		return
	}
	if prev != nil && next != nil && prev.Equal(*next) {
		return
	}
	d.record(field, formatTime(prev), formatTime(next))
}

func (d *Diff) record(field string, prev, next any) {
	d.fields = append(d.fields, field)
	d.Previous[field] = prev
	d.Next[field] = next
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func periodPtr(p *models.RecurrencePeriod) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func render(v any) string {
	if v == nil {
		return "none"
	}
	if s, ok := v.(string); ok && s == "" {
		return "none"
	}
	return fmt.Sprintf("%v", v)
}
