package models

import "time"

type CommunicationStatus string

const (
	CommunicationPending CommunicationStatus = "pending"
	CommunicationSent    CommunicationStatus = "sent"
	CommunicationFailed  CommunicationStatus = "failed"
)

// Communication is a single outbound email or SMS message tied to a task.
// Records are append-only: once written, only the status may move, and only
// from pending to sent or failed.
type Communication struct {
	ID           string              `json:"id"`
	TaskID       string              `json:"taskId"`
	Method       CommunicationMethod `json:"method"`
	Recipient    string              `json:"recipient"`
	Subject      *string             `json:"subject"`
	Message      string              `json:"message"`
	Status       CommunicationStatus `json:"status"`
	ErrorMessage *string             `json:"errorMessage"`
	CreatedAt    time.Time           `json:"createdAt"`
}
