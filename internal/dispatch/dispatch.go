// Package dispatch resolves a task's communication settings into outbound
// email/SMS messages, each tracked as an auditable record with its own
// delivery status.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ldi/caretaker/pkg/models"
)

// Sender delivers a single message on one channel. Implementations talk to
// the actual mail/SMS provider; the default senders only simulate delivery.
type Sender interface {
	Send(ctx context.Context, c *models.Communication) error
}

// Store persists communication records. Resolve moves a record out of
// pending exactly once; it never re-dispatches.
type Store interface {
	CreateCommunication(ctx context.Context, c *models.Communication) error
	ResolveCommunication(ctx context.Context, id string, status models.CommunicationStatus, errorMessage *string) error
}

// Override is a user-composed ad hoc message, independent of the task's
// stored communication settings. Its method names a single channel.
type Override struct {
	Method    models.CommunicationMethod `json:"method"`
	Recipient string                     `json:"recipient"`
	Subject   *string                    `json:"subject"`
	Message   string                     `json:"message"`
}

const defaultSendTimeout = 10 * time.Second

type Dispatcher struct {
	store   Store
	email   Sender
	sms     Sender
	timeout time.Duration
}

// New builds a dispatcher. Nil senders fall back to simulated delivery;
// a zero timeout falls back to 10s. Each send is bounded by the timeout.
func New(store Store, email, sms Sender, timeout time.Duration) *Dispatcher {
	if email == nil {
		email = simulatedSender{}
	}
	if sms == nil {
		sms = simulatedSender{}
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Dispatcher{store: store, email: email, sms: sms, timeout: timeout}
}

// plan is one validated outbound message, fixed before any record is written.
type plan struct {
	method    models.CommunicationMethod
	recipient string
	subject   *string
	message   string
}

// Dispatch sends the messages implied by the task's communication settings,
// or the override when one is given. All recipients are validated before
// the first record is written: malformed input is rejected with a
// validation error and creates nothing, not even a failed record.
//
// For method both, exactly two records are created and each channel
// succeeds or fails on its own; a delivery failure is recorded on its
// record, never returned as an error, and never blocks the other channel.
func (d *Dispatcher) Dispatch(ctx context.Context, task *models.Task, override *Override) ([]*models.Communication, error) {
	plans, err := d.resolve(task, override)
	if err != nil {
		return nil, err
	}

	records := make([]*models.Communication, 0, len(plans))
	for _, p := range plans {
		c := &models.Communication{
			TaskID:    task.ID,
			Method:    p.method,
			Recipient: p.recipient,
			Subject:   p.subject,
			Message:   p.message,
			Status:    models.CommunicationPending,
		}
		if err := d.store.CreateCommunication(ctx, c); err != nil {
			return records, err
		}
		d.deliver(ctx, c)
		records = append(records, c)
	}
	return records, nil
}

func (d *Dispatcher) resolve(task *models.Task, override *Override) ([]plan, error) {
	if override != nil {
		return d.resolveOverride(override)
	}
	return d.resolveTask(task)
}

func (d *Dispatcher) resolveOverride(o *Override) ([]plan, error) {
	if strings.TrimSpace(o.Message) == "" {
		return nil, models.Validationf("message is required")
	}
	switch o.Method {
	case models.CommunicationEmail:
		if err := validateEmail(o.Recipient); err != nil {
			return nil, err
		}
	case models.CommunicationSMS:
		if err := validatePhone(o.Recipient); err != nil {
			return nil, err
		}
	default:
		return nil, models.Validationf("ad hoc message method must be email or sms, got %q", o.Method)
	}
	return []plan{{method: o.Method, recipient: o.Recipient, subject: o.Subject, message: o.Message}}, nil
}

func (d *Dispatcher) resolveTask(task *models.Task) ([]plan, error) {
	subject := fmt.Sprintf("Task update: %s", task.Title)
	message := taskMessage(task)

	var plans []plan
	method := task.CommunicationMethod

	if method == models.CommunicationEmail || method == models.CommunicationBoth {
		recipient := deref(task.RecipientEmail)
		if err := validateEmail(recipient); err != nil {
			return nil, err
		}
		plans = append(plans, plan{method: models.CommunicationEmail, recipient: recipient, subject: &subject, message: message})
	}
	if method == models.CommunicationSMS || method == models.CommunicationBoth {
		recipient := deref(task.RecipientPhone)
		if err := validatePhone(recipient); err != nil {
			return nil, err
		}
		plans = append(plans, plan{method: models.CommunicationSMS, recipient: recipient, message: message})
	}
	return plans, nil
}

// deliver attempts the send and resolves the record to sent or failed. The
// record stays pending in the unlikely case the status write itself fails;
// a later ResolveCommunication can correct it without re-dispatching.
func (d *Dispatcher) deliver(ctx context.Context, c *models.Communication) {
	sender := d.email
	if c.Method == models.CommunicationSMS {
		sender = d.sms
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := sender.Send(sendCtx, c); err != nil {
		msg := err.Error()
		if resolveErr := d.store.ResolveCommunication(ctx, c.ID, models.CommunicationFailed, &msg); resolveErr == nil {
			c.Status = models.CommunicationFailed
			c.ErrorMessage = &msg
		}
		return
	}
	if err := d.store.ResolveCommunication(ctx, c.ID, models.CommunicationSent, nil); err == nil {
		c.Status = models.CommunicationSent
	}
}

func taskMessage(task *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task %q is %s.", task.Title, task.Status)
	if task.DueDate != nil {
		fmt.Fprintf(&b, " Due %s.", task.DueDate.Format("2006-01-02"))
	}
	if task.Description != "" {
		fmt.Fprintf(&b, " %s", task.Description)
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// simulatedSender accepts every message without touching the network.
type simulatedSender struct{}

func (simulatedSender) Send(ctx context.Context, c *models.Communication) error {
	return ctx.Err()
}
