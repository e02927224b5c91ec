// Package notifier delivers workflow-transition events to the external
// notification/email collaborator. Delivery is best-effort: a sink failure is
// logged and never fails the core operation that emitted the event.
package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the quota core.
const (
	EventSlotRequestSubmitted = "slot_request.submitted"
	EventSlotRequestApproved  = "slot_request.approved"
	EventSlotRequestDeclined  = "slot_request.declined"
	EventTemplateUpdated      = "template.updated"
	EventTemplateDeleted      = "template.deleted"
	EventTemplateAssigned     = "template.assigned"
)

// Event is a domain event handed to the sink.
type Event struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	AccountID  uint                   `json:"account_id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(name string, accountID uint, payload map[string]interface{}) Event {
	return Event{
		ID:         uuid.New().String(),
		Name:       name,
		AccountID:  accountID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Sink receives domain events. Publish must not block the caller beyond its
// own timeout and must swallow delivery failures.
type Sink interface {
	Publish(ctx context.Context, event Event)
}

// NoopSink drops every event. Used when no sink is configured and in tests.
type NoopSink struct{}

// Publish discards the event.
func (NoopSink) Publish(context.Context, Event) {}
