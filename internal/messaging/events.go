package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Event routing keys
const (
	// EventReminderBatchCreated is published after a batch was submitted to
	// the calendar provider with at least one event created.
	EventReminderBatchCreated = "reminder.batch_created"
	// EventReminderReauthRequired asks the consent flow to re-acquire a
	// user's delegated calendar credential.
	EventReminderReauthRequired = "reminder.reauth_required"
)

// ServiceName is stamped on every published event.
const ServiceName = "reminder-service"

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType   string    `json:"event_type"`
	EventID     string    `json:"event_id"`
	Timestamp   time.Time `json:"timestamp"`
	ServiceName string    `json:"service_name"`
}

// ReminderBatchCreatedEvent reports the outcome of one calendar sync.
type ReminderBatchCreatedEvent struct {
	BaseEvent
	Data ReminderBatchCreatedData `json:"data"`
}

type ReminderBatchCreatedData struct {
	UserID          string    `json:"user_id"`
	BatchID         string    `json:"batch_id,omitempty"`
	CreatedEventIDs []string  `json:"created_event_ids"`
	FailedCount     int       `json:"failed_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// ReminderReauthRequiredEvent is published when a user's delegated
// credential is missing, revoked or expired.
type ReminderReauthRequiredEvent struct {
	BaseEvent
	Data ReminderReauthRequiredData `json:"data"`
}

type ReminderReauthRequiredData struct {
	UserID   string    `json:"user_id"`
	Provider string    `json:"provider"`
	Reason   string    `json:"reason"` // no_refresh_token or invalid_grant
	BatchID  string    `json:"batch_id,omitempty"`
	At       time.Time `json:"at"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType:   eventType,
		EventID:     uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		ServiceName: ServiceName,
	}
}
