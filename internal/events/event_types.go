package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/workforce-auth/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventIdentityChanged fires after a user's authorization-relevant
	// attributes (status, position, team) were modified.
	EventIdentityChanged EventType = "identity_changed"
)

// Actor identifies who triggered an event.
type Actor struct {
	Service bool    `json:"service"`
	UserID  *string `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SubjectID string    `json:"subject_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// IdentityChangedPayload payload.
type IdentityChangedPayload struct {
	OldStatus domain.UserStatus `json:"old_status"`
	NewStatus domain.UserStatus `json:"new_status"`
}

// NewEvent stamps an event with a fresh id and the current UTC time.
func NewEvent(eventType EventType, subjectID string, actor Actor, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
