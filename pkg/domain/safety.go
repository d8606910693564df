package domain

import (
	"time"

	"github.com/google/uuid"
)

// SafetyEventStatus tracks whether an SOS has been handled.
type SafetyEventStatus string

const (
	SafetyEventOpen     SafetyEventStatus = "OPEN"
	SafetyEventResolved SafetyEventStatus = "RESOLVED"
)

// SafetyEvent records an SOS raised by a member of an active group.
type SafetyEvent struct {
	ID          uuid.UUID
	GroupID     uuid.UUID
	TriggeredBy uuid.UUID
	Status      SafetyEventStatus
	CreatedAt   time.Time
}

// ChatMessage is an ephemeral group chat message. It is published, never stored.
type ChatMessage struct {
	GroupID  uuid.UUID `json:"group_id"`
	SenderID uuid.UUID `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}
