// Package events publishes lifecycle, chat and safety notifications for
// downstream consumers (push delivery, chat fan-out, moderation).
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "localgroup"

// StatusChanged is published after a group transition is committed.
type StatusChanged struct {
	GroupID uuid.UUID          `json:"group_id"`
	From    domain.GroupStatus `json:"from"`
	To      domain.GroupStatus `json:"to"`
	At      time.Time          `json:"at"`
}

// SOSRaised is published when a member triggers a safety alert.
type SOSRaised struct {
	EventID     uuid.UUID `json:"event_id"`
	GroupID     uuid.UUID `json:"group_id"`
	TriggeredBy uuid.UUID `json:"triggered_by"`
	At          time.Time `json:"at"`
}

// Publisher sends JSON payloads to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Subjects builds subject names under a common prefix.
type Subjects struct {
	Prefix string
}

// NewSubjects returns subject helpers for prefix, falling back to DefaultSubjectPrefix.
func NewSubjects(prefix string) Subjects {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return Subjects{Prefix: prefix}
}

// GroupStatus is the subject for a group's lifecycle transitions.
func (s Subjects) GroupStatus(groupID uuid.UUID) string {
	return s.Prefix + ".group." + groupID.String() + ".status"
}

// Chat is the subject carrying a group's chat messages.
func (s Subjects) Chat(groupID uuid.UUID) string {
	return s.Prefix + ".chat.group." + groupID.String()
}

// SOS is the subject for a group's safety alerts.
func (s Subjects) SOS(groupID uuid.UUID) string {
	return s.Prefix + ".safety.sos." + groupID.String()
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, any) error { return nil }

// Message is a published payload captured by a Recorder.
type Message struct {
	Subject string
	Data    []byte
}

// Recorder keeps published events in memory. It encodes payloads exactly like
// the NATS publisher so consumers can be tested against the wire format.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.messages = append(r.messages, Message{Subject: subject, Data: data})
	r.mu.Unlock()
	return nil
}

// Messages returns a copy of everything published so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
