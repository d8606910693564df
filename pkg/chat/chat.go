// Package chat relays ephemeral group messages. Messages are published to
// the event bus and never stored.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
	"github.com/tendant/localgroup/pkg/events"
	"github.com/tendant/localgroup/pkg/gate"
)

// MaxContentLength is the longest message accepted, in characters.
const MaxContentLength = 500

// Service sends chat messages for ACTIVE groups.
type Service struct {
	gate      *gate.Gatekeeper
	publisher events.Publisher
	subjects  events.Subjects
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a chat service.
func NewService(gk *gate.Gatekeeper, publisher events.Publisher, subjects events.Subjects, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gate:      gk,
		publisher: publisher,
		subjects:  subjects,
		now:       time.Now,
		logger:    logger,
	}
}

// Send validates content, checks the sender may talk in the group and
// broadcasts the message.
func (s *Service) Send(ctx context.Context, groupID, senderID uuid.UUID, content string) (*domain.ChatMessage, error) {
	content = strings.TrimSpace(stripControl(content))
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", domain.ErrInvalidArgument, MaxContentLength)
	}

	if d := s.gate.CanSendMessage(ctx, groupID, senderID); !d.Allowed {
		s.logger.Warn("chat rejected", "group_id", groupID, "user_id", senderID, "reason", d.Reason)
		return nil, d.Reason
	}

	msg := &domain.ChatMessage{
		GroupID:  groupID,
		SenderID: senderID,
		Content:  content,
		SentAt:   s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, s.subjects.Chat(groupID), msg); err != nil {
		return nil, fmt.Errorf("broadcast chat message: %w", err)
	}

	s.logger.Info("chat message sent", "group_id", groupID, "user_id", senderID)
	return msg, nil
}

// stripControl drops control characters other than newline and tab.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
