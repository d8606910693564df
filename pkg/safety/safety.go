// Package safety records SOS alerts raised by group members and fans them
// out to whoever watches the safety subject.
package safety

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
	"github.com/tendant/localgroup/pkg/events"
	"github.com/tendant/localgroup/pkg/gate"
)

// Notice is returned to the user with every alert.
const Notice = "This is not an emergency service and does not contact authorities."

// Store persists safety events.
type Store interface {
	CreateSafetyEvent(ctx context.Context, e *domain.SafetyEvent) error
}

// Service handles SOS triggers.
type Service struct {
	gate      *gate.Gatekeeper
	store     Store
	publisher events.Publisher
	subjects  events.Subjects
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a safety service.
func NewService(gk *gate.Gatekeeper, store Store, publisher events.Publisher, subjects events.Subjects, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gate:      gk,
		store:     store,
		publisher: publisher,
		subjects:  subjects,
		now:       time.Now,
		logger:    logger,
	}
}

// TriggerSOS records an OPEN safety event for a member of an ACTIVE group.
// The event is stored before it is published; a failed publish is logged and
// does not fail the alert.
func (s *Service) TriggerSOS(ctx context.Context, groupID, userID uuid.UUID) (*domain.SafetyEvent, error) {
	if d := s.gate.CanTriggerSafetyEvent(ctx, groupID, userID); !d.Allowed {
		s.logger.Warn("sos rejected", "group_id", groupID, "user_id", userID, "reason", d.Reason)
		return nil, d.Reason
	}

	e := &domain.SafetyEvent{
		ID:          uuid.New(),
		GroupID:     groupID,
		TriggeredBy: userID,
		Status:      domain.SafetyEventOpen,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateSafetyEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("record safety event: %w", err)
	}

	ev := events.SOSRaised{EventID: e.ID, GroupID: groupID, TriggeredBy: userID, At: e.CreatedAt}
	if err := s.publisher.Publish(ctx, s.subjects.SOS(groupID), ev); err != nil {
		s.logger.Error("publish sos failed", "event_id", e.ID, "group_id", groupID, "error", err)
	}

	s.logger.Info("sos triggered, notifying group members",
		"event_id", e.ID,
		"group_id", groupID,
		"user_id", userID,
		"notice", Notice,
	)
	return e, nil
}
