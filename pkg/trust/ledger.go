// Package trust owns the reputation counter carried by every user.
// All score changes go through Ledger.Apply.
package trust

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
)

// Reason explains why a delta was applied.
type Reason string

const (
	// ReasonNoShow is applied to members removed for not confirming.
	ReasonNoShow Reason = "NO_SHOW"
	// ReasonAttended is applied to confirmed members when an active group expires.
	ReasonAttended Reason = "ATTENDED"
)

// Default deltas.
const (
	DefaultNoShowPenalty  = -2
	DefaultAttendedReward = 1
)

// Delta is one pending change to a user's trust score.
type Delta struct {
	UserID uuid.UUID
	Amount int
	Reason Reason
}

// Store persists trust scores. AddTrustScore must apply the increment atomically
// and return the new value.
type Store interface {
	AddTrustScore(ctx context.Context, userID uuid.UUID, delta int) (int, error)
	GetTrustScore(ctx context.Context, userID uuid.UUID) (int, error)
}

// Ledger applies bounded reward and penalty deltas.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

// NewLedger creates a new ledger.
func NewLedger(store Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, logger: logger}
}

// Apply adds d.Amount to the user's trust score and returns the new score.
func (l *Ledger) Apply(ctx context.Context, d Delta) (int, error) {
	if d.UserID == uuid.Nil {
		return 0, fmt.Errorf("%w: delta without user", domain.ErrInvalidArgument)
	}
	if d.Reason != ReasonNoShow && d.Reason != ReasonAttended {
		return 0, fmt.Errorf("%w: unknown reason %q", domain.ErrInvalidArgument, d.Reason)
	}

	score, err := l.store.AddTrustScore(ctx, d.UserID, d.Amount)
	if err != nil {
		return 0, fmt.Errorf("apply %s to user %s: %w", d.Reason, d.UserID, err)
	}

	l.logger.Info("trust score updated",
		"user_id", d.UserID,
		"delta", d.Amount,
		"reason", d.Reason,
		"score", score,
	)
	return score, nil
}

// ApplyAll applies deltas in order and stops at the first failure.
// It returns how many deltas were applied so the caller can retry the rest.
func (l *Ledger) ApplyAll(ctx context.Context, deltas []Delta) (int, error) {
	for i, d := range deltas {
		if _, err := l.Apply(ctx, d); err != nil {
			return i, err
		}
	}
	return len(deltas), nil
}

// Score returns a user's current trust score.
func (l *Ledger) Score(ctx context.Context, userID uuid.UUID) (int, error) {
	return l.store.GetTrustScore(ctx, userID)
}
