package group

import (
	"time"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
	"github.com/tendant/localgroup/pkg/trust"
)

// minConfirmedToStart is how many confirmed members a group needs to become ACTIVE.
const minConfirmedToStart = 2

// Decision is the outcome of evaluating one group at one instant.
type Decision struct {
	From     domain.GroupStatus
	To       domain.GroupStatus
	Removals []uuid.UUID
	Deltas   []trust.Delta
}

// Changed returns true if the decision moves the group to a new status.
func (d Decision) Changed() bool {
	return d.From != d.To
}

// Advance decides the next lifecycle step for g. It performs no I/O.
// At most one transition is returned per call; later thresholds are picked
// up on the next evaluation.
func Advance(g *domain.Group, members []*domain.GroupMember, now time.Time, rules Rules) Decision {
	d := Decision{From: g.Status, To: g.Status}

	switch g.Status {
	case domain.GroupStatusJoinable:
		windowOpens := g.DateTime.Add(-rules.ConfirmationWindow)
		if !now.Before(windowOpens) || !now.Before(g.DateTime) {
			d.To = domain.GroupStatusConfirmation
		}

	case domain.GroupStatusConfirmation:
		if now.Before(g.DateTime) {
			return d
		}
		for _, m := range members {
			if m.Confirmed {
				continue
			}
			d.Removals = append(d.Removals, m.UserID)
			d.Deltas = append(d.Deltas, trust.Delta{
				UserID: m.UserID,
				Amount: rules.NoShowPenalty,
				Reason: trust.ReasonNoShow,
			})
		}
		if domain.CountConfirmed(members) >= minConfirmedToStart {
			d.To = domain.GroupStatusActive
		} else {
			d.To = domain.GroupStatusExpired
		}

	case domain.GroupStatusActive:
		if now.Before(g.DateTime.Add(rules.ExpireBuffer)) {
			return d
		}
		for _, m := range members {
			if !m.Confirmed {
				continue
			}
			d.Deltas = append(d.Deltas, trust.Delta{
				UserID: m.UserID,
				Amount: rules.AttendedReward,
				Reason: trust.ReasonAttended,
			})
		}
		d.To = domain.GroupStatusExpired
	}

	return d
}
