// Package gate answers whether a user may act inside a group right now.
// It only reads state.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
	"github.com/tendant/localgroup/pkg/group"
)

// Decision is the outcome of a check. Reason wraps one of the domain
// sentinels when the action is denied.
type Decision struct {
	Allowed bool
	Reason  error
}

// Err returns nil when allowed and the denial reason otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return d.Reason
}

var allowed = Decision{Allowed: true}

func deny(err error) Decision {
	return Decision{Reason: err}
}

// Reader is the read side of the group store.
type Reader interface {
	GetGroup(ctx context.Context, id uuid.UUID) (*domain.Group, error)
	GetMember(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupMember, error)
}

// Gatekeeper checks chat and safety eligibility.
type Gatekeeper struct {
	groups Reader
	blocks group.BlockList
}

// New creates a gatekeeper.
func New(groups Reader, blocks group.BlockList) *Gatekeeper {
	return &Gatekeeper{groups: groups, blocks: blocks}
}

// CanSendMessage allows members of an ACTIVE group who are not on the
// creator's block list.
func (g *Gatekeeper) CanSendMessage(ctx context.Context, groupID, userID uuid.UUID) Decision {
	grp, d := g.activeMember(ctx, groupID, userID)
	if !d.Allowed {
		return d
	}
	blocked, err := g.blocks.IsBlocked(ctx, grp.CreatorID, userID)
	if err != nil {
		return deny(err)
	}
	if blocked {
		return deny(fmt.Errorf("%w: blocked by the group creator", domain.ErrForbidden))
	}
	return allowed
}

// CanTriggerSafetyEvent allows any member of an ACTIVE group. The creator's
// block list does not apply.
func (g *Gatekeeper) CanTriggerSafetyEvent(ctx context.Context, groupID, userID uuid.UUID) Decision {
	_, d := g.activeMember(ctx, groupID, userID)
	return d
}

func (g *Gatekeeper) activeMember(ctx context.Context, groupID, userID uuid.UUID) (*domain.Group, Decision) {
	grp, err := g.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, deny(err)
	}
	if grp.Status != domain.GroupStatusActive {
		return nil, deny(fmt.Errorf("%w: group is %s", domain.ErrInvalidState, grp.Status))
	}
	if _, err := g.groups.GetMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, deny(domain.ErrNotAMember)
		}
		return nil, deny(err)
	}
	return grp, allowed
}
