package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
)

// RegistryConfig holds registry configuration.
type RegistryConfig struct {
	Rules Rules
	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Registry owns group membership: creation, join, confirm and leave.
// Every mutation runs under the group's entry in the shared lock table.
type Registry struct {
	rules  Rules
	now    func() time.Time
	store  Store
	blocks BlockList
	places PlaceChecker
	locks  *Locks
	logger *slog.Logger
}

// NewRegistry creates a new membership registry. places may be nil, in which
// case place references are not validated.
func NewRegistry(cfg RegistryConfig, store Store, blocks BlockList, places PlaceChecker, locks *Locks, logger *slog.Logger) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if locks == nil {
		locks = NewLocks()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rules:  cfg.Rules,
		now:    cfg.Now,
		store:  store,
		blocks: blocks,
		places: places,
		locks:  locks,
		logger: logger,
	}
}

// CreateGroupInput describes a new group.
type CreateGroupInput struct {
	CreatorID  uuid.UUID
	PlaceID    uuid.UUID
	DateTime   time.Time
	MaxSize    int
	Visibility domain.Visibility
	InviteCode string // required for PRIVATE groups, ignored otherwise
}

// CreateGroup creates a JOINABLE group with the creator as a confirmed member.
func (r *Registry) CreateGroup(ctx context.Context, in CreateGroupInput) (*Snapshot, error) {
	if in.CreatorID == uuid.Nil {
		return nil, fmt.Errorf("%w: creator is required", domain.ErrInvalidArgument)
	}
	if in.MaxSize < r.rules.MinSize || in.MaxSize > r.rules.MaxSize {
		return nil, fmt.Errorf("%w: maxSize must be between %d and %d", domain.ErrInvalidArgument, r.rules.MinSize, r.rules.MaxSize)
	}
	if !in.Visibility.Valid() {
		return nil, fmt.Errorf("%w: unknown visibility %q", domain.ErrInvalidArgument, in.Visibility)
	}
	if in.DateTime.IsZero() {
		return nil, fmt.Errorf("%w: dateTime is required", domain.ErrInvalidArgument)
	}

	var inviteHash *string
	if in.Visibility == domain.VisibilityPrivate {
		code, err := normalizeInviteCode(in.InviteCode)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
		}
		if code == "" {
			return nil, fmt.Errorf("%w: private groups require an invite code", domain.ErrInvalidArgument)
		}
		hash, err := HashInviteCode(code)
		if err != nil {
			return nil, fmt.Errorf("hash invite code: %w", err)
		}
		inviteHash = &hash
	}

	if r.places != nil {
		exists, err := r.places.PlaceExists(ctx, in.PlaceID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrPlaceNotFound
		}
	}

	var snap *Snapshot
	// Serialize per creator so two concurrent creates can't both pass the quota check.
	err := r.locks.With(in.CreatorID, func() error {
		active, err := r.store.CountGroupsByCreatorExcluding(ctx, in.CreatorID, domain.GroupStatusExpired)
		if err != nil {
			return err
		}
		if active >= r.rules.MaxActiveGroupsPerCreator {
			return domain.ErrQuotaExceeded
		}

		now := r.now()
		g := &domain.Group{
			ID:             uuid.New(),
			CreatorID:      in.CreatorID,
			PlaceID:        in.PlaceID,
			DateTime:       in.DateTime,
			MaxSize:        in.MaxSize,
			Visibility:     in.Visibility,
			InviteCodeHash: inviteHash,
			Status:         domain.GroupStatusJoinable,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		creator := &domain.GroupMember{
			GroupID:   g.ID,
			UserID:    in.CreatorID,
			Confirmed: true,
			JoinedAt:  now,
		}
		if err := r.store.CreateGroup(ctx, g, creator); err != nil {
			return err
		}
		snap = &Snapshot{Group: g, Members: []*domain.GroupMember{creator}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("group created", "group_id", snap.Group.ID, "creator_id", in.CreatorID, "visibility", in.Visibility)
	return snap, nil
}

// Join adds userID to a public or private group as an unconfirmed member.
func (r *Registry) Join(ctx context.Context, userID, groupID uuid.UUID) (*Snapshot, error) {
	var snap *Snapshot
	err := r.locks.With(groupID, func() error {
		g, err := r.store.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if g.Status != domain.GroupStatusJoinable {
			return fmt.Errorf("%w: group is %s, not joinable", domain.ErrInvalidState, g.Status)
		}

		members, err := r.store.ListMembers(ctx, groupID)
		if err != nil {
			return err
		}
		if len(members) >= g.MaxSize {
			return domain.ErrFull
		}
		if userID == g.CreatorID {
			return fmt.Errorf("%w: creator is already a member", domain.ErrForbidden)
		}
		blocked, err := r.blocks.IsBlocked(ctx, g.CreatorID, userID)
		if err != nil {
			return err
		}
		if blocked {
			return fmt.Errorf("%w: blocked by the group creator", domain.ErrForbidden)
		}
		if domain.FindMember(members, userID) != nil {
			return domain.ErrConflict
		}

		m := &domain.GroupMember{
			GroupID:   groupID,
			UserID:    userID,
			Confirmed: false,
			JoinedAt:  r.now(),
		}
		if err := r.store.AddMember(ctx, m); err != nil {
			return err
		}
		snap = &Snapshot{Group: g, Members: append(members, m)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("member joined", "group_id", groupID, "user_id", userID, "members", snap.MemberCount())
	return snap, nil
}

// JoinPrivate checks the invite code of a private group and then joins it.
func (r *Registry) JoinPrivate(ctx context.Context, userID, groupID uuid.UUID, inviteCode string) (*Snapshot, error) {
	g, err := r.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsPrivate() || g.InviteCodeHash == nil {
		return nil, fmt.Errorf("%w: not a private group", domain.ErrInvalidState)
	}
	code, err := normalizeInviteCode(inviteCode)
	if err != nil || !VerifyInviteCode(code, *g.InviteCodeHash) {
		r.logger.Warn("invalid invite code", "group_id", groupID, "user_id", userID)
		return nil, domain.ErrUnauthorized
	}
	return r.Join(ctx, userID, groupID)
}

// Leave removes userID from a group that is not ACTIVE. When the creator
// leaves before the group became ACTIVE the group expires.
func (r *Registry) Leave(ctx context.Context, userID, groupID uuid.UUID) (*Snapshot, error) {
	var snap *Snapshot
	var expired bool
	err := r.locks.With(groupID, func() error {
		g, err := r.store.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if g.Status == domain.GroupStatusActive {
			return fmt.Errorf("%w: cannot leave an active group", domain.ErrInvalidState)
		}

		members, err := r.store.ListMembers(ctx, groupID)
		if err != nil {
			return err
		}
		if domain.FindMember(members, userID) == nil {
			return domain.ErrNotAMember
		}

		if userID == g.CreatorID && !g.Status.IsTerminal() {
			err = r.store.TransitionGroup(ctx, groupID, g.Status, domain.GroupStatusExpired, []uuid.UUID{userID})
			if err != nil {
				return err
			}
			g.Status = domain.GroupStatusExpired
			expired = true
		} else if err := r.store.RemoveMember(ctx, groupID, userID); err != nil {
			if errors.Is(err, domain.ErrMemberNotFound) {
				return domain.ErrNotAMember
			}
			return err
		}

		remaining := make([]*domain.GroupMember, 0, len(members))
		for _, m := range members {
			if m.UserID != userID {
				remaining = append(remaining, m)
			}
		}
		snap = &Snapshot{Group: g, Members: remaining}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("member left", "group_id", groupID, "user_id", userID)
	if expired {
		r.logger.Info("group expired because creator left before ACTIVE", "group_id", groupID)
	}
	return snap, nil
}

// Confirm marks userID's attendance as confirmed. Confirming twice is a no-op.
func (r *Registry) Confirm(ctx context.Context, userID, groupID uuid.UUID) (*Snapshot, error) {
	var snap *Snapshot
	err := r.locks.With(groupID, func() error {
		g, err := r.store.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if g.Status != domain.GroupStatusConfirmation {
			return fmt.Errorf("%w: confirmation not allowed while group is %s", domain.ErrInvalidState, g.Status)
		}

		members, err := r.store.ListMembers(ctx, groupID)
		if err != nil {
			return err
		}
		m := domain.FindMember(members, userID)
		if m == nil {
			return domain.ErrNotAMember
		}
		if !m.Confirmed {
			if err := r.store.ConfirmMember(ctx, groupID, userID); err != nil {
				return err
			}
			m.Confirmed = true
		}
		snap = &Snapshot{Group: g, Members: members}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("attendance confirmed", "group_id", groupID, "user_id", userID)
	return snap, nil
}

// Get returns the current snapshot of a group.
func (r *Registry) Get(ctx context.Context, groupID uuid.UUID) (*Snapshot, error) {
	g, err := r.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := r.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Group: g, Members: members}, nil
}

// ListByUser returns every group userID is currently a member of.
func (r *Registry) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Group, error) {
	return r.store.ListGroupsByMember(ctx, userID)
}
