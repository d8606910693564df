package group

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
)

// Store persists groups and their memberships.
//
// Lookups return domain.ErrGroupNotFound / domain.ErrMemberNotFound when the
// row is missing. AddMember returns domain.ErrConflict for a duplicate
// (group, user) pair. TransitionGroup is a compare-and-swap: it sets the
// status to `to` only if it is still `from`, removes the listed members in the
// same transaction, and returns domain.ErrStaleStatus otherwise.
type Store interface {
	CreateGroup(ctx context.Context, g *domain.Group, creator *domain.GroupMember) error
	GetGroup(ctx context.Context, id uuid.UUID) (*domain.Group, error)
	ListLiveGroups(ctx context.Context) ([]*domain.Group, error)
	ListGroupsByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Group, error)
	CountGroupsByCreatorExcluding(ctx context.Context, creatorID uuid.UUID, status domain.GroupStatus) (int, error)
	TransitionGroup(ctx context.Context, id uuid.UUID, from, to domain.GroupStatus, removals []uuid.UUID) error

	ListMembers(ctx context.Context, groupID uuid.UUID) ([]*domain.GroupMember, error)
	GetMember(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupMember, error)
	AddMember(ctx context.Context, m *domain.GroupMember) error
	ConfirmMember(ctx context.Context, groupID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
}

// BlockList answers whether a user has blocked another. It is owned by the
// user profile service.
type BlockList interface {
	IsBlocked(ctx context.Context, ownerID, userID uuid.UUID) (bool, error)
}

// PlaceChecker validates place references at group creation.
type PlaceChecker interface {
	PlaceExists(ctx context.Context, placeID uuid.UUID) (bool, error)
}

// Snapshot is a consistent view of a group and its members.
type Snapshot struct {
	Group   *domain.Group
	Members []*domain.GroupMember
}

// MemberCount returns the number of current members.
func (s *Snapshot) MemberCount() int {
	return len(s.Members)
}
