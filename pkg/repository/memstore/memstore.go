// Package memstore is an in-memory implementation of every store contract in
// this module. It backs the test suites and STORE_DRIVER=memory deployments.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
)

type memberKey struct {
	groupID uuid.UUID
	userID  uuid.UUID
}

// Store keeps groups, members, users, places and safety events in maps.
// Values are copied on the way in and out so callers never share memory with
// the store.
type Store struct {
	mu      sync.RWMutex
	groups  map[uuid.UUID]*domain.Group
	members map[memberKey]*domain.GroupMember
	byGroup map[uuid.UUID][]uuid.UUID // group id -> member user ids, in join order
	users   map[uuid.UUID]*domain.User
	places  map[uuid.UUID]struct{}
	events  map[uuid.UUID]*domain.SafetyEvent
}

// New creates an empty store.
func New() *Store {
	return &Store{
		groups:  make(map[uuid.UUID]*domain.Group),
		members: make(map[memberKey]*domain.GroupMember),
		byGroup: make(map[uuid.UUID][]uuid.UUID),
		users:   make(map[uuid.UUID]*domain.User),
		places:  make(map[uuid.UUID]struct{}),
		events:  make(map[uuid.UUID]*domain.SafetyEvent),
	}
}

func copyGroup(g *domain.Group) *domain.Group {
	c := *g
	if g.InviteCodeHash != nil {
		h := *g.InviteCodeHash
		c.InviteCodeHash = &h
	}
	return &c
}

func copyMember(m *domain.GroupMember) *domain.GroupMember {
	c := *m
	return &c
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	c.BlockedUsers = slices.Clone(u.BlockedUsers)
	return &c
}

// CreateGroup stores a new group together with its creator's membership.
func (s *Store) CreateGroup(_ context.Context, g *domain.Group, creator *domain.GroupMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[g.ID]; ok {
		return domain.ErrConflict
	}
	s.groups[g.ID] = copyGroup(g)
	s.addMemberLocked(creator)
	return nil
}

// GetGroup retrieves a group by ID.
func (s *Store) GetGroup(_ context.Context, id uuid.UUID) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	return copyGroup(g), nil
}

// ListLiveGroups returns every group that is not EXPIRED, ordered by date.
func (s *Store) ListLiveGroups(_ context.Context) ([]*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Group
	for _, g := range s.groups {
		if !g.Status.IsTerminal() {
			out = append(out, copyGroup(g))
		}
	}
	sortGroups(out)
	return out, nil
}

// ListGroupsByMember returns the groups userID belongs to, ordered by date.
func (s *Store) ListGroupsByMember(_ context.Context, userID uuid.UUID) ([]*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Group
	for key := range s.members {
		if key.userID == userID {
			out = append(out, copyGroup(s.groups[key.groupID]))
		}
	}
	sortGroups(out)
	return out, nil
}

func sortGroups(groups []*domain.Group) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].DateTime.Equal(groups[j].DateTime) {
			return groups[i].ID.String() < groups[j].ID.String()
		}
		return groups[i].DateTime.Before(groups[j].DateTime)
	})
}

// CountGroupsByCreatorExcluding counts the creator's groups whose status is not status.
func (s *Store) CountGroupsByCreatorExcluding(_ context.Context, creatorID uuid.UUID, status domain.GroupStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, g := range s.groups {
		if g.CreatorID == creatorID && g.Status != status {
			n++
		}
	}
	return n, nil
}

// TransitionGroup moves a group from one status to another and removes members atomically.
func (s *Store) TransitionGroup(_ context.Context, id uuid.UUID, from, to domain.GroupStatus, removals []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return domain.ErrGroupNotFound
	}
	if g.Status != from {
		return domain.ErrStaleStatus
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidState, from, to)
	}
	for _, userID := range removals {
		s.removeMemberLocked(id, userID)
	}
	g.Status = to
	g.UpdatedAt = time.Now()
	return nil
}

// ListMembers returns the members of a group in join order.
func (s *Store) ListMembers(_ context.Context, groupID uuid.UUID) ([]*domain.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byGroup[groupID]
	out := make([]*domain.GroupMember, 0, len(ids))
	for _, userID := range ids {
		out = append(out, copyMember(s.members[memberKey{groupID, userID}]))
	}
	return out, nil
}

// GetMember retrieves one membership.
func (s *Store) GetMember(_ context.Context, groupID, userID uuid.UUID) (*domain.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[memberKey{groupID, userID}]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return copyMember(m), nil
}

// AddMember stores a new membership.
func (s *Store) AddMember(_ context.Context, m *domain.GroupMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[m.GroupID]; !ok {
		return domain.ErrGroupNotFound
	}
	if _, ok := s.members[memberKey{m.GroupID, m.UserID}]; ok {
		return domain.ErrConflict
	}
	s.addMemberLocked(m)
	return nil
}

func (s *Store) addMemberLocked(m *domain.GroupMember) {
	s.members[memberKey{m.GroupID, m.UserID}] = copyMember(m)
	s.byGroup[m.GroupID] = append(s.byGroup[m.GroupID], m.UserID)
}

// ConfirmMember marks a membership as confirmed.
func (s *Store) ConfirmMember(_ context.Context, groupID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberKey{groupID, userID}]
	if !ok {
		return domain.ErrMemberNotFound
	}
	m.Confirmed = true
	return nil
}

// RemoveMember deletes a membership.
func (s *Store) RemoveMember(_ context.Context, groupID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeMemberLocked(groupID, userID) {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (s *Store) removeMemberLocked(groupID, userID uuid.UUID) bool {
	key := memberKey{groupID, userID}
	if _, ok := s.members[key]; !ok {
		return false
	}
	delete(s.members, key)
	s.byGroup[groupID] = slices.DeleteFunc(s.byGroup[groupID], func(id uuid.UUID) bool {
		return id == userID
	})
	return true
}

// PutUser inserts or replaces a user profile.
func (s *Store) PutUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = copyUser(u)
}

// GetUser retrieves a user profile.
func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *Store) userLocked(id uuid.UUID) *domain.User {
	u, ok := s.users[id]
	if !ok {
		now := time.Now()
		u = &domain.User{ID: id, CreatedAt: now, UpdatedAt: now}
		s.users[id] = u
	}
	return u
}

// AddTrustScore adds delta to a user's score, creating the profile if needed.
func (s *Store) AddTrustScore(_ context.Context, userID uuid.UUID, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.userLocked(userID)
	u.TrustScore += delta
	u.UpdatedAt = time.Now()
	return u.TrustScore, nil
}

// GetTrustScore returns a user's score. Unknown users have a score of zero.
func (s *Store) GetTrustScore(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[userID]; ok {
		return u.TrustScore, nil
	}
	return 0, nil
}

// IsBlocked reports whether ownerID has blocked userID.
func (s *Store) IsBlocked(_ context.Context, ownerID, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[ownerID]
	if !ok {
		return false, nil
	}
	return u.HasBlocked(userID), nil
}

// Block adds userID to ownerID's block list.
func (s *Store) Block(_ context.Context, ownerID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.userLocked(ownerID)
	if !u.HasBlocked(userID) {
		u.BlockedUsers = append(u.BlockedUsers, userID)
		u.UpdatedAt = time.Now()
	}
	return nil
}

// AddPlace registers a place id as existing.
func (s *Store) AddPlace(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.places[id] = struct{}{}
}

// PlaceExists reports whether a place id is known.
func (s *Store) PlaceExists(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.places[id]
	return ok, nil
}

// CreateSafetyEvent records an SOS.
func (s *Store) CreateSafetyEvent(_ context.Context, e *domain.SafetyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *e
	s.events[e.ID] = &c
	return nil
}

// ListSafetyEvents returns every recorded event for a group, oldest first.
func (s *Store) ListSafetyEvents(_ context.Context, groupID uuid.UUID) ([]*domain.SafetyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.SafetyEvent
	for _, e := range s.events {
		if e.GroupID == groupID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
