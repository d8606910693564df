package domain

import (
	"time"

	"github.com/google/uuid"
)

// GroupStatus is a step of the group lifecycle.
type GroupStatus string

const (
	GroupStatusJoinable     GroupStatus = "JOINABLE"
	GroupStatusConfirmation GroupStatus = "CONFIRMATION"
	GroupStatusActive       GroupStatus = "ACTIVE"
	GroupStatusExpired      GroupStatus = "EXPIRED"
)

// rank orders statuses; transitions only ever move to a higher rank.
var statusRank = map[GroupStatus]int{
	GroupStatusJoinable:     0,
	GroupStatusConfirmation: 1,
	GroupStatusActive:       2,
	GroupStatusExpired:      3,
}

// Valid reports whether s is a known status.
func (s GroupStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsTerminal returns true for EXPIRED.
func (s GroupStatus) IsTerminal() bool {
	return s == GroupStatusExpired
}

// CanTransitionTo reports whether moving from s to next is allowed.
// JOINABLE may skip straight to EXPIRED (creator leaving), CONFIRMATION may
// resolve to ACTIVE or EXPIRED, ACTIVE may only expire.
func (s GroupStatus) CanTransitionTo(next GroupStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	switch s {
	case GroupStatusJoinable:
		return next == GroupStatusConfirmation || next == GroupStatusExpired
	case GroupStatusConfirmation:
		return next == GroupStatusActive || next == GroupStatusExpired
	case GroupStatusActive:
		return next == GroupStatusExpired
	default:
		return false
	}
}

// Visibility controls whether a group can be joined without an invite code.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Group is a scheduled meetup anchored to a place and time.
type Group struct {
	ID             uuid.UUID
	CreatorID      uuid.UUID
	PlaceID        uuid.UUID
	DateTime       time.Time
	MaxSize        int
	Visibility     Visibility
	InviteCodeHash *string // bcrypt hash, set iff Visibility is PRIVATE
	Status         GroupStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsPrivate returns true if joining requires an invite code.
func (g *Group) IsPrivate() bool {
	return g.Visibility == VisibilityPrivate
}

// GroupMember is a user's membership in a group.
type GroupMember struct {
	GroupID   uuid.UUID
	UserID    uuid.UUID
	Confirmed bool
	JoinedAt  time.Time
}

// CountConfirmed returns how many of members have confirmed attendance.
func CountConfirmed(members []*GroupMember) int {
	n := 0
	for _, m := range members {
		if m.Confirmed {
			n++
		}
	}
	return n
}

// FindMember returns the membership for userID, or nil.
func FindMember(members []*GroupMember, userID uuid.UUID) *GroupMember {
	for _, m := range members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}
