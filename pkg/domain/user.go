package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the slice of the user profile this service reads and writes.
// Profile fields are owned by the identity service.
type User struct {
	ID           uuid.UUID
	TrustScore   int
	BlockedUsers []uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasBlocked returns true if u has blocked other.
func (u *User) HasBlocked(other uuid.UUID) bool {
	for _, id := range u.BlockedUsers {
		if id == other {
			return true
		}
	}
	return false
}
