package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the group, gate, chat and safety
// services satisfies errors.Is against exactly one of these.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrFull            = errors.New("group is full")
	ErrConflict        = errors.New("already a member")
	ErrUnauthorized    = errors.New("invalid invite code")
	ErrForbidden       = errors.New("forbidden")
	ErrNotAMember      = errors.New("not a member")
	ErrQuotaExceeded   = errors.New("creator has reached the maximum number of active groups")
)

// Entity lookup errors
var (
	ErrGroupNotFound  = fmt.Errorf("group %w", ErrNotFound)
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
	ErrPlaceNotFound  = fmt.Errorf("place %w", ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("member %w", ErrNotFound)
)

// ErrStaleStatus is returned by stores when a compare-and-swap on a group's
// status loses to a concurrent writer.
var ErrStaleStatus = fmt.Errorf("%w: group status changed concurrently", ErrInvalidState)

// ErrInvalidToken is returned when a bearer token cannot be verified.
var ErrInvalidToken = errors.New("invalid or expired token")
