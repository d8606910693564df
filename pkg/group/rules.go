package group

import (
	"errors"
	"time"

	"github.com/tendant/localgroup/pkg/trust"
)

// Default lifecycle parameters.
const (
	DefaultConfirmationWindow        = 24 * time.Hour
	DefaultExpireBuffer              = 30 * time.Minute
	DefaultMaxActiveGroupsPerCreator = 2
	DefaultMinSize                   = 2
	DefaultMaxSize                   = 6
)

// Rules parameterize group creation and the lifecycle.
type Rules struct {
	ConfirmationWindow        time.Duration
	ExpireBuffer              time.Duration
	MaxActiveGroupsPerCreator int
	NoShowPenalty             int
	AttendedReward            int
	MinSize                   int
	MaxSize                   int
}

// DefaultRules returns the rules used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		ConfirmationWindow:        DefaultConfirmationWindow,
		ExpireBuffer:              DefaultExpireBuffer,
		MaxActiveGroupsPerCreator: DefaultMaxActiveGroupsPerCreator,
		NoShowPenalty:             trust.DefaultNoShowPenalty,
		AttendedReward:            trust.DefaultAttendedReward,
		MinSize:                   DefaultMinSize,
		MaxSize:                   DefaultMaxSize,
	}
}

// Validate checks the rules for internal consistency.
func (r Rules) Validate() error {
	if r.ConfirmationWindow < 0 {
		return errors.New("confirmation window must not be negative")
	}
	if r.ExpireBuffer < 0 {
		return errors.New("expire buffer must not be negative")
	}
	if r.MaxActiveGroupsPerCreator < 1 {
		return errors.New("max active groups per creator must be at least 1")
	}
	// ACTIVE needs two confirmed members, so smaller groups could never start.
	if r.MinSize < 2 {
		return errors.New("minimum group size must be at least 2")
	}
	if r.MaxSize < r.MinSize {
		return errors.New("maximum group size must not be less than minimum")
	}
	return nil
}
