package repository

import (
	"database/sql"

	"github.com/tendant/localgroup/pkg/group"
	"github.com/tendant/localgroup/pkg/safety"
	"github.com/tendant/localgroup/pkg/trust"
)

// Store bundles every repository behind the contracts the services consume.
type Store struct {
	*GroupsRepository
	*MembersRepository
	*UsersRepository
	*PlacesRepository
	*SafetyEventsRepository
}

var (
	_ group.Store        = (*Store)(nil)
	_ group.BlockList    = (*Store)(nil)
	_ group.PlaceChecker = (*Store)(nil)
	_ trust.Store        = (*Store)(nil)
	_ safety.Store       = (*Store)(nil)
)

// NewStore creates all repositories over one connection pool.
func NewStore(db *sql.DB) *Store {
	members := NewMembersRepository(db)
	return &Store{
		GroupsRepository:       NewGroupsRepository(db, members),
		MembersRepository:      members,
		UsersRepository:        NewUsersRepository(db),
		PlacesRepository:       NewPlacesRepository(db),
		SafetyEventsRepository: NewSafetyEventsRepository(db),
	}
}
