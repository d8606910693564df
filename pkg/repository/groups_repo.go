package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
)

// GroupsRepository handles group persistence.
type GroupsRepository struct {
	db      *sql.DB
	members *MembersRepository
}

// NewGroupsRepository creates a new groups repository.
func NewGroupsRepository(db *sql.DB, members *MembersRepository) *GroupsRepository {
	return &GroupsRepository{db: db, members: members}
}

const groupColumns = `id, creator_id, place_id, date_time, max_size, visibility, invite_code_hash, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*domain.Group, error) {
	var g domain.Group
	err := row.Scan(
		&g.ID, &g.CreatorID, &g.PlaceID, &g.DateTime, &g.MaxSize, &g.Visibility,
		&g.InviteCodeHash, &g.Status, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGroup inserts a group and its creator membership in one transaction.
func (r *GroupsRepository) CreateGroup(ctx context.Context, g *domain.Group, creator *domain.GroupMember) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO groups (` + groupColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := tx.ExecContext(ctx, query,
			g.ID, g.CreatorID, g.PlaceID, g.DateTime, g.MaxSize, g.Visibility,
			g.InviteCodeHash, g.Status, g.CreatedAt, g.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return r.members.addMemberTx(ctx, tx, creator)
	})
}

// GetGroup retrieves a group by ID.
func (r *GroupsRepository) GetGroup(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`
	g, err := scanGroup(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListLiveGroups returns every group that is not EXPIRED.
func (r *GroupsRepository) ListLiveGroups(ctx context.Context) ([]*domain.Group, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM groups
		WHERE status <> $1
		ORDER BY date_time, id
	`
	return r.list(ctx, query, domain.GroupStatusExpired)
}

// ListGroupsByMember returns the groups a user currently belongs to.
func (r *GroupsRepository) ListGroupsByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Group, error) {
	query := `
		SELECT g.id, g.creator_id, g.place_id, g.date_time, g.max_size, g.visibility,
		       g.invite_code_hash, g.status, g.created_at, g.updated_at
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.date_time, g.id
	`
	return r.list(ctx, query, userID)
}

func (r *GroupsRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CountGroupsByCreatorExcluding counts a creator's groups whose status is not status.
func (r *GroupsRepository) CountGroupsByCreatorExcluding(ctx context.Context, creatorID uuid.UUID, status domain.GroupStatus) (int, error) {
	query := `SELECT COUNT(*) FROM groups WHERE creator_id = $1 AND status <> $2`
	var n int
	if err := r.db.QueryRowContext(ctx, query, creatorID, status).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// TransitionGroup moves a group from one status to another and removes the
// listed members in the same transaction. The update only applies while the
// stored status still equals from.
func (r *GroupsRepository) TransitionGroup(ctx context.Context, id uuid.UUID, from, to domain.GroupStatus, removals []uuid.UUID) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidState, from, to)
	}

	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		query := `UPDATE groups SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
		result, err := tx.ExecContext(ctx, query, id, from, to)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, id).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return domain.ErrGroupNotFound
			}
			return domain.ErrStaleStatus
		}
		return r.members.removeMembersTx(ctx, tx, id, removals)
	})
}
