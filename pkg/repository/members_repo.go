package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
)

// MembersRepository handles group membership persistence.
type MembersRepository struct {
	db *sql.DB
}

// NewMembersRepository creates a new members repository.
func NewMembersRepository(db *sql.DB) *MembersRepository {
	return &MembersRepository{db: db}
}

// AddMember inserts a membership. A duplicate (group, user) pair returns
// domain.ErrConflict.
func (r *MembersRepository) AddMember(ctx context.Context, m *domain.GroupMember) error {
	return r.addMemberTx(ctx, r.db, m)
}

func (r *MembersRepository) addMemberTx(ctx context.Context, q Querier, m *domain.GroupMember) error {
	query := `
		INSERT INTO group_members (group_id, user_id, confirmed, joined_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := q.ExecContext(ctx, query, m.GroupID, m.UserID, m.Confirmed, m.JoinedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

// ListMembers returns the members of a group in join order.
func (r *MembersRepository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]*domain.GroupMember, error) {
	query := `
		SELECT group_id, user_id, confirmed, joined_at
		FROM group_members
		WHERE group_id = $1
		ORDER BY joined_at, user_id
	`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.GroupMember
	for rows.Next() {
		var m domain.GroupMember
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Confirmed, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// GetMember retrieves one membership.
func (r *MembersRepository) GetMember(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupMember, error) {
	query := `
		SELECT group_id, user_id, confirmed, joined_at
		FROM group_members
		WHERE group_id = $1 AND user_id = $2
	`
	var m domain.GroupMember
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(&m.GroupID, &m.UserID, &m.Confirmed, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ConfirmMember marks a membership as confirmed. Confirmed never flips back.
func (r *MembersRepository) ConfirmMember(ctx context.Context, groupID, userID uuid.UUID) error {
	query := `UPDATE group_members SET confirmed = TRUE WHERE group_id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, groupID, userID)
	if err != nil {
		return err
	}
	return expectRow(result, domain.ErrMemberNotFound)
}

// RemoveMember deletes a membership.
func (r *MembersRepository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, groupID, userID)
	if err != nil {
		return err
	}
	return expectRow(result, domain.ErrMemberNotFound)
}

func (r *MembersRepository) removeMembersTx(ctx context.Context, q Querier, groupID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = ANY($2::uuid[])`
	_, err := q.ExecContext(ctx, query, groupID, uuidArray(userIDs))
	return err
}

// expectRow returns notFound when the statement touched no rows.
func expectRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
