package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/localgroup/pkg/domain"
)

// UsersRepository handles the user profile columns this service owns:
// trust score and block list. Rows are created on first write.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// GetUser retrieves a user profile by ID.
func (r *UsersRepository) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, trust_score, blocked_users, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u domain.User
	var blocked []string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.TrustScore, pq.Array(&blocked), &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	u.BlockedUsers = make([]uuid.UUID, 0, len(blocked))
	for _, s := range blocked {
		other, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse blocked user %q: %w", s, err)
		}
		u.BlockedUsers = append(u.BlockedUsers, other)
	}
	return &u, nil
}

// AddTrustScore atomically adds delta to a user's score and returns the new value.
func (r *UsersRepository) AddTrustScore(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	query := `
		INSERT INTO users (id, trust_score, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET trust_score = users.trust_score + EXCLUDED.trust_score,
		    updated_at = NOW()
		RETURNING trust_score
	`
	var score int
	if err := r.db.QueryRowContext(ctx, query, userID, delta).Scan(&score); err != nil {
		return 0, err
	}
	return score, nil
}

// GetTrustScore returns a user's score. Users without a profile row score zero.
func (r *UsersRepository) GetTrustScore(ctx context.Context, userID uuid.UUID) (int, error) {
	var score int
	err := r.db.QueryRowContext(ctx, `SELECT trust_score FROM users WHERE id = $1`, userID).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return score, nil
}

// IsBlocked reports whether ownerID has blocked userID.
func (r *UsersRepository) IsBlocked(ctx context.Context, ownerID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND $2::uuid = ANY(blocked_users))`
	var blocked bool
	if err := r.db.QueryRowContext(ctx, query, ownerID, userID).Scan(&blocked); err != nil {
		return false, err
	}
	return blocked, nil
}

// Block adds userID to ownerID's block list. Blocking twice is a no-op.
func (r *UsersRepository) Block(ctx context.Context, ownerID, userID uuid.UUID) error {
	query := `
		INSERT INTO users (id, blocked_users, created_at, updated_at)
		VALUES ($1, ARRAY[$2::uuid], NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET blocked_users = array_append(users.blocked_users, $2::uuid),
		    updated_at = NOW()
		WHERE NOT ($2::uuid = ANY(users.blocked_users))
	`
	_, err := r.db.ExecContext(ctx, query, ownerID, userID)
	return err
}
