package repository

import (
	"context"
	"database/sql"

	"github.com/tendant/localgroup/pkg/domain"
)

// SafetyEventsRepository handles SOS event persistence.
type SafetyEventsRepository struct {
	db *sql.DB
}

// NewSafetyEventsRepository creates a new safety events repository.
func NewSafetyEventsRepository(db *sql.DB) *SafetyEventsRepository {
	return &SafetyEventsRepository{db: db}
}

// CreateSafetyEvent records an SOS.
func (r *SafetyEventsRepository) CreateSafetyEvent(ctx context.Context, e *domain.SafetyEvent) error {
	query := `
		INSERT INTO safety_events (id, group_id, triggered_by, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.GroupID, e.TriggeredBy, e.Status, e.CreatedAt)
	return err
}
