package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// PlacesRepository resolves place references. Places are curated by the
// catalogue service; this service only checks that they exist.
type PlacesRepository struct {
	db *sql.DB
}

// NewPlacesRepository creates a new places repository.
func NewPlacesRepository(db *sql.DB) *PlacesRepository {
	return &PlacesRepository{db: db}
}

// PlaceExists reports whether a place id is known.
func (r *PlacesRepository) PlaceExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM places WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
