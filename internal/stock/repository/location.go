package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/errors"
)

// Location kinds
const (
	LocationKindStorage  = "storage"
	LocationKindWard     = "ward"
	LocationKindPharmacy = "pharmacy"
	LocationKindDisposal = "disposal"
)

// Location is a place stock can sit or move between
type Location struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Kind      string    `db:"kind" json:"kind"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LocationRepository handles location persistence
type LocationRepository struct {
	db *database.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *database.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// Create creates a new location
func (r *LocationRepository) Create(ctx context.Context, loc *Location) error {
	query := `
		INSERT INTO locations (name, kind, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		loc.Name, loc.Kind, loc.IsActive,
	).Scan(&loc.ID, &loc.CreatedAt, &loc.UpdatedAt)
}

// GetByID gets a location by ID
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*Location, error) {
	var loc Location
	query := `SELECT * FROM locations WHERE id = $1`
	if err := r.db.GetContext(ctx, &loc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("location")
		}
		return nil, err
	}
	return &loc, nil
}

// Exists reports whether an active location with the given id exists.
func (r *LocationRepository) Exists(ctx context.Context, q database.Queryer, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1 AND is_active = true)`
	if err := q.GetContext(ctx, &exists, query, id); err != nil {
		return false, err
	}
	return exists, nil
}

// List lists active locations
func (r *LocationRepository) List(ctx context.Context) ([]*Location, error) {
	var locs []*Location
	query := `SELECT * FROM locations WHERE is_active = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &locs, query); err != nil {
		return nil, err
	}
	return locs, nil
}

// Update updates a location
func (r *LocationRepository) Update(ctx context.Context, loc *Location) error {
	query := `
		UPDATE locations SET name = $2, kind = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, loc.ID, loc.Name, loc.Kind, loc.IsActive)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("location")
	}

	return nil
}

// Deactivate soft-deletes a location
func (r *LocationRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE locations SET is_active = false, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("location")
	}

	return nil
}
