package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/errors"
)

// Item is master data for a stocked article. Owned by the catalogue
// service upstream; the engine only references it by id.
type Item struct {
	ID        string          `db:"id" json:"id"`
	SKU       string          `db:"sku" json:"sku"`
	Name      string          `db:"name" json:"name"`
	Unit      string          `db:"unit" json:"unit"`
	MinStock  decimal.Decimal `db:"min_stock" json:"min_stock"`
	IsActive  bool            `db:"is_active" json:"is_active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// ItemRepository handles item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create creates a new item
func (r *ItemRepository) Create(ctx context.Context, item *Item) error {
	query := `
		INSERT INTO items (sku, name, unit, min_stock, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		item.SKU, item.Name, item.Unit, item.MinStock, item.IsActive,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets an item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	var item Item
	query := `SELECT * FROM items WHERE id = $1`
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("item")
		}
		return nil, err
	}
	return &item, nil
}

// Exists reports whether an active item with the given id exists.
func (r *ItemRepository) Exists(ctx context.Context, q database.Queryer, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM items WHERE id = $1 AND is_active = true)`
	if err := q.GetContext(ctx, &exists, query, id); err != nil {
		return false, err
	}
	return exists, nil
}

// List lists active items
func (r *ItemRepository) List(ctx context.Context) ([]*Item, error) {
	var items []*Item
	query := `SELECT * FROM items WHERE is_active = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, err
	}
	return items, nil
}

// Update updates an item
func (r *ItemRepository) Update(ctx context.Context, item *Item) error {
	query := `
		UPDATE items SET
			sku = $2, name = $3, unit = $4, min_stock = $5, is_active = $6,
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		item.ID, item.SKU, item.Name, item.Unit, item.MinStock, item.IsActive,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}

	return nil
}

// Deactivate soft-deletes an item. Items are never hard-deleted because
// the ledger references them.
func (r *ItemRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE items SET is_active = false, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}

	return nil
}
