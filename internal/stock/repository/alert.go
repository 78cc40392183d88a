package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hospilog/hospilog-backend/pkg/database"
	"github.com/hospilog/hospilog-backend/pkg/errors"
)

// Alert types
const (
	AlertTypeLowStock = "LOW_STOCK"
	AlertTypeExpiry   = "EXPIRY"
)

// Alert severities
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is a monitor-generated condition on an item. Unresolved alerts are
// deduplicated per (type, item, location) so repeated scans do not stack
// duplicates.
type Alert struct {
	ID          string     `db:"id" json:"id"`
	AlertType   string     `db:"alert_type" json:"alert_type"`
	ItemID      string     `db:"item_id" json:"item_id"`
	LocationID  *string    `db:"location_id" json:"location_id,omitempty"`
	BatchID     *string    `db:"batch_id" json:"batch_id,omitempty"`
	Severity    string     `db:"severity" json:"severity"`
	Message     string     `db:"message" json:"message"`
	TriggeredAt time.Time  `db:"triggered_at" json:"triggered_at"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy  *string    `db:"resolved_by" json:"resolved_by,omitempty"`
}

// AlertRepository handles alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert
func (r *AlertRepository) Create(ctx context.Context, alert *Alert) error {
	query := `
		INSERT INTO stock_alerts (alert_type, item_id, location_id, batch_id, severity, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, triggered_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		alert.AlertType, alert.ItemID, alert.LocationID, alert.BatchID, alert.Severity, alert.Message,
	)
	return row.Scan(&alert.ID, &alert.TriggeredAt)
}

// FindUnresolved finds the open alert for a (type, item, location) key,
// or returns nil when none exists.
func (r *AlertRepository) FindUnresolved(ctx context.Context, alertType, itemID string, locationID *string) (*Alert, error) {
	var alert Alert
	query := `
		SELECT * FROM stock_alerts
		WHERE alert_type = $1
		  AND item_id = $2
		  AND location_id IS NOT DISTINCT FROM $3
		  AND resolved_at IS NULL
		ORDER BY triggered_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &alert, query, alertType, itemID, locationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// FindUnresolvedByBatch finds the open expiry alert for a batch, or nil.
func (r *AlertRepository) FindUnresolvedByBatch(ctx context.Context, alertType, batchID string) (*Alert, error) {
	var alert Alert
	query := `
		SELECT * FROM stock_alerts
		WHERE alert_type = $1 AND batch_id = $2 AND resolved_at IS NULL
		ORDER BY triggered_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &alert, query, alertType, batchID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// UpdateMessage refreshes the message and severity of an open alert
func (r *AlertRepository) UpdateMessage(ctx context.Context, id, message, severity string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE stock_alerts SET message = $2, severity = $3
		WHERE id = $1 AND resolved_at IS NULL
	`, id, message, severity)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("alert")
	}
	return nil
}

// Resolve marks an alert resolved. resolvedBy is the operator or "monitor"
// when the scan clears it automatically.
func (r *AlertRepository) Resolve(ctx context.Context, id, resolvedBy string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE stock_alerts SET resolved_at = NOW(), resolved_by = $2
		WHERE id = $1 AND resolved_at IS NULL
	`, id, resolvedBy)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("alert")
	}
	return nil
}

// ListActive returns unresolved alerts, newest first
func (r *AlertRepository) ListActive(ctx context.Context) ([]*Alert, error) {
	var alerts []*Alert
	query := `SELECT * FROM stock_alerts WHERE resolved_at IS NULL ORDER BY triggered_at DESC`
	if err := r.db.SelectContext(ctx, &alerts, query); err != nil {
		return nil, err
	}
	return alerts, nil
}

// List returns alerts with pagination, optionally filtered by type
func (r *AlertRepository) List(ctx context.Context, alertType string, limit, offset int) ([]*Alert, error) {
	var alerts []*Alert
	if alertType != "" {
		query := `SELECT * FROM stock_alerts WHERE alert_type = $1 ORDER BY triggered_at DESC LIMIT $2 OFFSET $3`
		if err := r.db.SelectContext(ctx, &alerts, query, alertType, limit, offset); err != nil {
			return nil, err
		}
		return alerts, nil
	}
	query := `SELECT * FROM stock_alerts ORDER BY triggered_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &alerts, query, limit, offset); err != nil {
		return nil, err
	}
	return alerts, nil
}
