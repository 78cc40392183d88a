// Package testutil provides testing utilities for the hospilog backend:
// a testcontainers PostgreSQL instance with the stock schema, sqlmock
// helpers, and common fixtures.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "hospilog_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "hospilog_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateStockSchema creates the stock engine schema. It mirrors the
// production migrations, including the batch identity unique index the
// atomic upsert relies on and the non-negative quantity backstop.
func (c *PostgresContainer) CreateStockSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			sku VARCHAR(100) NOT NULL,
			name VARCHAR(255) NOT NULL,
			unit VARCHAR(50) NOT NULL DEFAULT 'pcs',
			min_stock NUMERIC(18,4) NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT items_sku_unique UNIQUE (sku)
		);

		CREATE TABLE IF NOT EXISTS locations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			kind VARCHAR(50) NOT NULL DEFAULT 'storage',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS stock_batches (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			item_id UUID NOT NULL REFERENCES items(id),
			lot_no VARCHAR(100),
			expiry_date DATE,
			qty_on_hand NUMERIC(18,4) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_batches_qty_on_hand_non_negative CHECK (qty_on_hand >= 0)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS stock_batches_batch_identity
			ON stock_batches (item_id, COALESCE(lot_no, ''), COALESCE(expiry_date, 'infinity'::date));

		CREATE TABLE IF NOT EXISTS stock_moves (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			item_id UUID NOT NULL REFERENCES items(id),
			batch_id UUID REFERENCES stock_batches(id),
			from_loc_id UUID REFERENCES locations(id),
			to_loc_id UUID REFERENCES locations(id),
			qty NUMERIC(18,4) NOT NULL,
			reason VARCHAR(50) NOT NULL,
			ref_type VARCHAR(50),
			ref_id VARCHAR(100),
			event_id VARCHAR(100),
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_moves_qty_positive CHECK (qty > 0),
			CONSTRAINT stock_moves_move_location_present CHECK (from_loc_id IS NOT NULL OR to_loc_id IS NOT NULL)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS stock_moves_event_id_unique
			ON stock_moves (event_id) WHERE event_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS issues (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			issue_no VARCHAR(100) NOT NULL,
			from_loc_id UUID NOT NULL REFERENCES locations(id),
			to_loc_id UUID NOT NULL REFERENCES locations(id),
			status VARCHAR(50) NOT NULL DEFAULT 'fulfilled',
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS issue_lines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			issue_id UUID NOT NULL REFERENCES issues(id),
			item_id UUID NOT NULL REFERENCES items(id),
			requested_qty NUMERIC(18,4) NOT NULL,
			fulfilled_qty NUMERIC(18,4) NOT NULL DEFAULT 0,
			notes TEXT
		);

		CREATE TABLE IF NOT EXISTS issue_allocations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			issue_line_id UUID NOT NULL REFERENCES issue_lines(id),
			batch_id UUID NOT NULL REFERENCES stock_batches(id),
			qty_consumed NUMERIC(18,4) NOT NULL
		);

		CREATE TABLE IF NOT EXISTS transfers (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			transfer_no VARCHAR(100) NOT NULL,
			from_loc_id UUID NOT NULL REFERENCES locations(id),
			to_loc_id UUID NOT NULL REFERENCES locations(id),
			status VARCHAR(50) NOT NULL DEFAULT 'completed',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS transfer_lines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			transfer_id UUID NOT NULL REFERENCES transfers(id),
			item_id UUID NOT NULL REFERENCES items(id),
			requested_qty NUMERIC(18,4) NOT NULL,
			transferred_qty NUMERIC(18,4) NOT NULL DEFAULT 0,
			notes TEXT
		);

		CREATE TABLE IF NOT EXISTS stock_thresholds (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			item_id UUID NOT NULL REFERENCES items(id),
			location_id UUID REFERENCES locations(id),
			min_qty NUMERIC(18,4) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS stock_thresholds_item_location
			ON stock_thresholds (item_id, COALESCE(location_id, '00000000-0000-0000-0000-000000000000'::uuid));

		CREATE TABLE IF NOT EXISTS stock_alerts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			alert_type VARCHAR(50) NOT NULL,
			item_id UUID NOT NULL REFERENCES items(id),
			location_id UUID REFERENCES locations(id),
			batch_id UUID REFERENCES stock_batches(id),
			severity VARCHAR(50) NOT NULL DEFAULT 'warning',
			message TEXT NOT NULL,
			triggered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ,
			resolved_by VARCHAR(100)
		);
	`

	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create stock schema: %w", err)
	}

	return nil
}

// TruncateStockTables wipes all stock tables between tests.
func (c *PostgresContainer) TruncateStockTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		TRUNCATE stock_alerts, stock_thresholds, transfer_lines, transfers,
			issue_allocations, issue_lines, issues, stock_moves, stock_batches,
			locations, items CASCADE
	`)
	if err != nil {
		return fmt.Errorf("failed to truncate stock tables: %w", err)
	}
	return nil
}
