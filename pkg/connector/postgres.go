// pkg/connector/postgres.go
package connector

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/config"
)

// PostgresConnector implements the DatabaseConnector interface for PostgreSQL
type PostgresConnector struct {
	baseConnector
	cfg *config.PostgresConfig
}

// NewPostgresConnector creates and initializes a new PostgreSQL connector.
// cfg.Driver selects lib/pq ("postgres") or pgx ("pgx").
func NewPostgresConnector(ctx context.Context, cfg *config.PostgresConfig) (*PostgresConnector, error) {
	logger := zap.L().Named("postgres-connector")

	logger.Info("Connecting to PostgreSQL",
		zap.String("driver", cfg.Driver),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	// statement_timeout is passed as a run-time parameter so every pooled
	// connection carries it
	connStr := cfg.ConnectionString()
	if cfg.StatementTimeout > 0 {
		connStr += fmt.Sprintf(" statement_timeout=%d", cfg.StatementTimeout.Milliseconds())
	}

	db, err := sqlx.Open(cfg.Driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	connector := &PostgresConnector{
		baseConnector: baseConnector{
			db:      db,
			logger:  logger,
			name:    cfg.Database,
			dialect: DialectPostgres,
		},
		cfg: cfg,
	}

	LogConnectionStats(logger, cfg.Database, db.DB)
	return connector, nil
}

// Validate verifies the PostgreSQL connection and ensures the target schema exists
func (c *PostgresConnector) Validate(ctx context.Context) error {
	var version string
	if err := c.db.GetContext(ctx, &version, "SELECT version()"); err != nil {
		return fmt.Errorf("failed to query PostgreSQL version: %w", err)
	}
	c.logger.Info("Connected to PostgreSQL", zap.String("version", version))

	if c.cfg.Schema != "" {
		if _, err := c.ExecWithTimeout(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", c.cfg.Schema), 30*time.Second); err != nil {
			return fmt.Errorf("failed to create/verify schema %s: %w", c.cfg.Schema, err)
		}
	}

	c.logger.Info("PostgreSQL connection validated",
		zap.String("database", c.cfg.Database),
		zap.String("schema", c.cfg.Schema),
		zap.String("host", c.cfg.Host),
		zap.Int("port", c.cfg.Port))

	return nil
}

// Schema returns the schema tables are qualified with
func (c *PostgresConnector) Schema() string {
	return c.cfg.Schema
}
