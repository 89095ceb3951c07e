// pkg/connector/snowflake.go
package connector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/config"
)

// SnowflakeConnector implements the DatabaseConnector interface for Snowflake.
// It is used as a raw transaction source.
type SnowflakeConnector struct {
	baseConnector
	cfg *config.SnowflakeConfig
}

// NewSnowflakeConnector creates a new Snowflake connection
func NewSnowflakeConnector(ctx context.Context, cfg *config.SnowflakeConfig) (*SnowflakeConnector, error) {
	logger := zap.L().Named("snowflake-connector")

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	dsn, err := cfg.ConnectionString()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Snowflake connection: %w", err)
	}

	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if err := PingWithTimeout(ctx, db, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	connector := &SnowflakeConnector{
		baseConnector: baseConnector{
			db:      db,
			logger:  logger,
			name:    cfg.Database,
			dialect: DialectSnowflake,
		},
		cfg: cfg,
	}

	LogConnectionStats(logger, cfg.Database, db.DB)
	return connector, nil
}

// Validate verifies the Snowflake connection and access rights
func (c *SnowflakeConnector) Validate(ctx context.Context) error {
	var session struct {
		Role      string `db:"ROLE"`
		Database  string `db:"DATABASE"`
		Warehouse string `db:"WAREHOUSE"`
	}
	err := c.db.QueryRowxContext(ctx,
		`SELECT CURRENT_ROLE() AS "ROLE", CURRENT_DATABASE() AS "DATABASE", CURRENT_WAREHOUSE() AS "WAREHOUSE"`,
	).StructScan(&session)
	if err != nil {
		return fmt.Errorf("failed to verify Snowflake access: %w", err)
	}

	c.logger.Info("Connected to Snowflake",
		zap.String("role", session.Role),
		zap.String("database", session.Database),
		zap.String("warehouse", session.Warehouse))

	if !strings.EqualFold(session.Database, c.cfg.Database) {
		return fmt.Errorf("connected to wrong database: %s (expected: %s)",
			session.Database, c.cfg.Database)
	}

	return nil
}

// Schema returns the schema tables are qualified with
func (c *SnowflakeConnector) Schema() string {
	return c.cfg.Schema
}
