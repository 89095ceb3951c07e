package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteConnector implements the DatabaseConnector interface for a local
// SQLite file. ":memory:" opens a private in-memory database.
type SQLiteConnector struct {
	baseConnector
	path string
}

// NewSQLiteConnector opens the SQLite database at path
func NewSQLiteConnector(ctx context.Context, path string) (*SQLiteConnector, error) {
	logger := zap.L().Named("sqlite-connector")
	logger.Info("Opening SQLite database", zap.String("path", path))

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database %s: %w", path, err)
	}

	// a single connection keeps :memory: databases shared and serializes writers
	ApplyConnectionSettings(db, 1, 1, 0, 0)

	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	return &SQLiteConnector{
		baseConnector: baseConnector{
			db:      db,
			logger:  logger,
			name:    path,
			dialect: DialectSQLite,
		},
		path: path,
	}, nil
}

// Validate checks the database answers queries
func (c *SQLiteConnector) Validate(ctx context.Context) error {
	var version string
	if err := c.db.GetContext(ctx, &version, "SELECT sqlite_version()"); err != nil {
		return fmt.Errorf("failed to query SQLite version: %w", err)
	}
	c.logger.Info("Connected to SQLite",
		zap.String("path", c.path),
		zap.String("version", version))
	return nil
}

// Schema returns the empty schema; SQLite tables are unqualified
func (c *SQLiteConnector) Schema() string {
	return ""
}
