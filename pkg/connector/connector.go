// pkg/connector/connector.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Dialect identifies the SQL flavour behind a connector
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSnowflake
	DialectSQLite
)

// String returns the dialect name
func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSnowflake:
		return "snowflake"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// maxBindParams keeps multi-row inserts under every supported driver's
// parameter limit (SQLite allows 32766, Postgres 65535)
const maxBindParams = 30000

// DatabaseConnector defines the interface for database connectors
type DatabaseConnector interface {
	// DB returns the underlying database handle
	DB() *sqlx.DB

	// Dialect reports the SQL flavour for DDL and placeholders
	Dialect() Dialect

	// Validate verifies the connection and permissions
	Validate(ctx context.Context) error

	// Close closes the connection and releases resources
	Close() error

	// ExecWithTimeout executes a statement with a timeout
	ExecWithTimeout(ctx context.Context, query string, timeout time.Duration, args ...interface{}) (sql.Result, error)

	// BatchQuery pages through query in batches of batchSize rows
	BatchQuery(ctx context.Context, query string, batchSize int, processor func(*sqlx.Rows) error) error

	// BatchInsert inserts rows in multi-row statements of up to batchSize rows
	BatchInsert(ctx context.Context, table string, columns []string, valueRows [][]interface{}, batchSize int) (int64, error)

	// ReplaceRows swaps the whole contents of table for valueRows in one transaction
	ReplaceRows(ctx context.Context, table string, columns []string, valueRows [][]interface{}, batchSize int) (int64, error)

	// CreateTableIfNotExists creates table from column definitions
	CreateTableIfNotExists(ctx context.Context, table string, columnDefs []string, primaryKey string) error
}

// baseConnector carries the dialect-neutral operations shared by every connector
type baseConnector struct {
	db      *sqlx.DB
	logger  *zap.Logger
	name    string
	dialect Dialect
}

// DB returns the underlying database handle
func (c *baseConnector) DB() *sqlx.DB {
	return c.db
}

// Dialect reports the SQL flavour
func (c *baseConnector) Dialect() Dialect {
	return c.dialect
}

// Close closes the database connection
func (c *baseConnector) Close() error {
	c.logger.Info("Closing database connection", zap.String("database", c.name))
	LogConnectionStats(c.logger, c.name, c.db.DB)
	return c.db.Close()
}

// ExecWithTimeout executes a statement with a timeout
func (c *baseConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.ExecContext(queryCtx, c.db.Rebind(query), args...)
}

// BatchQuery fetches data in batches to handle large result sets. query must
// carry an ORDER BY so pages are stable.
func (c *baseConnector) BatchQuery(
	ctx context.Context,
	query string,
	batchSize int,
	processor func(*sqlx.Rows) error,
) error {
	if batchSize <= 0 {
		batchSize = 10000
	}

	offset := 0
	for {
		batchQuery := fmt.Sprintf("%s LIMIT %d OFFSET %d", query, batchSize, offset)
		rows, err := c.db.QueryxContext(ctx, batchQuery)
		if err != nil {
			return fmt.Errorf("batch query failed at offset %d: %w", offset, err)
		}

		rowCount := 0
		for rows.Next() {
			rowCount++
			if err := processor(rows); err != nil {
				rows.Close()
				return fmt.Errorf("row processing failed at offset %d: %w", offset, err)
			}
		}

		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating rows at offset %d: %w", offset, err)
		}

		c.logger.Debug("Fetched batch",
			zap.String("database", c.name),
			zap.Int("offset", offset),
			zap.Int("rows", rowCount))

		if rowCount < batchSize {
			break
		}
		offset += batchSize
	}

	return nil
}

// BatchInsert performs a bulk insert into a table inside one transaction
func (c *baseConnector) BatchInsert(
	ctx context.Context,
	table string,
	columns []string,
	valueRows [][]interface{},
	batchSize int,
) (int64, error) {
	if len(valueRows) == 0 {
		return 0, nil
	}
	return c.insertInTx(ctx, "", table, columns, valueRows, batchSize)
}

// ReplaceRows deletes every row of table and inserts valueRows in the same
// transaction. On failure the previous contents are kept.
func (c *baseConnector) ReplaceRows(
	ctx context.Context,
	table string,
	columns []string,
	valueRows [][]interface{},
	batchSize int,
) (int64, error) {
	return c.insertInTx(ctx, "DELETE FROM "+table, table, columns, valueRows, batchSize)
}

func (c *baseConnector) insertInTx(
	ctx context.Context,
	clear string,
	table string,
	columns []string,
	valueRows [][]interface{},
	batchSize int,
) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("no columns given for insert into %s", table)
	}

	if batchSize <= 0 {
		batchSize = 1000
	}
	if limit := maxBindParams / len(columns); batchSize > limit {
		batchSize = limit
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if clear != "" {
		if _, err := tx.ExecContext(ctx, clear); err != nil {
			return 0, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	columnStr := strings.Join(columns, ", ")
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var totalRowsInserted int64
	for i := 0; i < len(valueRows); i += batchSize {
		end := i + batchSize
		if end > len(valueRows) {
			end = len(valueRows)
		}
		currentBatch := valueRows[i:end]

		placeholders := make([]string, len(currentBatch))
		args := make([]interface{}, 0, len(currentBatch)*len(columns))
		for j, row := range currentBatch {
			if len(row) != len(columns) {
				return totalRowsInserted, fmt.Errorf("row %d has %d values, expected %d", i+j, len(row), len(columns))
			}
			placeholders[j] = rowPlaceholder
			args = append(args, row...)
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, columnStr, strings.Join(placeholders, ", "))
		result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return totalRowsInserted, fmt.Errorf("batch insert failed: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			c.logger.Warn("Couldn't get rows affected", zap.Error(err))
			rowsAffected = int64(len(currentBatch))
		}
		totalRowsInserted += rowsAffected
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit insert into %s: %w", table, err)
	}
	return totalRowsInserted, nil
}

// CreateTableIfNotExists creates a table with the specified columns if it doesn't exist
func (c *baseConnector) CreateTableIfNotExists(
	ctx context.Context,
	table string,
	columnDefs []string,
	primaryKey string,
) error {
	createSQL := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s",
		table,
		strings.Join(columnDefs, ",\n\t"),
	)
	if primaryKey != "" {
		createSQL += fmt.Sprintf(",\n\tPRIMARY KEY (%s)", primaryKey)
	}
	createSQL += "\n)"

	if _, err := c.ExecWithTimeout(ctx, createSQL, 30*time.Second); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	c.logger.Info("Ensured table exists", zap.String("table", table))
	return nil
}

// ConnStats contains standardized connection statistics
type ConnStats struct {
	OpenConnections int
	InUse           int
	Idle            int
	MaxOpenConns    int
	WaitCount       int64
	WaitDuration    time.Duration
}

// GetConnectionStats returns connection pool statistics for logging
func GetConnectionStats(db *sql.DB) ConnStats {
	stats := db.Stats()
	return ConnStats{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		MaxOpenConns:    stats.MaxOpenConnections,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
	}
}

// LogConnectionStats logs connection pool statistics
func LogConnectionStats(logger *zap.Logger, name string, db *sql.DB) {
	stats := GetConnectionStats(db)
	logger.Debug("Connection pool stats",
		zap.String("database", name),
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int("max_open", stats.MaxOpenConns),
		zap.Int64("wait_count", stats.WaitCount),
		zap.Duration("wait_duration", stats.WaitDuration),
	)
}

// PingWithTimeout attempts to ping a database with a timeout
func PingWithTimeout(ctx context.Context, db *sqlx.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if pingCtx.Err() != nil {
			return fmt.Errorf("ping timed out after %v: %w", timeout, err)
		}
		return err
	}
	return nil
}

// ApplyConnectionSettings configures database connection pool settings
func ApplyConnectionSettings(db *sqlx.DB, maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) {
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
	if maxIdleTime > 0 {
		db.SetConnMaxIdleTime(maxIdleTime)
	}
}
