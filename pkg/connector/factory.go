// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/config"
)

// SchemaConnector is a DatabaseConnector that knows the schema tables live in
type SchemaConnector interface {
	DatabaseConnector
	Schema() string
}

// ConnectorFactory creates database connectors for the configured source and sink
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSourceConnector connects to the database holding raw transactions.
// It returns nil for file sources.
func (f *ConnectorFactory) CreateSourceConnector(ctx context.Context) (SchemaConnector, error) {
	switch f.cfg.Source.Kind {
	case config.SourceCSV:
		return nil, nil
	case config.SourcePostgres:
		conn, err := f.CreatePostgresConnector(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case config.SourceSnowflake:
		conn, err := f.CreateSnowflakeConnector(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case config.SourceSQLite:
		conn, err := f.CreateSQLiteConnector(ctx, f.cfg.Source.Path)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unsupported source kind: %q", f.cfg.Source.Kind)
	}
}

// CreateSinkConnector connects to the database receiving cleaned rows.
// It returns nil when no SQL sink is configured.
func (f *ConnectorFactory) CreateSinkConnector(ctx context.Context) (SchemaConnector, error) {
	switch f.cfg.Sink.Kind {
	case config.SinkNone:
		return nil, nil
	case config.SinkPostgres:
		conn, err := f.CreatePostgresConnector(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case config.SinkSQLite:
		conn, err := f.CreateSQLiteConnector(ctx, f.cfg.Sink.Path)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unsupported sink kind: %q", f.cfg.Sink.Kind)
	}
}

// CreateSnowflakeConnector creates a new Snowflake connector
func (f *ConnectorFactory) CreateSnowflakeConnector(ctx context.Context) (*SnowflakeConnector, error) {
	f.logger.Info("Creating Snowflake connector")

	connector, err := NewSnowflakeConnector(ctx, f.cfg.Snowflake)
	if err != nil {
		return nil, fmt.Errorf("failed to create Snowflake connector: %w", err)
	}

	return connector, nil
}

// CreatePostgresConnector creates a new PostgreSQL connector
func (f *ConnectorFactory) CreatePostgresConnector(ctx context.Context) (*PostgresConnector, error) {
	f.logger.Info("Creating PostgreSQL connector")

	connector, err := NewPostgresConnector(ctx, f.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connector: %w", err)
	}

	return connector, nil
}

// CreateSQLiteConnector creates a new SQLite connector
func (f *ConnectorFactory) CreateSQLiteConnector(ctx context.Context, path string) (*SQLiteConnector, error) {
	f.logger.Info("Creating SQLite connector", zap.String("path", path))

	connector, err := NewSQLiteConnector(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite connector: %w", err)
	}

	return connector, nil
}
