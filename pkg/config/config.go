// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Source kinds
const (
	SourceCSV       = "csv"
	SourcePostgres  = "postgres"
	SourceSnowflake = "snowflake"
	SourceSQLite    = "sqlite"
)

// Sink kinds
const (
	SinkNone     = "none"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
)

// Config represents the application configuration
type Config struct {
	Source SourceConfig
	Sink   SinkConfig

	// OutputCSV is the projection file; empty disables the CSV export
	OutputCSV string

	// Cleaning settings
	RandomSeed       uint64
	OutputDateLayout string
	InputDateLayouts []string

	// ChunkSize bounds rows fetched per query by SQL sources and rows per
	// insert transaction by SQL sinks
	ChunkSize int

	// Logging
	LogLevel  string
	LogFormat string

	// Metrics push; empty URL disables it
	PushgatewayURL string
	PushgatewayJob string

	// Database connections, loaded only when a source or sink selects them
	Postgres  *PostgresConfig
	Snowflake *SnowflakeConfig
}

// SourceConfig selects where raw transactions are read from
type SourceConfig struct {
	Kind  string
	Path  string // CSV file or SQLite database file
	Table string // SQL table holding raw rows
}

// SinkConfig selects where the cleaned table and the audit journal are written
type SinkConfig struct {
	Kind         string
	Path         string // SQLite database file
	Table        string
	AuditTable   string
	AuditEnabled bool
}

// LoadConfig loads configuration from environment variables. envFile names a
// .env file to load first; when empty, ./.env is loaded if present.
func LoadConfig(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg := &Config{
		Source: SourceConfig{
			Kind:  strings.ToLower(getEnv("SOURCE_KIND", SourceCSV)),
			Path:  getEnv("SOURCE_PATH", ""),
			Table: getEnv("SOURCE_TABLE", "raw_transactions"),
		},
		Sink: SinkConfig{
			Kind:         strings.ToLower(getEnv("SINK_KIND", SinkNone)),
			Path:         getEnv("SINK_PATH", ""),
			Table:        getEnv("SINK_TABLE", "cleaned_transactions"),
			AuditTable:   getEnv("AUDIT_TABLE", "cleaned_on_ingress"),
			AuditEnabled: getEnvAsBool("AUDIT_ENABLED", true),
		},
		OutputCSV:        getEnv("OUTPUT_CSV", "cleaned_transactions.csv"),
		RandomSeed:       getEnvAsUint64("RANDOM_SEED", 1),
		OutputDateLayout: getEnv("OUTPUT_DATE_LAYOUT", "02/01/2006"),
		InputDateLayouts: getEnvAsStringSlice("INPUT_DATE_LAYOUTS", "|", nil),
		ChunkSize:        getEnvAsInt("CHUNK_SIZE", 5000),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		PushgatewayURL:   getEnv("PUSHGATEWAY_URL", ""),
		PushgatewayJob:   getEnv("PUSHGATEWAY_JOB", "pos_cleaner"),
	}

	if cfg.Source.Kind == SourcePostgres || cfg.Sink.Kind == SinkPostgres {
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load PostgreSQL configuration: %w", err)
		}
		cfg.Postgres = pgConfig
	}

	if cfg.Source.Kind == SourceSnowflake {
		snowConfig, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load Snowflake configuration: %w", err)
		}
		cfg.Snowflake = snowConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadEnvFile(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceCSV, SourceSQLite:
		if c.Source.Path == "" {
			return fmt.Errorf("SOURCE_PATH is required for %s source", c.Source.Kind)
		}
	case SourcePostgres:
		if c.Postgres == nil {
			return errors.New("postgreSQL configuration is required for postgres source")
		}
	case SourceSnowflake:
		if c.Snowflake == nil {
			return errors.New("snowflake configuration is required for snowflake source")
		}
	default:
		return fmt.Errorf("unsupported source kind: %q", c.Source.Kind)
	}
	if c.Source.Kind != SourceCSV && c.Source.Table == "" {
		return errors.New("SOURCE_TABLE is required for SQL sources")
	}

	switch c.Sink.Kind {
	case SinkNone:
	case SinkSQLite:
		if c.Sink.Path == "" {
			return errors.New("SINK_PATH is required for sqlite sink")
		}
	case SinkPostgres:
		if c.Postgres == nil {
			return errors.New("postgreSQL configuration is required for postgres sink")
		}
	default:
		return fmt.Errorf("unsupported sink kind: %q", c.Sink.Kind)
	}
	if c.Sink.Kind != SinkNone {
		if c.Sink.Table == "" {
			return errors.New("SINK_TABLE is required for SQL sinks")
		}
		if c.Sink.AuditEnabled && c.Sink.AuditTable == "" {
			return errors.New("AUDIT_TABLE is required when auditing is enabled")
		}
	}

	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}

	if strings.TrimSpace(c.OutputDateLayout) == "" {
		return errors.New("output date layout cannot be empty")
	}

	if c.PushgatewayURL != "" && c.PushgatewayJob == "" {
		return errors.New("PUSHGATEWAY_JOB is required when PUSHGATEWAY_URL is set")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsStringSlice splits a sep-delimited variable, dropping empty parts
func getEnvAsStringSlice(key, sep string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(value, sep) {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}
