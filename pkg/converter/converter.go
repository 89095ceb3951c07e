// pkg/converter/converter.go
package converter

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/connector"
	"github.com/David-Botos/pos-cleaner/pkg/model"
)

var decimalTypePattern = regexp.MustCompile(`^DECIMAL\((\d+),\s*(\d+)\)$`)

// TypeConverter maps logical column types onto a SQL dialect and converts
// cleaned records into driver values
type TypeConverter struct {
	logger  *zap.Logger
	dialect connector.Dialect
}

// NewTypeConverter creates a TypeConverter for a dialect
func NewTypeConverter(logger *zap.Logger, dialect connector.Dialect) *TypeConverter {
	return &TypeConverter{
		logger:  logger,
		dialect: dialect,
	}
}

// Dialect returns the target dialect
func (c *TypeConverter) Dialect() connector.Dialect {
	return c.dialect
}

// MapType converts a logical type (TEXT, INTEGER, DECIMAL(p,s), DATE,
// TIMESTAMP) to the dialect's column type. SQLite stores decimals and dates
// as text so fixed-point and ISO values survive unchanged.
func (c *TypeConverter) MapType(logical string) (string, error) {
	logical = strings.ToUpper(strings.TrimSpace(logical))

	if m := decimalTypePattern.FindStringSubmatch(logical); m != nil {
		switch c.dialect {
		case connector.DialectPostgres:
			return fmt.Sprintf("NUMERIC(%s,%s)", m[1], m[2]), nil
		case connector.DialectSnowflake:
			return fmt.Sprintf("NUMBER(%s,%s)", m[1], m[2]), nil
		default:
			return "TEXT", nil
		}
	}

	switch logical {
	case "TEXT":
		if c.dialect == connector.DialectSnowflake {
			return "VARCHAR", nil
		}
		return "TEXT", nil
	case "INTEGER":
		if c.dialect == connector.DialectSnowflake {
			return "NUMBER(38,0)", nil
		}
		return "INTEGER", nil
	case "DATE":
		if c.dialect == connector.DialectSQLite {
			return "TEXT", nil
		}
		return "DATE", nil
	case "TIMESTAMP":
		switch c.dialect {
		case connector.DialectPostgres:
			return "TIMESTAMP WITH TIME ZONE", nil
		case connector.DialectSnowflake:
			return "TIMESTAMP_TZ", nil
		default:
			return "TEXT", nil
		}
	default:
		c.logger.Warn("Unknown logical type encountered", zap.String("type", logical))
		return "TEXT", fmt.Errorf("unknown logical type: %s (mapped to TEXT as fallback)", logical)
	}
}

// GenerateColumnDefinitions creates column definitions for CREATE TABLE
func (c *TypeConverter) GenerateColumnDefinitions(metadata *model.TableMetadata) ([]string, error) {
	definitions := make([]string, 0, len(metadata.Columns))

	for _, col := range metadata.Columns {
		sqlType, err := c.MapType(col.DataType)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}

		nullability := "NULL"
		if col.IsPrimaryKey || !col.Nullable {
			nullability = "NOT NULL"
		}

		definitions = append(definitions, fmt.Sprintf("%s %s %s",
			QuoteIdentifier(col.Name),
			sqlType,
			nullability))
	}

	return definitions, nil
}

// PrimaryKeyClause returns the quoted primary key column list, or "" when none
func PrimaryKeyClause(metadata *model.TableMetadata) string {
	if len(metadata.PrimaryKeys) == 0 {
		return ""
	}
	quoted := make([]string, len(metadata.PrimaryKeys))
	for i, pk := range metadata.PrimaryKeys {
		quoted[i] = QuoteIdentifier(pk)
	}
	return strings.Join(quoted, ", ")
}

// QuotedColumnNames returns the table's column names quoted for SQL
func QuotedColumnNames(metadata *model.TableMetadata) []string {
	names := metadata.ColumnNames()
	for i, n := range names {
		names[i] = QuoteIdentifier(n)
	}
	return names
}

// QuoteIdentifier quotes and escapes an identifier, folding it to lower case
func QuoteIdentifier(name string) string {
	return fmt.Sprintf("\"%s\"", strings.ToLower(strings.ReplaceAll(name, "\"", "\"\"")))
}

// QuoteQualifiedName quotes each part of schema.table
func QuoteQualifiedName(schema, table string) string {
	if schema == "" {
		return QuoteIdentifier(table)
	}
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}
