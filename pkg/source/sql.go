package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/connector"
	"github.com/David-Botos/pos-cleaner/pkg/converter"
	"github.com/David-Botos/pos-cleaner/pkg/model"
)

// SQLLoader reads raw transactions from a database table in chunks. Column
// names are matched case-insensitively against the canonical raw columns.
type SQLLoader struct {
	conn      connector.DatabaseConnector
	table     string
	chunkSize int
	logger    *zap.Logger
}

// NewSQLLoader creates a loader for table, already schema-qualified if needed
func NewSQLLoader(conn connector.DatabaseConnector, table string, chunkSize int, logger *zap.Logger) *SQLLoader {
	return &SQLLoader{
		conn:      conn,
		table:     table,
		chunkSize: chunkSize,
		logger:    logger.Named("sql-source"),
	}
}

// Load implements Loader
func (l *SQLLoader) Load(ctx context.Context) ([]model.RawTransaction, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY 1", l.table)

	var (
		rows    []model.RawTransaction
		columns []string
	)
	err := l.conn.BatchQuery(ctx, query, l.chunkSize, func(r *sqlx.Rows) error {
		if columns == nil {
			names, err := r.Columns()
			if err != nil {
				return fmt.Errorf("failed to read columns: %w", err)
			}
			if columns, err = mapColumns(names); err != nil {
				return err
			}
		}

		values, err := r.SliceScan()
		if err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}

		var raw model.RawTransaction
		for i, col := range columns {
			if col == "" {
				continue
			}
			text, err := converter.ToRawText(values[i])
			if err != nil {
				return fmt.Errorf("column %s: %w", col, err)
			}
			raw.SetField(col, text)
		}
		rows = append(rows, raw)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", l.table, err)
	}

	l.logger.Info("Loaded raw transactions",
		zap.String("table", l.table),
		zap.String("dialect", l.conn.Dialect().String()),
		zap.Int("rows", len(rows)))
	return rows, nil
}

func mapColumns(names []string) ([]string, error) {
	columns := make([]string, len(names))
	seen := make(map[string]bool)
	for i, name := range names {
		if col, ok := model.CanonicalColumn(name); ok {
			columns[i] = col
			seen[col] = true
		}
	}
	var missing []string
	for _, col := range model.RawColumns {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("source table is missing columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}
