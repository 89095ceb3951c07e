package sink

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/connector"
	"github.com/David-Botos/pos-cleaner/pkg/converter"
	"github.com/David-Botos/pos-cleaner/pkg/model"
)

// SQLWriter persists cleaned records and the cleaning journal to a database
type SQLWriter struct {
	conn       connector.DatabaseConnector
	converter  *converter.TypeConverter
	schema     string
	table      string
	auditTable string
	chunkSize  int
	logger     *zap.Logger
}

// SQLWriterConfig names the target tables
type SQLWriterConfig struct {
	Schema     string
	Table      string
	AuditTable string // empty disables the audit journal
	ChunkSize  int
}

// NewSQLWriter creates a writer on conn
func NewSQLWriter(conn connector.DatabaseConnector, cfg SQLWriterConfig, logger *zap.Logger) *SQLWriter {
	logger = logger.Named("sql-sink")
	return &SQLWriter{
		conn:       conn,
		converter:  converter.NewTypeConverter(logger, conn.Dialect()),
		schema:     cfg.Schema,
		table:      cfg.Table,
		auditTable: cfg.AuditTable,
		chunkSize:  cfg.ChunkSize,
		logger:     logger,
	}
}

// AuditEnabled reports whether WriteAudit persists anything
func (w *SQLWriter) AuditEnabled() bool {
	return w.auditTable != ""
}

// WriteCleaned replaces the contents of the cleaned table with records,
// creating the table if needed
func (w *SQLWriter) WriteCleaned(ctx context.Context, records []model.CleanTransaction) (WriteResult, error) {
	metadata := model.CleanedTableMetadata(w.schema, w.table)
	target, err := w.ensureTable(ctx, metadata)
	if err != nil {
		return WriteResult{}, err
	}

	values := make([][]interface{}, len(records))
	for i, r := range records {
		values[i] = w.converter.CleanRowValues(r)
	}

	n, err := w.conn.ReplaceRows(ctx, target, converter.QuotedColumnNames(metadata), values, w.chunkSize)
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to replace rows of %s: %w", target, err)
	}

	w.logger.Info("Wrote cleaned records",
		zap.String("table", target),
		zap.Int64("rows", n))
	return WriteResult{Target: target, Rows: n}, nil
}

// WriteAudit appends the journal to the audit table. Operations without an ID
// get a fresh UUID.
func (w *SQLWriter) WriteAudit(ctx context.Context, ops []model.CleaningOperation) (WriteResult, error) {
	if !w.AuditEnabled() {
		return WriteResult{}, nil
	}

	metadata := model.AuditTableMetadata(w.schema, w.auditTable)
	target, err := w.ensureTable(ctx, metadata)
	if err != nil {
		return WriteResult{}, err
	}

	values := make([][]interface{}, len(ops))
	for i, op := range ops {
		if op.ID == "" {
			op.ID = uuid.NewString()
		}
		values[i] = w.converter.AuditRowValues(op)
	}

	n, err := w.conn.BatchInsert(ctx, target, converter.QuotedColumnNames(metadata), values, w.chunkSize)
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to insert into %s: %w", target, err)
	}

	w.logger.Info("Wrote cleaning journal",
		zap.String("table", target),
		zap.Int64("operations", n))
	return WriteResult{Target: target, Rows: n}, nil
}

func (w *SQLWriter) ensureTable(ctx context.Context, metadata *model.TableMetadata) (string, error) {
	defs, err := w.converter.GenerateColumnDefinitions(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to build definitions for %s: %w", metadata.QualifiedName(), err)
	}
	target := converter.QuoteQualifiedName(metadata.Schema, metadata.Table)
	if err := w.conn.CreateTableIfNotExists(ctx, target, defs, converter.PrimaryKeyClause(metadata)); err != nil {
		return "", err
	}
	return target, nil
}
