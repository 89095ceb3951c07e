package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

// Loader supplies the raw transaction table
type Loader interface {
	Load(ctx context.Context) ([]model.RawTransaction, error)
}

// CSVLoader reads raw transactions from a CSV file with a header row.
// Columns are matched by header name in any order; empty cells stay present
// as empty strings for the normalizer to judge.
type CSVLoader struct {
	path   string
	logger *zap.Logger
}

// NewCSVLoader creates a loader for the file at path
func NewCSVLoader(path string, logger *zap.Logger) *CSVLoader {
	return &CSVLoader{path: path, logger: logger.Named("csv-source")}
}

// Load implements Loader
func (l *CSVLoader) Load(ctx context.Context) ([]model.RawTransaction, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", l.path, err)
	}
	defer f.Close()

	rows, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.path, err)
	}

	l.logger.Info("Loaded raw transactions",
		zap.String("path", l.path),
		zap.Int("rows", len(rows)))
	return rows, nil
}

// ReadCSV parses raw transactions from r
func ReadCSV(ctx context.Context, r io.Reader) ([]model.RawTransaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []model.RawTransaction
	for line := 2; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var raw model.RawTransaction
		for i, col := range columns {
			if col == "" || i >= len(record) {
				continue
			}
			v := record[i]
			raw.SetField(col, &v)
		}
		rows = append(rows, raw)
	}
	return rows, nil
}

// mapHeader resolves each header cell to a canonical column; unknown headers
// map to "" and are ignored
func mapHeader(header []string) ([]string, error) {
	columns := make([]string, len(header))
	seen := make(map[string]bool)
	for i, h := range header {
		if i == 0 {
			h = trimBOM(h)
		}
		col, ok := model.CanonicalColumn(h)
		if !ok {
			continue
		}
		if seen[col] {
			return nil, fmt.Errorf("duplicate column %q in header", h)
		}
		seen[col] = true
		columns[i] = col
	}

	for _, col := range model.RawColumns {
		if !seen[col] {
			return nil, fmt.Errorf("header is missing column %q", col)
		}
	}
	return columns, nil
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
