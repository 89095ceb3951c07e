package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

// OutputHeader is the header row of the exported projection
var OutputHeader = []string{
	"Transaction ID",
	"Item",
	"Quantity",
	"Price Per Unit",
	"Total Spent",
	"Payment Method",
	"Location",
	"Transaction Date",
	"Day Of Week",
	"Transaction Month",
}

// WriteResult describes a completed export
type WriteResult struct {
	Target string
	Rows   int64
	// Digest is the xxh3 hash of the exported bytes, hex encoded. Equal
	// digests mean byte-identical output.
	Digest string
}

// CSVWriter exports the formatted projection to a CSV file
type CSVWriter struct {
	path   string
	logger *zap.Logger
}

// NewCSVWriter creates a writer for path
func NewCSVWriter(path string, logger *zap.Logger) *CSVWriter {
	return &CSVWriter{path: path, logger: logger.Named("csv-sink")}
}

// Write replaces the file at path with rows. The file is written to a
// temporary name first so a failed run never leaves a partial export.
func (w *CSVWriter) Write(ctx context.Context, rows []model.ProjectionRow) (WriteResult, error) {
	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, ".posclean-*.csv")
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	digest, err := WriteCSV(ctx, tmp, rows)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to write %s: %w", w.path, err)
	}

	if err := os.Rename(tmpName, w.path); err != nil {
		return WriteResult{}, fmt.Errorf("failed to move export into place: %w", err)
	}

	w.logger.Info("Wrote projection",
		zap.String("path", w.path),
		zap.Int("rows", len(rows)),
		zap.String("digest", digest))

	return WriteResult{Target: w.path, Rows: int64(len(rows)), Digest: digest}, nil
}

// WriteCSV writes the header and rows to out and returns the xxh3 digest of
// everything written
func WriteCSV(ctx context.Context, out io.Writer, rows []model.ProjectionRow) (string, error) {
	hasher := xxh3.New()
	writer := csv.NewWriter(io.MultiWriter(out, hasher))

	if err := writer.Write(OutputHeader); err != nil {
		return "", err
	}
	for i, row := range rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		if err := writer.Write(row.Values()); err != nil {
			return "", fmt.Errorf("row %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}
