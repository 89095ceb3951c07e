package transfer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/David-Botos/pos-cleaner/pkg/cleaner"
	"github.com/David-Botos/pos-cleaner/pkg/config"
	"github.com/David-Botos/pos-cleaner/pkg/connector"
	"github.com/David-Botos/pos-cleaner/pkg/logging"
	"github.com/David-Botos/pos-cleaner/pkg/sink"
	"github.com/David-Botos/pos-cleaner/pkg/source"
)

// Pipeline orchestrates one cleaning run: load, clean, verify, export
type Pipeline struct {
	cfg      *config.Config
	factory  *connector.ConnectorFactory
	verifier *Verifier
	logger   *zap.Logger
}

// NewPipeline creates a new pipeline
func NewPipeline(cfg *config.Config, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		factory:  connector.NewConnectorFactory(cfg, logger),
		verifier: NewVerifier(logger),
		logger:   logger.Named("pipeline"),
	}
}

// Run executes the pipeline. Data-quality findings never fail a run; only
// infrastructure failures do, wrapped in a *RunError.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, NewRunError(ErrorCategoryConfig, "", err)
	}

	sourceConn, err := p.factory.CreateSourceConnector(ctx)
	if err != nil {
		return nil, NewRunError(ErrorCategorySource, p.cfg.Source.Kind, err)
	}
	if sourceConn != nil {
		defer closeConnector(p.logger, "source", sourceConn)
	}

	sinkConn, err := p.factory.CreateSinkConnector(ctx)
	if err != nil {
		return nil, NewRunError(ErrorCategorySink, p.cfg.Sink.Kind, err)
	}
	if sinkConn != nil {
		defer closeConnector(p.logger, "sink", sinkConn)
	}

	loader, sourceName := p.newLoader(sourceConn)
	job := NewRunJob(sourceName, p.cfg.RandomSeed)
	metrics := NewRunMetrics(job.ID, p.logger)
	logger := p.logger.With(zap.String("run_id", job.ID))

	logger.Info("Starting cleaning run",
		zap.String("source", sourceName),
		zap.String("sink", p.cfg.Sink.Kind),
		zap.Uint64("seed", p.cfg.RandomSeed))

	loadStart := time.Now()
	rows, err := loader.Load(ctx)
	if err != nil {
		metrics.RecordError(ErrorCategorySource)
		return nil, NewRunError(ErrorCategorySource, sourceName, err)
	}
	metrics.RecordLoad(len(rows), time.Since(loadStart))

	dc, err := cleaner.NewDataCleaner(p.logger, cleaner.Options{
		InputDateLayouts: p.cfg.InputDateLayouts,
		OutputDateLayout: p.cfg.OutputDateLayout,
		Random:           rand.New(rand.NewPCG(p.cfg.RandomSeed, p.cfg.RandomSeed)),
	})
	if err != nil {
		return nil, NewRunError(ErrorCategoryConfig, "cleaner", err)
	}

	cleaned, err := dc.Clean(job.ID, rows)
	if err != nil {
		return nil, NewRunError(ErrorCategoryConfig, "cleaner", err)
	}
	metrics.RecordCleaning(cleaned)

	result := &RunResult{
		Job:          job,
		Cleaning:     cleaned,
		Verification: p.verifier.Verify(cleaned.Records),
		Metrics:      metrics,
	}

	outputs, cleanedTarget, err := p.export(ctx, sinkConn, cleaned, metrics)
	result.Outputs = outputs
	if err != nil {
		metrics.RecordError(ErrorCategorySink)
		return result, err
	}

	if sinkConn != nil && cleanedTarget != "" {
		expected := int64(len(cleaned.Records))
		if err := p.verifier.VerifyRowCount(ctx, sinkConn, cleanedTarget, expected, result.Verification); err != nil {
			metrics.RecordError(ErrorCategoryVerification)
			return result, NewRunError(ErrorCategoryVerification, cleanedTarget, err)
		}
		if !result.Verification.RowCountMatches {
			metrics.RecordError(ErrorCategoryVerification)
			return result, NewRunError(ErrorCategoryVerification, cleanedTarget,
				fmt.Errorf("expected %d rows, found %d", expected, result.Verification.TargetRowCount))
		}
	}

	metrics.Complete()
	result.CompletedAt = time.Now()

	if p.cfg.PushgatewayURL != "" {
		if err := metrics.Push(ctx, p.cfg.PushgatewayURL, p.cfg.PushgatewayJob); err != nil {
			logger.Warn("Failed to push metrics", zap.Error(err))
		}
	}

	logger.Info("Cleaning run completed",
		zap.Int("input_rows", cleaned.Report.InputRows),
		zap.Int("output_rows", cleaned.Report.OutputRows),
		zap.Int("dropped", cleaned.Report.DroppedCount()),
		zap.Bool("verified", result.Verification.Passed()),
		zap.String("digest", result.Digest()),
		zap.Duration("duration", result.Duration()))

	return result, nil
}

func (p *Pipeline) newLoader(conn connector.SchemaConnector) (source.Loader, string) {
	if conn == nil {
		return source.NewCSVLoader(p.cfg.Source.Path, p.logger), p.cfg.Source.Path
	}
	table := p.cfg.Source.Table
	if schema := conn.Schema(); schema != "" {
		table = schema + "." + table
	}
	return source.NewSQLLoader(conn, table, p.cfg.ChunkSize, p.logger), table
}

// export writes the CSV projection and the SQL tables concurrently. It returns
// the written outputs and the cleaned table's name when one was written.
func (p *Pipeline) export(
	ctx context.Context,
	sinkConn connector.SchemaConnector,
	cleaned *cleaner.Result,
	metrics *RunMetrics,
) ([]sink.WriteResult, string, error) {
	var (
		mu            sync.Mutex
		outputs       []sink.WriteResult
		cleanedTarget string
	)
	record := func(res sink.WriteResult, start time.Time) {
		metrics.RecordWrite(res, time.Since(start))
		mu.Lock()
		outputs = append(outputs, res)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	if p.cfg.OutputCSV != "" {
		g.Go(func() error {
			start := time.Now()
			res, err := sink.NewCSVWriter(p.cfg.OutputCSV, p.logger).Write(gctx, cleaned.Projection)
			if err != nil {
				return NewRunError(ErrorCategorySink, p.cfg.OutputCSV, err)
			}
			record(res, start)
			return nil
		})
	}

	if sinkConn != nil {
		auditTable := ""
		if p.cfg.Sink.AuditEnabled {
			auditTable = p.cfg.Sink.AuditTable
		}
		writer := sink.NewSQLWriter(sinkConn, sink.SQLWriterConfig{
			Schema:     sinkConn.Schema(),
			Table:      p.cfg.Sink.Table,
			AuditTable: auditTable,
			ChunkSize:  p.cfg.ChunkSize,
		}, p.logger)

		g.Go(func() error {
			start := time.Now()
			res, err := writer.WriteCleaned(gctx, cleaned.Records)
			if err != nil {
				return NewRunError(ErrorCategorySink, p.cfg.Sink.Table, err)
			}
			record(res, start)
			mu.Lock()
			cleanedTarget = res.Target
			mu.Unlock()

			if !writer.AuditEnabled() {
				return nil
			}
			start = time.Now()
			res, err = writer.WriteAudit(gctx, cleaned.Operations)
			if err != nil {
				return NewRunError(ErrorCategorySink, auditTable, err)
			}
			record(res, start)
			return nil
		})
	}

	err := g.Wait()
	return outputs, cleanedTarget, err
}

func closeConnector(logger *zap.Logger, role string, conn connector.DatabaseConnector) {
	if err := conn.Close(); err != nil {
		logger.Warn("Failed to close connector", zap.String("role", role), zap.Error(err))
	}
}

// Run executes a single pipeline run with the logger carried by ctx
func Run(ctx context.Context, cfg *config.Config) (*RunResult, error) {
	return NewPipeline(cfg, logging.FromContext(ctx)).Run(ctx)
}
