// Package etl loads CT-e spreadsheets into the star schema: it routes each
// shipment, resolves its dimensions, stores the fact and exports the tables
// as pipe-separated flat files.
package etl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/logtower/backend/internal/domain/bulk"
	"github.com/logtower/backend/internal/domain/dimension"
	"github.com/logtower/backend/internal/domain/routing"
	"github.com/logtower/backend/internal/domain/shared"
	"github.com/logtower/backend/internal/domain/shipment"
	"github.com/logtower/backend/internal/infrastructure/logger"
	"github.com/logtower/backend/internal/infrastructure/sheet"
	"github.com/logtower/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultMaxRowErrors caps the row errors kept per file
const DefaultMaxRowErrors = 100

// FileResult is the outcome of processing one spreadsheet
type FileResult struct {
	RunID  uuid.UUID      `json:"run_id"`
	File   string         `json:"file"`
	Status bulk.RunStatus `json:"status"`
	bulk.Counters
	Errors      []sheet.RowError `json:"errors,omitempty"`
	IsTruncated bool             `json:"is_truncated,omitempty"`
	TotalErrors int              `json:"total_errors,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// Pipeline processes CT-e spreadsheets one row at a time
type Pipeline struct {
	resolver  *dimension.Resolver
	facts     shipment.Repository
	runs      bulk.RunRepository
	router    routing.Router
	validate  *validator.Validate
	metrics   *telemetry.ETLMetrics
	logger    *zap.Logger
	clock     shared.Clock
	mode      bulk.ConflictMode
	maxErrors int
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithConflictMode sets what happens to rows whose key is already stored
func WithConflictMode(mode bulk.ConflictMode) Option {
	return func(p *Pipeline) { p.mode = mode }
}

// WithMaxRowErrors caps the row errors kept per file
func WithMaxRowErrors(n int) Option {
	return func(p *Pipeline) { p.maxErrors = n }
}

// WithRunRepository records every processed file in the run history
func WithRunRepository(runs bulk.RunRepository) Option {
	return func(p *Pipeline) { p.runs = runs }
}

// WithMetrics sets the ETL instruments
func WithMetrics(m *telemetry.ETLMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the pipeline logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock pins the processing timestamp
func WithClock(c shared.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// NewPipeline creates a Pipeline
func NewPipeline(
	resolver *dimension.Resolver,
	facts shipment.Repository,
	router routing.Router,
	opts ...Option,
) (*Pipeline, error) {
	p := &Pipeline{
		resolver:  resolver,
		facts:     facts,
		router:    router,
		validate:  newRowValidator(),
		metrics:   telemetry.NopETLMetrics(),
		logger:    zap.NewNop(),
		clock:     shared.SystemClock,
		mode:      bulk.ConflictModeSkip,
		maxErrors: DefaultMaxRowErrors,
	}
	for _, opt := range opts {
		opt(p)
	}
	if !p.mode.IsValid() {
		return nil, shared.NewDomainError("INVALID_CONFLICT_MODE", fmt.Sprintf("Invalid conflict mode: %s", p.mode))
	}
	if p.maxErrors <= 0 {
		p.maxErrors = DefaultMaxRowErrors
	}
	p.logger = p.logger.Named("etl")
	return p, nil
}

// ProcessFolder processes every spreadsheet in dir in name order. A file
// that cannot be read is recorded as a failed run and the next file is
// processed; the returned error joins those failures.
func (p *Pipeline) ProcessFolder(ctx context.Context, dir string) ([]*FileResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && sheet.IsSpreadsheet(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		p.logger.Warn("No spreadsheets found", zap.String("folder", dir))
		return nil, nil
	}

	results := make([]*FileResult, 0, len(files))
	var fileErrs []error
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		p.logger.Info("Processing", logger.File(name))
		res, err := p.ProcessFile(ctx, filepath.Join(dir, name))
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}
			fileErrs = append(fileErrs, err)
		}
	}
	return results, errors.Join(fileErrs...)
}

// ProcessFile processes every row of one spreadsheet. Row failures are
// collected in the result and never stop the file; an unreadable file or
// missing coordinate columns fail the whole run.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*FileResult, error) {
	name := filepath.Base(path)
	ctx, span := telemetry.StartSpan(ctx, "etl.file", attribute.String(telemetry.AttrFile, name))
	defer span.End()

	run, err := bulk.NewRun(name, p.mode, p.clock())
	if err != nil {
		return nil, err
	}
	ctx = logger.WithRunID(ctx, run.ID.String())
	log := logger.L(ctx, p.logger).With(logger.File(name))

	table, err := sheet.Open(path)
	if err == nil {
		if missing := table.MissingHeaders(RequiredHeaders); len(missing) > 0 {
			err = fmt.Errorf("%w: %s", sheet.ErrMissingHeader, strings.Join(missing, ", "))
		}
	}
	if err != nil {
		_ = run.Fail(err.Error(), p.clock())
		p.saveRun(ctx, run, log)
		p.metrics.FileProcessed(ctx, string(run.Status))
		telemetry.RecordError(span, err)
		log.Error("Failed to read spreadsheet", zap.Error(err))
		return resultFromRun(run, nil), fmt.Errorf("%s: %w", name, err)
	}

	if err := run.Start(len(table.Rows), p.clock()); err != nil {
		return nil, err
	}
	p.saveRun(ctx, run, log)

	errs := sheet.NewErrorCollection(p.maxErrors)
	var counters bulk.Counters
	counters.Total = len(table.Rows)

	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			_ = run.Cancel(counters, errorDetails(errs), p.clock())
			p.saveRun(context.WithoutCancel(ctx), run, log)
			p.metrics.FileProcessed(ctx, string(run.Status))
			log.Warn("Processing cancelled", zap.Int("processed",
				counters.Inserted+counters.Duplicates+counters.Updated+counters.Failed))
			return resultFromRun(run, errs), err
		}

		switch p.processRow(ctx, row, errs) {
		case telemetry.OutcomeInserted:
			counters.Inserted++
		case telemetry.OutcomeDuplicate:
			counters.Duplicates++
		case telemetry.OutcomeUpdated:
			counters.Updated++
		default:
			counters.Failed++
		}
	}

	if err := run.Complete(counters, errorDetails(errs), errs.IsTruncated(), p.clock()); err != nil {
		return nil, err
	}
	p.saveRun(ctx, run, log)
	p.metrics.FileProcessed(ctx, string(run.Status))
	span.SetAttributes(attribute.String("etl.status", string(run.Status)))

	log.Info("File processed",
		zap.String("status", string(run.Status)),
		zap.Int("total", counters.Total),
		zap.Int("inserted", counters.Inserted),
		zap.Int("duplicates", counters.Duplicates),
		zap.Int("updated", counters.Updated),
		zap.Int("failed", counters.Failed),
		zap.Duration("elapsed", run.Duration(p.clock())),
	)
	if errs.HasErrors() {
		log.Warn("Rows rejected", zap.Any("by_code", errs.ErrorSummary()))
		log.Debug(errs.String())
	}
	return resultFromRun(run, errs), nil
}

// processRow runs one row through route, dimensions and fact storage and
// returns its outcome
func (p *Pipeline) processRow(ctx context.Context, row *sheet.Row, errs *sheet.ErrorCollection) string {
	number := displayNumber(row.Get(ColCTeNumber))
	ctx, span := telemetry.StartSpan(ctx, "etl.row",
		attribute.Int(telemetry.AttrRow, row.LineNumber),
		attribute.String(telemetry.AttrCTeNumber, number),
	)
	defer span.End()
	log := logger.L(ctx, p.logger).With(logger.Row(row.LineNumber), logger.CTe(number))

	outcome, err := p.storeRow(ctx, row, number, errs, log)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("Error processing CT-e", zap.Error(err))
	}
	span.SetAttributes(attribute.String(telemetry.AttrOutcome, outcome))
	p.metrics.RowProcessed(ctx, outcome)
	return outcome
}

func (p *Pipeline) storeRow(ctx context.Context, row *sheet.Row, number string, errs *sheet.ErrorCollection, log *zap.Logger) (string, error) {
	fail := func(code string, err error) (string, error) {
		e := sheet.NewRowError(row.LineNumber, "", code, err.Error())
		e.CTeNumber = number
		errs.Add(e)
		return telemetry.OutcomeFailed, err
	}

	parsed, err := parseRow(p.validate, row, errs)
	if err != nil {
		return telemetry.OutcomeFailed, err
	}

	route, err := p.router.Route(ctx, parsed.origin(), parsed.destination())
	if err != nil {
		return fail(sheet.ErrCodeRouting, fmt.Errorf("routing failed: %w", err))
	}

	dims, err := p.resolveDimensions(ctx, parsed)
	if err != nil {
		return fail(sheet.ErrCodeDimension, err)
	}

	fact, err := shipment.NewShipment(parsed.CTeNumber, shipment.Measures{
		Freight:         parsed.Freight,
		WeeklyFrequency: parsed.WeeklyFrequency,
		DistanceKM:      route.Kilometers(),
		DurationMin:     route.Minutes(),
	}, dims, p.clock())
	if err != nil {
		return fail(sheet.ErrCodeInvalidShipment, err)
	}

	inserted, err := p.facts.SaveIfAbsent(ctx, fact)
	if err != nil {
		return fail(sheet.ErrCodePersistence, fmt.Errorf("failed to save fact: %w", err))
	}
	if inserted {
		log.Info("CT-e saved",
			zap.String("distancia_km", fact.DistanceKM.StringFixed(2)),
			zap.String("duracao_min", fact.DurationMin.StringFixed(2)),
		)
		return telemetry.OutcomeInserted, nil
	}

	switch p.mode {
	case bulk.ConflictModeUpdate:
		existing, err := p.facts.FindByKey(ctx, fact.Key())
		if err != nil {
			return fail(sheet.ErrCodePersistence, fmt.Errorf("failed to load stored fact: %w", err))
		}
		if err := existing.Refresh(fact); err != nil {
			return fail(sheet.ErrCodeInvalidShipment, err)
		}
		if err := p.facts.Update(ctx, existing); err != nil {
			return fail(sheet.ErrCodePersistence, fmt.Errorf("failed to update fact: %w", err))
		}
		log.Info("CT-e already exists, updated")
		return telemetry.OutcomeUpdated, nil
	case bulk.ConflictModeFail:
		e := sheet.NewRowErrorWithValue(row.LineNumber, ColCTeNumber, sheet.ErrCodeDuplicateInDB,
			"CT-e already exists for this branch", fact.CTeNumber)
		e.CTeNumber = number
		errs.Add(e)
		return telemetry.OutcomeFailed, fmt.Errorf("%w: %w", e, shared.ErrAlreadyExists)
	default:
		log.Warn("CT-e already exists, ignored")
		return telemetry.OutcomeDuplicate, nil
	}
}

func (p *Pipeline) resolveDimensions(ctx context.Context, r *shipmentRow) (shipment.Dimensions, error) {
	var dims shipment.Dimensions
	for _, d := range []struct {
		kind   dimension.Kind
		raw    string
		target *uuid.UUID
	}{
		{dimension.KindBranch, r.Branch, &dims.BranchID},
		{dimension.KindCarrier, r.Carrier, &dims.CarrierID},
		{dimension.KindClient, r.Client, &dims.ClientID},
		{dimension.KindProduct, r.Product, &dims.ProductID},
		{dimension.KindRegion, r.Region, &dims.RegionID},
	} {
		id, err := p.resolver.GetOrCreate(ctx, d.kind, d.raw)
		if err != nil {
			return dims, err
		}
		*d.target = id
	}
	return dims, nil
}

// saveRun records the run; history is best effort and never fails the file
func (p *Pipeline) saveRun(ctx context.Context, run *bulk.Run, log *zap.Logger) {
	if p.runs == nil {
		return
	}
	if err := p.runs.Save(ctx, run); err != nil {
		log.Warn("Failed to record run history", zap.Error(err))
	}
}

func errorDetails(errs *sheet.ErrorCollection) []bulk.ErrorDetail {
	list := errs.Errors()
	details := make([]bulk.ErrorDetail, len(list))
	for i, e := range list {
		details[i] = bulk.ErrorDetail{
			Row:       e.Row,
			CTeNumber: e.CTeNumber,
			Column:    e.Column,
			Code:      e.Code,
			Message:   e.Message,
			Value:     e.Value,
		}
	}
	return details
}

func resultFromRun(run *bulk.Run, errs *sheet.ErrorCollection) *FileResult {
	res := &FileResult{
		RunID:    run.ID,
		File:     run.FileName,
		Status:   run.Status,
		Counters: run.Counters,
		Message:  run.Message,
	}
	if errs != nil {
		res.Errors = errs.Errors()
		res.IsTruncated = errs.IsTruncated()
		res.TotalErrors = errs.TotalCount()
	}
	return res
}
