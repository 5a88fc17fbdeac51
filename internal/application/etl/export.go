package etl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/logtower/backend/internal/domain/dimension"
	"github.com/logtower/backend/internal/domain/shipment"
	"github.com/logtower/backend/internal/infrastructure/logger"
	"github.com/logtower/backend/internal/infrastructure/sheet"
	"github.com/logtower/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ExportDelimiter separates the columns of exported flat files
const ExportDelimiter = '|'

// FactFileName is the flat file of the fact table
const FactFileName = "fato_cte.txt"

// FactColumns are the columns of fato_cte.txt in order
var FactColumns = []string{
	"id", "cte_numero", "frete_valor", "frequencia_semanal", "distancia_km",
	"duracao_min", "data_hora", "custo_km", "custo_mensal",
	"id_filial", "id_transportadora", "id_cliente", "id_produto", "id_regiao",
}

// DimensionColumns are the columns of every dim_<table>.txt
var DimensionColumns = []string{"id", "nome", "latitude", "longitude"}

// Publisher uploads an exported file and returns where it went
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// Exporter writes the star schema to pipe-separated flat files
type Exporter struct {
	dimensions dimension.Repository
	facts      shipment.Repository
	publisher  Publisher
	metrics    *telemetry.ETLMetrics
	logger     *zap.Logger
}

// ExporterOption configures an Exporter
type ExporterOption func(*Exporter)

// WithPublisher uploads every written file
func WithPublisher(pub Publisher) ExporterOption {
	return func(e *Exporter) { e.publisher = pub }
}

// WithExportMetrics sets the instruments counting exported rows
func WithExportMetrics(m *telemetry.ETLMetrics) ExporterOption {
	return func(e *Exporter) { e.metrics = m }
}

// WithExportLogger sets the exporter logger
func WithExportLogger(l *zap.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = l }
}

// NewExporter creates an Exporter
func NewExporter(dimensions dimension.Repository, facts shipment.Repository, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		dimensions: dimensions,
		facts:      facts,
		metrics:    telemetry.NopETLMetrics(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("export")
	return e
}

// ExportAll writes fato_cte.txt and every dimension file into dir
func (e *Exporter) ExportAll(ctx context.Context, dir string) error {
	if _, err := e.ExportFacts(ctx, filepath.Join(dir, FactFileName)); err != nil {
		return err
	}
	_, err := e.ExportDimensions(ctx, dir)
	return err
}

// ExportFacts writes the fact table with its derived measures to path and
// returns the number of rows written. An empty table writes nothing.
func (e *Exporter) ExportFacts(ctx context.Context, path string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "export.facts", attribute.String(telemetry.AttrFile, filepath.Base(path)))
	defer span.End()

	facts, err := e.facts.FindAll(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to load facts: %w", err)
	}
	if len(facts) == 0 {
		e.logger.Warn("No data for fato_cte")
		return 0, nil
	}

	rows := make([][]string, len(facts))
	for i := range facts {
		rows[i] = factRecord(&facts[i])
	}
	if err := e.write(ctx, path, FactColumns, rows); err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	e.metrics.RowsExported(ctx, "fato_cte", len(rows))
	e.logger.Info("fato_cte exported", logger.File(path), zap.Int("rows", len(rows)))
	return len(rows), nil
}

// ExportDimensions writes one dim_<table>.txt per dimension into dir and
// returns the rows written per kind. Empty tables are skipped.
func (e *Exporter) ExportDimensions(ctx context.Context, dir string) (map[dimension.Kind]int, error) {
	ctx, span := telemetry.StartSpan(ctx, "export.dimensions")
	defer span.End()

	written := make(map[dimension.Kind]int, len(dimension.Kinds()))
	for _, kind := range dimension.Kinds() {
		members, err := e.dimensions.FindAll(ctx, kind)
		if err != nil {
			telemetry.RecordError(span, err)
			return written, fmt.Errorf("failed to load %s: %w", kind, err)
		}
		if len(members) == 0 {
			e.logger.Warn("Dimension table empty", logger.Dimension(kind.Table()))
			continue
		}

		rows := make([][]string, len(members))
		for i := range members {
			rows[i] = memberRecord(&members[i])
		}
		path := filepath.Join(dir, kind.ExportFileName())
		if err := e.write(ctx, path, DimensionColumns, rows); err != nil {
			telemetry.RecordError(span, err)
			return written, err
		}
		written[kind] = len(rows)
		e.metrics.RowsExported(ctx, kind.Table(), len(rows))
		e.logger.Info("Dimension exported", logger.Dimension(kind.Table()), logger.File(path), zap.Int("rows", len(rows)))
	}
	return written, nil
}

func (e *Exporter) write(ctx context.Context, path string, headers []string, rows [][]string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	if err := sheet.WriteDelimited(f, ExportDelimiter, headers, rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}

	if e.publisher == nil {
		return nil
	}
	key, err := e.publisher.Publish(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", filepath.Base(path), err)
	}
	e.logger.Debug("Export published", logger.File(path), zap.String("key", key))
	return nil
}

func factRecord(s *shipment.Shipment) []string {
	return []string{
		s.ID.String(),
		s.CTeNumber,
		s.Freight.StringFixed(2),
		strconv.Itoa(s.WeeklyFrequency),
		s.DistanceKM.StringFixed(2),
		s.DurationMin.StringFixed(2),
		s.ProcessedAt.Format(time.RFC3339),
		s.CostPerKM().StringFixed(4),
		s.MonthlyCost().StringFixed(2),
		s.BranchID.String(),
		s.CarrierID.String(),
		s.ClientID.String(),
		s.ProductID.String(),
		s.RegionID.String(),
	}
}

func memberRecord(m *dimension.Member) []string {
	return []string{m.ID.String(), m.Name, formatCoordinate(m.Latitude), formatCoordinate(m.Longitude)}
}

func formatCoordinate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
