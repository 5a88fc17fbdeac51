package etl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/logtower/backend/internal/domain/bulk"
	"github.com/logtower/backend/internal/domain/dimension"
	"github.com/logtower/backend/internal/domain/routing"
	"github.com/logtower/backend/internal/domain/shared"
	"github.com/logtower/backend/internal/domain/shipment"
	"github.com/logtower/backend/internal/infrastructure/sheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

const csvHeader = "cte_numero,filial,origem_latitude,origem_longitude,destino_latitude,destino_longitude,frete_valor,frequencia_semanal,transportadora,cliente,produto,região"

const (
	rowSaoPaulo = "CTE001,São Paulo,-23.5505,-46.6333,-22.9083,-47.0626,1015,2,LogRio,Cliente A,Eletrônicos,Sudeste"
	rowRio      = "CTE002,Rio de Janeiro,-22.9068,-43.1729,-23.5075,-46.7354,1030,3,TransPaulista,Cliente B,Alimentos,Centro-Oeste"
	rowCuiaba   = "CTE003,Cuiabá,-15.6010,-56.0974,-23.6235,-46.7006,,,Rapidão MT,Cliente C,Vestuário,Sul"
)

func writeCSV(t *testing.T, dir, name string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := csvHeader + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type pipelineFixture struct {
	dims     *memoryDimensions
	facts    *memoryFacts
	runs     *MockRunRepository
	pipeline *Pipeline
}

func newPipelineFixture(t *testing.T, router routing.Router, opts ...Option) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		dims:  newMemoryDimensions(),
		facts: &memoryFacts{},
		runs:  new(MockRunRepository),
	}
	f.runs.On("Save", mock.Anything, mock.AnythingOfType("*bulk.Run")).Return(nil)

	opts = append([]Option{WithClock(testClock), WithRunRepository(f.runs)}, opts...)
	p, err := NewPipeline(dimension.NewResolver(f.dims, testClock), f.facts, router, opts...)
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func TestNewPipeline_InvalidConflictMode(t *testing.T) {
	_, err := NewPipeline(dimension.NewResolver(newMemoryDimensions(), nil), &memoryFacts{}, fixedRouter,
		WithConflictMode("merge"))
	assert.Error(t, err)
}

func TestProcessFile(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	missingLat := "CTE004,Rio de Janeiro,,-43.1729,-23.5075,-46.7354,1030,3,TransPaulista,Cliente B,Alimentos,Centro-Oeste"
	path := writeCSV(t, t.TempDir(), "ctes.csv", rowSaoPaulo, missingLat, rowCuiaba)

	res, err := f.pipeline.ProcessFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "ctes.csv", res.File)
	assert.Equal(t, bulk.RunStatusCompletedWithErrors, res.Status)
	assert.Equal(t, bulk.Counters{Total: 3, Inserted: 2, Failed: 1}, res.Counters)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.Equal(t, "CTE004", res.Errors[0].CTeNumber)
	assert.Equal(t, ColOriginLat, res.Errors[0].Column)
	assert.Equal(t, sheet.ErrCodeRequiredField, res.Errors[0].Code)

	facts, _ := f.facts.FindAll(context.Background())
	require.Len(t, facts, 2)
	assert.Equal(t, "CTE001", facts[0].CTeNumber)
	assert.Equal(t, "1015", facts[0].Freight.String())
	assert.Equal(t, 2, facts[0].WeeklyFrequency)
	assert.Equal(t, "95.50", facts[0].DistanceKM.StringFixed(2))
	assert.Equal(t, "80.25", facts[0].DurationMin.StringFixed(2))
	assert.Equal(t, testNow, facts[0].ProcessedAt)

	assert.True(t, facts[1].Freight.IsZero())
	assert.Equal(t, 1, facts[1].WeeklyFrequency)

	assert.Equal(t, []string{"CUIABÁ", "SÃO PAULO"}, f.dims.names(dimension.KindBranch))
	assert.Equal(t, []string{"SUDESTE", "SUL"}, f.dims.names(dimension.KindRegion))

	f.runs.AssertNumberOfCalls(t, "Save", 2)
	run := f.runs.Calls[1].Arguments.Get(1).(*bulk.Run)
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, bulk.RunStatusCompletedWithErrors, run.Status)
	require.Len(t, run.ErrorDetails, 1)
	assert.Equal(t, sheet.ErrCodeRequiredField, run.ErrorDetails[0].Code)
}

func TestProcessFile_SkipsDuplicates(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	path := writeCSV(t, t.TempDir(), "ctes.csv", rowSaoPaulo, rowSaoPaulo)

	res, err := f.pipeline.ProcessFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, bulk.RunStatusCompleted, res.Status)
	assert.Equal(t, bulk.Counters{Total: 2, Inserted: 1, Duplicates: 1}, res.Counters)
	assert.Empty(t, res.Errors)

	n, _ := f.facts.Count(context.Background())
	assert.Equal(t, int64(1), n)
}

func TestProcessFile_SameNumberOtherBranchIsNotDuplicate(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	otherBranch := strings.Replace(rowSaoPaulo, "São Paulo", "Cuiabá", 1)
	path := writeCSV(t, t.TempDir(), "ctes.csv", rowSaoPaulo, otherBranch)

	res, err := f.pipeline.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
}

func TestProcessFile_UpdateMode(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter, WithConflictMode(bulk.ConflictModeUpdate))
	dir := t.TempDir()

	_, err := f.pipeline.ProcessFile(context.Background(), writeCSV(t, dir, "a.csv", rowSaoPaulo))
	require.NoError(t, err)
	before, _ := f.facts.FindAll(context.Background())
	require.Len(t, before, 1)

	newer := "CTE001,São Paulo,-23.5505,-46.6333,-22.9083,-47.0626,2000,4,TransPaulista,Cliente A,Eletrônicos,Sudeste"
	res, err := f.pipeline.ProcessFile(context.Background(), writeCSV(t, dir, "b.csv", newer))
	require.NoError(t, err)

	assert.Equal(t, bulk.RunStatusCompleted, res.Status)
	assert.Equal(t, bulk.Counters{Total: 1, Updated: 1}, res.Counters)

	after, _ := f.facts.FindAll(context.Background())
	require.Len(t, after, 1)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, "2000", after[0].Freight.String())
	assert.Equal(t, 4, after[0].WeeklyFrequency)
	assert.NotEqual(t, before[0].CarrierID, after[0].CarrierID)
	assert.Equal(t, before[0].BranchID, after[0].BranchID)
}

func TestProcessFile_FailMode(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	f := newPipelineFixture(t, fixedRouter, WithConflictMode(bulk.ConflictModeFail), WithLogger(zap.New(core)))
	path := writeCSV(t, t.TempDir(), "ctes.csv", rowSaoPaulo, rowSaoPaulo)

	res, err := f.pipeline.ProcessFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, bulk.RunStatusCompletedWithErrors, res.Status)
	assert.Equal(t, bulk.Counters{Total: 2, Inserted: 1, Failed: 1}, res.Counters)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, sheet.ErrCodeDuplicateInDB, res.Errors[0].Code)
	assert.Equal(t, 3, res.Errors[0].Row)

	failures := logs.FilterMessage("Error processing CT-e").All()
	require.Len(t, failures, 1)
	var logged error
	for _, field := range failures[0].Context {
		if field.Key == "error" {
			logged, _ = field.Interface.(error)
		}
	}
	assert.ErrorIs(t, logged, shared.ErrAlreadyExists)
}

func TestProcessFile_RoutingFailureContinues(t *testing.T) {
	router := routing.RouterFunc(func(ctx context.Context, origin, destination routing.Coordinate) (routing.Route, error) {
		if origin.Latitude == -22.9068 {
			return routing.Route{}, errors.New("openrouteservice: 404 route not found")
		}
		return fixedRouter(ctx, origin, destination)
	})
	f := newPipelineFixture(t, router)
	path := writeCSV(t, t.TempDir(), "ctes.csv", rowSaoPaulo, rowRio, rowCuiaba)

	res, err := f.pipeline.ProcessFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, bulk.Counters{Total: 3, Inserted: 2, Failed: 1}, res.Counters)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, sheet.ErrCodeRouting, res.Errors[0].Code)
	assert.Equal(t, "CTE002", res.Errors[0].CTeNumber)
	assert.Contains(t, res.Errors[0].Message, "route not found")

	// dimensions are resolved after routing, so the failed row creates none
	assert.Equal(t, []string{"CUIABÁ", "SÃO PAULO"}, f.dims.names(dimension.KindBranch))
}

func TestProcessFile_PersistenceFailure(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	f.facts.err = errors.New("database is locked")
	path := writeCSV(t, t.TempDir(), "ctes.csv", rowSaoPaulo)

	res, err := f.pipeline.ProcessFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, bulk.RunStatusFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, sheet.ErrCodePersistence, res.Errors[0].Code)
}

func TestProcessFile_RowValidation(t *testing.T) {
	tests := []struct {
		name     string
		row      string
		column   string
		code     string
		contains string
	}{
		{
			name:     "latitude out of range",
			row:      "CTE010,São Paulo,95,-46.6333,-22.9083,-47.0626,1015,2,LogRio,Cliente A,Eletrônicos,Sudeste",
			column:   ColOriginLat,
			code:     sheet.ErrCodeInvalidRange,
			contains: "between -90 and 90",
		},
		{
			name:     "longitude out of range",
			row:      "CTE011,São Paulo,-23.5505,-46.6333,-22.9083,-190,1015,2,LogRio,Cliente A,Eletrônicos,Sudeste",
			column:   ColDestinationLon,
			code:     sheet.ErrCodeInvalidRange,
			contains: "between -180 and 180",
		},
		{
			name:     "freight not a number",
			row:      "CTE012,São Paulo,-23.5505,-46.6333,-22.9083,-47.0626,abc,2,LogRio,Cliente A,Eletrônicos,Sudeste",
			column:   ColFreight,
			code:     sheet.ErrCodeInvalidType,
			contains: "decimal",
		},
		{
			name:     "negative freight",
			row:      "CTE013,São Paulo,-23.5505,-46.6333,-22.9083,-47.0626,-5,2,LogRio,Cliente A,Eletrônicos,Sudeste",
			column:   ColFreight,
			code:     sheet.ErrCodeInvalidRange,
			contains: "greater than or equal to 0",
		},
		{
			name:     "number too long",
			row:      strings.Replace(rowSaoPaulo, "CTE001", "CTE"+strings.Repeat("9", 58), 1),
			column:   ColCTeNumber,
			code:     sheet.ErrCodeInvalidRange,
			contains: "at most 60 characters",
		},
		{
			name:     "frequency not a number",
			row:      "CTE014,São Paulo,-23.5505,-46.6333,-22.9083,-47.0626,1015,twice,LogRio,Cliente A,Eletrônicos,Sudeste",
			column:   ColFrequency,
			code:     sheet.ErrCodeInvalidType,
			contains: "integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, fixedRouter)
			path := writeCSV(t, t.TempDir(), "ctes.csv", tt.row)

			res, err := f.pipeline.ProcessFile(context.Background(), path)
			require.NoError(t, err)

			assert.Equal(t, bulk.RunStatusFailed, res.Status)
			require.Len(t, res.Errors, 1)
			assert.Equal(t, tt.column, res.Errors[0].Column)
			assert.Equal(t, tt.code, res.Errors[0].Code)
			assert.Contains(t, res.Errors[0].Message, tt.contains)
		})
	}
}

func TestProcessFile_BlankNumber(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	path := writeCSV(t, t.TempDir(), "ctes.csv", strings.Replace(rowSaoPaulo, "CTE001", "", 1))

	res, err := f.pipeline.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	facts, _ := f.facts.FindAll(context.Background())
	require.Len(t, facts, 1)
	assert.Equal(t, dimension.Unknown, facts[0].CTeNumber)
}

func TestProcessFile_ZeroFrequency(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	zero := "CTE009,São Paulo,-23.5505,-46.6333,-22.9083,-47.0626,1000,0,LogRio,Cliente A,Eletrônicos,Sudeste"
	path := writeCSV(t, t.TempDir(), "ctes.csv", zero, rowCuiaba)

	res, err := f.pipeline.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 2, res.Inserted, "errors: %v", res.Errors)

	facts, _ := f.facts.FindAll(context.Background())
	require.Len(t, facts, 2)
	assert.Equal(t, "CTE009", facts[0].CTeNumber)
	assert.Equal(t, 0, facts[0].WeeklyFrequency)
	assert.True(t, facts[0].MonthlyCost().IsZero())

	// a missing frequency still defaults to one trip a week
	assert.Equal(t, 1, facts[1].WeeklyFrequency)
}

func TestProcessFile_BrazilianNumbers(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	header := strings.ReplaceAll(csvHeader, ",", ";")
	content := header + "\n" +
		"CTE020;São Paulo;-23,5505;-46,6333;-22,9083;-47,0626;1.015,50;2;LogRio;Cliente A;Eletrônicos;Sudeste\n"
	path := filepath.Join(t.TempDir(), "br.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	res, err := f.pipeline.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted, "errors: %v", res.Errors)

	facts, _ := f.facts.FindAll(context.Background())
	assert.Equal(t, "1015.5", facts[0].Freight.String())
}

func TestProcessFile_MissingHeaders(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	path := filepath.Join(t.TempDir(), "partial.csv")
	require.NoError(t, os.WriteFile(path, []byte("cte_numero,filial\nCTE001,São Paulo\n"), 0o644))

	res, err := f.pipeline.ProcessFile(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, sheet.ErrMissingHeader)
	assert.Contains(t, err.Error(), ColOriginLat)

	require.NotNil(t, res)
	assert.Equal(t, bulk.RunStatusFailed, res.Status)
	assert.Contains(t, res.Message, ColDestinationLon)
	f.runs.AssertNumberOfCalls(t, "Save", 1)
}

func TestProcessFile_UnsupportedFile(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := f.pipeline.ProcessFile(context.Background(), path)
	assert.ErrorIs(t, err, sheet.ErrUnsupportedFormat)
}

func TestProcessFile_Cancelled(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	path := writeCSV(t, t.TempDir(), "ctes.csv", rowSaoPaulo, rowRio)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.pipeline.ProcessFile(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, bulk.RunStatusCancelled, res.Status)
	assert.Equal(t, 2, res.Total)
	assert.Zero(t, res.Inserted)

	n, _ := f.facts.Count(context.Background())
	assert.Zero(t, n)
}

func TestProcessFile_CancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router := routing.RouterFunc(func(c context.Context, o, d routing.Coordinate) (routing.Route, error) {
		cancel()
		return fixedRouter(c, o, d)
	})
	f := newPipelineFixture(t, router)
	path := writeCSV(t, t.TempDir(), "ctes.csv", rowSaoPaulo, rowRio, rowCuiaba)

	res, err := f.pipeline.ProcessFile(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, bulk.RunStatusCancelled, res.Status)
	assert.Equal(t, 1, res.Inserted)
}

func TestProcessFile_ErrorCap(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter, WithMaxRowErrors(2))
	bad := "CTE099,São Paulo,,,,,1015,2,LogRio,Cliente A,Eletrônicos,Sudeste"
	path := writeCSV(t, t.TempDir(), "ctes.csv", bad)

	res, err := f.pipeline.ProcessFile(context.Background(), path)
	require.NoError(t, err)

	assert.Len(t, res.Errors, 2)
	assert.True(t, res.IsTruncated)
	assert.Equal(t, 4, res.TotalErrors)
	assert.Equal(t, 1, res.Failed)
}

func TestProcessFile_WithoutRunHistory(t *testing.T) {
	facts := &memoryFacts{}
	p, err := NewPipeline(dimension.NewResolver(newMemoryDimensions(), testClock), facts, fixedRouter)
	require.NoError(t, err)

	res, err := p.ProcessFile(context.Background(), writeCSV(t, t.TempDir(), "ctes.csv", rowSaoPaulo))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
}

func TestProcessFile_RunHistoryFailureIsNotFatal(t *testing.T) {
	runs := new(MockRunRepository)
	runs.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	p, err := NewPipeline(dimension.NewResolver(newMemoryDimensions(), testClock), &memoryFacts{}, fixedRouter,
		WithRunRepository(runs))
	require.NoError(t, err)

	res, err := p.ProcessFile(context.Background(), writeCSV(t, t.TempDir(), "ctes.csv", rowSaoPaulo))
	require.NoError(t, err)
	assert.Equal(t, bulk.RunStatusCompleted, res.Status)
}

func TestProcessFolder(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	dir := t.TempDir()
	writeCSV(t, dir, "b.csv", rowRio)
	writeCSV(t, dir, "a.csv", rowSaoPaulo)
	writeCSV(t, dir, "~$a.csv", rowCuiaba)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignore me"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.csv"), []byte("cte_numero\nCTE9\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.csv"), 0o755))

	results, err := f.pipeline.ProcessFolder(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, sheet.ErrMissingHeader)

	require.Len(t, results, 3)
	assert.Equal(t, "a.csv", results[0].File)
	assert.Equal(t, "b.csv", results[1].File)
	assert.Equal(t, "c.csv", results[2].File)
	assert.Equal(t, bulk.RunStatusFailed, results[2].Status)

	facts, _ := f.facts.FindAll(context.Background())
	require.Len(t, facts, 2)
	assert.Equal(t, "CTE001", facts[0].CTeNumber)
	assert.Equal(t, "CTE002", facts[1].CTeNumber)
}

func TestProcessFolder_Empty(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)

	results, err := f.pipeline.ProcessFolder(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestProcessFolder_Missing(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)

	_, err := f.pipeline.ProcessFolder(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestProcessFolder_Cancelled(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", rowSaoPaulo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.ProcessFolder(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShipmentKeyUsesNormalizedNumber(t *testing.T) {
	f := newPipelineFixture(t, fixedRouter)
	path := writeCSV(t, t.TempDir(), "ctes.csv", strings.Replace(rowSaoPaulo, "CTE001", " cte001 ", 1), rowSaoPaulo)

	res, err := f.pipeline.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)

	facts, _ := f.facts.FindAll(context.Background())
	branch, err := f.dims.FindByName(context.Background(), dimension.KindBranch, "SÃO PAULO")
	require.NoError(t, err)
	_, err = f.facts.FindByKey(context.Background(), shipment.Key{CTeNumber: "CTE001", BranchID: branch.ID})
	assert.NoError(t, err)
	assert.Len(t, facts, 1)
}
