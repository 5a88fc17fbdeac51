package etl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/logtower/backend/internal/domain/dimension"
	"github.com/logtower/backend/internal/domain/shared"
	"github.com/logtower/backend/internal/domain/shipment"
	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	published []string
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, localPath string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, filepath.Base(localPath))
	return "insights/" + filepath.Base(localPath), nil
}

func goldenFile(t *testing.T, name string, data []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

func exportFacts() *memoryFacts {
	dims := shipment.Dimensions{
		BranchID:  uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001"),
		CarrierID: uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000001"),
		ClientID:  uuid.MustParse("cccccccc-0000-0000-0000-000000000001"),
		ProductID: uuid.MustParse("dddddddd-0000-0000-0000-000000000001"),
		RegionID:  uuid.MustParse("eeeeeeee-0000-0000-0000-000000000001"),
	}
	return &memoryFacts{facts: []shipment.Shipment{
		{
			BaseEntity:      shared.BaseEntity{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), CreatedAt: testNow, UpdatedAt: testNow},
			CTeNumber:       "CTE001",
			Freight:         decimal.NewFromInt(1015),
			WeeklyFrequency: 2,
			DistanceKM:      decimal.RequireFromString("95.5"),
			DurationMin:     decimal.RequireFromString("80.25"),
			ProcessedAt:     testNow,
			Dimensions:      dims,
		},
		{
			BaseEntity:      shared.BaseEntity{ID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), CreatedAt: testNow, UpdatedAt: testNow},
			CTeNumber:       "CTE002",
			Freight:         decimal.NewFromInt(1030),
			WeeklyFrequency: 3,
			DistanceKM:      decimal.Zero,
			DurationMin:     decimal.Zero,
			ProcessedAt:     testNow,
			Dimensions:      dims,
		},
	}}
}

func exportDimensions() *memoryDimensions {
	lat, lon := -23.5505, -46.6333
	repo := newMemoryDimensions()
	repo.members[dimension.KindBranch] = []dimension.Member{
		{
			BaseEntity: shared.BaseEntity{ID: uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")},
			Kind:       dimension.KindBranch,
			Name:       "SÃO PAULO",
			Latitude:   &lat,
			Longitude:  &lon,
		},
		{
			BaseEntity: shared.BaseEntity{ID: uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")},
			Kind:       dimension.KindBranch,
			Name:       "CUIABÁ",
		},
	}
	repo.members[dimension.KindRegion] = []dimension.Member{
		{
			BaseEntity: shared.BaseEntity{ID: uuid.MustParse("eeeeeeee-0000-0000-0000-000000000001")},
			Kind:       dimension.KindRegion,
			Name:       "SUDESTE",
		},
	}
	return repo
}

func TestExportFacts(t *testing.T) {
	exporter := NewExporter(newMemoryDimensions(), exportFacts())
	path := filepath.Join(t.TempDir(), "insights", FactFileName)

	n, err := exporter.ExportFacts(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	goldenFile(t, "fato_cte", data)
}

func TestExportFacts_Empty(t *testing.T) {
	exporter := NewExporter(newMemoryDimensions(), &memoryFacts{})
	path := filepath.Join(t.TempDir(), FactFileName)

	n, err := exporter.ExportFacts(context.Background(), path)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoFileExists(t, path)
}

func TestExportDimensions(t *testing.T) {
	exporter := NewExporter(exportDimensions(), &memoryFacts{})
	dir := t.TempDir()

	written, err := exporter.ExportDimensions(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, map[dimension.Kind]int{dimension.KindBranch: 2, dimension.KindRegion: 1}, written)

	data, err := os.ReadFile(filepath.Join(dir, "dim_filiais.txt"))
	require.NoError(t, err)
	goldenFile(t, "dim_filiais", data)

	assert.FileExists(t, filepath.Join(dir, "dim_regioes.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "dim_clientes.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "dim_transportadoras.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "dim_produtos.txt"))
}

func TestExportAll_Publishes(t *testing.T) {
	pub := &recordingPublisher{}
	exporter := NewExporter(exportDimensions(), exportFacts(), WithPublisher(pub))

	require.NoError(t, exporter.ExportAll(context.Background(), t.TempDir()))
	assert.Equal(t, []string{"fato_cte.txt", "dim_filiais.txt", "dim_regioes.txt"}, pub.published)
}

func TestExportFacts_PublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("access denied")}
	exporter := NewExporter(newMemoryDimensions(), exportFacts(), WithPublisher(pub))
	path := filepath.Join(t.TempDir(), FactFileName)

	_, err := exporter.ExportFacts(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.FileExists(t, path)
}
