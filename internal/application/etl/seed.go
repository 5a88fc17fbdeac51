package etl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/logtower/backend/internal/infrastructure/logger"
	"github.com/logtower/backend/internal/infrastructure/sheet"
	"go.uber.org/zap"
)

// DemoRows is the number of rows of the demo workbook
const DemoRows = 50

// ModelWorkbook is the demo workbook written into the input folder
const ModelWorkbook = "cte_modelo.xlsx"

var (
	demoBranches     = []string{"São Paulo", "Rio de Janeiro", "Cuiabá"}
	demoOriginLat    = []float64{-23.5505, -22.9068, -15.6010}
	demoOriginLon    = []float64{-46.6333, -43.1729, -56.0974}
	demoDestLat      = []float64{-22.9083, -23.5075, -23.6235}
	demoDestLon      = []float64{-47.0626, -46.7354, -46.7006}
	demoDestinations = []string{"Campinas", "Osasco", "Santo André"}
	demoCarriers     = []string{"LogRio", "TransPaulista", "Rapidão MT"}
	demoClients      = []string{"Cliente A", "Cliente B", "Cliente C"}
	demoProducts     = []string{"Eletrônicos", "Alimentos", "Vestuário"}
	demoRegions      = []string{"Sudeste", "Centro-Oeste", "Sul"}
)

// referenceRows are the rows of each reference workbook in ReferenceWorkbooks order
var referenceRows = [][][]any{
	{
		{"São Paulo", -23.5505, -46.6333},
		{"Rio de Janeiro", -22.9068, -43.1729},
		{"Cuiabá", -15.6010, -56.0974},
	},
	{
		{"LogRio", -22.9, -43.1},
		{"TransPaulista", -23.5, -46.6},
		{"Rapidão MT", -15.6, -56.1},
	},
	{
		{"Cliente A", -23.56, -46.65},
		{"Cliente B", -22.91, -43.17},
		{"Cliente C", -15.60, -56.09},
	},
}

// Seeder bootstraps the working folders and the demo workbooks
type Seeder struct {
	inputDir    string
	baseDataDir string
	insightsDir string
	logger      *zap.Logger
}

// NewSeeder creates a Seeder for the given folders
func NewSeeder(inputDir, baseDataDir, insightsDir string, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{
		inputDir:    inputDir,
		baseDataDir: baseDataDir,
		insightsDir: insightsDir,
		logger:      log.Named("seed"),
	}
}

// Seed creates missing folders, writes the demo workbook unless one is
// already there and rewrites the reference workbooks
func (s *Seeder) Seed() error {
	for _, dir := range []string{s.inputDir, s.baseDataDir, s.insightsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create folder %s: %w", dir, err)
		}
	}

	model := filepath.Join(s.inputDir, ModelWorkbook)
	if _, err := os.Stat(model); errors.Is(err, os.ErrNotExist) {
		if err := sheet.WriteXLSX(model, demoHeaders(), DemoRowsData()); err != nil {
			return err
		}
		s.logger.Info("Demo workbook created", logger.File(model), zap.Int("rows", DemoRows))
	} else if err != nil {
		return fmt.Errorf("failed to stat %s: %w", model, err)
	}

	for i, wb := range ReferenceWorkbooks {
		path := filepath.Join(s.baseDataDir, wb.File)
		if err := sheet.WriteXLSX(path, []string{ColName, ColLatitude, ColLongitude}, referenceRows[i]); err != nil {
			return err
		}
	}
	s.logger.Info("Model workbooks created", zap.String("folder", s.baseDataDir))
	return nil
}

func demoHeaders() []string {
	return []string{
		ColCTeNumber, ColBranch, ColOriginLat, ColOriginLon, ColDestinationLat, ColDestinationLon,
		ColDestinationName, ColFreight, ColFrequency, ColCarrier, ColClient, ColProduct, ColRegion,
	}
}

// DemoRowsData returns the rows CTE001 to CTE050 of the demo workbook. Row n
// takes the n mod 3 entry of each demo list.
func DemoRowsData() [][]any {
	rows := make([][]any, DemoRows)
	for i := range DemoRows {
		n := i + 1
		k := n % 3
		rows[i] = []any{
			fmt.Sprintf("CTE%03d", n),
			demoBranches[k],
			demoOriginLat[k],
			demoOriginLon[k],
			demoDestLat[k],
			demoDestLon[k],
			demoDestinations[k],
			1000 + 15*n,
			n%5 + 1,
			demoCarriers[k],
			demoClients[k],
			demoProducts[k],
			demoRegions[k],
		}
	}
	return rows
}
