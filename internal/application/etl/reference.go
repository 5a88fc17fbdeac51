package etl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/logtower/backend/internal/domain/dimension"
	"github.com/logtower/backend/internal/infrastructure/logger"
	"github.com/logtower/backend/internal/infrastructure/sheet"
	"go.uber.org/zap"
)

// Reference workbook columns
const (
	ColName      = "nome"
	ColLatitude  = "latitude"
	ColLongitude = "longitude"
)

// ReferenceWorkbooks maps the base-data workbooks to the dimension they describe
var ReferenceWorkbooks = []struct {
	Kind dimension.Kind
	File string
}{
	{dimension.KindBranch, "filiais.xlsx"},
	{dimension.KindCarrier, "transportadoras.xlsx"},
	{dimension.KindClient, "clientes.xlsx"},
}

// LoadReference reads the reference workbooks found in dir and makes sure
// every listed member exists with its coordinates. Missing workbooks are
// skipped; rows without valid coordinates are skipped with a warning.
func (p *Pipeline) LoadReference(ctx context.Context, dir string) (map[dimension.Kind]int, error) {
	loaded := make(map[dimension.Kind]int, len(ReferenceWorkbooks))
	for _, wb := range ReferenceWorkbooks {
		path := filepath.Join(dir, wb.File)
		log := p.logger.With(logger.File(wb.File), logger.Dimension(wb.Kind.Table()))

		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			log.Debug("Reference workbook not found, skipping")
			continue
		}
		table, err := sheet.Open(path)
		if err != nil {
			return loaded, fmt.Errorf("reference %s: %w", wb.File, err)
		}
		if missing := table.MissingHeaders([]string{ColName, ColLatitude, ColLongitude}); len(missing) > 0 {
			return loaded, fmt.Errorf("reference %s: %w: %v", wb.File, sheet.ErrMissingHeader, missing)
		}

		refs := make([]dimension.Reference, 0, len(table.Rows))
		for _, row := range table.Rows {
			lat, latErr := sheet.ParseFloat(row.Get(ColLatitude))
			lon, lonErr := sheet.ParseFloat(row.Get(ColLongitude))
			if err := errors.Join(latErr, lonErr); err != nil {
				log.Warn("Skipping reference row", logger.Row(row.LineNumber), zap.Error(err))
				continue
			}
			refs = append(refs, dimension.Reference{Name: row.Get(ColName), Latitude: lat, Longitude: lon})
		}

		n, err := p.resolver.LoadReference(ctx, wb.Kind, refs)
		loaded[wb.Kind] = n
		if err != nil {
			return loaded, fmt.Errorf("reference %s: %w", wb.File, err)
		}
		log.Info("Reference loaded", zap.Int("members", n))
	}
	return loaded, nil
}
