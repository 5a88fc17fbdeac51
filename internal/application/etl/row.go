package etl

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/logtower/backend/internal/domain/routing"
	"github.com/logtower/backend/internal/domain/shipment"
	"github.com/logtower/backend/internal/infrastructure/sheet"
	"github.com/shopspring/decimal"
)

// Spreadsheet columns of a CT-e row
const (
	ColCTeNumber       = "cte_numero"
	ColBranch          = "filial"
	ColOriginLat       = "origem_latitude"
	ColOriginLon       = "origem_longitude"
	ColDestinationLat  = "destino_latitude"
	ColDestinationLon  = "destino_longitude"
	ColDestinationName = "destino_nome"
	ColFreight         = "frete_valor"
	ColFrequency       = "frequencia_semanal"
	ColCarrier         = "transportadora"
	ColClient          = "cliente"
	ColProduct         = "produto"
	ColRegion          = "região"
)

// RequiredHeaders are the columns a spreadsheet must have to be processed
var RequiredHeaders = []string{ColOriginLat, ColOriginLon, ColDestinationLat, ColDestinationLon}

// shipmentRow is a parsed spreadsheet row. The col tag names the source
// column so validation errors point at it.
type shipmentRow struct {
	Line            int
	CTeNumber       string          `col:"cte_numero" validate:"max=60"`
	Branch          string          `col:"filial" validate:"max=200"`
	Carrier         string          `col:"transportadora" validate:"max=200"`
	Client          string          `col:"cliente" validate:"max=200"`
	Product         string          `col:"produto" validate:"max=200"`
	Region          string          `col:"região" validate:"max=200"`
	OriginLat       float64         `col:"origem_latitude" validate:"gte=-90,lte=90"`
	OriginLon       float64         `col:"origem_longitude" validate:"gte=-180,lte=180"`
	DestinationLat  float64         `col:"destino_latitude" validate:"gte=-90,lte=90"`
	DestinationLon  float64         `col:"destino_longitude" validate:"gte=-180,lte=180"`
	Freight         decimal.Decimal `col:"frete_valor" validate:"gte=0"`
	WeeklyFrequency int             `col:"frequencia_semanal" validate:"gte=0"`
}

func (r *shipmentRow) origin() routing.Coordinate {
	return routing.Coordinate{Latitude: r.OriginLat, Longitude: r.OriginLon}
}

func (r *shipmentRow) destination() routing.Coordinate {
	return routing.Coordinate{Latitude: r.DestinationLat, Longitude: r.DestinationLon}
}

// newRowValidator builds a validator that reports col tag names and
// compares decimals as numbers
func newRowValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("col")
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// displayNumber is the CT-e number used in logs, "---" when blank
func displayNumber(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return shipment.NoNumber
	}
	return strings.TrimSpace(raw)
}

// coordinateBounds are the valid ranges of the coordinate columns
var coordinateBounds = map[string][2]float64{
	ColOriginLat:      {-90, 90},
	ColOriginLon:      {-180, 180},
	ColDestinationLat: {-90, 90},
	ColDestinationLon: {-180, 180},
}

// parseRow reads and validates a spreadsheet row, adding every problem to
// errs. The returned error is the first problem found. Missing freight
// counts as zero and a missing weekly frequency as one.
func parseRow(v *validator.Validate, row *sheet.Row, errs *sheet.ErrorCollection) (*shipmentRow, error) {
	number := displayNumber(row.Get(ColCTeNumber))
	var first error
	note := func(e sheet.RowError) {
		if first == nil {
			first = e
		}
	}
	record := func(e sheet.RowError) {
		e.CTeNumber = number
		errs.Add(e)
		note(e)
	}

	coord := func(column string) float64 {
		raw := row.Get(column)
		if raw == "" {
			note(errs.AddRequiredError(row.LineNumber, number, column))
			return 0
		}
		f, err := sheet.ParseFloat(raw)
		if err != nil {
			note(errs.AddTypeError(row.LineNumber, number, column, "number", raw))
			return 0
		}
		return f
	}

	parsed := &shipmentRow{
		Line:            row.LineNumber,
		CTeNumber:       row.Get(ColCTeNumber),
		Branch:          row.Get(ColBranch),
		Carrier:         row.Get(ColCarrier),
		Client:          row.Get(ColClient),
		Product:         row.Get(ColProduct),
		Region:          row.Get(ColRegion),
		OriginLat:       coord(ColOriginLat),
		OriginLon:       coord(ColOriginLon),
		DestinationLat:  coord(ColDestinationLat),
		DestinationLon:  coord(ColDestinationLon),
		Freight:         decimal.Zero,
		WeeklyFrequency: 1,
	}

	if raw := row.Get(ColFreight); raw != "" {
		d, err := sheet.ParseDecimal(raw)
		if err != nil {
			note(errs.AddTypeError(row.LineNumber, number, ColFreight, "decimal", raw))
		} else {
			parsed.Freight = d
		}
	}
	if raw := row.Get(ColFrequency); raw != "" {
		n, err := sheet.ParseInt(raw)
		if err != nil {
			note(errs.AddTypeError(row.LineNumber, number, ColFrequency, "integer", raw))
		} else {
			parsed.WeeklyFrequency = n
		}
	}
	if first != nil {
		return nil, first
	}

	err := v.Struct(parsed)
	if err == nil {
		return parsed, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	for _, fe := range verrs {
		value := fmt.Sprint(fe.Value())
		if b, ok := coordinateBounds[fe.Field()]; ok {
			note(errs.AddRangeError(row.LineNumber, number, fe.Field(), b[0], b[1], value))
			continue
		}
		record(sheet.NewRowErrorWithValue(row.LineNumber, fe.Field(), sheet.ErrCodeInvalidRange, validationMessage(fe), value))
	}
	return nil, first
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "invalid value"
	}
}
