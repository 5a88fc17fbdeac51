package logger

import (
	"go.uber.org/zap"
)

// Field keys shared by the ETL and the dashboard API
const (
	KeyFile      = "file"
	KeyRow       = "row"
	KeyCTeNumber = "cte_numero"
	KeyKind      = "dimension"
	KeyRunID     = "run_id"
	KeyRequestID = "request_id"
)

// File tags an entry with the spreadsheet being processed
func File(path string) zap.Field { return zap.String(KeyFile, path) }

// Row tags an entry with a 1-based spreadsheet row number
func Row(n int) zap.Field { return zap.Int(KeyRow, n) }

// CTe tags an entry with a CT-e document number
func CTe(number string) zap.Field { return zap.String(KeyCTeNumber, number) }

// Dimension tags an entry with a dimension table name
func Dimension(table string) zap.Field { return zap.String(KeyKind, table) }
