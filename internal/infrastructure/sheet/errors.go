package sheet

import (
	"errors"
	"fmt"
	"strings"
)

// Row error codes
const (
	ErrCodeInvalidFile     = "ERR_SHEET_INVALID_FILE"
	ErrCodeMissingHeader   = "ERR_SHEET_MISSING_HEADER"
	ErrCodeRequiredField   = "ERR_SHEET_REQUIRED_FIELD"
	ErrCodeInvalidType     = "ERR_SHEET_INVALID_TYPE"
	ErrCodeInvalidRange    = "ERR_SHEET_INVALID_RANGE"
	ErrCodeRouting         = "ERR_ROUTING"
	ErrCodeDimension       = "ERR_DIMENSION"
	ErrCodeDuplicateInDB   = "ERR_DUPLICATE_IN_DB"
	ErrCodePersistence     = "ERR_PERSISTENCE"
	ErrCodeInvalidShipment = "ERR_INVALID_SHIPMENT"
)

var (
	// ErrEmptyFile is returned when the file has no content at all
	ErrEmptyFile = errors.New("file is empty")

	// ErrInvalidEncoding is returned when a CSV file is not UTF-8
	ErrInvalidEncoding = errors.New("invalid file encoding")

	// ErrMissingHeader is returned when the first row is missing or blank
	ErrMissingHeader = errors.New("file missing header row")

	// ErrUnsupportedFormat is returned for extensions other than .xlsx and .csv
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
)

// RowError represents an error in a specific row
type RowError struct {
	Row       int    `json:"row"`
	CTeNumber string `json:"cte_numero,omitempty"`
	Column    string `json:"column,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Value     string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	ref := fmt.Sprintf("row %d", e.Row)
	if e.CTeNumber != "" {
		ref = fmt.Sprintf("%s (CT-e %s)", ref, e.CTeNumber)
	}
	if e.Column != "" {
		return fmt.Sprintf("%s, column '%s': %s", ref, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", ref, e.Message)
}

// NewRowError creates a new RowError
func NewRowError(row int, column, code, message string) RowError {
	return RowError{
		Row:     row,
		Column:  column,
		Code:    code,
		Message: message,
	}
}

// NewRowErrorWithValue creates a new RowError with the invalid value
func NewRowErrorWithValue(row int, column, code, message, value string) RowError {
	e := NewRowError(row, column, code, message)
	e.Value = value
	return e
}

// ErrorCollection keeps the first maxErrors row errors and counts the rest
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
}

// NewErrorCollection creates a new ErrorCollection with a maximum error limit
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorCollection{
		errors:    make([]RowError, 0, min(maxErrors, 16)),
		maxErrors: maxErrors,
	}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// AddRequiredError adds and returns a required field error
func (ec *ErrorCollection) AddRequiredError(row int, cte, column string) RowError {
	e := NewRowError(row, column, ErrCodeRequiredField, fmt.Sprintf("field '%s' is required", column))
	e.CTeNumber = cte
	ec.Add(e)
	return e
}

// AddTypeError adds and returns a type validation error
func (ec *ErrorCollection) AddTypeError(row int, cte, column, expectedType, value string) RowError {
	e := NewRowErrorWithValue(row, column, ErrCodeInvalidType, fmt.Sprintf("expected %s", expectedType), value)
	e.CTeNumber = cte
	ec.Add(e)
	return e
}

// AddRangeError adds and returns a range validation error
func (ec *ErrorCollection) AddRangeError(row int, cte, column string, lo, hi float64, value string) RowError {
	e := NewRowErrorWithValue(row, column, ErrCodeInvalidRange,
		fmt.Sprintf("value must be between %g and %g", lo, hi), value)
	e.CTeNumber = cte
	ec.Add(e)
	return e
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// Count returns the number of collected errors (up to maxErrors)
func (ec *ErrorCollection) Count() int {
	return len(ec.errors)
}

// TotalCount returns the total number of errors including those not collected
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollection) HasErrors() bool {
	return ec.totalCount > 0
}

// IsTruncated returns true if some errors were not collected due to the limit
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > ec.maxErrors
}

// ErrorSummary returns a summary of errors by code
func (ec *ErrorCollection) ErrorSummary() map[string]int {
	summary := make(map[string]int)
	for _, err := range ec.errors {
		summary[err.Code]++
	}
	return summary
}

// String returns a string representation of all errors
func (ec *ErrorCollection) String() string {
	if !ec.HasErrors() {
		return "no errors"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d error(s) found", ec.totalCount)
	if ec.IsTruncated() {
		fmt.Fprintf(&sb, " (showing first %d)", ec.maxErrors)
	}
	sb.WriteString(":\n")
	for _, err := range ec.errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}
