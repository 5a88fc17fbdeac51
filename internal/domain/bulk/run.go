package bulk

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/logtower/backend/internal/domain/shared"
)

// RunStatus represents the status of an ETL run over one file
type RunStatus string

const (
	RunStatusPending             RunStatus = "pending"
	RunStatusProcessing          RunStatus = "processing"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusFailed              RunStatus = "failed"
	RunStatusCancelled           RunStatus = "cancelled"
)

// IsValid checks if the status is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusProcessing, RunStatusCompleted,
		RunStatusCompletedWithErrors, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusCompletedWithErrors, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// ConflictMode defines what happens when a row's natural key is already stored
type ConflictMode string

const (
	ConflictModeSkip   ConflictMode = "skip"
	ConflictModeUpdate ConflictMode = "update"
	ConflictModeFail   ConflictMode = "fail"
)

// IsValid checks if the conflict mode is valid
func (c ConflictMode) IsValid() bool {
	switch c {
	case ConflictModeSkip, ConflictModeUpdate, ConflictModeFail:
		return true
	}
	return false
}

// ErrorDetail represents a detailed error for a specific row
type ErrorDetail struct {
	Row       int    `json:"row"`
	CTeNumber string `json:"cte_numero,omitempty"`
	Column    string `json:"column,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Value     string `json:"value,omitempty"`
}

// Counters are the per-row outcomes of a run
type Counters struct {
	Total      int `json:"total"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Updated    int `json:"updated"`
	Failed     int `json:"failed"`
}

// Run tracks the processing of one spreadsheet
type Run struct {
	shared.BaseEntity
	FileName     string
	ConflictMode ConflictMode
	Status       RunStatus
	Counters
	Truncated    bool
	ErrorDetails []ErrorDetail
	Message      string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// NewRun creates a pending run for a file
func NewRun(fileName string, mode ConflictMode, now time.Time) (*Run, error) {
	if fileName == "" {
		return nil, shared.NewDomainError("INVALID_FILE_NAME", "File name cannot be empty")
	}
	if !mode.IsValid() {
		return nil, shared.NewDomainError("INVALID_CONFLICT_MODE", fmt.Sprintf("Invalid conflict mode: %s", mode))
	}

	return &Run{
		BaseEntity:   shared.NewBaseEntityAt(now),
		FileName:     fileName,
		ConflictMode: mode,
		Status:       RunStatusPending,
		ErrorDetails: make([]ErrorDetail, 0),
	}, nil
}

// Start marks the run as processing
func (r *Run) Start(totalRows int, now time.Time) error {
	if r.Status != RunStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot start processing from state: %s", r.Status))
	}
	if totalRows < 0 {
		return shared.NewDomainError("INVALID_TOTAL_ROWS", "Total rows cannot be negative")
	}

	r.Status = RunStatusProcessing
	r.Total = totalRows
	r.StartedAt = &now
	r.Touch(now)
	return nil
}

// Complete records the counters and settles the status from them
func (r *Run) Complete(c Counters, details []ErrorDetail, truncated bool, now time.Time) error {
	if r.Status != RunStatusProcessing {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete from state: %s", r.Status))
	}

	status := RunStatusCompleted
	switch {
	case c.Failed > 0 && c.Inserted == 0 && c.Updated == 0 && c.Duplicates == 0:
		status = RunStatusFailed
	case c.Failed > 0:
		status = RunStatusCompletedWithErrors
	}

	r.Status = status
	r.Counters = c
	r.ErrorDetails = details
	r.Truncated = truncated
	r.finish(now)
	return nil
}

// Fail marks the run as failed before its rows could be processed
func (r *Run) Fail(message string, now time.Time) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail from terminal state: %s", r.Status))
	}

	r.Status = RunStatusFailed
	r.Message = message
	r.finish(now)
	return nil
}

// Cancel stops the run keeping the counters gathered so far
func (r *Run) Cancel(c Counters, details []ErrorDetail, now time.Time) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel from terminal state: %s", r.Status))
	}

	r.Status = RunStatusCancelled
	total := r.Total
	r.Counters = c
	r.Total = total
	r.ErrorDetails = details
	r.finish(now)
	return nil
}

func (r *Run) finish(now time.Time) {
	r.FinishedAt = &now
	r.Touch(now)
}

// HasErrors returns true if any row failed
func (r *Run) HasErrors() bool {
	return r.Failed > 0 || len(r.ErrorDetails) > 0
}

// ErrorDetailsJSON returns the error details as a JSON string
func (r *Run) ErrorDetailsJSON() (string, error) {
	if len(r.ErrorDetails) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(r.ErrorDetails)
	if err != nil {
		return "", fmt.Errorf("failed to marshal error details: %w", err)
	}
	return string(data), nil
}

// SetErrorDetailsFromJSON parses error details from a JSON string
func (r *Run) SetErrorDetailsFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "[]" {
		r.ErrorDetails = make([]ErrorDetail, 0)
		return nil
	}
	var details []ErrorDetail
	if err := json.Unmarshal([]byte(jsonStr), &details); err != nil {
		return fmt.Errorf("failed to unmarshal error details: %w", err)
	}
	r.ErrorDetails = details
	return nil
}

// Duration returns how long the run took, or has taken so far
func (r *Run) Duration(now time.Time) time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(*r.StartedAt)
	}
	return now.Sub(*r.StartedAt)
}
