package models

import (
	"time"

	"github.com/logtower/backend/internal/domain/bulk"
)

// RunModel is the persistence model for the bulk.Run entity.
type RunModel struct {
	BaseModel
	FileName      string            `gorm:"not null"`
	ConflictMode  bulk.ConflictMode `gorm:"type:varchar(20);not null"`
	Status        bulk.RunStatus    `gorm:"type:varchar(30);not null"`
	TotalRows     int               `gorm:"not null"`
	InsertedRows  int               `gorm:"not null"`
	DuplicateRows int               `gorm:"not null"`
	UpdatedRows   int               `gorm:"not null"`
	FailedRows    int               `gorm:"not null"`
	Truncated     bool              `gorm:"not null"`
	ErrorDetails  string            `gorm:"type:text;not null"`
	Message       string            `gorm:"type:text;not null"`
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// TableName returns the table name for GORM
func (RunModel) TableName() string {
	return "etl_runs"
}

// ToDomain converts the persistence model to a domain Run entity.
func (m *RunModel) ToDomain() *bulk.Run {
	run := &bulk.Run{
		BaseEntity:   m.BaseModel.ToDomain(),
		FileName:     m.FileName,
		ConflictMode: m.ConflictMode,
		Status:       m.Status,
		Counters: bulk.Counters{
			Total:      m.TotalRows,
			Inserted:   m.InsertedRows,
			Duplicates: m.DuplicateRows,
			Updated:    m.UpdatedRows,
			Failed:     m.FailedRows,
		},
		Truncated:  m.Truncated,
		Message:    m.Message,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
	// a malformed column leaves the run without details
	_ = run.SetErrorDetailsFromJSON(m.ErrorDetails)
	return run
}

// FromDomain populates the persistence model from a domain Run entity.
func (m *RunModel) FromDomain(r *bulk.Run) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.FileName = r.FileName
	m.ConflictMode = r.ConflictMode
	m.Status = r.Status
	m.TotalRows = r.Total
	m.InsertedRows = r.Inserted
	m.DuplicateRows = r.Duplicates
	m.UpdatedRows = r.Updated
	m.FailedRows = r.Failed
	m.Truncated = r.Truncated
	m.Message = r.Message
	m.StartedAt = r.StartedAt
	m.FinishedAt = r.FinishedAt

	if details, err := r.ErrorDetailsJSON(); err == nil {
		m.ErrorDetails = details
	} else {
		m.ErrorDetails = "[]"
	}
}

// RunModelFromDomain creates a new persistence model from a domain Run entity.
func RunModelFromDomain(r *bulk.Run) *RunModel {
	m := &RunModel{}
	m.FromDomain(r)
	return m
}
