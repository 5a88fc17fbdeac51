package bulk

import (
	"context"

	"github.com/google/uuid"
)

// RunFilter defines the filters for listing runs
type RunFilter struct {
	Status   *RunStatus // Filter by status
	FileName string     // Filter by exact file name
	Limit    int        // Most recent N runs, 0 means all
}

// RunRepository defines the interface for run history persistence
type RunRepository interface {
	// FindByID finds a run by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Run, error)

	// FindAll returns runs newest first
	FindAll(ctx context.Context, filter RunFilter) ([]*Run, error)

	// Save saves a run (create or update)
	Save(ctx context.Context, run *Run) error
}
