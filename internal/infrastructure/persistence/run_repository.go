package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/logtower/backend/internal/domain/bulk"
	"github.com/logtower/backend/internal/domain/shared"
	"github.com/logtower/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormRunRepository implements bulk.RunRepository using GORM
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// FindByID finds a run by ID
func (r *GormRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*bulk.Run, error) {
	var model models.RunModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns runs newest first
func (r *GormRunRepository) FindAll(ctx context.Context, filter bulk.RunFilter) ([]*bulk.Run, error) {
	query := r.db.WithContext(ctx).Model(&models.RunModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FileName != "" {
		query = query.Where("file_name = ?", filter.FileName)
	}
	query = query.Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var runModels []models.RunModel
	if err := query.Find(&runModels).Error; err != nil {
		return nil, err
	}

	runs := make([]*bulk.Run, len(runModels))
	for i := range runModels {
		runs[i] = runModels[i].ToDomain()
	}
	return runs, nil
}

// Save saves a run (create or update)
func (r *GormRunRepository) Save(ctx context.Context, run *bulk.Run) error {
	model := models.RunModelFromDomain(run)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormRunRepository implements the interface
var _ bulk.RunRepository = (*GormRunRepository)(nil)
