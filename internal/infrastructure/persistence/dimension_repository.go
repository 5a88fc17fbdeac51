package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/logtower/backend/internal/domain/dimension"
	"github.com/logtower/backend/internal/domain/shared"
	"github.com/logtower/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDimensionRepository implements dimension.Repository over the five
// dimension tables
type GormDimensionRepository struct {
	db *gorm.DB
}

// NewGormDimensionRepository creates a new GormDimensionRepository
func NewGormDimensionRepository(db *gorm.DB) *GormDimensionRepository {
	return &GormDimensionRepository{db: db}
}

func (r *GormDimensionRepository) table(ctx context.Context, kind dimension.Kind) (*gorm.DB, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIMENSION", fmt.Sprintf("Invalid dimension kind: %s", kind))
	}
	return r.db.WithContext(ctx).Table(kind.Table()), nil
}

// FindByName finds a member by its normalized name
func (r *GormDimensionRepository) FindByName(ctx context.Context, kind dimension.Kind, name string) (*dimension.Member, error) {
	q, err := r.table(ctx, kind)
	if err != nil {
		return nil, err
	}
	var model models.DimensionMemberModel
	if err := q.Where("nome = ?", name).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(kind), nil
}

// Create inserts the member unless its name is already taken. When another
// writer got there first the stored member is returned instead.
func (r *GormDimensionRepository) Create(ctx context.Context, member *dimension.Member) (*dimension.Member, error) {
	q, err := r.table(ctx, member.Kind)
	if err != nil {
		return nil, err
	}
	model := models.DimensionMemberModelFromDomain(member)
	result := q.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "nome"}},
		DoNothing: true,
	}).Create(model)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return r.FindByName(ctx, member.Kind, member.Name)
	}
	return member, nil
}

// UpdateLocation stores coordinates for an existing member
func (r *GormDimensionRepository) UpdateLocation(ctx context.Context, kind dimension.Kind, id uuid.UUID, lat, lon float64) error {
	q, err := r.table(ctx, kind)
	if err != nil {
		return err
	}
	result := q.Where("id = ?", id).Updates(map[string]any{
		"latitude":   lat,
		"longitude":  lon,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindAll lists every member of a kind ordered by creation
func (r *GormDimensionRepository) FindAll(ctx context.Context, kind dimension.Kind) ([]dimension.Member, error) {
	q, err := r.table(ctx, kind)
	if err != nil {
		return nil, err
	}
	var rows []models.DimensionMemberModel
	if err := q.Order("created_at ASC, nome ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	members := make([]dimension.Member, len(rows))
	for i := range rows {
		members[i] = *rows[i].ToDomain(kind)
	}
	return members, nil
}

// Count returns the number of members of a kind
func (r *GormDimensionRepository) Count(ctx context.Context, kind dimension.Kind) (int64, error) {
	q, err := r.table(ctx, kind)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormDimensionRepository implements the interface
var _ dimension.Repository = (*GormDimensionRepository)(nil)
