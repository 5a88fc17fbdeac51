package persistence

import (
	"context"
	"errors"

	"github.com/logtower/backend/internal/domain/shared"
	"github.com/logtower/backend/internal/domain/shipment"
	"github.com/logtower/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormShipmentRepository implements shipment.Repository on the fato_cte table
type GormShipmentRepository struct {
	db *gorm.DB
}

// NewGormShipmentRepository creates a new GormShipmentRepository
func NewGormShipmentRepository(db *gorm.DB) *GormShipmentRepository {
	return &GormShipmentRepository{db: db}
}

// SaveIfAbsent inserts the fact unless (cte_numero, id_filial) is already stored
func (r *GormShipmentRepository) SaveIfAbsent(ctx context.Context, s *shipment.Shipment) (bool, error) {
	model := models.ShipmentModelFromDomain(s)
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cte_numero"}, {Name: "id_filial"}},
		DoNothing: true,
	}).Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByKey finds a fact by its natural key
func (r *GormShipmentRepository) FindByKey(ctx context.Context, key shipment.Key) (*shipment.Shipment, error) {
	var model models.ShipmentModel
	if err := r.db.WithContext(ctx).
		Where("cte_numero = ? AND id_filial = ?", key.CTeNumber, key.BranchID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Update rewrites the measures and non-key dimension ids of a stored fact
func (r *GormShipmentRepository) Update(ctx context.Context, s *shipment.Shipment) error {
	result := r.db.WithContext(ctx).Model(&models.ShipmentModel{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"frete_valor":        s.Freight,
			"frequencia_semanal": s.WeeklyFrequency,
			"distancia_km":       s.DistanceKM,
			"duracao_min":        s.DurationMin,
			"data_hora":          s.ProcessedAt,
			"id_transportadora":  s.CarrierID,
			"id_cliente":         s.ClientID,
			"id_produto":         s.ProductID,
			"id_regiao":          s.RegionID,
			"updated_at":         s.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindAll lists every fact in processing order
func (r *GormShipmentRepository) FindAll(ctx context.Context) ([]shipment.Shipment, error) {
	var rows []models.ShipmentModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, cte_numero ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	facts := make([]shipment.Shipment, len(rows))
	for i := range rows {
		facts[i] = *rows[i].ToDomain()
	}
	return facts, nil
}

// Count returns the number of stored facts
func (r *GormShipmentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ShipmentModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormShipmentRepository implements the interface
var _ shipment.Repository = (*GormShipmentRepository)(nil)
