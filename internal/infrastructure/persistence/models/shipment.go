package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/logtower/backend/internal/domain/shipment"
	"github.com/shopspring/decimal"
)

// ShipmentModel is a row of the fato_cte fact table
type ShipmentModel struct {
	BaseModel
	CTeNumero         string          `gorm:"column:cte_numero;not null;uniqueIndex:uq_fato_cte_numero_filial"`
	FreteValor        decimal.Decimal `gorm:"column:frete_valor;type:numeric(14,2);not null"`
	FrequenciaSemanal int             `gorm:"column:frequencia_semanal;not null"`
	DistanciaKM       decimal.Decimal `gorm:"column:distancia_km;type:numeric(12,2);not null"`
	DuracaoMin        decimal.Decimal `gorm:"column:duracao_min;type:numeric(12,2);not null"`
	DataHora          time.Time       `gorm:"column:data_hora;not null"`
	IDFilial          uuid.UUID       `gorm:"column:id_filial;type:uuid;not null;uniqueIndex:uq_fato_cte_numero_filial"`
	IDTransportadora  uuid.UUID       `gorm:"column:id_transportadora;type:uuid;not null"`
	IDCliente         uuid.UUID       `gorm:"column:id_cliente;type:uuid;not null"`
	IDProduto         uuid.UUID       `gorm:"column:id_produto;type:uuid;not null"`
	IDRegiao          uuid.UUID       `gorm:"column:id_regiao;type:uuid;not null"`
}

// TableName returns the table name for GORM
func (ShipmentModel) TableName() string {
	return "fato_cte"
}

// ToDomain converts the row to a shipment fact
func (m *ShipmentModel) ToDomain() *shipment.Shipment {
	return &shipment.Shipment{
		BaseEntity:      m.BaseModel.ToDomain(),
		CTeNumber:       m.CTeNumero,
		Freight:         m.FreteValor,
		WeeklyFrequency: m.FrequenciaSemanal,
		DistanceKM:      m.DistanciaKM,
		DurationMin:     m.DuracaoMin,
		ProcessedAt:     m.DataHora,
		Dimensions: shipment.Dimensions{
			BranchID:  m.IDFilial,
			CarrierID: m.IDTransportadora,
			ClientID:  m.IDCliente,
			ProductID: m.IDProduto,
			RegionID:  m.IDRegiao,
		},
	}
}

// FromDomain populates the row from a shipment fact
func (m *ShipmentModel) FromDomain(s *shipment.Shipment) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.CTeNumero = s.CTeNumber
	m.FreteValor = s.Freight
	m.FrequenciaSemanal = s.WeeklyFrequency
	m.DistanciaKM = s.DistanceKM
	m.DuracaoMin = s.DurationMin
	m.DataHora = s.ProcessedAt
	m.IDFilial = s.BranchID
	m.IDTransportadora = s.CarrierID
	m.IDCliente = s.ClientID
	m.IDProduto = s.ProductID
	m.IDRegiao = s.RegionID
}

// ShipmentModelFromDomain creates a new row from a shipment fact
func ShipmentModelFromDomain(s *shipment.Shipment) *ShipmentModel {
	m := &ShipmentModel{}
	m.FromDomain(s)
	return m
}
