package models

import (
	"github.com/logtower/backend/internal/domain/dimension"
)

// DimensionMemberModel is a row of any dimension table. The table is chosen
// per query from the member's kind.
type DimensionMemberModel struct {
	BaseModel
	Nome      string   `gorm:"column:nome;not null"`
	Latitude  *float64 `gorm:"column:latitude"`
	Longitude *float64 `gorm:"column:longitude"`
}

// ToDomain converts the row to a member of kind
func (m *DimensionMemberModel) ToDomain(kind dimension.Kind) *dimension.Member {
	return &dimension.Member{
		BaseEntity: m.BaseModel.ToDomain(),
		Kind:       kind,
		Name:       m.Nome,
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
	}
}

// DimensionMemberModelFromDomain creates a row from a member
func DimensionMemberModelFromDomain(member *dimension.Member) *DimensionMemberModel {
	m := &DimensionMemberModel{
		Nome:      member.Name,
		Latitude:  member.Latitude,
		Longitude: member.Longitude,
	}
	m.FromDomainBaseEntity(member.BaseEntity)
	return m
}
