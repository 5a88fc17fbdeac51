// Package shipment holds the CT-e fact: one routed shipment per document
// number and branch, with its measures and the ids of its dimension members.
package shipment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/logtower/backend/internal/domain/dimension"
	"github.com/logtower/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// WeeksPerMonth is the multiplier that turns a weekly frequency into a monthly one
const WeeksPerMonth = 4

// NoNumber is logged in place of a missing CT-e number
const NoNumber = "---"

// Key is the natural key of a fact
type Key struct {
	CTeNumber string
	BranchID  uuid.UUID
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.CTeNumber, k.BranchID)
}

// Dimensions carries the member ids a fact points to
type Dimensions struct {
	BranchID  uuid.UUID
	CarrierID uuid.UUID
	ClientID  uuid.UUID
	ProductID uuid.UUID
	RegionID  uuid.UUID
}

// Shipment is a row of the fact table
type Shipment struct {
	shared.BaseEntity
	CTeNumber       string
	Freight         decimal.Decimal
	WeeklyFrequency int
	DistanceKM      decimal.Decimal
	DurationMin     decimal.Decimal
	ProcessedAt     time.Time
	Dimensions
}

// Measures are the numeric inputs of a new fact
type Measures struct {
	Freight         decimal.Decimal
	WeeklyFrequency int
	DistanceKM      decimal.Decimal
	DurationMin     decimal.Decimal
}

// NormalizeNumber applies dimension normalization to a CT-e number, so a
// blank number is stored as dimension.Unknown.
func NormalizeNumber(raw string) string {
	return dimension.Normalize(raw)
}

// NewShipment creates a fact stamped at now
func NewShipment(cteNumber string, m Measures, dims Dimensions, now time.Time) (*Shipment, error) {
	number := NormalizeNumber(cteNumber)
	if dims.BranchID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_BRANCH", "Branch id is required")
	}
	if m.Freight.IsNegative() {
		return nil, shared.NewDomainError("INVALID_FREIGHT", "Freight cannot be negative")
	}
	if m.WeeklyFrequency < 0 {
		return nil, shared.NewDomainError("INVALID_FREQUENCY", "Weekly frequency cannot be negative")
	}

	return &Shipment{
		BaseEntity:      shared.NewBaseEntityAt(now),
		CTeNumber:       number,
		Freight:         m.Freight,
		WeeklyFrequency: m.WeeklyFrequency,
		DistanceKM:      m.DistanceKM.Round(2),
		DurationMin:     m.DurationMin.Round(2),
		ProcessedAt:     now,
		Dimensions:      dims,
	}, nil
}

// Key returns the natural key of the fact
func (s *Shipment) Key() Key {
	return Key{CTeNumber: s.CTeNumber, BranchID: s.BranchID}
}

// CostPerKM is freight divided by distance; a zero distance counts as one kilometre.
func (s *Shipment) CostPerKM() decimal.Decimal {
	distance := s.DistanceKM
	if distance.IsZero() {
		distance = decimal.NewFromInt(1)
	}
	return s.Freight.Div(distance)
}

// MonthlyCost is freight times weekly frequency times four weeks
func (s *Shipment) MonthlyCost() decimal.Decimal {
	return s.Freight.Mul(decimal.NewFromInt(int64(s.WeeklyFrequency * WeeksPerMonth)))
}

// Refresh copies measures and non-key dimension ids from a newer reading of
// the same document. Id, key and creation time stay put.
func (s *Shipment) Refresh(newer *Shipment) error {
	if newer.Key() != s.Key() {
		return shared.NewDomainError("KEY_MISMATCH", fmt.Sprintf("Cannot refresh %s from %s", s.Key(), newer.Key()))
	}
	s.Freight = newer.Freight
	s.WeeklyFrequency = newer.WeeklyFrequency
	s.DistanceKM = newer.DistanceKM
	s.DurationMin = newer.DurationMin
	s.ProcessedAt = newer.ProcessedAt
	s.CarrierID = newer.CarrierID
	s.ClientID = newer.ClientID
	s.ProductID = newer.ProductID
	s.RegionID = newer.RegionID
	s.Touch(newer.ProcessedAt)
	return nil
}

// Repository persists facts
type Repository interface {
	// SaveIfAbsent inserts the fact unless one with the same key exists.
	// It reports whether a row was inserted; a duplicate is not an error.
	SaveIfAbsent(ctx context.Context, s *Shipment) (bool, error)
	// FindByKey finds a fact by its natural key
	FindByKey(ctx context.Context, key Key) (*Shipment, error)
	// Update rewrites the measures and dimension ids of a stored fact
	Update(ctx context.Context, s *Shipment) error
	// FindAll lists every fact in processing order
	FindAll(ctx context.Context) ([]Shipment, error)
	// Count returns the number of stored facts
	Count(ctx context.Context) (int64, error)
}
