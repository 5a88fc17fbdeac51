// Package dimension holds the descriptive side of the CT-e star schema:
// branches, carriers, clients, products and regions, each identified by a
// stable UUID and deduplicated by normalized name.
package dimension

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/logtower/backend/internal/domain/shared"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Unknown is the member name given to missing or blank values
const Unknown = "NÃO INFORMADO"

// Kind identifies a dimension table
type Kind string

const (
	KindBranch  Kind = "filiais"
	KindCarrier Kind = "transportadoras"
	KindClient  Kind = "clientes"
	KindProduct Kind = "produtos"
	KindRegion  Kind = "regioes"
)

// Kinds returns every dimension kind in export order
func Kinds() []Kind {
	return []Kind{KindBranch, KindCarrier, KindClient, KindProduct, KindRegion}
}

// IsValid checks if the kind is one of the known dimension tables
func (k Kind) IsValid() bool {
	switch k {
	case KindBranch, KindCarrier, KindClient, KindProduct, KindRegion:
		return true
	}
	return false
}

// Table returns the table name of the dimension
func (k Kind) Table() string {
	return string(k)
}

// ExportFileName returns the flat file name the dimension is exported to
func (k Kind) ExportFileName() string {
	return fmt.Sprintf("dim_%s.txt", k)
}

// Normalize turns a free-text value into its canonical member name.
// Blank values collapse to Unknown.
func Normalize(raw string) string {
	value := strings.Join(strings.Fields(raw), " ")
	if value == "" {
		return Unknown
	}
	return cases.Upper(language.BrazilianPortuguese).String(norm.NFC.String(value))
}

// Member is a row of a dimension table
type Member struct {
	shared.BaseEntity
	Kind      Kind
	Name      string
	Latitude  *float64
	Longitude *float64
}

// NewMember creates a member with a fresh identifier and a normalized name
func NewMember(kind Kind, raw string, now time.Time) (*Member, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIMENSION", fmt.Sprintf("Invalid dimension kind: %s", kind))
	}
	return &Member{
		BaseEntity: shared.NewBaseEntityAt(now),
		Kind:       kind,
		Name:       Normalize(raw),
	}, nil
}

// SetLocation records the member's coordinates
func (m *Member) SetLocation(lat, lon float64) {
	m.Latitude = &lat
	m.Longitude = &lon
}

// HasLocation reports whether both coordinates are known
func (m *Member) HasLocation() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// Repository persists dimension members
type Repository interface {
	// FindByName finds a member by its normalized name
	FindByName(ctx context.Context, kind Kind, name string) (*Member, error)
	// Create inserts the member unless one with the same kind and name exists;
	// it returns the stored member either way.
	Create(ctx context.Context, member *Member) (*Member, error)
	// UpdateLocation stores coordinates for an existing member
	UpdateLocation(ctx context.Context, kind Kind, id uuid.UUID, lat, lon float64) error
	// FindAll lists every member of a kind ordered by creation
	FindAll(ctx context.Context, kind Kind) ([]Member, error)
	// Count returns the number of members of a kind
	Count(ctx context.Context, kind Kind) (int64, error)
}
