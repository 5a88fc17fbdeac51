package dimension

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/logtower/backend/internal/domain/shared"
)

// Resolver maps free-text values to stable member identifiers
type Resolver struct {
	repo  Repository
	clock shared.Clock
}

// NewResolver creates a Resolver backed by the given repository
func NewResolver(repo Repository, clock shared.Clock) *Resolver {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Resolver{repo: repo, clock: clock}
}

// GetOrCreate returns the identifier of the member named raw, creating it on first sight
func (r *Resolver) GetOrCreate(ctx context.Context, kind Kind, raw string) (uuid.UUID, error) {
	m, err := r.getOrCreate(ctx, kind, raw)
	if err != nil {
		return uuid.Nil, err
	}
	return m.ID, nil
}

func (r *Resolver) getOrCreate(ctx context.Context, kind Kind, raw string) (*Member, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIMENSION", fmt.Sprintf("Invalid dimension kind: %s", kind))
	}
	name := Normalize(raw)

	existing, err := r.repo.FindByName(ctx, kind, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("lookup %s %q: %w", kind, name, err)
	}

	member, err := NewMember(kind, name, r.clock())
	if err != nil {
		return nil, err
	}
	stored, err := r.repo.Create(ctx, member)
	if err != nil {
		return nil, fmt.Errorf("create %s %q: %w", kind, name, err)
	}
	return stored, nil
}

// Reference is a known member with coordinates, loaded from the base-data workbooks
type Reference struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// LoadReference makes sure every reference member exists and carries its coordinates.
// Identifiers of members that already exist never change.
func (r *Resolver) LoadReference(ctx context.Context, kind Kind, refs []Reference) (int, error) {
	loaded := 0
	for _, ref := range refs {
		m, err := r.getOrCreate(ctx, kind, ref.Name)
		if err != nil {
			return loaded, err
		}
		if m.HasLocation() && *m.Latitude == ref.Latitude && *m.Longitude == ref.Longitude {
			loaded++
			continue
		}
		if err := r.repo.UpdateLocation(ctx, kind, m.ID, ref.Latitude, ref.Longitude); err != nil {
			return loaded, fmt.Errorf("update location of %s %q: %w", kind, m.Name, err)
		}
		loaded++
	}
	return loaded, nil
}
