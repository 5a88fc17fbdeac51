package etl

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/logtower/backend/internal/domain/bulk"
	"github.com/logtower/backend/internal/domain/dimension"
	"github.com/logtower/backend/internal/domain/routing"
	"github.com/logtower/backend/internal/domain/shared"
	"github.com/logtower/backend/internal/domain/shipment"
	"github.com/stretchr/testify/mock"
)

// memoryDimensions is an in-memory dimension.Repository
type memoryDimensions struct {
	mu      sync.Mutex
	members map[dimension.Kind][]dimension.Member
}

func newMemoryDimensions() *memoryDimensions {
	return &memoryDimensions{members: make(map[dimension.Kind][]dimension.Member)}
}

func (r *memoryDimensions) FindByName(_ context.Context, kind dimension.Kind, name string) (*dimension.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members[kind] {
		if m.Name == name {
			found := m
			return &found, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryDimensions) Create(ctx context.Context, member *dimension.Member) (*dimension.Member, error) {
	if existing, err := r.FindByName(ctx, member.Kind, member.Name); err == nil {
		return existing, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[member.Kind] = append(r.members[member.Kind], *member)
	return member, nil
}

func (r *memoryDimensions) UpdateLocation(_ context.Context, kind dimension.Kind, id uuid.UUID, lat, lon float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.members[kind] {
		if r.members[kind][i].ID == id {
			r.members[kind][i].SetLocation(lat, lon)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryDimensions) FindAll(_ context.Context, kind dimension.Kind) ([]dimension.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dimension.Member(nil), r.members[kind]...), nil
}

func (r *memoryDimensions) Count(_ context.Context, kind dimension.Kind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.members[kind])), nil
}

func (r *memoryDimensions) names(kind dimension.Kind) []string {
	members, _ := r.FindAll(context.Background(), kind)
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	sort.Strings(names)
	return names
}

// memoryFacts is an in-memory shipment.Repository
type memoryFacts struct {
	mu    sync.Mutex
	facts []shipment.Shipment
	err   error
}

func (r *memoryFacts) SaveIfAbsent(_ context.Context, s *shipment.Shipment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	for _, f := range r.facts {
		if f.Key() == s.Key() {
			return false, nil
		}
	}
	r.facts = append(r.facts, *s)
	return true, nil
}

func (r *memoryFacts) FindByKey(_ context.Context, key shipment.Key) (*shipment.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.facts {
		if f.Key() == key {
			found := f
			return &found, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryFacts) Update(_ context.Context, s *shipment.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.facts {
		if r.facts[i].ID == s.ID {
			r.facts[i] = *s
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryFacts) FindAll(_ context.Context) ([]shipment.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shipment.Shipment(nil), r.facts...), nil
}

func (r *memoryFacts) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.facts)), nil
}

// MockRunRepository is a mock implementation of bulk.RunRepository
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*bulk.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bulk.Run), args.Error(1)
}

func (m *MockRunRepository) FindAll(ctx context.Context, filter bulk.RunFilter) ([]*bulk.Run, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*bulk.Run), args.Error(1)
}

func (m *MockRunRepository) Save(ctx context.Context, run *bulk.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// fixedRouter returns 95.5 km and 80.25 min for every pair of points
var fixedRouter = routing.RouterFunc(func(_ context.Context, _, _ routing.Coordinate) (routing.Route, error) {
	return routing.Route{DistanceMeters: 95500, DurationSeconds: 4815}, nil
})
