package dimension

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/logtower/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: Unknown},
		{name: "whitespace only", raw: "  \t ", want: Unknown},
		{name: "trims and uppercases", raw: "  São Paulo ", want: "SÃO PAULO"},
		{name: "collapses inner spaces", raw: "Rio   de  Janeiro", want: "RIO DE JANEIRO"},
		{name: "already normalized", raw: "LOGRIO", want: "LOGRIO"},
		{name: "decomposed accent", raw: "Cuiaba\u0301", want: "CUIABÁ"},
		{name: "precomposed accent", raw: "Cuiab\u00e1", want: "CUIABÁ"},
		{name: "cedilla", raw: "vestuário e calçados", want: "VESTUÁRIO E CALÇADOS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestKind(t *testing.T) {
	assert.Len(t, Kinds(), 5)
	for _, k := range Kinds() {
		assert.True(t, k.IsValid())
	}
	assert.False(t, Kind("estados").IsValid())
	assert.Equal(t, "dim_filiais.txt", KindBranch.ExportFileName())
	assert.Equal(t, "regioes", KindRegion.Table())
}

func TestNewMember(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	m, err := NewMember(KindCarrier, " rapidão mt ", now)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, "RAPIDÃO MT", m.Name)
	assert.Equal(t, now, m.CreatedAt)
	assert.False(t, m.HasLocation())

	m.SetLocation(-15.6, -56.1)
	assert.True(t, m.HasLocation())

	_, err = NewMember(Kind("bogus"), "x", now)
	assert.Error(t, err)
}

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByName(ctx context.Context, kind Kind, name string) (*Member, error) {
	args := m.Called(ctx, kind, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Member), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, member *Member) (*Member, error) {
	args := m.Called(ctx, member)
	if fn, ok := args.Get(0).(func(context.Context, *Member) *Member); ok {
		return fn(ctx, member), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Member), args.Error(1)
}

func (m *MockRepository) UpdateLocation(ctx context.Context, kind Kind, id uuid.UUID, lat, lon float64) error {
	args := m.Called(ctx, kind, id, lat, lon)
	return args.Error(0)
}

func (m *MockRepository) FindAll(ctx context.Context, kind Kind) ([]Member, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Member), args.Error(1)
}

func (m *MockRepository) Count(ctx context.Context, kind Kind) (int64, error) {
	args := m.Called(ctx, kind)
	return args.Get(0).(int64), args.Error(1)
}

func TestResolver_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("returns existing member id", func(t *testing.T) {
		repo := new(MockRepository)
		existing := &Member{BaseEntity: shared.NewBaseEntityAt(now), Kind: KindBranch, Name: "SÃO PAULO"}
		repo.On("FindByName", ctx, KindBranch, "SÃO PAULO").Return(existing, nil)

		id, err := NewResolver(repo, clock).GetOrCreate(ctx, KindBranch, "são paulo")

		require.NoError(t, err)
		assert.Equal(t, existing.ID, id)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("creates missing member", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("FindByName", ctx, KindClient, "CLIENTE A").Return(nil, shared.ErrNotFound)
		repo.On("Create", ctx, mock.MatchedBy(func(m *Member) bool {
			return m.Kind == KindClient && m.Name == "CLIENTE A" && m.CreatedAt.Equal(now)
		})).Return(func(_ context.Context, m *Member) *Member { return m }, nil)

		id, err := NewResolver(repo, clock).GetOrCreate(ctx, KindClient, "Cliente A")

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
		repo.AssertExpectations(t)
	})

	t.Run("blank value resolves to unknown member", func(t *testing.T) {
		repo := new(MockRepository)
		unknown := &Member{BaseEntity: shared.NewBaseEntityAt(now), Kind: KindRegion, Name: Unknown}
		repo.On("FindByName", ctx, KindRegion, Unknown).Return(unknown, nil)

		id, err := NewResolver(repo, clock).GetOrCreate(ctx, KindRegion, "   ")

		require.NoError(t, err)
		assert.Equal(t, unknown.ID, id)
	})

	t.Run("create race returns stored winner", func(t *testing.T) {
		repo := new(MockRepository)
		winner := &Member{BaseEntity: shared.NewBaseEntityAt(now), Kind: KindProduct, Name: "ALIMENTOS"}
		repo.On("FindByName", ctx, KindProduct, "ALIMENTOS").Return(nil, shared.ErrNotFound)
		repo.On("Create", ctx, mock.Anything).Return(winner, nil)

		id, err := NewResolver(repo, clock).GetOrCreate(ctx, KindProduct, "alimentos")

		require.NoError(t, err)
		assert.Equal(t, winner.ID, id)
	})

	t.Run("lookup failure is wrapped", func(t *testing.T) {
		repo := new(MockRepository)
		dbErr := errors.New("disk I/O error")
		repo.On("FindByName", ctx, KindCarrier, "LOGRIO").Return(nil, dbErr)

		_, err := NewResolver(repo, clock).GetOrCreate(ctx, KindCarrier, "LogRio")

		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("invalid kind", func(t *testing.T) {
		repo := new(MockRepository)

		_, err := NewResolver(repo, clock).GetOrCreate(ctx, Kind("estados"), "SP")

		assert.Error(t, err)
		repo.AssertNotCalled(t, "FindByName", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestResolver_LoadReference(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	located := &Member{BaseEntity: shared.NewBaseEntityAt(now), Kind: KindBranch, Name: "CUIABÁ"}
	located.SetLocation(-15.6010, -56.0974)
	bare := &Member{BaseEntity: shared.NewBaseEntityAt(now), Kind: KindBranch, Name: "SÃO PAULO"}

	repo := new(MockRepository)
	repo.On("FindByName", ctx, KindBranch, "CUIABÁ").Return(located, nil)
	repo.On("FindByName", ctx, KindBranch, "SÃO PAULO").Return(bare, nil)
	repo.On("UpdateLocation", ctx, KindBranch, bare.ID, -23.5505, -46.6333).Return(nil)

	n, err := NewResolver(repo, func() time.Time { return now }).LoadReference(ctx, KindBranch, []Reference{
		{Name: "Cuiabá", Latitude: -15.6010, Longitude: -56.0974},
		{Name: "São Paulo", Latitude: -23.5505, Longitude: -46.6333},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	repo.AssertNumberOfCalls(t, "UpdateLocation", 1)
	repo.AssertExpectations(t)
}
