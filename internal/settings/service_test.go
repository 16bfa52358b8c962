package settings

import (
	"context"
	"io"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aurafarm/farm-bot/internal/domain"
	"github.com/aurafarm/farm-bot/internal/repository"
)

type mockSettingsRepo struct {
	mock.Mock
}

func (m *mockSettingsRepo) Find(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	args := m.Called(ctx, userID)
	settings, _ := args.Get(0).(*domain.UserSettings)
	return settings, args.Error(1)
}

func (m *mockSettingsRepo) Upsert(ctx context.Context, settings *domain.UserSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func newTestService(t *testing.T, repo repository.SettingsRepository) Service {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, NewCache(client), log, 250, 500)
}

func TestServiceGetDefaults(t *testing.T) {
	repo := &mockSettingsRepo{}
	repo.On("Find", mock.Anything, int64(42)).Return(nil, repository.ErrNotFound).Once()

	svc := newTestService(t, repo)

	settings, err := svc.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 250, settings.PearlLimit)
	assert.Equal(t, 500, settings.TicketLimit)
	assert.False(t, settings.GroupNoti)
}

func TestServiceGetCachesStoredRow(t *testing.T) {
	repo := &mockSettingsRepo{}
	repo.On("Find", mock.Anything, int64(7)).
		Return(&domain.UserSettings{UserID: 7, PearlLimit: 100, TicketLimit: 200}, nil).Once()

	svc := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.Get(ctx, 7)
	require.NoError(t, err)

	// second read must come from cache; the mock allows exactly one Find
	second, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, first.PearlLimit, second.PearlLimit)

	repo.AssertExpectations(t)
}

func TestServiceSetLimits(t *testing.T) {
	repo := &mockSettingsRepo{}
	repo.On("Find", mock.Anything, int64(9)).Return(nil, repository.ErrNotFound).Once()
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(s *domain.UserSettings) bool {
		return s.PearlLimit == 120 && s.TicketLimit == 340
	})).Return(nil).Once()

	svc := newTestService(t, repo)

	require.NoError(t, svc.SetLimits(context.Background(), 9, 120, 340))
	repo.AssertExpectations(t)
}

func TestServiceSetLimitsRejectsNonPositive(t *testing.T) {
	svc := newTestService(t, &mockSettingsRepo{})

	assert.Error(t, svc.SetLimits(context.Background(), 9, 0, 100))
	assert.Error(t, svc.SetLimits(context.Background(), 9, 100, -5))
}

func TestServiceSetGroupEnablesGroupNoti(t *testing.T) {
	repo := &mockSettingsRepo{}
	repo.On("Find", mock.Anything, int64(3)).Return(nil, repository.ErrNotFound).Once()
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(s *domain.UserSettings) bool {
		return s.GroupID == -100123 && s.GroupNoti
	})).Return(nil).Once()

	svc := newTestService(t, repo)

	require.NoError(t, svc.SetGroup(context.Background(), 3, -100123))
	repo.AssertExpectations(t)
}

func TestServicePriceLimitsFallBackOnError(t *testing.T) {
	repo := &mockSettingsRepo{}
	repo.On("Find", mock.Anything, int64(5)).Return(nil, assert.AnError).Once()

	svc := newTestService(t, repo)

	pearl, ticket := svc.PriceLimits(context.Background(), 5)
	assert.Equal(t, 250, pearl)
	assert.Equal(t, 500, ticket)
}
