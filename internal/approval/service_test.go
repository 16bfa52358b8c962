package approval

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aurafarm/farm-bot/internal/domain"
	"github.com/aurafarm/farm-bot/internal/repository"
)

type mockApprovalRepo struct {
	mock.Mock
}

func (m *mockApprovalRepo) Find(ctx context.Context, userID int64) (*domain.Approval, error) {
	args := m.Called(ctx, userID)
	approval, _ := args.Get(0).(*domain.Approval)
	return approval, args.Error(1)
}

func (m *mockApprovalRepo) List(ctx context.Context) ([]*domain.Approval, error) {
	args := m.Called(ctx)
	approvals, _ := args.Get(0).([]*domain.Approval)
	return approvals, args.Error(1)
}

func (m *mockApprovalRepo) Upsert(ctx context.Context, approval *domain.Approval) error {
	args := m.Called(ctx, approval)
	return args.Error(0)
}

func (m *mockApprovalRepo) Delete(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockApprovalRepo) DeleteExpired(ctx context.Context, now time.Time) ([]int64, error) {
	args := m.Called(ctx, now)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func testService(repo repository.ApprovalRepository) Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestServiceApproveDurations(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name      string
		duration  string
		permanent bool
		maxExpiry time.Duration
	}{
		{name: "one day", duration: DurationDay, maxExpiry: 25 * time.Hour},
		{name: "one week", duration: DurationWeek, maxExpiry: 8 * 24 * time.Hour},
		{name: "one month", duration: DurationMonth, maxExpiry: 32 * 24 * time.Hour},
		{name: "permanent", duration: DurationPermanent, permanent: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockApprovalRepo{}
			repo.On("Upsert", mock.Anything, mock.MatchedBy(func(a *domain.Approval) bool {
				if tc.permanent {
					return a.ExpiresAt == nil
				}
				return a.ExpiresAt != nil && a.ExpiresAt.Before(time.Now().Add(tc.maxExpiry))
			})).Return(nil).Once()

			approval, err := testService(repo).Approve(ctx, 42, tc.duration)
			require.NoError(t, err)
			assert.Equal(t, tc.permanent, approval.Permanent())

			repo.AssertExpectations(t)
		})
	}
}

func TestServiceApproveRejectsUnknownDuration(t *testing.T) {
	repo := &mockApprovalRepo{}

	_, err := testService(repo).Approve(context.Background(), 42, "2y")
	assert.Error(t, err)
	repo.AssertNotCalled(t, "Upsert")
}

func TestServiceIsApproved(t *testing.T) {
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	testCases := []struct {
		name     string
		approval *domain.Approval
		findErr  error
		expected bool
	}{
		{name: "no approval", findErr: repository.ErrNotFound, expected: false},
		{name: "permanent", approval: &domain.Approval{UserID: 1}, expected: true},
		{name: "live", approval: &domain.Approval{UserID: 1, ExpiresAt: &future}, expected: true},
		{name: "lapsed but not yet cleaned", approval: &domain.Approval{UserID: 1, ExpiresAt: &past}, expected: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockApprovalRepo{}
			repo.On("Find", mock.Anything, int64(1)).Return(tc.approval, tc.findErr).Once()

			approved, err := testService(repo).IsApproved(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, approved)
		})
	}
}

func TestServiceCleanupExpired(t *testing.T) {
	repo := &mockApprovalRepo{}
	repo.On("DeleteExpired", mock.Anything, mock.Anything).Return([]int64{3, 9}, nil).Once()

	ids, err := testService(repo).CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 9}, ids)
}

func TestFormatRemaining(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	permanent := &domain.Approval{UserID: 1}
	assert.Equal(t, "permanent", FormatRemaining(permanent, now))

	in2d := now.Add(50 * time.Hour)
	assert.Equal(t, "2d 2h left", FormatRemaining(&domain.Approval{ExpiresAt: &in2d}, now))

	in90m := now.Add(90 * time.Minute)
	assert.Equal(t, "1h 30m left", FormatRemaining(&domain.Approval{ExpiresAt: &in90m}, now))

	in5m := now.Add(5 * time.Minute)
	assert.Equal(t, "5m left", FormatRemaining(&domain.Approval{ExpiresAt: &in5m}, now))

	ago := now.Add(-time.Minute)
	assert.Equal(t, "expired", FormatRemaining(&domain.Approval{ExpiresAt: &ago}, now))
}
