package state

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errStorageFailure = errors.New("storage error")

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) GetState(ctx context.Context, userID int64) (*UserState, error) {
	args := m.Called(ctx, userID)
	st, _ := args.Get(0).(*UserState)
	return st, args.Error(1)
}

func (m *mockStorage) SetState(ctx context.Context, userID int64, st *UserState) error {
	return m.Called(ctx, userID, st).Error(0)
}

func (m *mockStorage) ClearState(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockStorage) GetAllStates(ctx context.Context) ([]*UserState, error) {
	args := m.Called(ctx)
	states, _ := args.Get(0).([]*UserState)
	return states, args.Error(1)
}

func expectSet(ms *mockStorage, userID int64, want State) {
	ms.On("SetState", mock.Anything, userID, mock.MatchedBy(func(st *UserState) bool {
		return st.CurrentState == want
	})).Return(nil).Once()
}

func TestStateMachineTransitionTo(t *testing.T) {
	const userID = int64(42)

	testCases := []struct {
		name     string
		current  *UserState
		getErr   error
		newState State
		wantSet  bool
		wantErr  error
	}{
		{
			name:     "idle to awaiting phone",
			current:  &UserState{CurrentState: StateIdle},
			newState: StateAwaitingPhone,
			wantSet:  true,
		},
		{
			name:     "idle cannot jump to password",
			current:  &UserState{CurrentState: StateIdle},
			newState: StateAwaitingPassword,
			wantErr:  ErrInvalidTransition,
		},
		{
			name:     "missing record counts as idle",
			getErr:   ErrStateNotFound,
			newState: StateAwaitingGroupID,
			wantSet:  true,
		},
		{
			name:     "code advances to password",
			current:  &UserState{CurrentState: StateAwaitingCode},
			newState: StateAwaitingPassword,
			wantSet:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ms := &mockStorage{}
			ms.On("GetState", mock.Anything, userID).Return(tc.current, tc.getErr).Once()
			if tc.wantSet {
				expectSet(ms, userID, tc.newState)
			}

			fsm := NewStateMachine(ms, testLogger(), nil)
			err := fsm.TransitionTo(context.Background(), userID, tc.newState)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			ms.AssertExpectations(t)
		})
	}
}

func TestStateMachineClearState(t *testing.T) {
	const userID = int64(7)

	ms := &mockStorage{}
	ms.On("ClearState", mock.Anything, userID).Return(nil).Once()
	fsm := NewStateMachine(ms, testLogger(), nil)
	require.NoError(t, fsm.ClearState(context.Background(), userID))
	ms.AssertExpectations(t)

	ms = &mockStorage{}
	ms.On("ClearState", mock.Anything, userID).Return(errStorageFailure).Once()
	fsm = NewStateMachine(ms, testLogger(), nil)
	require.ErrorIs(t, fsm.ClearState(context.Background(), userID), errStorageFailure)
	ms.AssertExpectations(t)
}

func TestStateMachineLockSerializesWriters(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	fsm := NewStateMachine(newSlowStorage(100*time.Millisecond), testLogger(), client)

	const userID = int64(77)
	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- fsm.SetState(context.Background(), userID, StateAwaitingPhone, nil)
		}()
	}
	wg.Wait()
	close(errCh)

	var success, locked int
	for err := range errCh {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrStateLocked):
			locked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, success)
	require.Equal(t, 1, locked)
}

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// slowStorage holds writes long enough that the second locker observes the
// lock still held.
type slowStorage struct {
	mu     sync.Mutex
	states map[int64]*UserState
	delay  time.Duration
}

func newSlowStorage(delay time.Duration) *slowStorage {
	return &slowStorage{states: make(map[int64]*UserState), delay: delay}
}

func (s *slowStorage) GetState(_ context.Context, userID int64) (*UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return st, nil
}

func (s *slowStorage) SetState(_ context.Context, userID int64, st *UserState) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = st
	return nil
}

func (s *slowStorage) ClearState(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

func (s *slowStorage) GetAllStates(_ context.Context) ([]*UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make([]*UserState, 0, len(s.states))
	for _, st := range s.states {
		states = append(states, st)
	}
	return states, nil
}
