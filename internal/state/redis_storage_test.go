package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedisStorage_SetAndGet(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger())

	ctx := context.Background()
	userState := &UserState{
		UserID:       123,
		CurrentState: StateAwaitingCode,
		Context: map[string]interface{}{
			"phone": "+15550001111",
		},
	}

	err := storage.SetState(ctx, userState.UserID, userState)
	assert.NoError(t, err)

	result, err := storage.GetState(ctx, userState.UserID)
	assert.NoError(t, err)
	if assert.NotNil(t, result) {
		assert.Equal(t, userState.UserID, result.UserID)
		assert.Equal(t, userState.CurrentState, result.CurrentState)
		assert.Equal(t, userState.Context, result.Context)
		assert.False(t, result.UpdatedAt.IsZero())
	}
}

func TestRedisStorage_GetNotFound(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger())

	state, err := storage.GetState(context.Background(), 999)
	assert.Nil(t, state)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStorage_ClearState(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger())
	ctx := context.Background()

	err := storage.SetState(ctx, 55, &UserState{UserID: 55, CurrentState: StateAwaitingPhone})
	assert.NoError(t, err)

	assert.NoError(t, storage.ClearState(ctx, 55))

	state, err := storage.GetState(ctx, 55)
	assert.Nil(t, state)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStorage_KeysExpire(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger())
	ctx := context.Background()

	assert.NoError(t, storage.SetState(ctx, 9, &UserState{UserID: 9, CurrentState: StateAwaitingCode}))

	ttl, err := client.TTL(ctx, stateKey(9)).Result()
	assert.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, stateTTL)
}

func TestRedisStorage_GetAllStates(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger())
	ctx := context.Background()

	assert.NoError(t, storage.SetState(ctx, 1, &UserState{UserID: 1, CurrentState: StateAwaitingPhone}))
	assert.NoError(t, storage.SetState(ctx, 2, &UserState{UserID: 2, CurrentState: StateAwaitingGroupID}))

	states, err := storage.GetAllStates(ctx)
	assert.NoError(t, err)
	assert.Len(t, states, 2)
}
