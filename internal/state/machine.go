package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix = "farm:state:lock:"
	lockTTL       = 5 * time.Second
)

var (
	// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateNotFound indicates that a user state record does not exist.
	ErrStateNotFound = errors.New("user state not found")
	// ErrStateLocked indicates that a concurrent operation already holds the lock.
	ErrStateLocked = errors.New("state is locked, try again later")
)

// StateMachine describes the operations supported by the conversation FSM.
type StateMachine interface {
	GetState(ctx context.Context, userID int64) (*UserState, error)
	SetState(ctx context.Context, userID int64, state State, contextData map[string]interface{}) error
	TransitionTo(ctx context.Context, userID int64, newState State) error
	ClearState(ctx context.Context, userID int64) error
	GetAllStates(ctx context.Context) ([]*UserState, error)
}

type machine struct {
	storage Storage
	log     *slog.Logger
	locks   *redis.Client
}

// NewStateMachine builds the FSM controller. The redis client guards writes
// with a short per-user lock; a nil client disables locking.
func NewStateMachine(storage Storage, log *slog.Logger, locks *redis.Client) StateMachine {
	if log == nil {
		log = slog.Default()
	}
	return &machine{storage: storage, log: log, locks: locks}
}

func (m *machine) GetState(ctx context.Context, userID int64) (*UserState, error) {
	return m.storage.GetState(ctx, userID)
}

func (m *machine) GetAllStates(ctx context.Context) ([]*UserState, error) {
	return m.storage.GetAllStates(ctx)
}

// SetState stores the state unconditionally. Prompt-driven flows (login code,
// 2FA password) jump between states outside the transition table, so no
// validation happens here.
func (m *machine) SetState(ctx context.Context, userID int64, st State, contextData map[string]interface{}) error {
	return m.withLock(ctx, userID, func() error {
		return m.storage.SetState(ctx, userID, &UserState{
			UserID:       userID,
			CurrentState: st,
			Context:      contextData,
		})
	})
}

// TransitionTo stores the state only when the transition table allows moving
// there from the user's current state. A missing record counts as idle.
func (m *machine) TransitionTo(ctx context.Context, userID int64, newState State) error {
	return m.withLock(ctx, userID, func() error {
		current := StateIdle
		if stored, err := m.storage.GetState(ctx, userID); err != nil {
			if !errors.Is(err, ErrStateNotFound) {
				return err
			}
		} else if stored != nil {
			current = stored.CurrentState
		}

		if !IsTransitionAllowed(current, newState) {
			m.log.Warn("rejected state transition",
				slog.Int64("user_id", userID),
				slog.String("from", string(current)),
				slog.String("to", string(newState)))
			return ErrInvalidTransition
		}

		return m.storage.SetState(ctx, userID, &UserState{
			UserID:       userID,
			CurrentState: newState,
		})
	})
}

func (m *machine) ClearState(ctx context.Context, userID int64) error {
	return m.withLock(ctx, userID, func() error {
		return m.storage.ClearState(ctx, userID)
	})
}

func (m *machine) withLock(ctx context.Context, userID int64, fn func() error) error {
	if m.locks == nil {
		return fn()
	}

	key := fmt.Sprintf("%s%d", lockKeyPrefix, userID)
	ok, err := m.locks.SetNX(ctx, key, 1, lockTTL).Result()
	if err != nil {
		m.log.Error("failed to acquire state lock",
			slog.Int64("user_id", userID), slog.Any("error", err))
		return err
	}
	if !ok {
		return ErrStateLocked
	}
	defer func() {
		if delErr := m.locks.Del(ctx, key).Err(); delErr != nil {
			m.log.Error("failed to release state lock",
				slog.Int64("user_id", userID), slog.Any("error", delErr))
		}
	}()

	return fn()
}
