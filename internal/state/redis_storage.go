package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix = "farm:state:"
	stateScanBatch = 100

	// Conversation keys expire so an abandoned login flow does not stick
	// forever.
	stateTTL = time.Hour
)

// RedisStorage persists user FSM states as JSON blobs keyed by user id.
type RedisStorage struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStorage(client *redis.Client, log *slog.Logger) Storage {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStorage{client: client, log: log}
}

func stateKey(userID int64) string {
	return fmt.Sprintf("%s%d", stateKeyPrefix, userID)
}

func (s *RedisStorage) GetState(ctx context.Context, userID int64) (*UserState, error) {
	data, err := s.client.Get(ctx, stateKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		s.log.Error("failed to read user state", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, err
	}
	return decodeState(data)
}

func (s *RedisStorage) SetState(ctx context.Context, userID int64, st *UserState) error {
	st.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state for user %d: %w", userID, err)
	}
	if err := s.client.Set(ctx, stateKey(userID), data, stateTTL).Err(); err != nil {
		s.log.Error("failed to write user state", slog.Int64("user_id", userID), slog.Any("error", err))
		return err
	}
	return nil
}

func (s *RedisStorage) ClearState(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, stateKey(userID)).Err(); err != nil {
		s.log.Error("failed to clear user state", slog.Int64("user_id", userID), slog.Any("error", err))
		return err
	}
	return nil
}

// GetAllStates scans the state keyspace. Entries that vanish or fail to
// decode mid-scan are skipped.
func (s *RedisStorage) GetAllStates(ctx context.Context) ([]*UserState, error) {
	var states []*UserState

	iter := s.client.Scan(ctx, 0, stateKeyPrefix+"*", stateScanBatch).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			s.log.Error("failed to read user state", slog.String("key", iter.Val()), slog.Any("error", err))
			return nil, err
		}

		st, err := decodeState(data)
		if err != nil {
			s.log.Warn("skipping undecodable user state", slog.String("key", iter.Val()), slog.Any("error", err))
			continue
		}
		states = append(states, st)
	}
	if err := iter.Err(); err != nil {
		s.log.Error("state keyspace scan failed", slog.Any("error", err))
		return nil, err
	}

	return states, nil
}

func decodeState(data []byte) (*UserState, error) {
	var st UserState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode user state: %w", err)
	}
	return &st, nil
}
