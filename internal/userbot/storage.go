package userbot

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/session"

	apperrors "github.com/aurafarm/farm-bot/internal/errors"
	"github.com/aurafarm/farm-bot/internal/repository"
)

// sessionStorage adapts the SQL session repository to gotd's session.Storage
// for one user.
type sessionStorage struct {
	userID int64
	repo   repository.SessionRepository
}

func newSessionStorage(userID int64, repo repository.SessionRepository) *sessionStorage {
	return &sessionStorage{userID: userID, repo: repo}
}

func (s *sessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	data, err := s.repo.Load(ctx, s.userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("load session for user %d: %w", s.userID, err)
	}
	return data, nil
}

func (s *sessionStorage) StoreSession(ctx context.Context, data []byte) error {
	// Losing a session write forces the user through a fresh login, so
	// transient database failures get retried with backoff.
	err := apperrors.WithRetry(ctx, func() error {
		if err := s.repo.Store(ctx, s.userID, data); err != nil {
			return apperrors.NewDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store session for user %d: %w", s.userID, err)
	}
	return nil
}
