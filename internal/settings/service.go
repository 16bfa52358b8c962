// Package settings manages per-user farming preferences: trade price limits
// and the group notification target.
package settings

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aurafarm/farm-bot/internal/domain"
	apperrors "github.com/aurafarm/farm-bot/internal/errors"
	"github.com/aurafarm/farm-bot/internal/repository"
)

// Service reads and mutates user settings, with a cache in front of SQL.
type Service interface {
	Get(ctx context.Context, userID int64) (*domain.UserSettings, error)
	SetLimits(ctx context.Context, userID int64, pearlLimit, ticketLimit int) error
	SetGroup(ctx context.Context, userID int64, groupID int64) error
	SetGroupNoti(ctx context.Context, userID int64, enabled bool) error

	// PriceLimits satisfies the farming engine's settings source.
	PriceLimits(ctx context.Context, userID int64) (pearlLimit, ticketLimit int)
}

type service struct {
	repo  repository.SettingsRepository
	cache *Cache
	log   *slog.Logger

	defaultPearlLimit  int
	defaultTicketLimit int
}

// NewService creates the settings service. The default limits apply to users
// that never customized anything.
func NewService(repo repository.SettingsRepository, cache *Cache, log *slog.Logger, defaultPearlLimit, defaultTicketLimit int) Service {
	if log == nil {
		log = slog.Default()
	}

	return &service{
		repo:               repo,
		cache:              cache,
		log:                log,
		defaultPearlLimit:  defaultPearlLimit,
		defaultTicketLimit: defaultTicketLimit,
	}
}

// Get returns the user's settings, falling back to defaults when the user has
// no stored row. Cache misses are repopulated.
func (s *service) Get(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	if cached, err := s.cache.Get(ctx, userID); err == nil && cached != nil {
		return cached, nil
	} else if err != nil {
		s.log.Warn("settings cache read failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	stored, err := s.repo.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.DefaultSettings(userID, s.defaultPearlLimit, s.defaultTicketLimit), nil
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	if err := s.cache.Set(ctx, stored); err != nil {
		s.log.Warn("settings cache write failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	return stored, nil
}

// SetLimits stores new trade price limits for the user.
func (s *service) SetLimits(ctx context.Context, userID int64, pearlLimit, ticketLimit int) error {
	if pearlLimit <= 0 || ticketLimit <= 0 {
		return apperrors.NewValidationError("price limits must be positive")
	}

	return s.update(ctx, userID, func(settings *domain.UserSettings) {
		settings.PearlLimit = pearlLimit
		settings.TicketLimit = ticketLimit
	})
}

// SetGroup stores the group chat notifications go to and switches group
// delivery on.
func (s *service) SetGroup(ctx context.Context, userID int64, groupID int64) error {
	if groupID == 0 {
		return apperrors.NewValidationError("group id must not be zero")
	}

	return s.update(ctx, userID, func(settings *domain.UserSettings) {
		settings.GroupID = groupID
		settings.GroupNoti = true
	})
}

// SetGroupNoti toggles delivery to the configured group.
func (s *service) SetGroupNoti(ctx context.Context, userID int64, enabled bool) error {
	return s.update(ctx, userID, func(settings *domain.UserSettings) {
		settings.GroupNoti = enabled
	})
}

// PriceLimits returns the user's trade limits. Lookup failures fall back to
// the defaults so a dead cache never stalls the farming loop.
func (s *service) PriceLimits(ctx context.Context, userID int64) (int, int) {
	settings, err := s.Get(ctx, userID)
	if err != nil {
		s.log.Warn("failed to load price limits, using defaults",
			slog.Int64("user_id", userID), slog.Any("error", err))
		return s.defaultPearlLimit, s.defaultTicketLimit
	}
	return settings.PearlLimit, settings.TicketLimit
}

func (s *service) update(ctx context.Context, userID int64, mutate func(*domain.UserSettings)) error {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	mutate(current)

	if err := s.repo.Upsert(ctx, current); err != nil {
		return apperrors.NewDatabaseError(err)
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("settings cache invalidation failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	return nil
}
