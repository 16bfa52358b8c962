// Package approval manages access grants for the farming service. Owners and
// admins approve users for a fixed duration or permanently; everyone else is
// turned away at the command gate.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aurafarm/farm-bot/internal/domain"
	apperrors "github.com/aurafarm/farm-bot/internal/errors"
	"github.com/aurafarm/farm-bot/internal/repository"
)

// Duration codes accepted by the approve command.
const (
	DurationDay       = "1d"
	DurationWeek      = "1w"
	DurationMonth     = "1m"
	DurationPermanent = "p"
)

// Service exposes approval checks and mutations.
type Service interface {
	Approve(ctx context.Context, userID int64, duration string) (*domain.Approval, error)
	Unapprove(ctx context.Context, userID int64) error
	IsApproved(ctx context.Context, userID int64) (bool, error)
	Status(ctx context.Context, userID int64) (*domain.Approval, error)
	List(ctx context.Context) ([]*domain.Approval, error)
	CleanupExpired(ctx context.Context) ([]int64, error)
}

type service struct {
	repo repository.ApprovalRepository
	log  *slog.Logger
	now  func() time.Time
}

// NewService creates the approval service.
func NewService(repo repository.ApprovalRepository, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}

	return &service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// Approve grants or extends access for a user. The duration is one of the
// DurationX codes.
func (s *service) Approve(ctx context.Context, userID int64, duration string) (*domain.Approval, error) {
	now := s.now().UTC()

	approval := &domain.Approval{
		UserID:    userID,
		CreatedAt: now,
	}

	switch duration {
	case DurationDay:
		expiry := now.Add(24 * time.Hour)
		approval.ExpiresAt = &expiry
	case DurationWeek:
		expiry := now.Add(7 * 24 * time.Hour)
		approval.ExpiresAt = &expiry
	case DurationMonth:
		expiry := now.AddDate(0, 1, 0)
		approval.ExpiresAt = &expiry
	case DurationPermanent:
		// nil expiry means forever
	default:
		return nil, apperrors.NewApprovalError(fmt.Sprintf("unknown duration %q, use 1d, 1w, 1m or p", duration))
	}

	if err := s.repo.Upsert(ctx, approval); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	s.log.Info("user approved",
		slog.Int64("user_id", userID), slog.String("duration", duration))
	return approval, nil
}

// Unapprove revokes a user's access immediately.
func (s *service) Unapprove(ctx context.Context, userID int64) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return apperrors.NewDatabaseError(err)
	}

	s.log.Info("user unapproved", slog.Int64("user_id", userID))
	return nil
}

// IsApproved reports whether a user currently holds a live approval. A lapsed
// approval counts as unapproved even before the cleanup job removes the row.
func (s *service) IsApproved(ctx context.Context, userID int64) (bool, error) {
	approval, err := s.repo.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.NewDatabaseError(err)
	}

	return !approval.Expired(s.now()), nil
}

// Status returns the user's approval, or ErrNotFound when none exists.
func (s *service) Status(ctx context.Context, userID int64) (*domain.Approval, error) {
	return s.repo.Find(ctx, userID)
}

// List returns every stored approval.
func (s *service) List(ctx context.Context) ([]*domain.Approval, error) {
	return s.repo.List(ctx)
}

// CleanupExpired removes lapsed approvals and returns the ids of the users
// that lost access.
func (s *service) CleanupExpired(ctx context.Context) ([]int64, error) {
	ids, err := s.repo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	if len(ids) > 0 {
		s.log.Info("expired approvals removed", slog.Int("count", len(ids)))
	}
	return ids, nil
}

// FormatRemaining renders the time left on an approval for the status command.
func FormatRemaining(approval *domain.Approval, now time.Time) string {
	if approval.Permanent() {
		return "permanent"
	}

	left := approval.ExpiresAt.Sub(now)
	if left <= 0 {
		return "expired"
	}

	days := int(left.Hours()) / 24
	hours := int(left.Hours()) % 24
	minutes := int(left.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh left", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm left", hours, minutes)
	default:
		return fmt.Sprintf("%dm left", minutes)
	}
}
