package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aurafarm/farm-bot/internal/domain"
)

// SettingsRepository defines persistence operations for per-user farming settings.
type SettingsRepository interface {
	Find(ctx context.Context, userID int64) (*domain.UserSettings, error)
	Upsert(ctx context.Context, settings *domain.UserSettings) error
}

type settingsRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSettingsRepository creates a SQL-backed settings repository.
func NewSettingsRepository(db *sql.DB, log *slog.Logger) SettingsRepository {
	return &settingsRepository{
		db:  db,
		log: log,
	}
}

// Find retrieves the settings for a user.
func (r *settingsRepository) Find(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	const query = `
		SELECT user_id, pearl_limit, ticket_limit, group_noti, COALESCE(group_id, 0)
		FROM user_settings
		WHERE user_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, userID)

	var settings domain.UserSettings
	if err := row.Scan(
		&settings.UserID,
		&settings.PearlLimit,
		&settings.TicketLimit,
		&settings.GroupNoti,
		&settings.GroupID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		if r.log != nil {
			r.log.Error("failed to fetch user settings", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user settings: %w", err)
	}

	return &settings, nil
}

// Upsert stores the settings, replacing existing values for the same user.
func (r *settingsRepository) Upsert(ctx context.Context, settings *domain.UserSettings) error {
	const query = `
		INSERT INTO user_settings (user_id, pearl_limit, ticket_limit, group_noti, group_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0))
		ON CONFLICT (user_id) DO UPDATE SET
			pearl_limit = EXCLUDED.pearl_limit,
			ticket_limit = EXCLUDED.ticket_limit,
			group_noti = EXCLUDED.group_noti,
			group_id = EXCLUDED.group_id
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		settings.UserID,
		settings.PearlLimit,
		settings.TicketLimit,
		settings.GroupNoti,
		settings.GroupID,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to upsert user settings", slog.Int64("user_id", settings.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("upsert user settings: %w", err)
	}

	return nil
}
