package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SessionRepository stores serialized MTProto session blobs per user so that a
// user survives process restarts without re-entering phone and code.
type SessionRepository interface {
	Load(ctx context.Context, userID int64) ([]byte, error)
	Store(ctx context.Context, userID int64, data []byte) error
	Exists(ctx context.Context, userID int64) (bool, error)
	Delete(ctx context.Context, userID int64) error
	Count(ctx context.Context) (int64, error)
	UserIDs(ctx context.Context) ([]int64, error)
}

type sessionRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSessionRepository creates a SQL-backed session repository.
func NewSessionRepository(db *sql.DB, log *slog.Logger) SessionRepository {
	return &sessionRepository{
		db:  db,
		log: log,
	}
}

// Load returns the stored session blob for a user.
func (r *sessionRepository) Load(ctx context.Context, userID int64) ([]byte, error) {
	const query = `SELECT data FROM telegram_sessions WHERE user_id = $1`

	var data []byte
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	return data, nil
}

// Store saves or replaces the session blob for a user.
func (r *sessionRepository) Store(ctx context.Context, userID int64, data []byte) error {
	const query = `
		INSERT INTO telegram_sessions (user_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, userID, data, time.Now().UTC()); err != nil {
		if r.log != nil {
			r.log.Error("failed to store session", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// Exists reports whether a session blob is stored for the user.
func (r *sessionRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM telegram_sessions WHERE user_id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("select session existence: %w", err)
	}

	return exists, nil
}

// Delete removes the stored session blob for the user.
func (r *sessionRepository) Delete(ctx context.Context, userID int64) error {
	const query = `DELETE FROM telegram_sessions WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// UserIDs returns the ids of every user with a stored session, used to
// restore their clients after a restart.
func (r *sessionRepository) UserIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT user_id FROM telegram_sessions ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select session user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session user ids: %w", err)
	}

	return ids, nil
}

// Count returns the number of stored sessions.
func (r *sessionRepository) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM telegram_sessions`

	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}

	return count, nil
}
