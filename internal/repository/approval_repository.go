package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aurafarm/farm-bot/internal/domain"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ApprovalRepository defines persistence operations for user approvals.
type ApprovalRepository interface {
	Find(ctx context.Context, userID int64) (*domain.Approval, error)
	List(ctx context.Context) ([]*domain.Approval, error)
	Upsert(ctx context.Context, approval *domain.Approval) error
	Delete(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, now time.Time) ([]int64, error)
}

type approvalRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewApprovalRepository creates a SQL-backed approval repository.
func NewApprovalRepository(db *sql.DB, log *slog.Logger) ApprovalRepository {
	return &approvalRepository{
		db:  db,
		log: log,
	}
}

// Find retrieves an approval by the user's Telegram identifier.
func (r *approvalRepository) Find(ctx context.Context, userID int64) (*domain.Approval, error) {
	const query = `
		SELECT user_id, expires_at, created_at
		FROM approvals
		WHERE user_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, userID)

	var approval domain.Approval
	if err := row.Scan(&approval.UserID, &approval.ExpiresAt, &approval.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		if r.log != nil {
			r.log.Error("failed to fetch approval", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select approval: %w", err)
	}

	return &approval, nil
}

// List returns every stored approval.
func (r *approvalRepository) List(ctx context.Context) ([]*domain.Approval, error) {
	const query = `
		SELECT user_id, expires_at, created_at
		FROM approvals
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select approvals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var approvals []*domain.Approval
	for rows.Next() {
		var approval domain.Approval
		if err := rows.Scan(&approval.UserID, &approval.ExpiresAt, &approval.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		approvals = append(approvals, &approval)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}

	return approvals, nil
}

// Upsert stores the approval, replacing an existing one for the same user.
func (r *approvalRepository) Upsert(ctx context.Context, approval *domain.Approval) error {
	const query = `
		INSERT INTO approvals (user_id, expires_at, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`

	if _, err := r.db.ExecContext(ctx, query, approval.UserID, approval.ExpiresAt, approval.CreatedAt); err != nil {
		if r.log != nil {
			r.log.Error("failed to upsert approval", slog.Int64("user_id", approval.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("upsert approval: %w", err)
	}

	return nil
}

// Delete removes the approval for the given user.
func (r *approvalRepository) Delete(ctx context.Context, userID int64) error {
	const query = `DELETE FROM approvals WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete approval: %w", err)
	}

	return nil
}

// DeleteExpired removes all approvals whose expiry lies before now and
// returns the ids of the users that lost access.
func (r *approvalRepository) DeleteExpired(ctx context.Context, now time.Time) ([]int64, error) {
	const query = `
		DELETE FROM approvals
		WHERE expires_at IS NOT NULL AND expires_at < $1
		RETURNING user_id
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired approvals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired approval: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired approvals: %w", err)
	}

	return ids, nil
}
