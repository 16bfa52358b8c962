package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// AdminRepository defines persistence operations for the admin roster.
type AdminRepository interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	List(ctx context.Context) ([]int64, error)
	Add(ctx context.Context, userID int64) error
	Remove(ctx context.Context, userID int64) error
}

type adminRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewAdminRepository creates a SQL-backed admin repository.
func NewAdminRepository(db *sql.DB, log *slog.Logger) AdminRepository {
	return &adminRepository{
		db:  db,
		log: log,
	}
}

// IsAdmin reports whether the user is on the admin roster.
func (r *adminRepository) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM admins WHERE user_id = $1)`

	var isAdmin bool
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&isAdmin); err != nil {
		return false, fmt.Errorf("select admin: %w", err)
	}

	return isAdmin, nil
}

// List returns every admin user id.
func (r *adminRepository) List(ctx context.Context) ([]int64, error) {
	const query = `SELECT user_id FROM admins ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select admins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var admins []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admins: %w", err)
	}

	return admins, nil
}

// Add puts a user on the admin roster.
func (r *adminRepository) Add(ctx context.Context, userID int64) error {
	const query = `INSERT INTO admins (user_id) VALUES ($1) ON CONFLICT DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		if r.log != nil {
			r.log.Error("failed to add admin", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return fmt.Errorf("insert admin: %w", err)
	}

	return nil
}

// Remove removes a user from the admin roster.
func (r *adminRepository) Remove(ctx context.Context, userID int64) error {
	const query = `DELETE FROM admins WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}

	return nil
}
