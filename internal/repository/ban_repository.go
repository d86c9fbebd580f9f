package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
)

// BanRepository owns the banned_users table.
type BanRepository interface {
	Get(ctx context.Context, userID string) (*domain.BanRecord, error)
	Create(ctx context.Context, ban *domain.BanRecord) error
	Delete(ctx context.Context, userID string) (bool, error)
}

type banRepository struct {
	pool *pgxpool.Pool
}

// NewBanRepository instantiates repository.
func NewBanRepository(pool *pgxpool.Pool) BanRepository {
	return &banRepository{pool: pool}
}

func (r *banRepository) Get(ctx context.Context, userID string) (*domain.BanRecord, error) {
	const query = `SELECT user_id, reason, banned_by, banned_at FROM banned_users WHERE user_id=$1`
	var ban domain.BanRecord
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&ban.UserID, &ban.Reason, &ban.BannedBy, &ban.BannedAt); err != nil {
		return nil, mapError(err)
	}
	return &ban, nil
}

// Create fails with ErrDuplicate when the user is already banned.
func (r *banRepository) Create(ctx context.Context, ban *domain.BanRecord) error {
	const query = `
        INSERT INTO banned_users (user_id, reason, banned_by)
        VALUES ($1,$2,$3)
        RETURNING banned_at`
	return mapError(r.pool.QueryRow(ctx, query, ban.UserID, ban.Reason, ban.BannedBy).Scan(&ban.BannedAt))
}

func (r *banRepository) Delete(ctx context.Context, userID string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM banned_users WHERE user_id=$1`, userID)
	if err != nil {
		return false, mapError(err)
	}
	return cmd.RowsAffected() > 0, nil
}
