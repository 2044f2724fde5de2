package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// QuotaRepository maintains the per-user URL counter used for admission
// control. The counter is advisory: it is not updated in the same transaction
// as link creation or deletion, and can be reconciled by recounting links.
type QuotaRepository struct {
	db *sqlx.DB
}

func NewQuotaRepository(db *sqlx.DB) *QuotaRepository {
	return &QuotaRepository{
		db: db,
	}
}

// URLCount returns the user's current counter value. Users without a row
// have never allocated a link and count as zero.
func (r *QuotaRepository) URLCount(ctx context.Context, userID string) (int64, error) {
	const op = "database.postgres.QuotaRepository.URLCount"

	var count int64
	query := `SELECT url_count FROM user_quotas WHERE user_id = $1`

	err := r.db.GetContext(ctx, &count, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, fmt.Errorf("%s: failed to get url count: %w", op, err)
	}

	return count, nil
}

// Increment atomically adds one to the user's counter, creating the row on
// first use.
func (r *QuotaRepository) Increment(ctx context.Context, userID string) error {
	const op = "database.postgres.QuotaRepository.Increment"

	query := `INSERT INTO user_quotas(user_id, url_count)
		VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE
		SET url_count = user_quotas.url_count + 1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: failed to increment url count: %w", op, err)
	}

	return nil
}

// Decrement atomically subtracts one from the user's counter, never going
// below zero.
func (r *QuotaRepository) Decrement(ctx context.Context, userID string) error {
	const op = "database.postgres.QuotaRepository.Decrement"

	query := `UPDATE user_quotas
		SET url_count = greatest(url_count - 1, 0)
		WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: failed to decrement url count: %w", op, err)
	}

	return nil
}
