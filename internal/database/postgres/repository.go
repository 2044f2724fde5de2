package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hasanulhasan/url-shortify-backend/internal/database"
	"github.com/hasanulhasan/url-shortify-backend/internal/models"
)

type linkRecord struct {
	ID          int64     `db:"id"`
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	OwnerID     string    `db:"owner_id"`
	Clicks      int64     `db:"clicks"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *linkRecord) ToURL() *models.URL {
	return &models.URL{
		ID:          r.ID,
		ShortCode:   r.ShortCode,
		OriginalURL: r.OriginalURL,
		OwnerID:     r.OwnerID,
		Clicks:      r.Clicks,
		CreatedAt:   r.CreatedAt,
	}
}

type clickEventRecord struct {
	OccurredAt time.Time `db:"occurred_at"`
	IPAddress  string    `db:"ip_address"`
	UserAgent  string    `db:"user_agent"`
	Referrer   string    `db:"referrer"`
}

func (r *clickEventRecord) ToClickEvent() models.ClickEvent {
	return models.ClickEvent{
		OccurredAt: r.OccurredAt,
		IPAddress:  r.IPAddress,
		UserAgent:  r.UserAgent,
		Referrer:   r.Referrer,
	}
}

// LinkRepository persists shortened URLs and their click events.
type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{
		db: db,
	}
}

// Create inserts a new link, relying on the unique index on short_code to
// reject duplicates atomically.
func (r *LinkRepository) Create(ctx context.Context, shortCode, originalURL, ownerID string) (*models.URL, error) {
	const op = "database.postgres.LinkRepository.Create"

	rec := new(linkRecord)
	query := `INSERT INTO links(short_code, original_url, owner_id)
		VALUES ($1, $2, $3)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode, originalURL, ownerID)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create link record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// GetByShortCode retrieves a link by its short code without touching any
// counters. The redirect path stays read-only here; click accounting goes
// through RecordClick.
func (r *LinkRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.LinkRepository.GetByShortCode"

	rec := new(linkRecord)
	query := `SELECT * FROM links WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// RecordClick increments the click counter and appends one click event in a
// single transaction, so the counter never drifts from the event log.
func (r *LinkRepository) RecordClick(ctx context.Context, shortCode string, event models.ClickEvent) error {
	const op = "database.postgres.LinkRepository.RecordClick"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	var linkID int64
	query := `UPDATE links
		SET clicks = clicks + 1
		WHERE short_code = $1
		RETURNING id`

	if err := tx.GetContext(ctx, &linkID, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return fmt.Errorf("%s: failed to increment clicks: %w", op, err)
	}

	query = `INSERT INTO click_events(link_id, occurred_at, ip_address, user_agent, referrer)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.ExecContext(ctx, query, linkID, event.OccurredAt, event.IPAddress, event.UserAgent, event.Referrer); err != nil {
		return fmt.Errorf("%s: failed to insert click event: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

// GetStatsOwned retrieves a link and its click events, filtered by owner.
// A code that exists but belongs to someone else yields the same
// ErrURLNotFound as a missing one.
func (r *LinkRepository) GetStatsOwned(ctx context.Context, shortCode, ownerID string) (*models.URL, error) {
	const op = "database.postgres.LinkRepository.GetStatsOwned"

	rec := new(linkRecord)
	query := `SELECT * FROM links WHERE short_code = $1 AND owner_id = $2`

	err := r.db.GetContext(ctx, rec, query, shortCode, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	var eventRecs []clickEventRecord
	query = `SELECT occurred_at, ip_address, user_agent, referrer
		FROM click_events
		WHERE link_id = $1
		ORDER BY id`

	if err := r.db.SelectContext(ctx, &eventRecs, query, rec.ID); err != nil {
		return nil, fmt.Errorf("%s: failed to get click events: %w", op, err)
	}

	url := rec.ToURL()
	for _, eventRec := range eventRecs {
		url.ClickEvents = append(url.ClickEvents, eventRec.ToClickEvent())
	}

	return url, nil
}

// DeleteOwned removes a link, filtered by owner. Click events go with it via
// the cascading foreign key.
func (r *LinkRepository) DeleteOwned(ctx context.Context, shortCode, ownerID string) error {
	const op = "database.postgres.LinkRepository.DeleteOwned"

	query := `DELETE FROM links WHERE short_code = $1 AND owner_id = $2`

	res, err := r.db.ExecContext(ctx, query, shortCode, ownerID)
	if err != nil {
		return fmt.Errorf("%s: failed to delete link record: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	return nil
}

// ListByOwner returns a page of an owner's links, newest first, together with
// the total number of matches. Search matches the short code or original URL.
func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID, search string, limit, offset int) ([]models.URL, int64, error) {
	const op = "database.postgres.LinkRepository.ListByOwner"

	pattern := "%" + search + "%"

	var total int64
	query := `SELECT count(*) FROM links
		WHERE owner_id = $1 AND (short_code ILIKE $2 OR original_url ILIKE $2)`

	if err := r.db.GetContext(ctx, &total, query, ownerID, pattern); err != nil {
		return nil, 0, fmt.Errorf("%s: failed to count link records: %w", op, err)
	}

	var recs []linkRecord
	query = `SELECT * FROM links
		WHERE owner_id = $1 AND (short_code ILIKE $2 OR original_url ILIKE $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	if err := r.db.SelectContext(ctx, &recs, query, ownerID, pattern, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%s: failed to list link records: %w", op, err)
	}

	urls := make([]models.URL, 0, len(recs))
	for _, rec := range recs {
		urls = append(urls, *rec.ToURL())
	}

	return urls, total, nil
}

// OwnerStats aggregates an owner's links for the dashboard: totals, clicks
// per day since the given time, and the top links by click count.
func (r *LinkRepository) OwnerStats(ctx context.Context, ownerID string, since time.Time, topN int) (*models.OwnerStats, error) {
	const op = "database.postgres.LinkRepository.OwnerStats"

	stats := new(models.OwnerStats)
	query := `SELECT count(*), coalesce(sum(clicks), 0)
		FROM links
		WHERE owner_id = $1`

	row := r.db.QueryRowxContext(ctx, query, ownerID)
	if err := row.Scan(&stats.TotalURLs, &stats.TotalClicks); err != nil {
		return nil, fmt.Errorf("%s: failed to aggregate links: %w", op, err)
	}

	query = `SELECT date_trunc('day', ce.occurred_at) AS day, count(*) AS clicks
		FROM click_events ce
		JOIN links l ON l.id = ce.link_id
		WHERE l.owner_id = $1 AND ce.occurred_at >= $2
		GROUP BY day
		ORDER BY day`

	rows, err := r.db.QueryxContext(ctx, query, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to aggregate click events: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var day models.DayClicks
		if err := rows.Scan(&day.Day, &day.Clicks); err != nil {
			return nil, fmt.Errorf("%s: failed to scan day clicks: %w", op, err)
		}
		stats.ClicksByDay = append(stats.ClicksByDay, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to iterate day clicks: %w", op, err)
	}

	var recs []linkRecord
	query = `SELECT * FROM links
		WHERE owner_id = $1
		ORDER BY clicks DESC, created_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &recs, query, ownerID, topN); err != nil {
		return nil, fmt.Errorf("%s: failed to get top links: %w", op, err)
	}

	for _, rec := range recs {
		stats.TopURLs = append(stats.TopURLs, *rec.ToURL())
	}

	return stats, nil
}
