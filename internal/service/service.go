// Package service contains the URL shortening business logic: short code
// allocation, redirect resolution with click tracking, quota admission and
// owner-scoped stats and deletion.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/hasanulhasan/url-shortify-backend/internal/database"
	"github.com/hasanulhasan/url-shortify-backend/internal/models"
)

var (
	// ErrInvalidURL is returned when the original URL is malformed even after
	// protocol normalization.
	ErrInvalidURL = errors.New("invalid original url")
	// ErrQuotaExceeded is returned when the owner has reached the URL ceiling
	// for their tier.
	ErrQuotaExceeded = errors.New("url quota exceeded")
	// ErrCodeTaken is returned when a caller-chosen custom code is already in
	// use. Custom codes are never retried with a substitute.
	ErrCodeTaken = errors.New("custom code already taken")
	// ErrMaxRetriesExceeded is returned when the maximum number of retries for
	// generating a unique short code is exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
)

// sentinel referrer recorded when a visitor arrives without a Referer header.
const directReferrer = "direct"

const (
	defaultShortCodeLength = 6
	defaultMaxAttempts     = 5
)

// LinkRepository defines the interface for working with links at the business
// logic layer. Implementations must enforce short code uniqueness atomically
// and report conflicts as database.ErrShortCodeExists.
type LinkRepository interface {
	// Create inserts a new link. Returns database.ErrShortCodeExists when the
	// short code is already in use.
	Create(ctx context.Context, shortCode, originalURL, ownerID string) (*models.URL, error)

	// GetByShortCode retrieves a link by its short code without side effects.
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// GetStatsOwned retrieves a link with its click events, filtered by owner.
	GetStatsOwned(ctx context.Context, shortCode, ownerID string) (*models.URL, error)

	// DeleteOwned removes a link, filtered by owner.
	DeleteOwned(ctx context.Context, shortCode, ownerID string) error

	// ListByOwner returns a page of an owner's links plus the total count.
	ListByOwner(ctx context.Context, ownerID, search string, limit, offset int) ([]models.URL, int64, error)

	// OwnerStats aggregates an owner's links for the dashboard.
	OwnerStats(ctx context.Context, ownerID string, since time.Time, topN int) (*models.OwnerStats, error)
}

// QuotaRepository maintains the advisory per-user URL counter.
type QuotaRepository interface {
	URLCount(ctx context.Context, userID string) (int64, error)
	Increment(ctx context.Context, userID string) error
	Decrement(ctx context.Context, userID string) error
}

// ClickSink accepts click events for eventual durable recording. Record must
// never block the caller.
type ClickSink interface {
	Record(shortCode string, event models.ClickEvent)
}

// Config holds the tunables of the URL service.
type Config struct {
	// ShortCodeLength is the length of generated short codes.
	ShortCodeLength int
	// MaxAttempts bounds the collision retry loop of the allocator.
	MaxAttempts int
	// QuotaLimits maps a tier name to its URL ceiling. Zero or absent means
	// unlimited.
	QuotaLimits map[string]int64
}

// URLService provides methods to manage URL shortening operations.
type URLService struct {
	links  LinkRepository
	quotas QuotaRepository
	clicks ClickSink
	logger *slog.Logger
	cfg    Config
}

// NewURLService creates a new URLService on top of the given repositories and
// click sink.
func NewURLService(links LinkRepository, quotas QuotaRepository, clicks ClickSink, logger *slog.Logger, cfg Config) *URLService {
	if cfg.ShortCodeLength <= 0 {
		cfg.ShortCodeLength = defaultShortCodeLength
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	return &URLService{
		links:  links,
		quotas: quotas,
		clicks: clicks,
		logger: logger,
		cfg:    cfg,
	}
}

var schemeRegexp = regexp.MustCompile(`(?i)^https?://`)

// normalizeURL prefixes the scheme when absent and checks that the result is
// a well-formed URL with a dotted host. Normalization happens once, at
// allocation time; resolved URLs are returned as stored.
func normalizeURL(originalURL string) (string, error) {
	originalURL = strings.TrimSpace(originalURL)

	if !schemeRegexp.MatchString(originalURL) {
		originalURL = "https://" + originalURL
	}

	u, err := url.ParseRequestURI(originalURL)
	if err != nil || u.Host == "" || !strings.Contains(u.Host, ".") {
		return "", ErrInvalidURL
	}

	return originalURL, nil
}

// checkQuota rejects the allocation when the owner's counter has reached the
// tier ceiling. Tiers with no configured limit are unlimited.
func (s *URLService) checkQuota(ctx context.Context, owner models.Identity) error {
	const op = "service.URLService.checkQuota"

	limit := s.cfg.QuotaLimits[owner.Tier]
	if limit <= 0 {
		return nil
	}

	count, err := s.quotas.URLCount(ctx, owner.UserID)
	if err != nil {
		return fmt.Errorf("%s: failed to get url count: %w", op, err)
	}

	if count >= limit {
		return fmt.Errorf("%s: %w", op, ErrQuotaExceeded)
	}

	return nil
}

// allocate resolves a (customCode | generate) request into a stored, unique
// link. A custom code gets exactly one insert attempt; generated codes are
// retried on uniqueness conflicts only, up to the configured bound. Any other
// store failure aborts immediately so infrastructure faults aren't masked by
// retries.
func (s *URLService) allocate(ctx context.Context, owner models.Identity, originalURL, customCode string) (*models.URL, error) {
	const op = "service.URLService.allocate"

	if customCode != "" {
		url, err := s.links.Create(ctx, customCode, originalURL, owner.UserID)
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				return nil, fmt.Errorf("%s: %w", op, ErrCodeTaken)
			}

			return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
		}

		return url, nil
	}

	for i := 0; i < s.cfg.MaxAttempts; i++ {
		shortCode, err := gonanoid.New(s.cfg.ShortCodeLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		url, err := s.links.Create(ctx, shortCode, originalURL, owner.UserID)
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
		}

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ShortenURL normalizes and validates the original URL, checks the owner's
// quota and allocates a short code. The quota counter is incremented as a
// separate step after the link exists; a failure there leaves the link in
// place and is only logged, since the counter is advisory and reconcilable.
func (s *URLService) ShortenURL(ctx context.Context, owner models.Identity, originalURL, customCode string) (*models.URL, error) {
	const op = "service.URLService.ShortenURL"

	normalized, err := normalizeURL(originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.checkQuota(ctx, owner); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	url, err := s.allocate(ctx, owner, normalized, customCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.quotas.Increment(ctx, owner.UserID); err != nil {
		s.logger.Error("failed to increment url count",
			slog.String("user_id", owner.UserID),
			slog.Any("err", err),
		)
	}

	return url, nil
}

// ResolveShortCode looks up the destination for a short code and hands the
// click event to the sink. The lookup result is returned without waiting on
// the click write, so analytics never delays or fails a redirect.
func (s *URLService) ResolveShortCode(ctx context.Context, shortCode string, event models.ClickEvent) (*models.URL, error) {
	const op = "service.URLService.ResolveShortCode"

	url, err := s.links.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if event.Referrer == "" {
		event.Referrer = directReferrer
	}

	s.clicks.Record(shortCode, event)

	return url, nil
}

// GetURLStats retrieves a link with its click events. Links owned by someone
// else are indistinguishable from missing ones.
func (s *URLService) GetURLStats(ctx context.Context, owner models.Identity, shortCode string) (*models.URL, error) {
	const op = "service.URLService.GetURLStats"

	url, err := s.links.GetStatsOwned(ctx, shortCode, owner.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url, nil
}

// DeleteURL removes one of the owner's links and releases their quota slot.
// The decrement failure mode mirrors ShortenURL: logged, never surfaced.
func (s *URLService) DeleteURL(ctx context.Context, owner models.Identity, shortCode string) error {
	const op = "service.URLService.DeleteURL"

	if err := s.links.DeleteOwned(ctx, shortCode, owner.UserID); err != nil {
		return fmt.Errorf("%s: failed to delete url: %w", op, err)
	}

	if err := s.quotas.Decrement(ctx, owner.UserID); err != nil {
		s.logger.Error("failed to decrement url count",
			slog.String("user_id", owner.UserID),
			slog.Any("err", err),
		)
	}

	return nil
}

// ListURLs returns a page of the owner's links, newest first.
func (s *URLService) ListURLs(ctx context.Context, owner models.Identity, search string, page, limit int) ([]models.URL, int64, error) {
	const op = "service.URLService.ListURLs"

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	urls, total, err := s.links.ListByOwner(ctx, owner.UserID, search, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, total, nil
}

const (
	dashboardWindow = 7 * 24 * time.Hour
	dashboardTopN   = 5
)

// GetDashboardStats aggregates the owner's links: total URLs and clicks,
// clicks per day over the last week and the top links by click count.
func (s *URLService) GetDashboardStats(ctx context.Context, owner models.Identity) (*models.OwnerStats, error) {
	const op = "service.URLService.GetDashboardStats"

	since := time.Now().Add(-dashboardWindow)

	stats, err := s.links.OwnerStats(ctx, owner.UserID, since, dashboardTopN)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get dashboard stats: %w", op, err)
	}

	return stats, nil
}
