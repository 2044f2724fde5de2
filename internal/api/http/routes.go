// Package http exposes the URL shortener over HTTP: the public redirect
// route, the authenticated shortening and stats API, and the dashboard read
// surface.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"

	"github.com/hasanulhasan/url-shortify-backend/internal/models"
)

// URLService defines the interface for the core URL shortening business logic.
type URLService interface {
	// ShortenURL allocates a short code for the original URL on behalf of the
	// owner, honoring an optional caller-chosen custom code.
	ShortenURL(ctx context.Context, owner models.Identity, originalURL, customCode string) (*models.URL, error)

	// ResolveShortCode retrieves the destination for a short code and records
	// the click event asynchronously.
	ResolveShortCode(ctx context.Context, shortCode string, event models.ClickEvent) (*models.URL, error)

	// GetURLStats retrieves one of the owner's links with its click history.
	GetURLStats(ctx context.Context, owner models.Identity, shortCode string) (*models.URL, error)

	// DeleteURL removes one of the owner's links and releases the quota slot.
	DeleteURL(ctx context.Context, owner models.Identity, shortCode string) error

	// ListURLs returns a page of the owner's links plus the total count.
	ListURLs(ctx context.Context, owner models.Identity, search string, page, limit int) ([]models.URL, int64, error)

	// GetDashboardStats aggregates the owner's links for the dashboard.
	GetDashboardStats(ctx context.Context, owner models.Identity) (*models.OwnerStats, error)
}

// NewRouter initializes and returns a new HTTP router with all routes and
// middleware configured.
func NewRouter(logger *httplog.Logger, urlSvc URLService, baseURL string, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/{shortCode}", handleRedirect(urlSvc))

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Group(func(r chi.Router) {
			r.Use(authenticate(jwtSecret))

			r.Post("/shorten", handleShortenURL(urlSvc, validate, baseURL))

			r.Route("/urls/{shortCode}", func(r chi.Router) {
				r.Get("/stats", handleGetURLStats(urlSvc))
				r.Delete("/", handleDeleteURL(urlSvc))
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/urls", handleListURLs(urlSvc, baseURL))
				r.Get("/stats", handleDashboardStats(urlSvc, baseURL))
			})
		})
	})

	return r
}
