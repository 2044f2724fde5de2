package http

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hasanulhasan/url-shortify-backend/internal/models"
)

// shortenRequest represents the request payload for shortening a URL. The
// original URL is only checked for presence and size here; well-formedness is
// decided after protocol normalization in the service layer.
type shortenRequest struct {
	URL        string `json:"url" validate:"required,max=2048"`
	CustomCode string `json:"custom_code" validate:"omitempty,shortcode"`
}

// shortenResponse represents the response payload for a freshly shortened URL.
type shortenResponse struct {
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	ShortURL    string    `json:"short_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// urlResponse represents one of the owner's links in listings.
type urlResponse struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	ShortURL    string    `json:"short_url,omitempty"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"created_at"`
}

func toURLResponse(url *models.URL, baseURL string) urlResponse {
	resp := urlResponse{
		ID:          url.ID,
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		Clicks:      url.Clicks,
		CreatedAt:   url.CreatedAt,
	}

	if baseURL != "" {
		resp.ShortURL = baseURL + "/" + url.ShortCode
	}

	return resp
}

// clickEventResponse represents one recorded visit.
type clickEventResponse struct {
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Referrer  string    `json:"referrer"`
}

// urlStatsResponse represents a link together with its full click history.
type urlStatsResponse struct {
	ShortCode   string               `json:"short_code"`
	OriginalURL string               `json:"original_url"`
	Clicks      int64                `json:"clicks"`
	CreatedAt   time.Time            `json:"created_at"`
	ClickEvents []clickEventResponse `json:"click_events"`
}

func toURLStatsResponse(url *models.URL) urlStatsResponse {
	resp := urlStatsResponse{
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		Clicks:      url.Clicks,
		CreatedAt:   url.CreatedAt,
		ClickEvents: make([]clickEventResponse, 0, len(url.ClickEvents)),
	}

	for _, event := range url.ClickEvents {
		resp.ClickEvents = append(resp.ClickEvents, clickEventResponse{
			Timestamp: event.OccurredAt,
			IPAddress: event.IPAddress,
			UserAgent: event.UserAgent,
			Referrer:  event.Referrer,
		})
	}

	return resp
}

// paginationResponse describes the page of a listing.
type paginationResponse struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// urlListResponse represents a page of the owner's links.
type urlListResponse struct {
	URLs       []urlResponse      `json:"urls"`
	Pagination paginationResponse `json:"pagination"`
}

// dayClicksResponse represents the clicks an owner received on one day.
type dayClicksResponse struct {
	Day    string `json:"day"`
	Clicks int64  `json:"clicks"`
}

// dashboardStatsResponse represents the owner's aggregate numbers.
type dashboardStatsResponse struct {
	TotalURLs    int64               `json:"total_urls"`
	TotalClicks  int64               `json:"total_clicks"`
	RecentClicks []dayClicksResponse `json:"recent_clicks"`
	TopURLs      []urlResponse       `json:"top_urls"`
}

func toDashboardStatsResponse(stats *models.OwnerStats, baseURL string) dashboardStatsResponse {
	resp := dashboardStatsResponse{
		TotalURLs:    stats.TotalURLs,
		TotalClicks:  stats.TotalClicks,
		RecentClicks: make([]dayClicksResponse, 0, len(stats.ClicksByDay)),
		TopURLs:      make([]urlResponse, 0, len(stats.TopURLs)),
	}

	for _, day := range stats.ClicksByDay {
		resp.RecentClicks = append(resp.RecentClicks, dayClicksResponse{
			Day:    day.Day.Format("2006-01-02"),
			Clicks: day.Clicks,
		})
	}

	for _, url := range stats.TopURLs {
		resp.TopURLs = append(resp.TopURLs, toURLResponse(&url, baseURL))
	}

	return resp
}

var shortCodeRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{6,8}$`)

// getValidate initializes the validator used for request payloads. Field
// names in error details follow the JSON tags, and the shortcode tag accepts
// the same URL-safe alphabet the generator draws from.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("shortcode", func(fl validator.FieldLevel) bool {
		return shortCodeRegexp.MatchString(fl.Field().String())
	})

	return validate
}
