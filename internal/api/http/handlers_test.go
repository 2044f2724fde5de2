package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/hasanulhasan/url-shortify-backend/internal/database"
	"github.com/hasanulhasan/url-shortify-backend/internal/models"
	"github.com/hasanulhasan/url-shortify-backend/internal/service"
	"github.com/hasanulhasan/url-shortify-backend/pkg/response"
)

type MockURLService struct {
	mock.Mock
}

func (s *MockURLService) ShortenURL(ctx context.Context, owner models.Identity, originalURL, customCode string) (*models.URL, error) {
	args := s.Called(ctx, owner, originalURL, customCode)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) ResolveShortCode(ctx context.Context, shortCode string, event models.ClickEvent) (*models.URL, error) {
	args := s.Called(ctx, shortCode, event)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) GetURLStats(ctx context.Context, owner models.Identity, shortCode string) (*models.URL, error) {
	args := s.Called(ctx, owner, shortCode)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) DeleteURL(ctx context.Context, owner models.Identity, shortCode string) error {
	args := s.Called(ctx, owner, shortCode)
	return args.Error(0)
}

func (s *MockURLService) ListURLs(ctx context.Context, owner models.Identity, search string, page, limit int) ([]models.URL, int64, error) {
	args := s.Called(ctx, owner, search, page, limit)
	urls, _ := args.Get(0).([]models.URL)
	return urls, args.Get(1).(int64), args.Error(2)
}

func (s *MockURLService) GetDashboardStats(ctx context.Context, owner models.Identity) (*models.OwnerStats, error) {
	args := s.Called(ctx, owner)
	stats, _ := args.Get(0).(*models.OwnerStats)
	return stats, args.Error(1)
}

const testBaseURL = "http://sho.rt"

var testJWTSecret = []byte("test-secret")

type HandlersTestSuite struct {
	suite.Suite
	logger     *httplog.Logger
	owner      models.Identity
	urlSvcMock *MockURLService
	server     *httptest.Server
	e          *httpexpect.Expect
}

func (suite *HandlersTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
	suite.owner = models.Identity{UserID: "user1", Tier: "free"}
}

func (suite *HandlersTestSuite) SetupSubTest() {
	suite.urlSvcMock = new(MockURLService)
	router := NewRouter(suite.logger, suite.urlSvcMock, testBaseURL, testJWTSecret)
	suite.server = httptest.NewServer(router)
	suite.e = httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  suite.server.URL,
		Reporter: httpexpect.NewAssertReporter(suite.T()),
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})
}

func (suite *HandlersTestSuite) TearDownSubTest() {
	suite.urlSvcMock.AssertExpectations(suite.T())
	suite.server.Close()
}

func (suite *HandlersTestSuite) token(identity models.Identity) string {
	claims := identityClaims{
		Tier: identity.Tier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTSecret)
	suite.Require().NoError(err)

	return token
}

func (suite *HandlersTestSuite) TestPing() {
	const path = "/api/v1/ping"

	suite.Run("success", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			Text().IsEqual("pong\n")
	})
}

func (suite *HandlersTestSuite) TestShortenURL() {
	const path = "/api/v1/shorten"

	suite.Run("missing token", func() {
		suite.e.POST(path).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusUnauthorized).
			JSON().Object().
			HasValue("status", response.StatusError)
	})

	suite.Run("garbage token", func() {
		suite.e.POST(path).
			WithHeader("Authorization", "Bearer not-a-token").
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusUnauthorized).
			JSON().Object().
			HasValue("status", response.StatusError)
	})

	suite.Run("empty request body", func() {
		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.EmptyRequestBodyResponse.Message)
	})

	suite.Run("validation error on custom code", func() {
		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			WithJSON(map[string]string{
				"url":         "https://example.com",
				"custom_code": "ab!",
			}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("status", response.StatusError).
			ContainsKey("details")
	})

	suite.Run("invalid url", func() {
		suite.urlSvcMock.
			On("ShortenURL", mock.Anything, suite.owner, "not a url", "").
			Once().
			Return(nil, service.ErrInvalidURL)

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			WithJSON(map[string]string{"url": "not a url"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("message", response.InvalidURLResponse.Message)
	})

	suite.Run("quota exceeded", func() {
		suite.urlSvcMock.
			On("ShortenURL", mock.Anything, suite.owner, "https://example.com", "").
			Once().
			Return(nil, service.ErrQuotaExceeded)

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusForbidden).
			JSON().Object().
			HasValue("message", response.QuotaExceededResponse.Message)
	})

	suite.Run("custom code taken", func() {
		suite.urlSvcMock.
			On("ShortenURL", mock.Anything, suite.owner, "https://example.com", "abc123").
			Once().
			Return(nil, service.ErrCodeTaken)

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			WithJSON(map[string]string{
				"url":         "https://example.com",
				"custom_code": "abc123",
			}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("message", response.CodeTakenResponse.Message)
	})

	suite.Run("allocation exhausted", func() {
		suite.urlSvcMock.
			On("ShortenURL", mock.Anything, suite.owner, "https://example.com", "").
			Once().
			Return(nil, service.ErrMaxRetriesExceeded)

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("success", func() {
		createdAt := time.Now().UTC().Truncate(time.Second)

		suite.urlSvcMock.
			On("ShortenURL", mock.Anything, suite.owner, "https://example.com", "").
			Once().
			Return(&models.URL{
				ShortCode:   "abc123",
				OriginalURL: "https://example.com",
				OwnerID:     "user1",
				CreatedAt:   createdAt,
			}, nil)

		data := suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object()

		data.HasValue("short_code", "abc123")
		data.HasValue("original_url", "https://example.com")
		data.HasValue("short_url", testBaseURL+"/abc123")
	})
}

func (suite *HandlersTestSuite) TestRedirect() {
	suite.Run("url not found", func() {
		suite.urlSvcMock.
			On("ResolveShortCode", mock.Anything, "missing", mock.Anything).
			Once().
			Return(nil, database.ErrURLNotFound)

		suite.e.GET("/missing").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("success issues redirect without waiting on analytics", func() {
		suite.urlSvcMock.
			On("ResolveShortCode", mock.Anything, "abc123", mock.MatchedBy(func(event models.ClickEvent) bool {
				return event.UserAgent != "" && event.IPAddress != ""
			})).
			Once().
			Return(&models.URL{
				ShortCode:   "abc123",
				OriginalURL: "https://example.com",
			}, nil)

		suite.e.GET("/abc123").
			WithHeader("User-Agent", "httpexpect").
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com")
	})
}

func (suite *HandlersTestSuite) TestGetURLStats() {
	const path = "/api/v1/urls/abc123/stats"

	suite.Run("missing token", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusUnauthorized)
	})

	suite.Run("missing or not owned", func() {
		suite.urlSvcMock.
			On("GetURLStats", mock.Anything, suite.owner, "abc123").
			Once().
			Return(nil, database.ErrURLNotFound)

		suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("success", func() {
		suite.urlSvcMock.
			On("GetURLStats", mock.Anything, suite.owner, "abc123").
			Once().
			Return(&models.URL{
				ShortCode:   "abc123",
				OriginalURL: "https://example.com",
				Clicks:      2,
				ClickEvents: []models.ClickEvent{
					{IPAddress: "203.0.113.7", UserAgent: "curl/8.0", Referrer: "direct"},
					{IPAddress: "203.0.113.8", UserAgent: "curl/8.0", Referrer: "https://news.example"},
				},
			}, nil)

		data := suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object()

		data.HasValue("short_code", "abc123")
		data.HasValue("clicks", 2)
		data.Value("click_events").Array().Length().IsEqual(2)
	})
}

func (suite *HandlersTestSuite) TestDeleteURL() {
	const path = "/api/v1/urls/abc123"

	suite.Run("missing or not owned", func() {
		suite.urlSvcMock.
			On("DeleteURL", mock.Anything, suite.owner, "abc123").
			Once().
			Return(database.ErrURLNotFound)

		suite.e.DELETE(path).
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			Expect().
			Status(http.StatusNotFound)
	})

	suite.Run("success", func() {
		suite.urlSvcMock.
			On("DeleteURL", mock.Anything, suite.owner, "abc123").
			Once().
			Return(nil)

		suite.e.DELETE(path).
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", response.StatusSuccess)
	})
}

func (suite *HandlersTestSuite) TestListURLs() {
	const path = "/api/v1/dashboard/urls"

	suite.Run("success with pagination", func() {
		suite.urlSvcMock.
			On("ListURLs", mock.Anything, suite.owner, "example", 2, 10).
			Once().
			Return([]models.URL{
				{ID: 1, ShortCode: "abc123", OriginalURL: "https://example.com", Clicks: 5},
			}, int64(11), nil)

		data := suite.e.GET(path).
			WithQuery("page", 2).
			WithQuery("search", "example").
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			Value("data").Object()

		data.Value("urls").Array().Length().IsEqual(1)
		pagination := data.Value("pagination").Object()
		pagination.HasValue("page", 2)
		pagination.HasValue("total", 11)
		pagination.HasValue("pages", 2)
	})
}

func (suite *HandlersTestSuite) TestDashboardStats() {
	const path = "/api/v1/dashboard/stats"

	suite.Run("success", func() {
		suite.urlSvcMock.
			On("GetDashboardStats", mock.Anything, suite.owner).
			Once().
			Return(&models.OwnerStats{
				TotalURLs:   3,
				TotalClicks: 42,
				ClicksByDay: []models.DayClicks{
					{Day: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), Clicks: 7},
				},
				TopURLs: []models.URL{
					{ShortCode: "abc123", OriginalURL: "https://example.com", Clicks: 40},
				},
			}, nil)

		data := suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+suite.token(suite.owner)).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			Value("data").Object()

		data.HasValue("total_urls", 3)
		data.HasValue("total_clicks", 42)
		data.Value("recent_clicks").Array().Length().IsEqual(1)
		data.Value("top_urls").Array().Length().IsEqual(1)
	})
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
