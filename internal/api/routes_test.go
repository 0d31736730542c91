package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/es0612/health-insight-go/internal/cache"
	"github.com/es0612/health-insight-go/internal/config"
	"github.com/es0612/health-insight-go/internal/database"
	"github.com/es0612/health-insight-go/internal/middleware"
	"github.com/es0612/health-insight-go/internal/models"
	"github.com/es0612/health-insight-go/internal/services"
)

const (
	routesTestJWTSecret = "routes-test-secret"
	routesTestAdminKey  = "routes-test-admin-key"
)

// mockPoolAdapter adapts pgxmock.PgxPoolIface to the repository pool
// interface.
type mockPoolAdapter struct {
	mock pgxmock.PgxPoolIface
}

func (m *mockPoolAdapter) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return m.mock.QueryRow(ctx, sql, args...)
}

func (m *mockPoolAdapter) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return m.mock.Exec(ctx, sql, args...)
}

func (m *mockPoolAdapter) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return m.mock.Query(ctx, sql, args...)
}

// routerFixture wires SetupRoutes with a pgxmock-backed repository and a
// miniredis-backed insight cache, the closest the tests get to a running
// server.
type routerFixture struct {
	router *gin.Engine
	mock   pgxmock.PgxPoolIface
	auth   *middleware.AuthMiddleware
}

func routesTestInsightConfig() config.InsightConfig {
	return config.InsightConfig{
		DefaultWindow:      "daily",
		MaxLagDays:         14,
		DefaultSensitivity: "medium",
		AnomalyThreshold:   2.0,
		BaselineDays:       30,
		CacheTTL:           "15m",
		AlertMinSeverity:   "high",
	}
}

func newRouterFixture(t *testing.T, withCache bool) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	repo := database.NewHealthRecordRepository(&mockPoolAdapter{mock: mock})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var insightCache *cache.RedisInsightCache
	var redisClient *database.RedisClient
	if withCache {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		insightCache = cache.NewRedisInsightCache(client, time.Minute, logger)
		redisClient = &database.RedisClient{Client: client}
	}

	var serviceCache services.InsightCache
	if insightCache != nil {
		serviceCache = insightCache
	}

	cfg := routesTestInsightConfig()
	insights := services.NewInsightService(repo, serviceCache, cfg, logger)
	summaries := services.NewSummaryService(repo, serviceCache, logger)
	notifier, err := services.NewAlertNotifier(config.TelegramConfig{}, cfg.MinSeverity(), logger)
	require.NoError(t, err)

	authMiddleware := middleware.NewAuthMiddleware(routesTestJWTSecret)
	keyHash, err := bcrypt.GenerateFromPassword([]byte(routesTestAdminKey), bcrypt.MinCost)
	require.NoError(t, err)
	adminMiddleware := middleware.NewAdminMiddleware(config.SecurityConfig{AdminKeyHash: string(keyHash)})

	router := gin.New()
	SetupRoutes(router, nil, redisClient, insights, summaries, notifier, repo, insightCache, authMiddleware, adminMiddleware, logger)

	return &routerFixture{router: router, mock: mock, auth: authMiddleware}
}

func (f *routerFixture) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := f.auth.GenerateToken(userID.String(), "user@example.com", time.Hour)
	require.NoError(t, err)
	return token
}

func (f *routerFixture) get(t *testing.T, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func healthRecordColumns() []string {
	return []string{"id", "user_id", "kind", "value", "unit", "recorded_at", "source", "created_at"}
}

// seriesRows builds one mocked daily series, oldest row first to match the
// repository's ORDER BY.
func seriesRows(userID uuid.UUID, kind models.MetricKind, unit string, start, step float64, n int) *pgxmock.Rows {
	rows := pgxmock.NewRows(healthRecordColumns())
	base := time.Now().UTC().AddDate(0, 0, -n)
	for i := 0; i < n; i++ {
		recordedAt := base.AddDate(0, 0, i)
		rows.AddRow(uuid.New(), userID, kind, decimal.NewFromFloat(start+step*float64(i)), unit, recordedAt, models.SourceManual, recordedAt)
	}
	return rows
}

func TestSetupRoutes_HealthEndpoint(t *testing.T) {
	f := newRouterFixture(t, true)

	w := f.get(t, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "degraded", response.Status)
	assert.Contains(t, response.Services["database"], "unhealthy")
	assert.Equal(t, "healthy", response.Services["redis"])

	// HEAD is registered alongside GET for load balancer probes
	req := httptest.NewRequest(http.MethodHead, "/health", nil)
	head := httptest.NewRecorder()
	f.router.ServeHTTP(head, req)
	assert.Equal(t, http.StatusServiceUnavailable, head.Code)
}

func TestSetupRoutes_LivenessAndReadiness(t *testing.T) {
	f := newRouterFixture(t, true)

	live := f.get(t, "/live", nil)
	assert.Equal(t, http.StatusOK, live.Code)
	assert.Contains(t, live.Body.String(), "alive")

	ready := f.get(t, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, ready.Code)
	assert.Contains(t, ready.Body.String(), `"ready":false`)
}

func TestSetupRoutes_RequiresAuthentication(t *testing.T) {
	f := newRouterFixture(t, true)

	protected := []string{
		"/api/v1/insights/correlation",
		"/api/v1/insights/correlations",
		"/api/v1/insights/lag",
		"/api/v1/insights/patterns",
		"/api/v1/insights/anomalies",
		"/api/v1/insights/summary",
		"/api/v1/records",
	}

	for _, target := range protected {
		w := f.get(t, target, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "expected 401 for %s", target)
		assert.Contains(t, w.Body.String(), "Authorization header required")
	}

	w := f.get(t, "/api/v1/insights/summary", bearer("not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid token")
}

func TestSetupRoutes_SummaryEndToEnd(t *testing.T) {
	f := newRouterFixture(t, true)
	userID := uuid.New()
	token := f.token(t, userID)

	f.mock.ExpectQuery(regexp.QuoteMeta("AND kind = $2 AND")).
		WithArgs(userID, "weight", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(seriesRows(userID, models.MetricWeight, "kg", 70, 1, 10))

	w := f.get(t, "/api/v1/insights/summary?kind=weight", bearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary models.SeriesSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, models.MetricWeight, summary.Kind)
	assert.Equal(t, 10, summary.SampleSize)
	assert.InDelta(t, 79, summary.Latest, 0.0001)
	assert.Equal(t, "rising", summary.Trend)
	assert.NoError(t, f.mock.ExpectationsWereMet())

	// Second request is served from the insight cache, no further queries
	cached := f.get(t, "/api/v1/insights/summary?kind=weight", bearer(token))
	require.Equal(t, http.StatusOK, cached.Code)

	var cachedSummary models.SeriesSummary
	require.NoError(t, json.Unmarshal(cached.Body.Bytes(), &cachedSummary))
	assert.Equal(t, summary.SampleSize, cachedSummary.SampleSize)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSetupRoutes_CorrelationEndToEnd(t *testing.T) {
	f := newRouterFixture(t, true)
	userID := uuid.New()
	token := f.token(t, userID)

	f.mock.ExpectQuery(regexp.QuoteMeta("AND kind = $2 AND")).
		WithArgs(userID, "weight", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(seriesRows(userID, models.MetricWeight, "kg", 70, 0.5, 10))
	f.mock.ExpectQuery(regexp.QuoteMeta("AND kind = $2 AND")).
		WithArgs(userID, "steps", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(seriesRows(userID, models.MetricSteps, "count", 5000, 100, 10))

	w := f.get(t, "/api/v1/insights/correlation?primary=weight&secondary=steps", bearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result models.CorrelationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.MetricWeight, result.PrimaryKind)
	assert.Equal(t, models.MetricSteps, result.SecondaryKind)
	assert.InDelta(t, 1.0, result.Coefficient, 0.01)
	assert.Equal(t, models.DirectionPositive, result.Direction)
	assert.Equal(t, 10, result.SampleSize)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSetupRoutes_RecordsValidation(t *testing.T) {
	f := newRouterFixture(t, true)
	token := f.token(t, uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request format")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSetupRoutes_AdminCacheEndpoints(t *testing.T) {
	f := newRouterFixture(t, true)

	w := f.get(t, "/api/v1/admin/cache/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.get(t, "/api/v1/admin/cache/stats", map[string]string{"X-API-Key": "wrong-key"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.get(t, "/api/v1/admin/cache/stats", map[string]string{"X-API-Key": routesTestAdminKey})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	// Admin key is also accepted as a bearer token
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/clear", nil)
	req.Header.Set("Authorization", "Bearer "+routesTestAdminKey)
	clear := httptest.NewRecorder()
	f.router.ServeHTTP(clear, req)
	assert.Equal(t, http.StatusOK, clear.Code)
	assert.Contains(t, clear.Body.String(), "cleared successfully")
}

func TestSetupRoutes_AdminCacheRoutesAbsentWithoutRedis(t *testing.T) {
	f := newRouterFixture(t, false)

	w := f.get(t, "/api/v1/admin/cache/stats", map[string]string{"X-API-Key": routesTestAdminKey})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The rest of the API stays up without the cache
	live := f.get(t, "/live", nil)
	assert.Equal(t, http.StatusOK, live.Code)

	health := f.get(t, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, health.Code)
	assert.Contains(t, health.Body.String(), "not configured")
}
