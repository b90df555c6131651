package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finance-analytics-backend/internal/analytics"
	"finance-analytics-backend/internal/cache"
	"finance-analytics-backend/internal/logging"
	"finance-analytics-backend/internal/metrics"
	"finance-analytics-backend/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultTrendMonths    = 12
	defaultForecastMonths = 3
	healthCheckTimeout    = 3 * time.Second
)

var (
	errInvalidOrder     = errors.New("order must be asc or desc")
	errInvalidMinAmount = errors.New("minAmount must be a decimal number")
)

// pinger is implemented by dependencies that can report reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies shared by the HTTP handlers.
type Server struct {
	engine    *analytics.Engine
	store     *store.ResilientStore
	loader    *cache.Loader
	logger    *logging.Logger
	metrics   metrics.Collector
	backend   string
	cacheName string
	// cachePing is nil for caches living in process.
	cachePing pinger
	now       func() time.Time
	loc       *time.Location
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:  "healthy",
		Backend: s.backend,
		Circuit: s.store.State().String(),
		Cache:   s.cacheName,
	}
	if err := s.store.Ping(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	// Requests keep working without the cache, so an unreachable cache only
	// degrades the service.
	if s.cachePing != nil {
		if err := s.cachePing.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.CacheError = err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// getAnalytics handles POST /api/analytics/data.
func (s *Server) getAnalytics(c *gin.Context) {
	filters, ok := s.bindFilters(c)
	if !ok {
		return
	}
	owner := c.GetString(ownerContextKey)

	data, err := cache.Load(c.Request.Context(), s.loader, owner, s.cacheKey("analytics", filtersKey(filters)),
		func(ctx context.Context) (*analytics.AnalyticsData, error) {
			return s.engine.GetAnalytics(ctx, owner, filters)
		})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// getCategorySpends handles POST /api/analytics/categories. The cached
// breakdown is stored unsorted; order and threshold are applied per request.
func (s *Server) getCategorySpends(c *gin.Context) {
	ascending := false
	switch strings.ToLower(c.DefaultQuery("order", "desc")) {
	case "asc":
		ascending = true
	case "desc":
	default:
		s.writeError(c, &analytics.ValidationError{Field: "order", Err: errInvalidOrder})
		return
	}

	var minAmount *decimal.Decimal
	if raw := strings.TrimSpace(c.Query("minAmount")); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			s.writeError(c, &analytics.ValidationError{Field: "minAmount", Err: errInvalidMinAmount})
			return
		}
		minAmount = &d
	}

	filters, ok := s.bindFilters(c)
	if !ok {
		return
	}
	owner := c.GetString(ownerContextKey)

	spends, err := cache.Load(c.Request.Context(), s.loader, owner, s.cacheKey("categories", filtersKey(filters)),
		func(ctx context.Context) ([]analytics.CategorySpend, error) {
			return s.engine.GetCategorySpends(ctx, owner, filters)
		})
	if err != nil {
		s.writeError(c, err)
		return
	}

	if minAmount != nil {
		spends = analytics.FilterCategorySpendsByMinAmount(spends, *minAmount)
	}
	c.JSON(http.StatusOK, analytics.SortCategorySpendsByAmount(spends, ascending))
}

// getMonthlyTrends handles GET /api/analytics/trends.
func (s *Server) getMonthlyTrends(c *gin.Context) {
	months, err := strconv.Atoi(c.Query("months"))
	if err != nil {
		months = defaultTrendMonths
	}
	owner := c.GetString(ownerContextKey)

	trends, err := cache.Load(c.Request.Context(), s.loader, owner, s.cacheKey("trends", strconv.Itoa(months)),
		func(ctx context.Context) ([]analytics.MonthlyTrend, error) {
			return s.engine.GetMonthlyTrends(ctx, owner, months)
		})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trends)
}

// getForecastProjections handles GET /api/forecast/projections.
func (s *Server) getForecastProjections(c *gin.Context) {
	months := defaultForecastMonths
	if raw := c.Query("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(c, &analytics.ValidationError{Field: "months", Err: analytics.ErrInvalidMonths})
			return
		}
		months = n
	}
	if err := analytics.ValidateForecastMonths(months); err != nil {
		s.writeError(c, err)
		return
	}
	owner := c.GetString(ownerContextKey)

	projections, err := cache.Load(c.Request.Context(), s.loader, owner, s.cacheKey("forecast", strconv.Itoa(months)),
		func(ctx context.Context) ([]analytics.ForecastProjection, error) {
			return s.engine.GetForecastProjections(ctx, owner, months)
		})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, projections)
}

func (s *Server) bindFilters(c *gin.Context) (analytics.AnalyticsFilters, bool) {
	var req AnalyticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return analytics.AnalyticsFilters{}, false
	}
	filters, err := req.Filters()
	if err != nil {
		s.writeError(c, err)
		return analytics.AnalyticsFilters{}, false
	}
	return filters, true
}

// cacheKey scopes an entry to the current month, since trailing series and
// forecasts move when the month rolls over.
func (s *Server) cacheKey(kind string, parts ...string) string {
	month := s.now().In(s.loc).Format("2006-01")
	return cache.Key(append([]string{kind, month}, parts...)...)
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()

	switch status {
	case http.StatusServiceUnavailable:
		message = "analytics store temporarily unavailable"
	case http.StatusInternalServerError:
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.Error(err),
		)
		message = "failed to compute analytics"
	}
	c.JSON(status, gin.H{"error": message})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case analytics.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, analytics.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
