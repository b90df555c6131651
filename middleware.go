package main

import (
	"net/http"
	"strings"
	"time"

	"finance-analytics-backend/internal/analytics"
	"finance-analytics-backend/internal/logging"
	"finance-analytics-backend/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ownerHeader     = "X-User-ID"
	ownerQueryParam = "userId"
	requestIDHeader = "X-Request-ID"

	ownerContextKey     = "ownerID"
	requestIDContextKey = "requestID"
)

// newRouter wires middleware and routes. metricsHandler may be nil.
func newRouter(s *Server, corsOrigins []string, metricsHandler http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(accessLog(s.logger))
	r.Use(httpMetrics(s.metrics))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", ownerHeader, requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.healthCheck)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api := r.Group("/api", requireOwner())
	api.POST("/analytics/data", s.getAnalytics)
	api.POST("/analytics/categories", s.getCategorySpends)
	api.GET("/analytics/trends", s.getMonthlyTrends)
	api.GET("/forecast/projections", s.getForecastProjections)

	return r
}

// requestID propagates the caller's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDContextKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requireOwner resolves the owner id forwarded by the upstream auth layer and
// rejects the request before any data access when it is missing.
func requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader(ownerHeader))
		if owner == "" {
			owner = strings.TrimSpace(c.Query(ownerQueryParam))
		}
		if owner == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": analytics.ErrUnauthenticated.Error()})
			return
		}
		c.Set(ownerContextKey, owner)
		c.Next()
	}
}

func accessLog(logger *logging.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.String("client_ip", c.ClientIP()),
		}
		if owner := c.GetString(ownerContextKey); owner != "" {
			fields = append(fields, logging.Owner(owner))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

func httpMetrics(collector metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		collector.RecordHTTPRequest(route, c.Writer.Status(), time.Since(start))
	}
}
