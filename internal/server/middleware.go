package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtrwslv/TicTacToeBot/internal/auth"
	"github.com/rtrwslv/TicTacToeBot/internal/metrics"
	"github.com/rtrwslv/TicTacToeBot/internal/obslog"
)

const correlationHeader = "X-Correlation-Id"

// CorrelationID honors an inbound X-Correlation-Id or generates one, echoes
// it on the response and logs the request around the handler chain.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(correlationHeader))
		if id == "" {
			id = strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		c.Set("correlation_id", id)
		c.Header(correlationHeader, id)

		start := time.Now()
		c.Next()

		obslog.L().Info("http_request",
			zap.String("correlation_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// Metrics counts requests and observes route latency, split into client
// and server error counters.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/metrics" || path == "/favicon.ico" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		labels := []string{c.Request.Method, path, strconv.Itoa(status)}
		metrics.RequestCount.WithLabelValues(labels...).Inc()
		metrics.RoutesLatency.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		switch {
		case status >= 500:
			metrics.ServerErrorCount.WithLabelValues(labels...).Inc()
		case status >= 400:
			metrics.ClientErrorCount.WithLabelValues(labels...).Inc()
		}
	}
}

// Auth guards a route group with bearer tokens. A non-Bearer scheme and an
// invalid or expired token are distinct client errors.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not authenticated"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid authentication scheme, use Bearer"})
			return
		}
		uid, ok := auth.Decode(secret, strings.TrimSpace(parts[1]))
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set("uid", uid)
		c.Next()
	}
}
