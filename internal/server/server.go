// Package server is the HTTP surface of the backend API: user
// registration, game records and Prometheus metrics.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rtrwslv/TicTacToeBot/internal/storage"
)

// NewRouter wires middleware and routes. Game routes require a bearer
// token, registration does not.
func NewRouter(store storage.Store, cache *storage.ModelCache, secret string) *gin.Engine {
	h := NewHandlers(store, cache, secret)

	r := gin.New()
	r.Use(gin.Recovery(), CorrelationID(), Metrics())

	r.POST("/users/", h.CreateUser)

	authorized := r.Group("/", Auth(secret))
	authorized.POST("/games/", h.CreateGame)
	authorized.GET("/games/:user_id", h.GamesByUser)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
