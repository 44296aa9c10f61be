package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rtrwslv/TicTacToeBot/internal/auth"
	"github.com/rtrwslv/TicTacToeBot/internal/obslog"
	"github.com/rtrwslv/TicTacToeBot/internal/storage"
)

// Handlers binds the HTTP surface to storage and the token secret.
type Handlers struct {
	store  storage.Store
	cache  *storage.ModelCache
	secret string
}

func NewHandlers(store storage.Store, cache *storage.ModelCache, secret string) *Handlers {
	return &Handlers{store: store, cache: cache, secret: secret}
}

type createUserRequest struct {
	TelegramID int64  `json:"telegram_id" binding:"required"`
	Username   string `json:"username"`
}

type userResponse struct {
	ID          int64  `json:"id"`
	TelegramID  int64  `json:"telegram_id"`
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
}

// CreateUser registers a Telegram user, or re-registers an existing one.
// Either way the response carries a freshly issued token.
func (h *Handlers) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	u, err := h.cache.GetUser(ctx, req.TelegramID)
	if err != nil {
		// cache trouble is not fatal, the durable store still answers
		obslog.L().Warn("cache_get_failed", zap.Int64("telegram_id", req.TelegramID), zap.Error(err))
		u = nil
	}
	if u == nil {
		u, err = h.store.UserByTelegramID(ctx, req.TelegramID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
			return
		}
	}
	if u == nil {
		u = &storage.User{TelegramID: req.TelegramID, Username: req.Username}
		if err := h.store.CreateUser(ctx, u); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
			return
		}
		if err := h.cache.SetUser(ctx, u); err != nil {
			obslog.L().Warn("cache_set_failed", zap.Int64("telegram_id", req.TelegramID), zap.Error(err))
		}
	}

	token, err := auth.Issue(h.secret, u.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failure"})
		return
	}
	c.JSON(http.StatusCreated, userResponse{
		ID:          u.ID,
		TelegramID:  u.TelegramID,
		Username:    u.Username,
		AccessToken: token,
	})
}

type createGameRequest struct {
	Player1ID int64  `json:"player1_id" binding:"required"`
	Player2ID int64  `json:"player2_id" binding:"required"`
	Result    string `json:"result" binding:"required"`
}

// CreateGame records a finished game.
func (h *Handlers) CreateGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	g := &storage.Game{
		Player1ID: req.Player1ID,
		Player2ID: req.Player2ID,
		Result:    req.Result,
	}
	if err := h.store.CreateGame(c.Request.Context(), g); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.JSON(http.StatusCreated, g)
}

// GamesByUser lists every recorded game the user took part in, oldest first.
func (h *Handlers) GamesByUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "user_id must be an integer"})
		return
	}
	games, err := h.store.GamesByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.JSON(http.StatusOK, games)
}
