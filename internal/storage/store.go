package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/rtrwslv/TicTacToeBot/internal/metrics"
)

// Store is the persistence surface of the backend. The Postgres
// implementation is the production one; tests substitute an in-memory
// implementation.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	// UserByTelegramID returns nil without error when no user exists.
	UserByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	CreateGame(ctx context.Context, g *Game) error
	// GamesByUser returns records where the user is either player,
	// oldest first.
	GamesByUser(ctx context.Context, userID int64) ([]Game, error)
}

// GormStore persists to Postgres through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) CreateUser(ctx context.Context, u *User) error {
	return metrics.ObserveIntegration("create_user", func() error {
		return s.db.WithContext(ctx).Create(u).Error
	})
}

func (s *GormStore) UserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	var u User
	err := metrics.ObserveIntegration("get_user_by_tg_id", func() error {
		return s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) CreateGame(ctx context.Context, g *Game) error {
	return metrics.ObserveIntegration("create_game", func() error {
		return s.db.WithContext(ctx).Create(g).Error
	})
}

func (s *GormStore) GamesByUser(ctx context.Context, userID int64) ([]Game, error) {
	games := make([]Game, 0)
	err := metrics.ObserveIntegration("get_user_games", func() error {
		return s.db.WithContext(ctx).
			Where("player1_id = ? OR player2_id = ?", userID, userID).
			Order("id").
			Find(&games).Error
	})
	if err != nil {
		return nil, err
	}
	return games, nil
}
