package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rtrwslv/TicTacToeBot/internal/metrics"
)

// cacheTTL is independent of the expiry embedded in issued tokens.
const cacheTTL = 10 * time.Minute

// ModelCache is the Redis side-cache in front of the durable store.
// Keys follow TICTACTOE:<table>:<telegram_id>.
type ModelCache struct {
	rdb *redis.Client
}

func NewModelCache(rdb *redis.Client) *ModelCache { return &ModelCache{rdb: rdb} }

func cacheKey(table string, id int64) string {
	return fmt.Sprintf("TICTACTOE:%s:%d", table, id)
}

// GetUser returns the cached user or nil on a miss. Cache errors are
// returned so callers can fall through to the durable store.
func (c *ModelCache) GetUser(ctx context.Context, telegramID int64) (*User, error) {
	var u *User
	err := metrics.ObserveIntegration("redis_get_model", func() error {
		raw, err := c.rdb.Get(ctx, cacheKey(User{}.TableName(), telegramID)).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		var cached User
		if err := json.Unmarshal(raw, &cached); err != nil {
			return err
		}
		u = &cached
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// SetUser caches a user for the cache TTL.
func (c *ModelCache) SetUser(ctx context.Context, u *User) error {
	return metrics.ObserveIntegration("redis_set_model", func() error {
		raw, err := json.Marshal(u)
		if err != nil {
			return err
		}
		return c.rdb.Set(ctx, cacheKey(u.TableName(), u.TelegramID), raw, cacheTTL).Err()
	})
}

// DropUser removes a cached user.
func (c *ModelCache) DropUser(ctx context.Context, telegramID int64) error {
	return metrics.ObserveIntegration("redis_drop_model", func() error {
		return c.rdb.Del(ctx, cacheKey(User{}.TableName(), telegramID)).Err()
	})
}
