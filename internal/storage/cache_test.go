package storage

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*ModelCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	return NewModelCache(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestModelCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	got, err := c.GetUser(ctx, 42)
	if err != nil || got != nil {
		t.Fatalf("miss: %+v %v", got, err)
	}

	u := &User{ID: 1, TelegramID: 42, Username: "alice"}
	if err := c.SetUser(ctx, u); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	got, err = c.GetUser(ctx, 42)
	if err != nil || got == nil || got.TelegramID != 42 || got.Username != "alice" {
		t.Fatalf("GetUser: %+v %v", got, err)
	}

	if !mr.Exists("TICTACTOE:users:42") {
		t.Fatalf("unexpected cache key layout")
	}

	mr.FastForward(cacheTTL + time.Second)
	got, err = c.GetUser(ctx, 42)
	if err != nil || got != nil {
		t.Fatalf("entry survived TTL: %+v %v", got, err)
	}
}

func TestModelCacheDrop(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.SetUser(ctx, &User{ID: 1, TelegramID: 7}); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	if err := c.DropUser(ctx, 7); err != nil {
		t.Fatalf("DropUser: %v", err)
	}
	if got, err := c.GetUser(ctx, 7); err != nil || got != nil {
		t.Fatalf("user survived drop: %+v %v", got, err)
	}
}
