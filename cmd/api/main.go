// Backend API for the tic-tac-toe bot: user registration, game records
// and Prometheus metrics over Postgres and Redis.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rtrwslv/TicTacToeBot/internal/config"
	"github.com/rtrwslv/TicTacToeBot/internal/obslog"
	"github.com/rtrwslv/TicTacToeBot/internal/server"
	"github.com/rtrwslv/TicTacToeBot/internal/storage"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		panic(err)
	}

	cfg, err := config.LoadAPI()
	if err != nil {
		obslog.L().Fatal("config", zap.Error(err))
	}

	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		obslog.L().Fatal("postgres", zap.Error(err))
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		obslog.L().Fatal("redis", zap.Error(err))
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		obslog.L().Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	router := server.NewRouter(storage.NewGormStore(db), storage.NewModelCache(rdb), cfg.JWTSecret)
	srv := &http.Server{Addr: cfg.Addr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	obslog.L().Info("api_start", zap.String("addr", cfg.Addr))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("http_server", zap.Error(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obslog.L().Warn("http_shutdown", zap.Error(err))
	}
	obslog.L().Info("api_stop")
}
