// Telegram tic-tac-toe bot. Runs in long-polling mode by default, or as a
// webhook receiver when BOT_MODE=webhook.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rtrwslv/TicTacToeBot/internal/apiclient"
	"github.com/rtrwslv/TicTacToeBot/internal/bot"
	"github.com/rtrwslv/TicTacToeBot/internal/config"
	"github.com/rtrwslv/TicTacToeBot/internal/game"
	"github.com/rtrwslv/TicTacToeBot/internal/msgcat"
	"github.com/rtrwslv/TicTacToeBot/internal/obslog"
	"github.com/rtrwslv/TicTacToeBot/internal/tgclient"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		panic(err)
	}

	cfg, err := config.LoadBot()
	if err != nil {
		obslog.L().Fatal("config", zap.Error(err))
	}

	cat, err := msgcat.New(cfg.MsgcatDir)
	if err != nil {
		obslog.L().Fatal("msgcat", zap.Error(err))
	}

	games, err := game.NewManager(cfg.RedisURL)
	if err != nil {
		obslog.L().Fatal("redis", zap.Error(err))
	}
	defer games.Close()

	tg := tgclient.NewClient(cfg.TelegramAPI, cfg.TelegramToken)
	api := apiclient.NewClient(cfg.APIBaseURL)
	b := bot.New(tg, api, games, cat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tg.SetMyCommands(ctx, b.Commands()); err != nil {
		obslog.L().Warn("set_commands", zap.Error(err))
	}

	switch cfg.Mode {
	case "webhook":
		runWebhook(ctx, cfg, tg, b)
	default:
		runPolling(ctx, tg, b)
	}
}

func runPolling(ctx context.Context, tg *tgclient.Client, b *bot.Bot) {
	// a leftover webhook blocks getUpdates
	if err := tg.DeleteWebhook(ctx); err != nil {
		obslog.L().Warn("delete_webhook", zap.Error(err))
	}
	obslog.L().Info("bot_start", zap.String("mode", "polling"))

	if err := tgclient.NewPoller(tg, b.HandleUpdate).Run(ctx); err != nil && ctx.Err() == nil {
		obslog.L().Fatal("poller", zap.Error(err))
	}
	obslog.L().Info("bot_stop")
}

func runWebhook(ctx context.Context, cfg *config.BotConfig, tg *tgclient.Client, b *bot.Bot) {
	url := strings.TrimRight(cfg.WebhookURL, "/") + cfg.WebhookPath
	current, err := tg.WebhookURL(ctx)
	if err != nil {
		obslog.L().Warn("get_webhook_info", zap.Error(err))
	}
	if current != url {
		if err := tg.SetWebhook(ctx, url); err != nil {
			obslog.L().Fatal("set_webhook", zap.Error(err))
		}
	}
	obslog.L().Info("bot_start", zap.String("mode", "webhook"), zap.String("url", url))

	ws := tgclient.NewWebhookServer(cfg.WebhookPath, b.HandleUpdate)
	errCh := make(chan error, 1)
	go func() { errCh <- ws.Run(cfg.WebhookAddr) }()

	select {
	case err := <-errCh:
		obslog.L().Fatal("webhook_server", zap.Error(err))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Shutdown(shutdownCtx); err != nil {
		obslog.L().Warn("webhook_shutdown", zap.Error(err))
	}
	obslog.L().Info("bot_stop")
}
