// Package bot contains the Telegram-side handlers: matchmaking commands,
// board callbacks and the stats report.
package bot

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtrwslv/TicTacToeBot/internal/apiclient"
	"github.com/rtrwslv/TicTacToeBot/internal/auth"
	"github.com/rtrwslv/TicTacToeBot/internal/game"
	"github.com/rtrwslv/TicTacToeBot/internal/msgcat"
	"github.com/rtrwslv/TicTacToeBot/internal/obslog"
	"github.com/rtrwslv/TicTacToeBot/internal/tgclient"
)

// Messenger is the Telegram surface the handlers drive.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb *tgclient.InlineKeyboardMarkup) (*tgclient.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, kb *tgclient.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	GetChat(ctx context.Context, chatID int64) (*tgclient.Chat, error)
}

// Backend is the bot-side view of the backend API.
type Backend interface {
	RegisterUser(ctx context.Context, telegramID int64, username string) (*apiclient.UserWithToken, error)
	RecordGame(ctx context.Context, token string, player1ID, player2ID int64, result string) error
	GamesByUser(ctx context.Context, token string, userID int64) ([]apiclient.GameRecord, error)
}

// Bot glues Telegram updates to the game manager and the backend.
type Bot struct {
	tg    Messenger
	api   Backend
	games *game.Manager
	cat   *msgcat.Catalog
}

func New(tg Messenger, api Backend, games *game.Manager, cat *msgcat.Catalog) *Bot {
	return &Bot{tg: tg, api: api, games: games, cat: cat}
}

// Commands is the menu published to Telegram on startup.
func (b *Bot) Commands() []tgclient.BotCommand {
	return []tgclient.BotCommand{
		{Command: "start", Description: b.cat.Text("command.start", nil)},
		{Command: "leave", Description: b.cat.Text("command.leave", nil)},
		{Command: "stats", Description: b.cat.Text("command.stats", nil)},
	}
}

// HandleUpdate dispatches one inbound update. The poller and the webhook
// server both call it from their own goroutine per update.
func (b *Bot) HandleUpdate(ctx context.Context, u tgclient.Update) {
	ctx = apiclient.WithCorrelationID(ctx, strings.ReplaceAll(uuid.NewString(), "-", ""))

	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		switch command(u.Message.Text) {
		case "/start":
			b.handleStart(ctx, u.Message)
		case "/leave":
			b.handleLeave(ctx, u.Message)
		case "/stats":
			b.handleStats(ctx, u.Message)
		}
	}
}

// command extracts the leading bot command, dropping any @botname suffix.
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd
}

// ensureToken returns a usable bearer token, re-registering when the
// cached one is missing or its embedded expiry has passed. The bot never
// verifies signatures; only the backend holds the secret.
func (b *Bot) ensureToken(ctx context.Context, user *tgclient.User) (string, error) {
	tok, err := b.games.CachedToken(ctx, user.ID)
	if err != nil {
		obslog.L().Warn("token_cache_get_failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if tok != "" && !auth.Stale(tok) {
		return tok, nil
	}
	registered, err := b.api.RegisterUser(ctx, user.ID, usernameOf(user))
	if err != nil {
		return "", err
	}
	if err := b.games.StoreToken(ctx, user.ID, registered.AccessToken); err != nil {
		obslog.L().Warn("token_cache_set_failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	return registered.AccessToken, nil
}

func usernameOf(u *tgclient.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}
