package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rtrwslv/TicTacToeBot/internal/apiclient"
	"github.com/rtrwslv/TicTacToeBot/internal/board"
	"github.com/rtrwslv/TicTacToeBot/internal/game"
	"github.com/rtrwslv/TicTacToeBot/internal/obslog"
	"github.com/rtrwslv/TicTacToeBot/internal/tgclient"
)

const statsWindow = 10

// handleStart registers the user with the backend and puts them into
// matchmaking. A registration failure keeps the user out of the queue.
func (b *Bot) handleStart(ctx context.Context, msg *tgclient.Message) {
	user := msg.From

	// a waiting user repeating /start gets an answer without a backend trip
	if queued, err := b.games.Queued(ctx, user.ID); err == nil && queued {
		b.reply(ctx, msg.Chat.ID, "start.already_queued", nil)
		return
	}

	registered, err := b.api.RegisterUser(ctx, user.ID, usernameOf(user))
	if err != nil {
		obslog.L().Error("register_failed", zap.Int64("user_id", user.ID), zap.Error(err))
		b.reply(ctx, msg.Chat.ID, "start.register_failed", nil)
		return
	}
	if err := b.games.StoreToken(ctx, user.ID, registered.AccessToken); err != nil {
		obslog.L().Warn("token_cache_set_failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	res, err := b.games.JoinOrMatch(ctx, user.ID, user.DisplayName())
	if errors.Is(err, game.ErrInGame) {
		b.reply(ctx, msg.Chat.ID, "start.in_game", nil)
		return
	}
	if err != nil {
		obslog.L().Error("join_failed", zap.Int64("user_id", user.ID), zap.Error(err))
		b.reply(ctx, msg.Chat.ID, "start.register_failed", nil)
		return
	}

	switch {
	case res.AlreadyQueued:
		b.reply(ctx, msg.Chat.ID, "start.already_queued", nil)
	case !res.Matched:
		b.reply(ctx, msg.Chat.ID, "start.queued", nil)
	default:
		// the queued player holds X and moves first; both sides see the board
		b.send(ctx, res.OpponentID, b.cat.Text("start.matched_x", map[string]string{"Opponent": user.DisplayName()}), nil)
		b.send(ctx, res.OpponentID, b.cat.Text("move.your_turn", nil), boardKeyboard(res.Session.Board))
		b.send(ctx, msg.Chat.ID, b.cat.Text("start.matched_o", nil), boardKeyboard(res.Session.Board))
	}
}

// handleCallback applies one board press. Input failures come back as
// callback toasts and leave the board untouched.
func (b *Bot) handleCallback(ctx context.Context, cb *tgclient.CallbackQuery) {
	row, col, ok := parseCell(cb.Data)
	if !ok {
		b.answer(ctx, cb.ID, "")
		return
	}

	res, err := b.games.Move(ctx, cb.From.ID, row, col)
	switch {
	case errors.Is(err, game.ErrNoSession):
		b.answer(ctx, cb.ID, b.cat.Text("move.no_game", nil))
		return
	case errors.Is(err, game.ErrNotYourTurn):
		b.answer(ctx, cb.ID, b.cat.Text("move.not_your_turn", nil))
		return
	case errors.Is(err, game.ErrCellTaken), errors.Is(err, game.ErrBadCell):
		b.answer(ctx, cb.ID, b.cat.Text("move.cell_taken", nil))
		return
	case err != nil:
		obslog.L().Error("move_failed", zap.Int64("user_id", cb.From.ID), zap.Error(err))
		b.answer(ctx, cb.ID, "")
		return
	}
	b.answer(ctx, cb.ID, "")

	switch res.Outcome {
	case game.OutcomeContinue:
		b.edit(ctx, cb.Message, b.cat.Text("move.opponent_turn", map[string]string{"Opponent": res.Opponent.Name}), boardKeyboard(res.Session.Board))
		b.send(ctx, res.OpponentID, b.cat.Text("move.your_turn", nil), boardKeyboard(res.Session.Board))
	case game.OutcomeWin:
		// terminal messages drop the keyboard; the board is no longer playable
		text := b.cat.Text("game.win", map[string]string{"Winner": res.WinnerName})
		b.edit(ctx, cb.Message, text, nil)
		b.send(ctx, res.OpponentID, text, nil)
		b.recordResult(ctx, &cb.From, res.Session, string(res.Winner))
	case game.OutcomeDraw:
		text := b.cat.Text("game.draw", nil)
		b.edit(ctx, cb.Message, text, nil)
		b.send(ctx, res.OpponentID, text, nil)
		b.recordResult(ctx, &cb.From, res.Session, "draw")
	}
}

// handleLeave tears down the caller's session. The abandoned game is not
// recorded.
func (b *Bot) handleLeave(ctx context.Context, msg *tgclient.Message) {
	user := msg.From
	res, err := b.games.Leave(ctx, user.ID)
	if errors.Is(err, game.ErrNoSession) {
		b.reply(ctx, msg.Chat.ID, "leave.not_in_game", nil)
		return
	}
	if err != nil {
		obslog.L().Error("leave_failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	b.reply(ctx, msg.Chat.ID, "leave.left", nil)
	leaver := res.Session.Players[user.ID]
	b.send(ctx, res.OpponentID, b.cat.Text("leave.opponent_left", map[string]string{"Name": leaver.Name}), nil)
}

// handleStats reports the caller's most recent finished games.
func (b *Bot) handleStats(ctx context.Context, msg *tgclient.Message) {
	user := msg.From
	token, err := b.ensureToken(ctx, user)
	if err != nil {
		obslog.L().Error("stats_token_failed", zap.Int64("user_id", user.ID), zap.Error(err))
		b.reply(ctx, msg.Chat.ID, "stats.failed", nil)
		return
	}
	records, err := b.api.GamesByUser(ctx, token, user.ID)
	if err != nil {
		obslog.L().Error("stats_fetch_failed", zap.Int64("user_id", user.ID), zap.Error(err))
		b.reply(ctx, msg.Chat.ID, "stats.failed", nil)
		return
	}
	if len(records) == 0 {
		b.reply(ctx, msg.Chat.ID, "stats.empty", nil)
		return
	}
	if len(records) > statsWindow {
		records = records[len(records)-statsWindow:]
	}

	names := map[int64]string{user.ID: user.DisplayName()}
	lines := []string{b.cat.Text("stats.header", nil)}
	for _, rec := range records {
		p1 := b.chatName(ctx, names, rec.Player1ID)
		p2 := b.chatName(ctx, names, rec.Player2ID)
		lines = append(lines, b.cat.Text("stats.line", map[string]string{
			"Player1": p1,
			"Player2": p2,
			"Result":  b.resultName(rec, p1, p2),
		}))
	}
	b.send(ctx, msg.Chat.ID, strings.Join(lines, "\n"), nil)
}

// resultName shows the winner's name, or the draw label.
func (b *Bot) resultName(rec apiclient.GameRecord, p1, p2 string) string {
	switch rec.Result {
	case string(board.X):
		return p1
	case string(board.O):
		return p2
	default:
		return b.cat.Text("stats.draw", nil)
	}
}

// chatName resolves a display name through Telegram, falling back to the
// numeric id when the chat cannot be fetched.
func (b *Bot) chatName(ctx context.Context, cache map[int64]string, id int64) string {
	if name, ok := cache[id]; ok {
		return name
	}
	name := strconv.FormatInt(id, 10)
	if chat, err := b.tg.GetChat(ctx, id); err == nil {
		if chat.FirstName != "" {
			name = chat.FirstName
		} else if chat.Username != "" {
			name = chat.Username
		}
	}
	cache[id] = name
	return name
}

// recordResult persists a finished game with player1 always the X side.
func (b *Bot) recordResult(ctx context.Context, mover *tgclient.User, sess *game.Session, result string) {
	token, err := b.ensureToken(ctx, mover)
	if err != nil {
		obslog.L().Error("record_token_failed", zap.String("game_id", sess.ID), zap.Error(err))
		return
	}
	p1 := sess.BySymbol(board.X)
	p2 := sess.BySymbol(board.O)
	if err := b.api.RecordGame(ctx, token, p1, p2, result); err != nil {
		obslog.L().Error("record_game_failed",
			zap.String("game_id", sess.ID),
			zap.Int64("player1_id", p1),
			zap.Int64("player2_id", p2),
			zap.String("result", result),
			zap.Error(err),
		)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, key string, data any) {
	b.send(ctx, chatID, b.cat.Text(key, data), nil)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, kb *tgclient.InlineKeyboardMarkup) {
	if _, err := b.tg.SendMessage(ctx, chatID, text, kb); err != nil {
		obslog.L().Warn("send_failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) edit(ctx context.Context, msg *tgclient.Message, text string, kb *tgclient.InlineKeyboardMarkup) {
	if msg == nil {
		return
	}
	if err := b.tg.EditMessageText(ctx, msg.Chat.ID, msg.MessageID, text, kb); err != nil {
		obslog.L().Warn("edit_failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.tg.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		obslog.L().Warn("answer_failed", zap.String("callback_id", callbackID), zap.Error(err))
	}
}
