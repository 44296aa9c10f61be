package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rtrwslv/TicTacToeBot/internal/apiclient"
	"github.com/rtrwslv/TicTacToeBot/internal/auth"
	"github.com/rtrwslv/TicTacToeBot/internal/game"
	"github.com/rtrwslv/TicTacToeBot/internal/msgcat"
	"github.com/rtrwslv/TicTacToeBot/internal/tgclient"
)

type sentMessage struct {
	ChatID int64
	Text   string
	KB     *tgclient.InlineKeyboardMarkup
}

type editedMessage struct {
	ChatID    int64
	MessageID int64
	Text      string
	KB        *tgclient.InlineKeyboardMarkup
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	edited  []editedMessage
	answers []string
	chats   map[int64]*tgclient.Chat
	nextID  int64
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, kb *tgclient.InlineKeyboardMarkup) (*tgclient.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, KB: kb})
	return &tgclient.Message{MessageID: f.nextID, Chat: tgclient.Chat{ID: chatID}}, nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, chatID, messageID int64, text string, kb *tgclient.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, editedMessage{ChatID: chatID, MessageID: messageID, Text: text, KB: kb})
	return nil
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMessenger) GetChat(_ context.Context, chatID int64) (*tgclient.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.chats[chatID]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("chat %d not found", chatID)
}

func (f *fakeMessenger) lastTo(chatID int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].ChatID == chatID {
			return f.sent[i].Text
		}
	}
	return ""
}

func (f *fakeMessenger) lastMessageTo(chatID int64) (sentMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].ChatID == chatID {
			return f.sent[i], true
		}
	}
	return sentMessage{}, false
}

func (f *fakeMessenger) lastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return ""
	}
	return f.answers[len(f.answers)-1]
}

type recordedGame struct {
	Player1ID int64
	Player2ID int64
	Result    string
}

type fakeBackend struct {
	mu        sync.Mutex
	failing   bool
	registers int
	recorded  []recordedGame
	history   map[int64][]apiclient.GameRecord
}

func (f *fakeBackend) RegisterUser(_ context.Context, telegramID int64, username string) (*apiclient.UserWithToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, fmt.Errorf("backend unavailable")
	}
	f.registers++
	token, err := auth.Issue("bot-test-secret", telegramID)
	if err != nil {
		return nil, err
	}
	return &apiclient.UserWithToken{ID: telegramID, TelegramID: telegramID, Username: username, AccessToken: token}, nil
}

func (f *fakeBackend) RecordGame(_ context.Context, _ string, player1ID, player2ID int64, result string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return fmt.Errorf("backend unavailable")
	}
	f.recorded = append(f.recorded, recordedGame{Player1ID: player1ID, Player2ID: player2ID, Result: result})
	return nil
}

func (f *fakeBackend) GamesByUser(_ context.Context, _ string, userID int64) ([]apiclient.GameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, fmt.Errorf("backend unavailable")
	}
	return f.history[userID], nil
}

func newTestBot(t *testing.T) (*Bot, *fakeMessenger, *fakeBackend, *msgcat.Catalog) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	games := game.NewManagerWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	tg := &fakeMessenger{chats: make(map[int64]*tgclient.Chat)}
	api := &fakeBackend{history: make(map[int64][]apiclient.GameRecord)}
	return New(tg, api, games, cat), tg, api, cat
}

func startFrom(id int64, name string) tgclient.Update {
	return tgclient.Update{Message: &tgclient.Message{
		From: &tgclient.User{ID: id, FirstName: name},
		Chat: tgclient.Chat{ID: id},
		Text: "/start",
	}}
}

func commandFrom(id int64, name, text string) tgclient.Update {
	return tgclient.Update{Message: &tgclient.Message{
		From: &tgclient.User{ID: id, FirstName: name},
		Chat: tgclient.Chat{ID: id},
		Text: text,
	}}
}

func press(id int64, name string, row, col int) tgclient.Update {
	return tgclient.Update{CallbackQuery: &tgclient.CallbackQuery{
		ID:      fmt.Sprintf("cb-%d-%d-%d", id, row, col),
		From:    tgclient.User{ID: id, FirstName: name},
		Message: &tgclient.Message{MessageID: 100 + id, Chat: tgclient.Chat{ID: id}},
		Data:    fmt.Sprintf("cell_%d_%d", row, col),
	}}
}

func matchPlayers(t *testing.T, b *Bot, tg *fakeMessenger) {
	t.Helper()
	ctx := context.Background()
	b.HandleUpdate(ctx, startFrom(1, "Alice"))
	b.HandleUpdate(ctx, startFrom(2, "Bob"))
	if got := tg.lastTo(2); got != b.cat.Text("start.matched_o", nil) {
		t.Fatalf("caller not matched as O: %q", got)
	}
}

func TestStartQueueAndMatch(t *testing.T) {
	b, tg, api, cat := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, startFrom(1, "Alice"))
	if got := tg.lastTo(1); got != cat.Text("start.queued", nil) {
		t.Fatalf("first /start: %q", got)
	}
	b.HandleUpdate(ctx, startFrom(1, "Alice"))
	if got := tg.lastTo(1); got != cat.Text("start.already_queued", nil) {
		t.Fatalf("repeat /start: %q", got)
	}
	// a waiting user repeating /start is answered without re-registering
	if api.registers != 1 {
		t.Fatalf("registers after repeat = %d, want 1", api.registers)
	}

	b.HandleUpdate(ctx, startFrom(2, "Bob"))
	if got := tg.lastTo(2); got != cat.Text("start.matched_o", nil) {
		t.Fatalf("caller message: %q", got)
	}
	// the O side sees the board immediately, not only after X's first move
	if msg, ok := tg.lastMessageTo(2); !ok || msg.KB == nil || len(msg.KB.InlineKeyboard) != 3 {
		t.Fatalf("matched O player has no board keyboard: %+v", msg)
	}

	// Alice was queued first, plays X and gets the board
	tg.mu.Lock()
	var aliceMsgs []sentMessage
	for _, m := range tg.sent {
		if m.ChatID == 1 {
			aliceMsgs = append(aliceMsgs, m)
		}
	}
	tg.mu.Unlock()
	if len(aliceMsgs) < 2 {
		t.Fatalf("Alice messages: %+v", aliceMsgs)
	}
	challenge := aliceMsgs[len(aliceMsgs)-2]
	boardMsg := aliceMsgs[len(aliceMsgs)-1]
	if !strings.Contains(challenge.Text, "Bob") {
		t.Fatalf("challenge does not name opponent: %q", challenge.Text)
	}
	if boardMsg.KB == nil || len(boardMsg.KB.InlineKeyboard) != 3 {
		t.Fatalf("no board keyboard: %+v", boardMsg)
	}
	if got := boardMsg.KB.InlineKeyboard[0][0].CallbackData; got != "cell_0_0" {
		t.Fatalf("callback data: %q", got)
	}

	// one registration per user that actually entered matchmaking
	if api.registers != 2 {
		t.Fatalf("registers = %d, want 2", api.registers)
	}
}

func TestStartRegistrationFailure(t *testing.T) {
	b, tg, api, cat := newTestBot(t)
	ctx := context.Background()

	api.failing = true
	b.HandleUpdate(ctx, startFrom(1, "Alice"))
	if got := tg.lastTo(1); got != cat.Text("start.register_failed", nil) {
		t.Fatalf("failure message: %q", got)
	}

	// the failed user never entered the queue
	api.failing = false
	b.HandleUpdate(ctx, startFrom(2, "Bob"))
	if got := tg.lastTo(2); got != cat.Text("start.queued", nil) {
		t.Fatalf("queue was not empty: %q", got)
	}
}

func TestCallbackRejections(t *testing.T) {
	b, tg, _, cat := newTestBot(t)
	ctx := context.Background()
	matchPlayers(t, b, tg)

	// O pressing before X moved
	b.HandleUpdate(ctx, press(2, "Bob", 0, 0))
	if got := tg.lastAnswer(); got != cat.Text("move.not_your_turn", nil) {
		t.Fatalf("out of turn: %q", got)
	}

	b.HandleUpdate(ctx, press(1, "Alice", 0, 0))
	b.HandleUpdate(ctx, press(2, "Bob", 0, 0))
	if got := tg.lastAnswer(); got != cat.Text("move.cell_taken", nil) {
		t.Fatalf("occupied cell: %q", got)
	}

	// bystander has no session
	b.HandleUpdate(ctx, press(9, "Mallory", 1, 1))
	if got := tg.lastAnswer(); got != cat.Text("move.no_game", nil) {
		t.Fatalf("no session: %q", got)
	}
}

func TestWinFlowRecordsResult(t *testing.T) {
	b, tg, api, cat := newTestBot(t)
	ctx := context.Background()
	matchPlayers(t, b, tg)

	b.HandleUpdate(ctx, press(1, "Alice", 0, 0))
	b.HandleUpdate(ctx, press(2, "Bob", 1, 1))
	b.HandleUpdate(ctx, press(1, "Alice", 0, 1))
	b.HandleUpdate(ctx, press(2, "Bob", 2, 2))
	b.HandleUpdate(ctx, press(1, "Alice", 0, 2))

	want := cat.Text("game.win", map[string]string{"Winner": "Alice"})
	finalMsg, ok := tg.lastMessageTo(2)
	if !ok || finalMsg.Text != want {
		t.Fatalf("opponent notification: %+v != %q", finalMsg, want)
	}
	tg.mu.Lock()
	lastEdit := tg.edited[len(tg.edited)-1]
	tg.mu.Unlock()
	if lastEdit.Text != want || lastEdit.ChatID != 1 {
		t.Fatalf("mover edit: %+v", lastEdit)
	}
	// finished boards are not pressable: terminal messages carry no keyboard
	if lastEdit.KB != nil || finalMsg.KB != nil {
		t.Fatalf("terminal message kept a keyboard: edit=%+v send=%+v", lastEdit.KB, finalMsg.KB)
	}

	api.mu.Lock()
	recorded := append([]recordedGame(nil), api.recorded...)
	api.mu.Unlock()
	if len(recorded) != 1 {
		t.Fatalf("recorded games: %+v", recorded)
	}
	if recorded[0] != (recordedGame{Player1ID: 1, Player2ID: 2, Result: "X"}) {
		t.Fatalf("record: %+v", recorded[0])
	}

	// session is gone
	b.HandleUpdate(ctx, press(1, "Alice", 2, 0))
	if got := tg.lastAnswer(); got != cat.Text("move.no_game", nil) {
		t.Fatalf("session survived the win: %q", got)
	}
}

func TestDrawFlowRecordsResult(t *testing.T) {
	b, tg, api, _ := newTestBot(t)
	ctx := context.Background()
	matchPlayers(t, b, tg)

	moves := []struct {
		id       int64
		name     string
		row, col int
	}{
		{1, "Alice", 0, 0}, {2, "Bob", 0, 2},
		{1, "Alice", 0, 1}, {2, "Bob", 1, 1},
		{1, "Alice", 1, 2}, {2, "Bob", 1, 0},
		{1, "Alice", 2, 0}, {2, "Bob", 2, 1},
		{1, "Alice", 2, 2},
	}
	for _, mv := range moves {
		b.HandleUpdate(ctx, press(mv.id, mv.name, mv.row, mv.col))
	}

	api.mu.Lock()
	recorded := append([]recordedGame(nil), api.recorded...)
	api.mu.Unlock()
	if len(recorded) != 1 || recorded[0].Result != "draw" {
		t.Fatalf("recorded: %+v", recorded)
	}
	if recorded[0].Player1ID != 1 || recorded[0].Player2ID != 2 {
		t.Fatalf("player order: %+v", recorded[0])
	}
}

func TestLeave(t *testing.T) {
	b, tg, api, cat := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, commandFrom(1, "Alice", "/leave"))
	if got := tg.lastTo(1); got != cat.Text("leave.not_in_game", nil) {
		t.Fatalf("leave without game: %q", got)
	}

	matchPlayers(t, b, tg)
	b.HandleUpdate(ctx, commandFrom(2, "Bob", "/leave"))
	if got := tg.lastTo(2); got != cat.Text("leave.left", nil) {
		t.Fatalf("leaver message: %q", got)
	}
	want := cat.Text("leave.opponent_left", map[string]string{"Name": "Bob"})
	if got := tg.lastTo(1); got != want {
		t.Fatalf("opponent message: %q != %q", got, want)
	}

	// an abandoned game is never recorded
	api.mu.Lock()
	n := len(api.recorded)
	api.mu.Unlock()
	if n != 0 {
		t.Fatalf("recorded %d games", n)
	}
}

func TestStats(t *testing.T) {
	b, tg, api, cat := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, commandFrom(1, "Alice", "/stats"))
	if got := tg.lastTo(1); got != cat.Text("stats.empty", nil) {
		t.Fatalf("empty stats: %q", got)
	}

	tg.chats[2] = &tgclient.Chat{ID: 2, FirstName: "Bob"}
	api.history[1] = []apiclient.GameRecord{
		{ID: 1, Player1ID: 1, Player2ID: 2, Result: "X"},
		{ID: 2, Player1ID: 2, Player2ID: 1, Result: "O"},
		{ID: 3, Player1ID: 1, Player2ID: 3, Result: "draw"},
	}
	b.HandleUpdate(ctx, commandFrom(1, "Alice", "/stats"))

	report := tg.lastTo(1)
	lines := strings.Split(report, "\n")
	if len(lines) != 4 || lines[0] != cat.Text("stats.header", nil) {
		t.Fatalf("report: %q", report)
	}
	if want := cat.Text("stats.line", map[string]string{"Player1": "Alice", "Player2": "Bob", "Result": "Alice"}); lines[1] != want {
		t.Fatalf("line 1: %q != %q", lines[1], want)
	}
	if want := cat.Text("stats.line", map[string]string{"Player1": "Bob", "Player2": "Alice", "Result": "Alice"}); lines[2] != want {
		t.Fatalf("line 2: %q != %q", lines[2], want)
	}
	// unresolvable opponent falls back to the numeric id
	if want := cat.Text("stats.line", map[string]string{"Player1": "Alice", "Player2": "3", "Result": cat.Text("stats.draw", nil)}); lines[3] != want {
		t.Fatalf("line 3: %q != %q", lines[3], want)
	}
}

func TestStatsWindow(t *testing.T) {
	b, tg, api, _ := newTestBot(t)
	ctx := context.Background()

	tg.chats[2] = &tgclient.Chat{ID: 2, FirstName: "Bob"}
	for i := 0; i < 15; i++ {
		api.history[1] = append(api.history[1], apiclient.GameRecord{
			ID: int64(i + 1), Player1ID: 1, Player2ID: 2, Result: "draw",
		})
	}
	b.HandleUpdate(ctx, commandFrom(1, "Alice", "/stats"))

	lines := strings.Split(tg.lastTo(1), "\n")
	if len(lines) != statsWindow+1 {
		t.Fatalf("window: %d lines", len(lines))
	}
}

func TestCommandParsing(t *testing.T) {
	for in, want := range map[string]string{
		"/start":          "/start",
		"/start@SomeBot":  "/start",
		"  /stats  extra": "/stats",
		"hello":           "",
		"":                "",
	} {
		if got := command(in); got != want {
			t.Errorf("command(%q) = %q, want %q", in, got, want)
		}
	}
}
