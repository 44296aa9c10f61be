package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rtrwslv/TicTacToeBot/internal/board"
	"github.com/rtrwslv/TicTacToeBot/internal/obslog"
)

const (
	// Cached bearer tokens expire on their own clock, independent of the
	// expiry embedded in the token itself.
	tokenTTL = 10 * time.Minute

	txAttempts = 3
)

// Manager owns the waiting queue and the live session map in Redis.
// Queue pairing and session mutations run under WATCH so concurrent
// handlers cannot double-match a user or interleave moves.
type Manager struct {
	rdb *redis.Client
}

// NewManager connects to Redis and verifies the connection.
func NewManager(redisURL string) (*Manager, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for game manager")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Manager{rdb: rdb}, nil
}

// NewManagerWithClient wraps an existing Redis client.
func NewManagerWithClient(rdb *redis.Client) *Manager { return &Manager{rdb: rdb} }

func (m *Manager) Close() error {
	if m == nil || m.rdb == nil {
		return nil
	}
	return m.rdb.Close()
}

func gameKey(id string) string    { return "ttt:game:" + strings.TrimSpace(id) }
func userKey(userID int64) string { return "ttt:index:user:" + strconv.FormatInt(userID, 10) }
func tokenKey(userID int64) string {
	return "ttt:token:" + strconv.FormatInt(userID, 10)
}

const queueKey = "ttt:queue"

// queueEntry is stored as JSON in the waiting list so the matched
// opponent's display name is available at pairing time.
type queueEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// JoinOrMatch adds the caller to the waiting queue or pairs them with its
// head. The popped (earlier) user plays X and moves first; the caller
// plays O. Repeating the command while waiting is a no-op.
func (m *Manager) JoinOrMatch(ctx context.Context, userID int64, name string) (*JoinResult, error) {
	if userID == 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	var res *JoinResult
	run := func(tx *redis.Tx) error {
		if sid, err := tx.Get(ctx, userKey(userID)).Result(); err == nil && sid != "" {
			return ErrInGame
		} else if err != nil && err != redis.Nil {
			return err
		}

		entries, err := tx.LRange(ctx, queueKey, 0, -1).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		for _, raw := range entries {
			var e queueEntry
			if json.Unmarshal([]byte(raw), &e) == nil && e.ID == userID {
				res = &JoinResult{AlreadyQueued: true}
				return nil
			}
		}

		if len(entries) == 0 {
			raw, merr := json.Marshal(queueEntry{ID: userID, Name: name})
			if merr != nil {
				return merr
			}
			pipe := tx.TxPipeline()
			pipe.RPush(ctx, queueKey, raw)
			if _, perr := pipe.Exec(ctx); perr != nil {
				return perr
			}
			res = &JoinResult{}
			return nil
		}

		var head queueEntry
		if err := json.Unmarshal([]byte(entries[0]), &head); err != nil {
			return fmt.Errorf("corrupt queue entry: %w", err)
		}

		now := time.Now()
		sess := &Session{
			ID:    uuid.NewString(),
			Board: board.New(),
			Turn:  board.X,
			Players: map[int64]Player{
				head.ID: {Symbol: board.X, Name: head.Name},
				userID:  {Symbol: board.O, Name: name},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		raw, merr := json.Marshal(sess)
		if merr != nil {
			return merr
		}

		pipe := tx.TxPipeline()
		pipe.LPop(ctx, queueKey)
		pipe.Set(ctx, gameKey(sess.ID), raw, 0)
		pipe.Set(ctx, userKey(head.ID), sess.ID, 0)
		pipe.Set(ctx, userKey(userID), sess.ID, 0)
		if _, perr := pipe.Exec(ctx); perr != nil {
			return perr
		}
		res = &JoinResult{Matched: true, Session: sess, OpponentID: head.ID, OpponentName: head.Name}
		return nil
	}

	if err := m.watchRetry(ctx, run, queueKey, userKey(userID)); err != nil {
		return nil, err
	}

	if res.Matched {
		obslog.L().Info("game_create",
			zap.String("game_id", res.Session.ID),
			zap.Int64("player_x", res.OpponentID),
			zap.Int64("player_o", userID),
		)
	} else if !res.AlreadyQueued {
		obslog.L().Info("queue_join", zap.Int64("user_id", userID))
	}
	return res, nil
}

// Move applies a cell claim for userID. Input failures (no session, out of
// turn, occupied cell) leave the board untouched. A terminal move deletes
// the session and both user indexes in the same transaction that reports
// the outcome.
func (m *Manager) Move(ctx context.Context, userID int64, row, col int) (*MoveResult, error) {
	if !board.InBounds(row, col) {
		return nil, ErrBadCell
	}
	sid, err := m.sessionID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var res *MoveResult
	run := func(tx *redis.Tx) error {
		sess, err := loadSession(ctx, tx, sid)
		if err != nil {
			return err
		}
		me, ok := sess.Players[userID]
		if !ok {
			return ErrNoSession
		}
		if sess.Turn != me.Symbol {
			return ErrNotYourTurn
		}
		if sess.Board[row][col] != board.Empty {
			return ErrCellTaken
		}

		oppID, opp, _ := sess.Opponent(userID)
		sess.Board[row][col] = me.Symbol
		sess.UpdatedAt = time.Now()

		if sym, won := board.Winner(sess.Board); won {
			res = &MoveResult{
				Session:    sess,
				Outcome:    OutcomeWin,
				Winner:     sym,
				WinnerName: me.Name,
				OpponentID: oppID,
				Opponent:   opp,
			}
			return deleteSession(ctx, tx, sess)
		}
		if board.Full(sess.Board) {
			res = &MoveResult{Session: sess, Outcome: OutcomeDraw, OpponentID: oppID, Opponent: opp}
			return deleteSession(ctx, tx, sess)
		}

		sess.Turn = me.Symbol.Other()
		raw, merr := json.Marshal(sess)
		if merr != nil {
			return merr
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, gameKey(sess.ID), raw, 0)
		if _, perr := pipe.Exec(ctx); perr != nil {
			return perr
		}
		res = &MoveResult{Session: sess, Outcome: OutcomeContinue, OpponentID: oppID, Opponent: opp}
		return nil
	}

	if err := m.watchRetry(ctx, run, gameKey(sid)); err != nil {
		return nil, err
	}

	obslog.L().Info("game_move",
		zap.String("game_id", res.Session.ID),
		zap.Int64("user_id", userID),
		zap.Int("row", row),
		zap.Int("col", col),
		zap.String("outcome", string(res.Outcome)),
	)
	return res, nil
}

// Leave tears down the caller's session regardless of whose turn it is.
// No result is recorded for an abandoned game.
func (m *Manager) Leave(ctx context.Context, userID int64) (*LeaveResult, error) {
	sid, err := m.sessionID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var res *LeaveResult
	run := func(tx *redis.Tx) error {
		sess, err := loadSession(ctx, tx, sid)
		if err != nil {
			return err
		}
		if _, ok := sess.Players[userID]; !ok {
			return ErrNoSession
		}
		oppID, opp, _ := sess.Opponent(userID)
		res = &LeaveResult{Session: sess, OpponentID: oppID, Opponent: opp}
		return deleteSession(ctx, tx, sess)
	}

	if err := m.watchRetry(ctx, run, gameKey(sid)); err != nil {
		return nil, err
	}

	obslog.L().Info("game_leave", zap.String("game_id", res.Session.ID), zap.Int64("user_id", userID))
	return res, nil
}

// Queued reports whether the user is waiting in the matchmaking queue.
// A plain read; JoinOrMatch re-checks under WATCH before mutating.
func (m *Manager) Queued(ctx context.Context, userID int64) (bool, error) {
	entries, err := m.rdb.LRange(ctx, queueKey, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return false, err
	}
	for _, raw := range entries {
		var e queueEntry
		if json.Unmarshal([]byte(raw), &e) == nil && e.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

// SessionByUser returns the live session for a user, or nil.
func (m *Manager) SessionByUser(ctx context.Context, userID int64) (*Session, error) {
	sid, err := m.rdb.Get(ctx, userKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := m.rdb.Get(ctx, gameKey(sid)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// CachedToken returns the cached bearer token for a user, empty when
// absent or expired on the cache clock.
func (m *Manager) CachedToken(ctx context.Context, userID int64) (string, error) {
	tok, err := m.rdb.Get(ctx, tokenKey(userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return tok, nil
}

// StoreToken caches the latest bearer token for a user.
func (m *Manager) StoreToken(ctx context.Context, userID int64, token string) error {
	return m.rdb.Set(ctx, tokenKey(userID), token, tokenTTL).Err()
}

func (m *Manager) sessionID(ctx context.Context, userID int64) (string, error) {
	sid, err := m.rdb.Get(ctx, userKey(userID)).Result()
	if err == redis.Nil {
		return "", ErrNoSession
	}
	if err != nil {
		return "", err
	}
	return sid, nil
}

// watchRetry runs fn under WATCH, retrying a few times when a concurrent
// mutation aborts the transaction.
func (m *Manager) watchRetry(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < txAttempts; i++ {
		err = m.rdb.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func loadSession(ctx context.Context, tx *redis.Tx, sid string) (*Session, error) {
	raw, err := tx.Get(ctx, gameKey(sid)).Bytes()
	if err == redis.Nil {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func deleteSession(ctx context.Context, tx *redis.Tx, sess *Session) error {
	pipe := tx.TxPipeline()
	pipe.Del(ctx, gameKey(sess.ID))
	for id := range sess.Players {
		pipe.Del(ctx, userKey(id))
	}
	_, err := pipe.Exec(ctx)
	return err
}
