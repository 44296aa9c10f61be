package game

import (
	"time"

	"github.com/rtrwslv/TicTacToeBot/internal/board"
)

// Player is one side of a session.
type Player struct {
	Symbol board.Symbol `json:"symbol"`
	Name   string       `json:"name"`
}

// Session is the ephemeral state of one two-player game, stored as JSON
// in Redis under ttt:game:<id>. It exists only while the game is live.
type Session struct {
	ID        string            `json:"id"`
	Board     board.Board       `json:"board"`
	Turn      board.Symbol      `json:"turn"`
	Players   map[int64]Player  `json:"players"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Opponent returns the other participant of the session.
func (s *Session) Opponent(userID int64) (int64, Player, bool) {
	for id, p := range s.Players {
		if id != userID {
			return id, p, true
		}
	}
	return 0, Player{}, false
}

// BySymbol returns the user id holding the given symbol.
func (s *Session) BySymbol(sym board.Symbol) int64 {
	for id, p := range s.Players {
		if p.Symbol == sym {
			return id
		}
	}
	return 0
}

// Outcome classifies the effect of an applied move.
type Outcome string

const (
	OutcomeContinue Outcome = "CONTINUE"
	OutcomeWin      Outcome = "WIN"
	OutcomeDraw     Outcome = "DRAW"
)

// JoinResult is returned by JoinOrMatch.
type JoinResult struct {
	// Matched is true when a session was created with the queue head.
	Matched bool
	// AlreadyQueued is true when the caller was waiting already; the
	// call is a no-op in that case.
	AlreadyQueued bool
	Session       *Session
	// OpponentID is the paired user when Matched.
	OpponentID   int64
	OpponentName string
}

// MoveResult is returned by Move for a legal move.
type MoveResult struct {
	Session    *Session
	Outcome    Outcome
	WinnerName string
	// Winner is the symbol that completed a line; empty on draw/continue.
	Winner     board.Symbol
	OpponentID int64
	Opponent   Player
}

// LeaveResult reports the torn-down session.
type LeaveResult struct {
	Session    *Session
	OpponentID int64
	Opponent   Player
}

// User-input failures; reported back to the player, never logged as errors.
var (
	ErrNoSession   = errf("no active game")
	ErrNotYourTurn = errf("not your turn")
	ErrCellTaken   = errf("cell already occupied")
	ErrBadCell     = errf("cell out of range")
	ErrInGame      = errf("user already in a game")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

func errf(s string) error { return staticErr(s) }
