// Package board implements the 3x3 tic-tac-toe rules.
package board

// Symbol is a player mark on the board.
type Symbol string

const (
	X     Symbol = "X"
	O     Symbol = "O"
	Empty Symbol = " "
)

// Other returns the opposing symbol.
func (s Symbol) Other() Symbol {
	if s == X {
		return O
	}
	return X
}

// Board is a 3x3 grid of cells, each X, O or Empty.
type Board [3][3]Symbol

// New returns an empty board.
func New() Board {
	var b Board
	for i := range b {
		for j := range b[i] {
			b[i][j] = Empty
		}
	}
	return b
}

var winLines = [8][3][2]int{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Winner reports the symbol occupying a full row, column or diagonal.
// The second result is false when no such line exists.
func Winner(b Board) (Symbol, bool) {
	for _, line := range winLines {
		first := b[line[0][0]][line[0][1]]
		if first == Empty {
			continue
		}
		if b[line[1][0]][line[1][1]] == first && b[line[2][0]][line[2][1]] == first {
			return first, true
		}
	}
	return Empty, false
}

// Full reports whether every cell is occupied.
func Full(b Board) bool {
	for i := range b {
		for j := range b[i] {
			if b[i][j] == Empty {
				return false
			}
		}
	}
	return true
}

// InBounds reports whether (row, col) addresses a cell.
func InBounds(row, col int) bool {
	return row >= 0 && row < 3 && col >= 0 && col < 3
}
