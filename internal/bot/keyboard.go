package bot

import (
	"fmt"

	"github.com/rtrwslv/TicTacToeBot/internal/board"
	"github.com/rtrwslv/TicTacToeBot/internal/tgclient"
)

// boardKeyboard renders the 3x3 grid as inline buttons. Empty cells show a
// space; callback data addresses the cell as cell_<row>_<col>.
func boardKeyboard(b board.Board) *tgclient.InlineKeyboardMarkup {
	rows := make([][]tgclient.InlineKeyboardButton, len(b))
	for i := range b {
		row := make([]tgclient.InlineKeyboardButton, len(b[i]))
		for j := range b[i] {
			row[j] = tgclient.InlineKeyboardButton{
				Text:         string(b[i][j]),
				CallbackData: fmt.Sprintf("cell_%d_%d", i, j),
			}
		}
		rows[i] = row
	}
	return &tgclient.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// parseCell extracts the coordinates from cell_<row>_<col> callback data.
func parseCell(data string) (row, col int, ok bool) {
	var r, c int
	if n, err := fmt.Sscanf(data, "cell_%d_%d", &r, &c); err != nil || n != 2 {
		return 0, 0, false
	}
	return r, c, true
}
