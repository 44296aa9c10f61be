package storage

// User is a registered Telegram account.
type User struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	TelegramID int64  `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Username   string `json:"username"`
}

func (User) TableName() string { return "users" }

// Game is one immutable finished-game record. Player1 is always the X
// side; Result is "X", "O" or "draw".
type Game struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	Player1ID int64  `gorm:"not null;index" json:"player1_id"`
	Player2ID int64  `gorm:"not null;index" json:"player2_id"`
	Result    string `gorm:"not null" json:"result"`
}

func (Game) TableName() string { return "games" }
