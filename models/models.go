// models/models.go
package models

import "time"

// Stats 选手的累计统计，随每场结算递增
type Stats struct {
	GamesPlayed         int `json:"gamesPlayed"`
	GamesWon            int `json:"gamesWon"`
	GamesLost           int `json:"gamesLost"`
	CopGames            int `json:"copGames"`
	CopWins             int `json:"copWins"`
	CriminalGames       int `json:"criminalGames"`
	CriminalWins        int `json:"criminalWins"`
	TotalCoinsCollected int `json:"totalCoinsCollected"`
	TotalCatches        int `json:"totalCatches"`
	TotalEscapes        int `json:"totalEscapes"`
	SeasonWins          int `json:"seasonWins"`
}

// RatingRecord 选手的天梯档案
type RatingRecord struct {
	UserID        string    `json:"userId"`
	Username      string    `json:"username"`
	Points        int       `json:"points"`
	Tier          string    `json:"tier"`
	WinStreak     int       `json:"winStreak"`
	BestWinStreak int       `json:"bestWinStreak"`
	Stats         Stats     `json:"stats"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// GameRecord 一场已结算对局的归档
type GameRecord struct {
	ID              int64     `json:"id"`
	RoomID          string    `json:"roomId"`
	MapKey          string    `json:"mapKey"`
	CriminalUserID  string    `json:"criminalUserId"`
	CopUserID       string    `json:"copUserId"`
	Winner          string    `json:"winner"` // criminal / cop
	Reason          string    `json:"reason"` // caught / escaped / timeout
	GameTimeSeconds float64   `json:"gameTimeSeconds"`
	CoinsCollected  int       `json:"coinsCollected"`
	TotalCoins      int       `json:"totalCoins"`
	CriminalDelta   int       `json:"criminalDelta"`
	CopDelta        int       `json:"copDelta"`
	PlayedAt        time.Time `json:"playedAt"`
}
