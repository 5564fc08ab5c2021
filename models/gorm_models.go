// models/gorm_models.go
package models

import "time"

// GormRating ratings 表的 GORM 映射，Stats 以 JSON 列存储
type GormRating struct {
	UserID        string    `gorm:"primaryKey;size:64"`
	Username      string    `gorm:"size:64;not null"`
	Points        int       `gorm:"not null;default:1000;index"`
	Tier          string    `gorm:"size:32;not null"`
	WinStreak     int       `gorm:"not null;default:0"`
	BestWinStreak int       `gorm:"not null;default:0"`
	Stats         Stats     `gorm:"serializer:json"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (GormRating) TableName() string {
	return "ratings"
}

// GormGameRecord game_records 表的 GORM 映射
type GormGameRecord struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"`
	RoomID          string    `gorm:"size:16;not null"`
	MapKey          string    `gorm:"size:32;not null"`
	CriminalUserID  string    `gorm:"size:64;not null;index"`
	CopUserID       string    `gorm:"size:64;not null;index"`
	Winner          string    `gorm:"size:16;not null"`
	Reason          string    `gorm:"size:16;not null"`
	GameTimeSeconds float64   `gorm:"not null"`
	CoinsCollected  int       `gorm:"not null"`
	TotalCoins      int       `gorm:"not null"`
	CriminalDelta   int       `gorm:"not null"`
	CopDelta        int       `gorm:"not null"`
	PlayedAt        time.Time `gorm:"autoCreateTime;index"`
}

func (GormGameRecord) TableName() string {
	return "game_records"
}

// ToRecord converts the GORM row to the transport-neutral record.
func (g *GormRating) ToRecord() *RatingRecord {
	return &RatingRecord{
		UserID:        g.UserID,
		Username:      g.Username,
		Points:        g.Points,
		Tier:          g.Tier,
		WinStreak:     g.WinStreak,
		BestWinStreak: g.BestWinStreak,
		Stats:         g.Stats,
		UpdatedAt:     g.UpdatedAt,
	}
}

// FromRecord fills the GORM row from the transport-neutral record.
func (g *GormRating) FromRecord(r *RatingRecord) {
	g.UserID = r.UserID
	g.Username = r.Username
	g.Points = r.Points
	g.Tier = r.Tier
	g.WinStreak = r.WinStreak
	g.BestWinStreak = r.BestWinStreak
	g.Stats = r.Stats
	g.UpdatedAt = r.UpdatedAt
}
