// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wfunc/chaseserver/models"
	"github.com/wfunc/chaseserver/ranking"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormRating{}, &models.GormGameRecord{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (g *GormPostgreSQL) EnsureRating(userID, username string) (*models.RatingRecord, error) {
	var row models.GormRating
	err := g.db.First(&row, "user_id = ?", userID).Error
	if err == nil {
		if row.Username != username {
			row.Username = username
			if err := g.db.Save(&row).Error; err != nil {
				return nil, err
			}
		}
		return row.ToRecord(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	row = models.GormRating{
		UserID:   userID,
		Username: username,
		Points:   ranking.InitialRating,
		Tier:     ranking.TierOf(ranking.InitialRating),
	}
	if err := g.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, err
	}
	return row.ToRecord(), nil
}

func (g *GormPostgreSQL) LoadRating(userID string) (*models.RatingRecord, error) {
	var row models.GormRating
	err := g.db.First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.ToRecord(), nil
}

func (g *GormPostgreSQL) SaveRating(record *models.RatingRecord) error {
	var row models.GormRating
	row.FromRecord(record)
	return g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (g *GormPostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	row := models.GormGameRecord{
		RoomID:          record.RoomID,
		MapKey:          record.MapKey,
		CriminalUserID:  record.CriminalUserID,
		CopUserID:       record.CopUserID,
		Winner:          record.Winner,
		Reason:          record.Reason,
		GameTimeSeconds: record.GameTimeSeconds,
		CoinsCollected:  record.CoinsCollected,
		TotalCoins:      record.TotalCoins,
		CriminalDelta:   record.CriminalDelta,
		CopDelta:        record.CopDelta,
	}
	return g.db.Create(&row).Error
}

func (g *GormPostgreSQL) TopRatings(limit int) ([]*models.RatingRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.GormRating
	if err := g.db.Order("points DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]*models.RatingRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].ToRecord())
	}
	return records, nil
}

func (g *GormPostgreSQL) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
