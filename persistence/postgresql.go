// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/chaseserver/models"
	"github.com/wfunc/chaseserver/ranking"
)

// PostgreSQL raw database/sql 实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS ratings (
            user_id VARCHAR(64) PRIMARY KEY,
            username VARCHAR(64) NOT NULL,
            points INTEGER NOT NULL DEFAULT 1000,
            tier VARCHAR(32) NOT NULL,
            win_streak INTEGER NOT NULL DEFAULT 0,
            best_win_streak INTEGER NOT NULL DEFAULT 0,
            stats JSONB NOT NULL DEFAULT '{}',
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(16) NOT NULL,
            map_key VARCHAR(32) NOT NULL,
            criminal_user_id VARCHAR(64) NOT NULL,
            cop_user_id VARCHAR(64) NOT NULL,
            winner VARCHAR(16) NOT NULL,
            reason VARCHAR(16) NOT NULL,
            game_time_seconds DOUBLE PRECISION NOT NULL,
            coins_collected INTEGER NOT NULL,
            total_coins INTEGER NOT NULL,
            criminal_delta INTEGER NOT NULL,
            cop_delta INTEGER NOT NULL,
            played_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_ratings_points ON ratings (points DESC)`)
	return err
}

func (p *PostgreSQL) EnsureRating(userID, username string) (*models.RatingRecord, error) {
	record, err := p.LoadRating(userID)
	if err == nil {
		if record.Username != username {
			record.Username = username
			if err := p.SaveRating(record); err != nil {
				return nil, err
			}
		}
		return record, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	record = &models.RatingRecord{
		UserID:   userID,
		Username: username,
		Points:   ranking.InitialRating,
		Tier:     ranking.TierOf(ranking.InitialRating),
	}
	stats, err := json.Marshal(record.Stats)
	if err != nil {
		return nil, err
	}
	_, err = p.db.Exec(`
        INSERT INTO ratings (user_id, username, points, tier, win_streak, best_win_streak, stats)
        VALUES ($1, $2, $3, $4, 0, 0, $5)
        ON CONFLICT (user_id) DO NOTHING
    `, record.UserID, record.Username, record.Points, record.Tier, stats)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (p *PostgreSQL) LoadRating(userID string) (*models.RatingRecord, error) {
	row := p.db.QueryRow(`
        SELECT user_id, username, points, tier, win_streak, best_win_streak, stats, updated_at
        FROM ratings WHERE user_id = $1
    `, userID)
	return scanRating(row)
}

func (p *PostgreSQL) SaveRating(record *models.RatingRecord) error {
	stats, err := json.Marshal(record.Stats)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`
        INSERT INTO ratings (user_id, username, points, tier, win_streak, best_win_streak, stats, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
        ON CONFLICT (user_id) DO UPDATE SET
            username = EXCLUDED.username,
            points = EXCLUDED.points,
            tier = EXCLUDED.tier,
            win_streak = EXCLUDED.win_streak,
            best_win_streak = EXCLUDED.best_win_streak,
            stats = EXCLUDED.stats,
            updated_at = CURRENT_TIMESTAMP
    `, record.UserID, record.Username, record.Points, record.Tier,
		record.WinStreak, record.BestWinStreak, stats)
	return err
}

func (p *PostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	_, err := p.db.Exec(`
        INSERT INTO game_records (room_id, map_key, criminal_user_id, cop_user_id,
            winner, reason, game_time_seconds, coins_collected, total_coins,
            criminal_delta, cop_delta)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, record.RoomID, record.MapKey, record.CriminalUserID, record.CopUserID,
		record.Winner, record.Reason, record.GameTimeSeconds,
		record.CoinsCollected, record.TotalCoins,
		record.CriminalDelta, record.CopDelta)
	return err
}

func (p *PostgreSQL) TopRatings(limit int) ([]*models.RatingRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.db.Query(`
        SELECT user_id, username, points, tier, win_streak, best_win_streak, stats, updated_at
        FROM ratings ORDER BY points DESC LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.RatingRecord
	for rows.Next() {
		record, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRating(row scanner) (*models.RatingRecord, error) {
	var record models.RatingRecord
	var stats []byte
	err := row.Scan(&record.UserID, &record.Username, &record.Points, &record.Tier,
		&record.WinStreak, &record.BestWinStreak, &stats, &record.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &record.Stats); err != nil {
			return nil, err
		}
	}
	return &record, nil
}
