// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/wfunc/chaseserver/models"
)

// ErrNotFound 查询不到记录
var ErrNotFound = errors.New("record not found")

// Database 天梯档案与对局归档的存储接口。
// 两套实现：raw database/sql 与 GORM，按配置选用。
type Database interface {
	// EnsureRating 不存在则以默认 1000 分建档，存在则同步最新用户名
	EnsureRating(userID, username string) (*models.RatingRecord, error)
	LoadRating(userID string) (*models.RatingRecord, error)
	SaveRating(record *models.RatingRecord) error
	SaveGameRecord(record *models.GameRecord) error
	// TopRatings 按分数降序取前 limit 名
	TopRatings(limit int) ([]*models.RatingRecord, error)
	Close() error
}
