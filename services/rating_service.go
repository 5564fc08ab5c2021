// services/rating_service.go
package services

import (
	"time"

	"github.com/wfunc/chaseserver/game"
	"github.com/wfunc/chaseserver/logger"
	"github.com/wfunc/chaseserver/models"
	"github.com/wfunc/chaseserver/persistence"
	"github.com/wfunc/chaseserver/ranking"
	"github.com/wfunc/chaseserver/state"
)

// MatchObserver 结算侧的监控口子。*monitor.Monitor 实现它。
type MatchObserver interface {
	ObserveMatchDuration(duration time.Duration)
}

// RatingService 天梯结算服务。结算结果同步返回给调用方广播，
// 数据库落盘放到后台协程，慢库不能拖住对局收尾。
type RatingService struct {
	db  persistence.Database
	mon MatchObserver // 可为 nil
}

func NewRatingService(db persistence.Database, mon MatchObserver) *RatingService {
	return &RatingService{db: db, mon: mon}
}

// SettleMatch computes both sides' rating change and persists the new
// standings plus a game record. Persistence failures are logged and
// swallowed; the settlement the players see is already decided.
func (s *RatingService) SettleMatch(criminal, cop state.PlayerRef, outcome ranking.GameOutcome) *ranking.MatchResult {
	criminalRecord, err := s.db.EnsureRating(criminal.UserID, criminal.Username)
	if err != nil {
		logger.Log.Errorf("settle: load criminal %s failed: %v", criminal.UserID, err)
		return nil
	}
	copRecord, err := s.db.EnsureRating(cop.UserID, cop.Username)
	if err != nil {
		logger.Log.Errorf("settle: load cop %s failed: %v", cop.UserID, err)
		return nil
	}

	result := ranking.ApplyResult(
		ranking.Standing{
			UserID:    criminalRecord.UserID,
			Username:  criminalRecord.Username,
			Points:    criminalRecord.Points,
			WinStreak: criminalRecord.WinStreak,
		},
		ranking.Standing{
			UserID:    copRecord.UserID,
			Username:  copRecord.Username,
			Points:    copRecord.Points,
			WinStreak: copRecord.WinStreak,
		},
		outcome,
	)

	applySide(criminalRecord, result.Criminal, outcome)
	applySide(copRecord, result.Cop, outcome)

	if s.mon != nil {
		s.mon.ObserveMatchDuration(time.Duration(outcome.GameTime) * time.Second)
	}

	go s.persist(criminalRecord, copRecord, criminal, cop, outcome, result)

	return &result
}

// applySide folds one side's settlement into its stored record.
func applySide(record *models.RatingRecord, side ranking.SideResult, outcome ranking.GameOutcome) {
	record.Points = side.NewPoints
	record.Tier = side.NewTier

	record.Stats.GamesPlayed++
	if side.Role == game.RoleCop {
		record.Stats.CopGames++
	} else {
		record.Stats.CriminalGames++
		record.Stats.TotalCoinsCollected += outcome.CoinsCollected
	}

	if side.Won {
		record.Stats.GamesWon++
		record.Stats.SeasonWins++
		record.WinStreak++
		if record.WinStreak > record.BestWinStreak {
			record.BestWinStreak = record.WinStreak
		}
		if side.Role == game.RoleCop {
			record.Stats.CopWins++
			if outcome.Reason == game.EndCaught {
				record.Stats.TotalCatches++
			}
		} else {
			record.Stats.CriminalWins++
			if outcome.Reason == game.EndEscaped {
				record.Stats.TotalEscapes++
			}
		}
	} else {
		record.Stats.GamesLost++
		record.WinStreak = 0
	}
}

func (s *RatingService) persist(criminalRecord, copRecord *models.RatingRecord,
	criminal, cop state.PlayerRef, outcome ranking.GameOutcome, result ranking.MatchResult) {

	if err := s.db.SaveRating(criminalRecord); err != nil {
		logger.Log.Errorf("settle: save criminal %s failed: %v", criminal.UserID, err)
	}
	if err := s.db.SaveRating(copRecord); err != nil {
		logger.Log.Errorf("settle: save cop %s failed: %v", cop.UserID, err)
	}

	record := &models.GameRecord{
		RoomID:          outcome.RoomID,
		MapKey:          outcome.MapKey,
		CriminalUserID:  criminal.UserID,
		CopUserID:       cop.UserID,
		Winner:          string(outcome.Winner),
		Reason:          string(outcome.Reason),
		GameTimeSeconds: float64(outcome.GameTime),
		CoinsCollected:  outcome.CoinsCollected,
		TotalCoins:      outcome.TotalCoins,
		CriminalDelta:   result.Criminal.PointsChange,
		CopDelta:        result.Cop.PointsChange,
	}
	if err := s.db.SaveGameRecord(record); err != nil {
		logger.Log.Errorf("settle: save game record for room %s failed: %v", outcome.RoomID, err)
	}
}
