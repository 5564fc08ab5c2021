// ranking/ranking.go
package ranking

import (
	"math"

	"github.com/wfunc/chaseserver/game"
)

// Elo 积分参数
const (
	KFactor       = 32
	BasePoints    = 25
	InitialRating = 1000
)

// Tier thresholds, highest first.
const (
	TierLegend   = "Legend"
	TierMaster   = "Master"
	TierDiamond  = "Diamond"
	TierPlatinum = "Platinum"
	TierGold     = "Gold"
	TierSilver   = "Silver"
	TierBronze   = "Bronze"
)

// Bonuses 影响单侧积分变化的附加条件
type Bonuses struct {
	FastWin     bool // finished under half the time limit
	PerfectGame bool // criminal swept all coins and escaped under 60s
	CloseGame   bool // match used at least 80% of the time limit
	WinStreak   int  // streak including this game, 0 on a loss
}

// Standing 单个玩家赛前的积分信息
type Standing struct {
	UserID    string
	Username  string
	Points    int
	WinStreak int
}

// GameOutcome 一局结束时由模拟循环汇总的结果数据
type GameOutcome struct {
	Winner         game.Role
	Reason         game.EndReason
	GameTime       int // seconds
	TimeLimit      int // seconds
	CoinsCollected int
	TotalCoins     int
	MapKey         string
	RoomID         string
}

// SideResult 单侧玩家的结算结果
type SideResult struct {
	Role         game.Role `json:"role"`
	Username     string    `json:"username"`
	PointsChange int       `json:"pointsChange"`
	NewPoints    int       `json:"newPoints"`
	NewTier      string    `json:"newTier"`
	Won          bool      `json:"won"`
}

// MatchResult 双方结算结果，随 game-ended 下发并由调用方持久化
type MatchResult struct {
	Criminal SideResult `json:"criminal"`
	Cop      SideResult `json:"cop"`
}

// ExpectedScore is the standard logistic rating expectation: 0.5 for equal
// ratings, above 0.5 for the favourite.
func ExpectedScore(rating, opponent int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponent-rating)/400))
}

// round rounds half away from zero, matching the arithmetic the rating
// history was accumulated with.
func round(f float64) int {
	if f >= 0 {
		return int(math.Floor(f + 0.5))
	}
	return int(math.Ceil(f - 0.5))
}

// PointsChange computes one side's rating delta.
//
// Wins stack fast-win (+20% of base), perfect-game (+10), streak
// (min(streak*2, 20) from a streak of 3) and underdog (gap/50 beyond a
// 100-point gap) bonuses, then are floored at round(BasePoints/2) so a win
// never feels worthless. Losses cost at least 5 points; a close game
// attenuates the loss to 70%.
func PointsChange(rating, opponent int, won bool, b Bonuses) int {
	expected := ExpectedScore(rating, opponent)
	actual := 0.0
	if won {
		actual = 1.0
	}
	change := round(KFactor * (actual - expected))

	if won {
		if b.FastWin {
			change += round(float64(change) * 0.2)
		}
		if b.PerfectGame {
			change += 10
		}
		if b.WinStreak >= 3 {
			streakBonus := b.WinStreak * 2
			if streakBonus > 20 {
				streakBonus = 20
			}
			change += streakBonus
		}
		if opponent-rating > 100 {
			change += round(float64(opponent-rating) / 50)
		}
		if floor := round(float64(BasePoints) / 2); change < floor {
			change = floor
		}
	} else {
		if change > -5 {
			change = -5
		}
		if b.CloseGame {
			change = round(float64(change) * 0.7)
		}
	}
	return change
}

// TierOf maps points onto the fixed tier ladder.
func TierOf(points int) string {
	switch {
	case points >= 3000:
		return TierLegend
	case points >= 2500:
		return TierMaster
	case points >= 2000:
		return TierDiamond
	case points >= 1500:
		return TierPlatinum
	case points >= 1200:
		return TierGold
	case points >= 1000:
		return TierSilver
	default:
		return TierBronze
	}
}

// OutcomeBonuses derives the shared bonus conditions from the outcome.
// Fast win is under 50% of the limit, close game at or beyond 80%.
func OutcomeBonuses(o GameOutcome) Bonuses {
	return Bonuses{
		FastWin: o.GameTime < o.TimeLimit/2,
		PerfectGame: o.Winner == game.RoleCriminal &&
			o.CoinsCollected == o.TotalCoins && o.GameTime < 60,
		CloseGame: float64(o.GameTime) >= float64(o.TimeLimit)*0.8,
	}
}

// ApplyResult computes both sides' settlement from their prior standings.
// Each delta uses the opponent's pre-match rating, so the order of the two
// computations cannot influence either result. Points never drop below 0.
func ApplyResult(criminal, cop Standing, o GameOutcome) MatchResult {
	bonuses := OutcomeBonuses(o)
	criminalWon := o.Winner == game.RoleCriminal

	criminalBonuses := bonuses
	criminalBonuses.WinStreak = 0
	if criminalWon {
		criminalBonuses.WinStreak = criminal.WinStreak + 1
	}
	copBonuses := bonuses
	copBonuses.WinStreak = 0
	if !criminalWon {
		copBonuses.WinStreak = cop.WinStreak + 1
	}

	criminalChange := PointsChange(criminal.Points, cop.Points, criminalWon, criminalBonuses)
	copChange := PointsChange(cop.Points, criminal.Points, !criminalWon, copBonuses)

	criminalPoints := criminal.Points + criminalChange
	if criminalPoints < 0 {
		criminalPoints = 0
	}
	copPoints := cop.Points + copChange
	if copPoints < 0 {
		copPoints = 0
	}

	return MatchResult{
		Criminal: SideResult{
			Role:         game.RoleCriminal,
			Username:     criminal.Username,
			PointsChange: criminalChange,
			NewPoints:    criminalPoints,
			NewTier:      TierOf(criminalPoints),
			Won:          criminalWon,
		},
		Cop: SideResult{
			Role:         game.RoleCop,
			Username:     cop.Username,
			PointsChange: copChange,
			NewPoints:    copPoints,
			NewTier:      TierOf(copPoints),
			Won:          !criminalWon,
		},
	}
}
