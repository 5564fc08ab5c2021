package ranking

import (
	"testing"

	"github.com/wfunc/chaseserver/game"
)

func TestExpectedScore(t *testing.T) {
	if got := ExpectedScore(1000, 1000); got != 0.5 {
		t.Errorf("equal ratings should expect 0.5, got %f", got)
	}
	if got := ExpectedScore(1400, 1000); got <= 0.5 {
		t.Errorf("favourite should expect above 0.5, got %f", got)
	}
	favourite := ExpectedScore(1200, 1000)
	underdog := ExpectedScore(1000, 1200)
	if diff := favourite + underdog; diff < 0.999 || diff > 1.001 {
		t.Errorf("expectations should sum to 1, got %f", diff)
	}
}

func TestTierOf(t *testing.T) {
	cases := []struct {
		points int
		tier   string
	}{
		{0, TierBronze},
		{999, TierBronze},
		{1000, TierSilver},
		{1199, TierSilver},
		{1200, TierGold},
		{1500, TierPlatinum},
		{2000, TierDiamond},
		{2500, TierMaster},
		{2999, TierMaster},
		{3000, TierLegend},
		{4200, TierLegend},
	}
	for _, c := range cases {
		if got := TierOf(c.points); got != c.tier {
			t.Errorf("TierOf(%d) = %s, want %s", c.points, got, c.tier)
		}
	}
}

func TestPointsChange_WinFloor(t *testing.T) {
	// 高分打低分，Elo 增量趋近于零，但赢家保底
	change := PointsChange(2800, 1000, true, Bonuses{})
	if change < 13 {
		t.Errorf("a win should award at least 13, got %d", change)
	}
}

func TestPointsChange_LossFloorAndCloseGame(t *testing.T) {
	// 高分打低分输了，扣分很重
	heavy := PointsChange(1000, 1000, false, Bonuses{})
	if heavy > -5 {
		t.Errorf("a loss should cost at least 5, got %d", heavy)
	}

	// 低分输给高分，Elo 增量接近零，仍然至少扣 5
	light := PointsChange(1000, 2800, false, Bonuses{})
	if light > -5 {
		t.Errorf("even an expected loss should cost at least 5, got %d", light)
	}

	// 鏖战衰减到七成
	attenuated := PointsChange(1000, 1000, false, Bonuses{CloseGame: true})
	if attenuated != round(float64(heavy)*0.7) {
		t.Errorf("close game loss should be 70%% of %d, got %d", heavy, attenuated)
	}
}

func TestPointsChange_WinBonusesStack(t *testing.T) {
	base := PointsChange(1000, 1000, true, Bonuses{})
	if base != 16 {
		t.Fatalf("equal-rating win should be K/2 = 16, got %d", base)
	}

	fast := PointsChange(1000, 1000, true, Bonuses{FastWin: true})
	if fast != base+round(float64(base)*0.2) {
		t.Errorf("fast win should add 20%%, got %d", fast)
	}

	perfect := PointsChange(1000, 1000, true, Bonuses{PerfectGame: true})
	if perfect != base+10 {
		t.Errorf("perfect game should add 10, got %d", perfect)
	}

	// 连胜从 3 开始计，封顶 20
	if got := PointsChange(1000, 1000, true, Bonuses{WinStreak: 2}); got != base {
		t.Errorf("a streak of 2 should add nothing, got %d", got)
	}
	if got := PointsChange(1000, 1000, true, Bonuses{WinStreak: 3}); got != base+6 {
		t.Errorf("a streak of 3 should add 6, got %d", got)
	}
	if got := PointsChange(1000, 1000, true, Bonuses{WinStreak: 15}); got != base+20 {
		t.Errorf("streak bonus should cap at 20, got %d", got)
	}

	// 以下克上，分差超过 100 每 50 分加 1
	underdog := PointsChange(1000, 1200, true, Bonuses{})
	straight := round(KFactor * (1 - ExpectedScore(1000, 1200)))
	if underdog != straight+4 {
		t.Errorf("underdog win over +200 should add 4, got %d (straight %d)", underdog, straight)
	}
}

func TestOutcomeBonuses(t *testing.T) {
	// 90 秒限时，40 秒全金币逃脱：快胜 + 完美
	o := GameOutcome{
		Winner:         game.RoleCriminal,
		Reason:         game.EndEscaped,
		GameTime:       40,
		TimeLimit:      90,
		CoinsCollected: 8,
		TotalCoins:     8,
	}
	b := OutcomeBonuses(o)
	if !b.FastWin {
		t.Error("40s of 90s should be a fast win")
	}
	if !b.PerfectGame {
		t.Error("all coins under 60s should be a perfect game")
	}
	if b.CloseGame {
		t.Error("40s of 90s is not a close game")
	}

	// 45 秒正好是一半，不算快胜
	o.GameTime = 45
	if OutcomeBonuses(o).FastWin {
		t.Error("exactly half the limit must not count as fast")
	}

	// 鏖战阈值 80%
	o.GameTime = 72
	if !OutcomeBonuses(o).CloseGame {
		t.Error("72s of 90s should be a close game")
	}
}

func TestApplyResult_EqualRatingsEscape(t *testing.T) {
	criminal := Standing{UserID: "c1", Username: "bonnie", Points: 1000}
	cop := Standing{UserID: "p1", Username: "clyde", Points: 1000}
	outcome := GameOutcome{
		Winner:         game.RoleCriminal,
		Reason:         game.EndEscaped,
		GameTime:       40,
		TimeLimit:      90,
		CoinsCollected: 8,
		TotalCoins:     8,
		MapKey:         "easy",
	}

	result := ApplyResult(criminal, cop, outcome)

	// 16 基础 + 3 快胜 + 10 完美 = 29
	if result.Criminal.PointsChange != 29 {
		t.Errorf("criminal change = %d, want 29", result.Criminal.PointsChange)
	}
	if result.Criminal.NewPoints != 1029 || result.Criminal.NewTier != TierSilver {
		t.Errorf("criminal landed at %d/%s", result.Criminal.NewPoints, result.Criminal.NewTier)
	}
	if !result.Criminal.Won || result.Cop.Won {
		t.Error("won flags inverted")
	}
	if result.Cop.PointsChange != -16 {
		t.Errorf("cop change = %d, want -16", result.Cop.PointsChange)
	}
	if result.Cop.NewPoints != 984 || result.Cop.NewTier != TierBronze {
		t.Errorf("cop landed at %d/%s", result.Cop.NewPoints, result.Cop.NewTier)
	}
}

func TestApplyResult_PointsNeverNegative(t *testing.T) {
	criminal := Standing{UserID: "c1", Username: "bonnie", Points: 3}
	cop := Standing{UserID: "p1", Username: "clyde", Points: 1000}
	outcome := GameOutcome{
		Winner:    game.RoleCop,
		Reason:    game.EndCaught,
		GameTime:  30,
		TimeLimit: 90,
	}

	result := ApplyResult(criminal, cop, outcome)
	if result.Criminal.NewPoints != 0 {
		t.Errorf("points must floor at 0, got %d", result.Criminal.NewPoints)
	}
	if result.Criminal.NewTier != TierBronze {
		t.Errorf("floored player should be Bronze, got %s", result.Criminal.NewTier)
	}
}

func TestApplyResult_UsesPriorRatingsForBothSides(t *testing.T) {
	// 双方结算都基于赛前分数，谁先算不影响结果
	criminal := Standing{UserID: "c1", Username: "bonnie", Points: 1300, WinStreak: 4}
	cop := Standing{UserID: "p1", Username: "clyde", Points: 1100}
	outcome := GameOutcome{
		Winner:    game.RoleCriminal,
		Reason:    game.EndEscaped,
		GameTime:  80,
		TimeLimit: 90,
	}

	result := ApplyResult(criminal, cop, outcome)

	wantCriminal := PointsChange(1300, 1100, true, Bonuses{CloseGame: true, WinStreak: 5})
	wantCop := PointsChange(1100, 1300, false, Bonuses{CloseGame: true})
	if result.Criminal.PointsChange != wantCriminal {
		t.Errorf("criminal change = %d, want %d", result.Criminal.PointsChange, wantCriminal)
	}
	if result.Cop.PointsChange != wantCop {
		t.Errorf("cop change = %d, want %d", result.Cop.PointsChange, wantCop)
	}
}
