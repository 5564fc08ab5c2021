package game

import (
	"math"
	"testing"
	"time"
)

// newTestMatch builds a match with a controllable clock.
func newTestMatch(t *testing.T, mapKey string, trustClient bool) (*Match, *time.Time) {
	t.Helper()
	m, ok := GetMap(mapKey)
	if !ok {
		t.Fatalf("map %s missing from catalog", mapKey)
	}
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	match := NewMatch(m, trustClient)
	match.now = func() time.Time { return clock }
	match.startTime = clock
	return match, &clock
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMatch_MoveClampsToSpeed(t *testing.T) {
	match, _ := newTestMatch(t, "easy", false)

	startX, startY := match.Position(RoleCriminal)
	x, y, moved := match.Move(RoleCriminal, 100, 0)
	if !moved {
		t.Fatal("move should succeed in open space")
	}
	if !almostEqual(x-startX, CriminalSpeed) {
		t.Errorf("expected dx clamped to %.1f, got %.2f", CriminalSpeed, x-startX)
	}
	if y != startY {
		t.Errorf("y should not change, got %.1f", y)
	}

	// 反方向同样受限
	x2, _, _ := match.Move(RoleCriminal, -100, 0)
	if !almostEqual(x-x2, CriminalSpeed) {
		t.Errorf("expected reverse dx clamped to %.1f, got %.2f", CriminalSpeed, x-x2)
	}
}

func TestMatch_MoveSlidesAlongWall(t *testing.T) {
	match, _ := newTestMatch(t, "easy", false)

	// 紧贴竖墙 {600,100,15,200} 的左侧
	match.SetPosition(RoleCriminal, 600-PlayerSize-1, 150)

	x0, y0 := match.Position(RoleCriminal)
	x, y, moved := match.Move(RoleCriminal, 4, 3)
	if !moved {
		t.Fatal("slide along the wall should count as movement")
	}
	if x != x0 {
		t.Errorf("x should be blocked by the wall, got %.1f want %.1f", x, x0)
	}
	if y != y0+3 {
		t.Errorf("y should slide, got %.1f want %.1f", y, y0+3)
	}
}

func TestMatch_FreezeStopsCop(t *testing.T) {
	match, clock := newTestMatch(t, "medium", true)

	// medium 犯人道具池的 2 号是 FREEZE
	typ, duration, ok := match.CollectPowerup(RoleCriminal, 2)
	if !ok || typ != PowerupFreeze {
		t.Fatalf("expected FREEZE pickup, got %v ok=%v", typ, ok)
	}
	if duration != 2000 {
		t.Errorf("freeze duration should be 2000ms, got %d", duration)
	}

	if _, _, moved := match.Move(RoleCop, 1, 0); moved {
		t.Error("frozen cop must not move")
	}

	*clock = clock.Add(2100 * time.Millisecond)
	expired := match.ExpireEffects()
	if len(expired) != 1 || expired[0].Type != PowerupFreeze || expired[0].Role != RoleCop {
		t.Fatalf("expected freeze expiry for cop, got %v", expired)
	}
	if _, _, moved := match.Move(RoleCop, 1, 0); !moved {
		t.Error("cop should move again after the freeze expires")
	}
}

func TestMatch_CollectCoinValidatesProximity(t *testing.T) {
	match, _ := newTestMatch(t, "easy", false)

	// 出生点远离 0 号金币
	if _, ok := match.CollectCoin(RoleCriminal, 0); ok {
		t.Error("coin far away must not be collectable")
	}

	// 站到金币上
	coin := match.Map.Coins[0]
	match.SetPosition(RoleCriminal, coin.X-PlayerSize/2, coin.Y-PlayerSize/2)
	collected, ok := match.CollectCoin(RoleCriminal, 0)
	if !ok || collected != 1 {
		t.Fatalf("expected first coin collected, got %d ok=%v", collected, ok)
	}

	// 重复拾取无效
	if _, ok := match.CollectCoin(RoleCriminal, 0); ok {
		t.Error("a coin must not be collected twice")
	}
	// 警察不能拾取
	if _, ok := match.CollectCoin(RoleCop, 1); ok {
		t.Error("cop must not collect coins")
	}
}

func TestMatch_PowerupPoolsArePerRole(t *testing.T) {
	match, _ := newTestMatch(t, "easy", true)

	typ, duration, ok := match.CollectPowerup(RoleCriminal, 0)
	if !ok || typ != PowerupSpeed || duration != 5000 {
		t.Fatalf("criminal SPEED should last 5000ms, got %v/%d ok=%v", typ, duration, ok)
	}
	if _, _, ok := match.CollectPowerup(RoleCriminal, 0); ok {
		t.Error("a power-up spot must not be taken twice")
	}

	// 警察池的 0 号是 TASER，与犯人池互不影响
	typ, duration, ok = match.CollectPowerup(RoleCop, 0)
	if !ok || typ != PowerupTaser || duration != 3000 {
		t.Fatalf("cop TASER should last 3000ms, got %v/%d ok=%v", typ, duration, ok)
	}
}

func TestMatch_SpeedBoostRaisesCap(t *testing.T) {
	match, clock := newTestMatch(t, "easy", true)

	match.CollectPowerup(RoleCriminal, 0) // SPEED x1.6
	match.SetPosition(RoleCriminal, 400, 400)
	x0, _ := match.Position(RoleCriminal)
	x, _, _ := match.Move(RoleCriminal, 100, 0)
	if want := CriminalSpeed * 1.6; !almostEqual(x-x0, want) {
		t.Errorf("boosted dx cap should be %.2f, got %.2f", want, x-x0)
	}

	// 到期后回到基础速度
	*clock = clock.Add(6 * time.Second)
	match.ExpireEffects()
	x1, _, _ := match.Move(RoleCriminal, 100, 0)
	if !almostEqual(x1-x, CriminalSpeed) {
		t.Errorf("dx cap should fall back to %.1f, got %.2f", CriminalSpeed, x1-x)
	}
}

func TestMatch_TeleporterCooldown(t *testing.T) {
	match, clock := newTestMatch(t, "easy", true)

	pad := match.Map.Teleporters[0]
	match.SetPosition(RoleCriminal, pad.X-PlayerSize/2, pad.Y-PlayerSize/2)

	x, y, ok := match.UseTeleporter(RoleCriminal)
	if !ok {
		t.Fatal("standing on a pad should teleport")
	}
	if x != pad.TargetX-PlayerSize/2 || y != pad.TargetY-PlayerSize/2 {
		t.Errorf("teleport landed at (%.0f, %.0f)", x, y)
	}

	// 目的地是对向传送垫，但冷却中的再次使用必须被忽略
	if _, _, ok := match.UseTeleporter(RoleCriminal); ok {
		t.Error("teleport inside the cooldown must be ignored")
	}

	*clock = clock.Add(1100 * time.Millisecond)
	if _, _, ok := match.UseTeleporter(RoleCriminal); !ok {
		t.Error("teleport should work again after the cooldown")
	}
}

func TestMatch_InvisibilityBlocksCatchUnlessTaser(t *testing.T) {
	match, _ := newTestMatch(t, "easy", true)

	// 叠在一起，正常情况下是抓捕
	match.SetPosition(RoleCop, 400, 400)
	match.SetPosition(RoleCriminal, 405, 405)
	if !match.CheckCatch() {
		t.Fatal("overlapping players should be a catch")
	}

	// 犯人隐身后抓不到
	match.CollectPowerup(RoleCriminal, 1) // INVISIBILITY
	if match.CheckCatch() {
		t.Error("invisible criminal must not be catchable")
	}

	// 电击枪无视隐身
	match.CollectPowerup(RoleCop, 0) // TASER
	if !match.CheckCatch() {
		t.Error("taser must catch through invisibility")
	}
}

func TestMatch_EscapeNeedsAllCoins(t *testing.T) {
	match, _ := newTestMatch(t, "easy", true)

	exit := match.Map.ExitZone
	match.SetPosition(RoleCriminal, exit.X+10, exit.Y+10)
	if match.CheckEscape() {
		t.Fatal("escape must require every coin first")
	}

	for i := range match.Map.Coins {
		if _, ok := match.CollectCoin(RoleCriminal, i); !ok {
			t.Fatalf("trusted mode should accept coin %d", i)
		}
	}
	if !match.CheckEscape() {
		t.Error("criminal with all coins in the exit zone should escape")
	}
}

func TestMatch_OutcomeDecidedOnce(t *testing.T) {
	match, _ := newTestMatch(t, "easy", false)

	if !match.SetOutcome(RoleCop, EndCaught) {
		t.Fatal("first outcome should win")
	}
	if match.SetOutcome(RoleCriminal, EndEscaped) {
		t.Fatal("second outcome must lose the race")
	}
	winner, reason, ok := match.Outcome()
	if !ok || winner != RoleCop || reason != EndCaught {
		t.Errorf("outcome = %v/%v ok=%v", winner, reason, ok)
	}

	// 定局后一切操作失效
	if _, _, moved := match.Move(RoleCriminal, 1, 0); moved {
		t.Error("movement after the outcome must be rejected")
	}
	if _, ok := match.CollectCoin(RoleCriminal, 0); ok {
		t.Error("coin collection after the outcome must be rejected")
	}
	if match.CheckCatch() || match.CheckEscape() {
		t.Error("win checks after the outcome must be false")
	}
}

func TestMatch_RemainingCountsDown(t *testing.T) {
	match, clock := newTestMatch(t, "easy", false)

	if got := match.Remaining(); got != 90 {
		t.Fatalf("fresh easy match should have 90s, got %d", got)
	}
	*clock = clock.Add(30 * time.Second)
	if got := match.Remaining(); got != 60 {
		t.Errorf("after 30s remaining should be 60, got %d", got)
	}
	*clock = clock.Add(61 * time.Second)
	if got := match.Remaining(); got > 0 {
		t.Errorf("remaining should hit zero, got %d", got)
	}
}

func TestMap_HitsWallAndBounds(t *testing.T) {
	m, _ := GetMap("easy")

	if !m.HitsWall(-1, 100) || !m.HitsWall(100, -1) {
		t.Error("positions outside the map must collide")
	}
	if !m.HitsWall(m.Width-PlayerSize+1, 100) {
		t.Error("right edge overflow must collide")
	}
	// 墙内一点
	if !m.HitsWall(150, 95) {
		t.Error("overlap with a wall rect must collide")
	}
	// 空地
	if m.HitsWall(400, 400) {
		t.Error("open floor must not collide")
	}
}

func TestMapKeysMatchCatalog(t *testing.T) {
	keys := MapKeys()
	if len(keys) != len(Maps) {
		t.Fatalf("expected %d keys, got %d", len(Maps), len(keys))
	}
	seen := make(map[string]bool)
	for _, key := range keys {
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
		if _, ok := GetMap(key); !ok {
			t.Errorf("key %q does not resolve to a map", key)
		}
	}
}
