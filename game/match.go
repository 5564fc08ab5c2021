// game/match.go
package game

import (
	"sync"
	"time"
)

// EndReason 对局结束原因
type EndReason string

const (
	EndTimeout EndReason = "timeout"
	EndCaught  EndReason = "caught"
	EndEscaped EndReason = "escaped"
)

// EntityState 单个角色在对局中的实时状态
type EntityState struct {
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Powerup    PowerupType `json:"powerup,omitempty"`
	PowerupEnd int64       `json:"powerupEndTime,omitempty"` // unix ms
}

// ExpiredEffect 到期的道具效果，用于对外广播 powerup-ended
type ExpiredEffect struct {
	Role Role        `json:"role"`
	Type PowerupType `json:"type"`
}

// Match is the authoritative state of one round. All mutation goes through
// its methods; the mutex keeps the two players' racing intents serialized.
type Match struct {
	mu sync.Mutex

	Map         *MapDef
	TrustClient bool

	startTime time.Time
	endTime   time.Time
	criminal  EntityState
	cop       EntityState
	copFrozen bool
	frozenEnd time.Time

	coinsCollected map[int]struct{}
	powerupsTaken  map[Role]map[int]struct{}
	teleportReady  map[Role]time.Time

	winner Role
	reason EndReason

	now func() time.Time // injectable clock for tests
}

// NewMatch seeds a match from the map's spawn points. The criminal spawns
// at the far side from the cop per the map definition.
func NewMatch(m *MapDef, trustClient bool) *Match {
	match := &Match{
		Map:            m,
		TrustClient:    trustClient,
		criminal:       EntityState{X: m.CriminalSpawn.X, Y: m.CriminalSpawn.Y},
		cop:            EntityState{X: m.CopSpawn.X, Y: m.CopSpawn.Y},
		coinsCollected: make(map[int]struct{}),
		powerupsTaken: map[Role]map[int]struct{}{
			RoleCriminal: {},
			RoleCop:      {},
		},
		teleportReady: make(map[Role]time.Time),
		now:           time.Now,
	}
	match.startTime = match.now()
	return match
}

// Snapshot 对局状态的公开投影，随 game-started 下发
type Snapshot struct {
	StartTime         int64       `json:"startTime"` // unix ms
	TimeLimit         int         `json:"timeLimit"`
	Map               string      `json:"map"`
	Criminal          EntityState `json:"criminal"`
	Cop               CopState    `json:"cop"`
	CoinsCollected    []int       `json:"coinsCollected"`
	TotalCoins        int         `json:"totalCoins"`
	PowerupsCollected int         `json:"powerupsCollected"`
	Winner            Role        `json:"winner,omitempty"`
}

// CopState 在 EntityState 基础上附加冻结状态
type CopState struct {
	EntityState
	Frozen        bool  `json:"frozen"`
	FrozenEndTime int64 `json:"frozenEndTime,omitempty"` // unix ms
}

func (g *Match) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	coins := make([]int, 0, len(g.coinsCollected))
	for idx := range g.coinsCollected {
		coins = append(coins, idx)
	}
	taken := len(g.powerupsTaken[RoleCriminal]) + len(g.powerupsTaken[RoleCop])

	return Snapshot{
		StartTime:         g.startTime.UnixMilli(),
		TimeLimit:         g.Map.TimeLimit,
		Map:               g.Map.Key,
		Criminal:          g.criminal,
		Cop:               CopState{EntityState: g.cop, Frozen: g.copFrozen, FrozenEndTime: g.frozenEnd.UnixMilli()},
		CoinsCollected:    coins,
		TotalCoins:        len(g.Map.Coins),
		PowerupsCollected: taken,
		Winner:            g.winner,
	}
}

// Elapsed returns whole seconds since the match started (or until it ended).
func (g *Match) Elapsed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	end := g.now()
	if !g.endTime.IsZero() {
		end = g.endTime
	}
	return int(end.Sub(g.startTime) / time.Second)
}

// Remaining returns whole seconds left on the countdown.
func (g *Match) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	elapsed := int(g.now().Sub(g.startTime) / time.Second)
	return g.Map.TimeLimit - elapsed
}

// Ended reports whether a winner has been decided.
func (g *Match) Ended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winner != ""
}

// SetOutcome records the winner exactly once. Later calls lose the race and
// return false; the match state is frozen from the first call on.
func (g *Match) SetOutcome(winner Role, reason EndReason) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.winner != "" {
		return false
	}
	g.winner = winner
	g.reason = reason
	g.endTime = g.now()
	return true
}

// Outcome returns the decided winner and reason, ok=false while playing.
func (g *Match) Outcome() (Role, EndReason, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winner, g.reason, g.winner != ""
}

// CoinsCount returns collected and total coin counts.
func (g *Match) CoinsCount() (collected, total int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.coinsCollected), len(g.Map.Coins)
}

// Position returns the current coordinates for a role.
func (g *Match) Position(role Role) (x, y float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.entity(role)
	return e.X, e.Y
}

// entity must be called with the mutex held.
func (g *Match) entity(role Role) *EntityState {
	if role == RoleCriminal {
		return &g.criminal
	}
	return &g.cop
}

// maxSpeed must be called with the mutex held.
func (g *Match) maxSpeed(role Role) float64 {
	speed := CopSpeed
	boost := 1.5
	if role == RoleCriminal {
		speed = CriminalSpeed
		boost = 1.6
	}
	e := g.entity(role)
	if e.Powerup == PowerupSpeed && g.now().UnixMilli() < e.PowerupEnd {
		speed *= boost
	}
	return speed
}

func clampAxis(d, limit float64) float64 {
	if d > limit {
		return limit
	}
	if d < -limit {
		return -limit
	}
	return d
}

// Move applies a requested delta for a role under the validated policy:
// speed-capped per axis, rejected when frozen, wall collisions tried on
// each axis independently so the player can slide along a wall.
func (g *Match) Move(role Role, dx, dy float64) (x, y float64, moved bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.winner != "" {
		e := g.entity(role)
		return e.X, e.Y, false
	}
	if role == RoleCop && g.copFrozen && g.now().Before(g.frozenEnd) {
		return g.cop.X, g.cop.Y, false
	}

	limit := g.maxSpeed(role)
	dx = clampAxis(dx, limit)
	dy = clampAxis(dy, limit)

	e := g.entity(role)
	nx, ny := e.X+dx, e.Y+dy

	switch {
	case !g.Map.HitsWall(nx, ny):
		e.X, e.Y = nx, ny
	case !g.Map.HitsWall(nx, e.Y):
		e.X = nx
	case !g.Map.HitsWall(e.X, ny):
		e.Y = ny
	default:
		return e.X, e.Y, false
	}
	return e.X, e.Y, true
}

// SetPosition applies a client-reported position under the trusted policy.
// Only map bounds are enforced; wall validation is the client's problem in
// this mode, which is why validated deltas are the default.
func (g *Match) SetPosition(role Role, x, y float64) (float64, float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.winner != "" {
		e := g.entity(role)
		return e.X, e.Y, false
	}
	if role == RoleCop && g.copFrozen && g.now().Before(g.frozenEnd) {
		return g.cop.X, g.cop.Y, false
	}

	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x+PlayerSize > g.Map.Width {
		x = g.Map.Width - PlayerSize
	}
	if y+PlayerSize > g.Map.Height {
		y = g.Map.Height - PlayerSize
	}
	e := g.entity(role)
	e.X, e.Y = x, y
	return x, y, true
}

// CollectCoin marks a coin index collected, criminal only, at most once.
// Under the validated policy the criminal must actually be near the coin.
func (g *Match) CollectCoin(role Role, idx int) (collected int, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.winner != "" || role != RoleCriminal || idx < 0 || idx >= len(g.Map.Coins) {
		return len(g.coinsCollected), false
	}
	if _, taken := g.coinsCollected[idx]; taken {
		return len(g.coinsCollected), false
	}
	if !g.TrustClient {
		coin := g.Map.Coins[idx]
		cx := g.criminal.X + PlayerSize/2
		cy := g.criminal.Y + PlayerSize/2
		if !withinRadius(coin.X, coin.Y, cx, cy, PickupRadius) {
			return len(g.coinsCollected), false
		}
	}
	g.coinsCollected[idx] = struct{}{}
	return len(g.coinsCollected), true
}

// CollectPowerup marks a power-up index from the role's own pool collected
// and applies its effect. FREEZE targets the cop rather than the picker.
// Returns the authoritative type and duration for the broadcast.
func (g *Match) CollectPowerup(role Role, idx int) (PowerupType, int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.winner != "" || !role.Valid() {
		return "", 0, false
	}
	pool := g.Map.PowerupSpots(role)
	if idx < 0 || idx >= len(pool) {
		return "", 0, false
	}
	if _, taken := g.powerupsTaken[role][idx]; taken {
		return "", 0, false
	}

	spot := pool[idx]
	e := g.entity(role)
	if !g.TrustClient {
		cx := e.X + PlayerSize/2
		cy := e.Y + PlayerSize/2
		if !withinRadius(spot.X, spot.Y, cx, cy, PickupRadius) {
			return "", 0, false
		}
	}

	duration, known := PowerupDuration(role, spot.Type)
	if !known {
		return "", 0, false
	}
	g.powerupsTaken[role][idx] = struct{}{}

	expiry := g.now().Add(time.Duration(duration) * time.Millisecond)
	if spot.Type == PowerupFreeze {
		g.copFrozen = true
		g.frozenEnd = expiry
	} else {
		e.Powerup = spot.Type
		e.PowerupEnd = expiry.UnixMilli()
	}
	return spot.Type, duration, true
}

// ExpireEffects clears effects whose duration has elapsed and returns them
// so the caller can broadcast powerup-ended once per effect.
func (g *Match) ExpireEffects() []ExpiredEffect {
	g.mu.Lock()
	defer g.mu.Unlock()

	nowMs := g.now().UnixMilli()
	var out []ExpiredEffect
	if g.criminal.Powerup != "" && nowMs >= g.criminal.PowerupEnd {
		out = append(out, ExpiredEffect{Role: RoleCriminal, Type: g.criminal.Powerup})
		g.criminal.Powerup = ""
		g.criminal.PowerupEnd = 0
	}
	if g.cop.Powerup != "" && nowMs >= g.cop.PowerupEnd {
		out = append(out, ExpiredEffect{Role: RoleCop, Type: g.cop.Powerup})
		g.cop.Powerup = ""
		g.cop.PowerupEnd = 0
	}
	if g.copFrozen && !g.now().Before(g.frozenEnd) {
		out = append(out, ExpiredEffect{Role: RoleCop, Type: PowerupFreeze})
		g.copFrozen = false
	}
	return out
}

// UseTeleporter relocates a role standing on a pad to its destination,
// subject to the per-role cooldown. A second use inside the cooldown is
// ignored: no position change, no event.
func (g *Match) UseTeleporter(role Role) (x, y float64, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e := g.entity(role)
	if g.winner != "" || !role.Valid() {
		return e.X, e.Y, false
	}
	if g.now().Before(g.teleportReady[role]) {
		return e.X, e.Y, false
	}

	cx := e.X + PlayerSize/2
	cy := e.Y + PlayerSize/2
	for _, pad := range g.Map.Teleporters {
		if withinRadius(pad.X, pad.Y, cx, cy, PickupRadius) {
			e.X = pad.TargetX - PlayerSize/2
			e.Y = pad.TargetY - PlayerSize/2
			g.teleportReady[role] = g.now().Add(TeleportCooldown * time.Millisecond)
			return e.X, e.Y, true
		}
	}
	return e.X, e.Y, false
}

// CheckCatch reports whether the cop has caught the criminal. Invisibility
// hides the criminal unless the cop's taser effect is active.
func (g *Match) CheckCatch() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.winner != "" {
		return false
	}
	nowMs := g.now().UnixMilli()
	invisible := g.criminal.Powerup == PowerupInvisibility && nowMs < g.criminal.PowerupEnd
	taser := g.cop.Powerup == PowerupTaser && nowMs < g.cop.PowerupEnd
	if invisible && !taser {
		return false
	}
	return withinRadius(g.cop.X, g.cop.Y, g.criminal.X, g.criminal.Y, CatchRadius)
}

// CheckEscape reports whether the criminal has collected every coin and
// reached the exit zone.
func (g *Match) CheckEscape() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.winner != "" || len(g.coinsCollected) < len(g.Map.Coins) {
		return false
	}
	return g.Map.InExitZone(g.criminal.X, g.criminal.Y)
}
