// game/maps.go
package game

// Role 表示一局对战中的角色
type Role string

const (
	RoleCop       Role = "cop"
	RoleCriminal  Role = "criminal"
	RoleSpectator Role = "spectator"
)

// Valid reports whether the role is one of the two playable roles.
func (r Role) Valid() bool {
	return r == RoleCop || r == RoleCriminal
}

// Opponent returns the opposing playable role.
func (r Role) Opponent() Role {
	if r == RoleCop {
		return RoleCriminal
	}
	return RoleCop
}

// PowerupType 道具类型
type PowerupType string

const (
	PowerupSpeed        PowerupType = "SPEED"
	PowerupInvisibility PowerupType = "INVISIBILITY"
	PowerupFreeze       PowerupType = "FREEZE"
	PowerupTaser        PowerupType = "TASER"
)

// Rect 地图中的矩形区域（墙体、出口）
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point 地图坐标点
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PowerupSpot 地图上一个固定的道具刷新点
type PowerupSpot struct {
	Point
	Type PowerupType `json:"type"`
}

// Teleporter 传送垫及其链接的目的地
type Teleporter struct {
	Point
	TargetX float64 `json:"targetX"`
	TargetY float64 `json:"targetY"`
}

// MapDef 一张可玩地图的完整静态定义，运行期只读
type MapDef struct {
	Key              string        `json:"key"`
	Name             string        `json:"name"`
	Width            float64       `json:"width"`
	Height           float64       `json:"height"`
	TimeLimit        int           `json:"timeLimit"` // seconds
	Walls            []Rect        `json:"walls"`
	Coins            []Point       `json:"coins"`
	CriminalPowerups []PowerupSpot `json:"criminalPowerups"`
	CopPowerups      []PowerupSpot `json:"copPowerups"`
	Teleporters      []Teleporter  `json:"teleporters"`
	CopSpawn         Point         `json:"copSpawn"`
	CriminalSpawn    Point         `json:"criminalSpawn"`
	ExitZone         Rect          `json:"exitZone"`
}

// 碰撞与拾取常量，与客户端画布保持一致
const (
	PlayerSize       = 28.0
	CriminalSpeed    = 4.0
	CopSpeed         = 3.8
	PickupRadius     = 25.0 // coins, power-ups and teleporter pads
	CatchRadius      = PlayerSize
	TeleportCooldown = 1000 // milliseconds
)

// PowerupSpots returns the spot pool for the given role.
func (m *MapDef) PowerupSpots(role Role) []PowerupSpot {
	if role == RoleCriminal {
		return m.CriminalPowerups
	}
	return m.CopPowerups
}

// HitsWall reports whether a player square at (x, y) leaves the map bounds
// or overlaps any wall rectangle.
func (m *MapDef) HitsWall(x, y float64) bool {
	if x < 0 || x+PlayerSize > m.Width || y < 0 || y+PlayerSize > m.Height {
		return true
	}
	for _, w := range m.Walls {
		if x < w.X+w.Width && x+PlayerSize > w.X &&
			y < w.Y+w.Height && y+PlayerSize > w.Y {
			return true
		}
	}
	return false
}

// InExitZone reports whether a player square at (x, y) overlaps the exit.
func (m *MapDef) InExitZone(x, y float64) bool {
	e := m.ExitZone
	return x+PlayerSize > e.X && x < e.X+e.Width &&
		y+PlayerSize > e.Y && y < e.Y+e.Height
}

// withinRadius compares squared distances so the hot path stays sqrt-free.
func withinRadius(px, py, cx, cy, radius float64) bool {
	dx := cx - px
	dy := cy - py
	return dx*dx+dy*dy < radius*radius
}

// GetMap looks up a map definition by key.
func GetMap(key string) (*MapDef, bool) {
	m, ok := Maps[key]
	return m, ok
}

// MapKeys returns the catalog keys (unspecified order).
func MapKeys() []string {
	keys := make([]string, 0, len(Maps))
	for k := range Maps {
		keys = append(keys, k)
	}
	return keys
}

// Maps 服务端权威地图目录
var Maps = map[string]*MapDef{
	"easy": {
		Key:       "easy",
		Name:      "Training Ground",
		Width:     900,
		Height:    700,
		TimeLimit: 90,
		Walls: []Rect{
			{X: 100, Y: 100, Width: 200, Height: 15},
			{X: 400, Y: 100, Width: 200, Height: 15},
			{X: 600, Y: 100, Width: 15, Height: 200},
			{X: 200, Y: 200, Width: 15, Height: 200},
			{X: 100, Y: 300, Width: 200, Height: 15},
			{X: 400, Y: 300, Width: 250, Height: 15},
			{X: 500, Y: 400, Width: 15, Height: 200},
			{X: 150, Y: 450, Width: 200, Height: 15},
			{X: 600, Y: 500, Width: 200, Height: 15},
			{X: 300, Y: 550, Width: 15, Height: 100},
		},
		Coins: []Point{
			{X: 50, Y: 50}, {X: 850, Y: 50}, {X: 50, Y: 650}, {X: 850, Y: 650},
			{X: 450, Y: 350}, {X: 250, Y: 250}, {X: 700, Y: 400}, {X: 150, Y: 550},
		},
		CriminalPowerups: []PowerupSpot{
			{Point: Point{X: 450, Y: 150}, Type: PowerupSpeed},
			{Point: Point{X: 150, Y: 400}, Type: PowerupInvisibility},
		},
		CopPowerups: []PowerupSpot{
			{Point: Point{X: 750, Y: 250}, Type: PowerupTaser},
		},
		Teleporters: []Teleporter{
			{Point: Point{X: 100, Y: 600}, TargetX: 800, TargetY: 100},
			{Point: Point{X: 800, Y: 100}, TargetX: 100, TargetY: 600},
		},
		CopSpawn:      Point{X: 50, Y: 350},
		CriminalSpawn: Point{X: 800, Y: 350},
		ExitZone:      Rect{X: 400, Y: 650, Width: 100, Height: 50},
	},
	"medium": {
		Key:       "medium",
		Name:      "City Streets",
		Width:     1000,
		Height:    750,
		TimeLimit: 120,
		Walls: []Rect{
			{X: 100, Y: 80, Width: 250, Height: 15},
			{X: 450, Y: 80, Width: 250, Height: 15},
			{X: 700, Y: 80, Width: 15, Height: 180},
			{X: 150, Y: 180, Width: 15, Height: 180},
			{X: 150, Y: 180, Width: 180, Height: 15},
			{X: 400, Y: 200, Width: 180, Height: 15},
			{X: 580, Y: 200, Width: 15, Height: 130},
			{X: 250, Y: 330, Width: 350, Height: 15},
			{X: 250, Y: 330, Width: 15, Height: 130},
			{X: 500, Y: 330, Width: 15, Height: 130},
			{X: 700, Y: 280, Width: 180, Height: 15},
			{X: 100, Y: 460, Width: 220, Height: 15},
			{X: 100, Y: 460, Width: 15, Height: 130},
			{X: 380, Y: 460, Width: 250, Height: 15},
			{X: 630, Y: 460, Width: 15, Height: 180},
			{X: 750, Y: 550, Width: 150, Height: 15},
			{X: 200, Y: 590, Width: 350, Height: 15},
		},
		Coins: []Point{
			{X: 50, Y: 50}, {X: 950, Y: 50}, {X: 50, Y: 700}, {X: 950, Y: 700},
			{X: 500, Y: 380}, {X: 280, Y: 240}, {X: 750, Y: 400}, {X: 380, Y: 550},
			{X: 180, Y: 420}, {X: 820, Y: 180}, {X: 550, Y: 650}, {X: 130, Y: 700},
		},
		CriminalPowerups: []PowerupSpot{
			{Point: Point{X: 380, Y: 140}, Type: PowerupSpeed},
			{Point: Point{X: 780, Y: 380}, Type: PowerupInvisibility},
			{Point: Point{X: 280, Y: 520}, Type: PowerupFreeze},
		},
		CopPowerups: []PowerupSpot{
			{Point: Point{X: 550, Y: 260}, Type: PowerupTaser},
			{Point: Point{X: 140, Y: 580}, Type: PowerupSpeed},
		},
		Teleporters: []Teleporter{
			{Point: Point{X: 80, Y: 140}, TargetX: 900, TargetY: 650},
			{Point: Point{X: 900, Y: 650}, TargetX: 80, TargetY: 140},
		},
		CopSpawn:      Point{X: 50, Y: 375},
		CriminalSpawn: Point{X: 900, Y: 375},
		ExitZone:      Rect{X: 450, Y: 700, Width: 100, Height: 50},
	},
	"hard": {
		Key:       "hard",
		Name:      "Maximum Security",
		Width:     1100,
		Height:    850,
		TimeLimit: 150,
		Walls: []Rect{
			{X: 100, Y: 60, Width: 350, Height: 15},
			{X: 550, Y: 60, Width: 350, Height: 15},
			{X: 100, Y: 60, Width: 15, Height: 130},
			{X: 450, Y: 60, Width: 15, Height: 90},
			{X: 900, Y: 60, Width: 15, Height: 130},
			{X: 180, Y: 140, Width: 180, Height: 15},
			{X: 550, Y: 140, Width: 260, Height: 15},
			{X: 180, Y: 140, Width: 15, Height: 90},
			{X: 360, Y: 140, Width: 15, Height: 130},
			{X: 810, Y: 140, Width: 15, Height: 90},
			{X: 100, Y: 230, Width: 180, Height: 15},
			{X: 450, Y: 230, Width: 350, Height: 15},
			{X: 280, Y: 230, Width: 15, Height: 130},
			{X: 450, Y: 230, Width: 15, Height: 90},
			{X: 640, Y: 230, Width: 15, Height: 130},
			{X: 800, Y: 230, Width: 15, Height: 90},
			{X: 180, Y: 360, Width: 15, Height: 180},
			{X: 180, Y: 360, Width: 180, Height: 15},
			{X: 450, Y: 360, Width: 260, Height: 15},
			{X: 450, Y: 360, Width: 15, Height: 130},
			{X: 710, Y: 360, Width: 15, Height: 180},
			{X: 900, Y: 360, Width: 100, Height: 15},
			{X: 900, Y: 360, Width: 15, Height: 180},
			{X: 280, Y: 460, Width: 90, Height: 15},
			{X: 550, Y: 460, Width: 90, Height: 15},
			{X: 360, Y: 460, Width: 15, Height: 90},
			{X: 640, Y: 460, Width: 15, Height: 130},
			{X: 100, Y: 540, Width: 130, Height: 15},
			{X: 100, Y: 540, Width: 15, Height: 180},
			{X: 320, Y: 540, Width: 220, Height: 15},
			{X: 710, Y: 540, Width: 180, Height: 15},
			{X: 230, Y: 590, Width: 15, Height: 130},
			{X: 540, Y: 590, Width: 15, Height: 90},
			{X: 800, Y: 590, Width: 15, Height: 130},
			{X: 320, Y: 680, Width: 350, Height: 15},
			{X: 100, Y: 720, Width: 180, Height: 15},
			{X: 710, Y: 720, Width: 180, Height: 15},
		},
		Coins: []Point{
			{X: 50, Y: 50}, {X: 1050, Y: 50}, {X: 50, Y: 800}, {X: 1050, Y: 800},
			{X: 550, Y: 410}, {X: 280, Y: 280}, {X: 820, Y: 460}, {X: 410, Y: 640},
			{X: 140, Y: 460}, {X: 960, Y: 280}, {X: 690, Y: 690}, {X: 180, Y: 800},
			{X: 500, Y: 180}, {X: 780, Y: 140}, {X: 320, Y: 510}, {X: 870, Y: 640},
		},
		CriminalPowerups: []PowerupSpot{
			{Point: Point{X: 280, Y: 100}, Type: PowerupSpeed},
			{Point: Point{X: 960, Y: 460}, Type: PowerupInvisibility},
			{Point: Point{X: 410, Y: 410}, Type: PowerupFreeze},
			{Point: Point{X: 690, Y: 280}, Type: PowerupSpeed},
		},
		CopPowerups: []PowerupSpot{
			{Point: Point{X: 550, Y: 100}, Type: PowerupTaser},
			{Point: Point{X: 140, Y: 640}, Type: PowerupSpeed},
			{Point: Point{X: 820, Y: 510}, Type: PowerupTaser},
		},
		Teleporters: []Teleporter{
			{Point: Point{X: 80, Y: 110}, TargetX: 1000, TargetY: 750},
			{Point: Point{X: 1000, Y: 750}, TargetX: 80, TargetY: 110},
			{Point: Point{X: 550, Y: 280}, TargetX: 180, TargetY: 690},
			{Point: Point{X: 180, Y: 690}, TargetX: 550, TargetY: 280},
		},
		CopSpawn:      Point{X: 50, Y: 425},
		CriminalSpawn: Point{X: 1000, Y: 425},
		ExitZone:      Rect{X: 500, Y: 800, Width: 100, Height: 50},
	},
}

// powerupDurations 道具生效时长（毫秒），按角色区分同名道具
var powerupDurations = map[Role]map[PowerupType]int64{
	RoleCriminal: {
		PowerupSpeed:        5000,
		PowerupInvisibility: 3000,
		PowerupFreeze:       2000,
	},
	RoleCop: {
		PowerupTaser: 3000,
		PowerupSpeed: 4000,
	},
}

// PowerupDuration returns the authoritative effect duration for a role's
// power-up, ignoring whatever the client claims.
func PowerupDuration(role Role, typ PowerupType) (int64, bool) {
	d, ok := powerupDurations[role][typ]
	return d, ok
}
