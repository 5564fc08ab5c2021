// room/info.go
package room

import "github.com/wfunc/chaseserver/game"

// PlayerInfo 对外可见的成员信息
type PlayerInfo struct {
	Username string    `json:"username"`
	Role     game.Role `json:"role"`
	IsReady  bool      `json:"isReady"`
	IsHost   bool      `json:"isHost"`
}

// SettingsInfo 对外可见的房间设置，永不包含密码
type SettingsInfo struct {
	Map       string `json:"map"`
	IsPrivate bool   `json:"isPrivate"`
	AllowChat bool   `json:"allowChat"`
}

// Info 房间的广播快照，用于 room-joined/rooms-updated 等事件
type Info struct {
	RoomID       string       `json:"roomId"`
	Name         string       `json:"name"`
	HostUsername string       `json:"hostUsername"`
	Players      []PlayerInfo `json:"players"`
	Spectators   []PlayerInfo `json:"spectators"`
	Settings     SettingsInfo `json:"settings"`
	Status       string       `json:"status"`
}

func (r *Room) publicInfoLocked() Info {
	info := Info{
		RoomID:       r.ID,
		Name:         r.Name,
		HostUsername: r.hostName,
		Players:      make([]PlayerInfo, 0, len(r.players)),
		Spectators:   make([]PlayerInfo, 0, len(r.spectators)),
		Settings: SettingsInfo{
			Map:       r.settings.MapKey,
			IsPrivate: r.settings.Private,
			AllowChat: r.settings.AllowChat,
		},
		Status: r.status,
	}
	for _, p := range r.players {
		info.Players = append(info.Players, PlayerInfo{
			Username: p.Username,
			Role:     p.Role,
			IsReady:  p.IsReady,
			IsHost:   p.IsHost,
		})
	}
	for _, s := range r.spectators {
		info.Spectators = append(info.Spectators, PlayerInfo{
			Username: s.Username,
			Role:     s.Role,
			IsReady:  s.IsReady,
			IsHost:   false,
		})
	}
	return info
}

// PublicInfo returns the broadcast snapshot of the room.
func (r *Room) PublicInfo() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.publicInfoLocked()
}
