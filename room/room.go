// room/room.go
package room

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/wfunc/chaseserver/game"
	"github.com/wfunc/chaseserver/logger"
	"github.com/wfunc/chaseserver/network"
	"github.com/wfunc/chaseserver/session"
	"github.com/wfunc/chaseserver/state"
	"github.com/wfunc/chaseserver/timer"
)

// Settings 房间设置
type Settings struct {
	MapKey       string
	Private      bool
	PasswordHash []byte // bcrypt; nil for public or passwordless rooms
	AllowChat    bool
}

// Player 房间内的一名成员。players 列表只存两名对战位玩家，
// 第一位加入者即房主，除非房主离开后迁移。
type Player struct {
	SessionID string
	UserID    string
	Username  string
	Role      game.Role
	IsReady   bool
	IsHost    bool
}

// LobbyNotifier 公共房间列表变化时的回调（create/join/leave/reset）
type LobbyNotifier interface {
	RoomListChanged()
}

// Deps 房间运行所需的外部依赖，由注册表在创建时注入
type Deps struct {
	Publisher           Publisher
	Timers              *timer.Manager
	Settler             state.Settler
	Lobby               LobbyNotifier
	ResetDelay          time.Duration
	TrustClientPosition bool
}

// Room 游戏房间。单房间内的所有状态变更都经由自身的互斥锁串行化，
// 房间之间互不阻塞。
type Room struct {
	ID        string
	Name      string
	CreatedAt time.Time

	deps    Deps
	machine state.StateMachine

	mu         sync.Mutex
	hostID     string
	hostName   string
	settings   Settings
	status     string
	players    []*Player
	spectators []*Player
	match      *game.Match
	closed     bool

	ticker    *time.Ticker
	closeChan chan bool
	closeOnce sync.Once
}

// NewRoom 创建房间，创建者自动成为房主并占据第一个对战位
func NewRoom(id, name string, settings Settings, creator *session.Session, deps Deps) *Room {
	r := &Room{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
		deps:      deps,
		settings:  settings,
		status:    state.StatusWaiting,
		hostID:    creator.UserID,
		hostName:  creator.Username,
		closeChan: make(chan bool),
	}
	r.players = []*Player{{
		SessionID: creator.ID,
		UserID:    creator.UserID,
		Username:  creator.Username,
		IsHost:    true,
	}}
	creator.RoomID = id

	r.machine = state.NewBaseStateMachine(state.NewWaitingState(r))

	// 房间心跳，驱动当前状态的 OnUpdate
	r.ticker = time.NewTicker(100 * time.Millisecond)
	go r.loop()

	return r
}

func (r *Room) loop() {
	for {
		select {
		case <-r.ticker.C:
			if current := r.machine.GetCurrentState(); current != nil {
				current.OnUpdate()
			}
		case <-r.closeChan:
			r.ticker.Stop()
			return
		}
	}
}

// Close tears the room down: the loop stops and any pending reset timer is
// cancelled. Idempotent.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.closeChan)
		if current := r.machine.GetCurrentState(); current != nil {
			current.OnExit()
		}
	})
}

// notifyLobby refreshes the public room list. Private rooms never appear
// there, so their changes stay quiet. 设置建房后不变，读无需加锁。
func (r *Room) notifyLobby() {
	if r.settings.Private {
		return
	}
	r.deps.Lobby.RoomListChanged()
}

// Join adds a user as a player, or as a spectator once both battle slots
// are taken. Re-joining is a no-op success that just re-sends the snapshot.
func (r *Room) Join(sess *session.Session, password string) error {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	if r.status != state.StatusWaiting {
		r.mu.Unlock()
		return ErrGameInProgress
	}
	if r.settings.Private && len(r.settings.PasswordHash) > 0 {
		if bcrypt.CompareHashAndPassword(r.settings.PasswordHash, []byte(password)) != nil {
			r.mu.Unlock()
			return ErrBadPassword
		}
	}

	if r.memberByUserLocked(sess.UserID) != nil {
		info := r.publicInfoLocked()
		r.mu.Unlock()
		r.deps.Publisher.PublishToSession(sess.ID, network.EventRoomJoined, map[string]interface{}{"room": info})
		return nil
	}

	member := &Player{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Username:  sess.Username,
	}
	if len(r.players) >= 2 {
		member.Role = game.RoleSpectator
		member.IsReady = true
		r.spectators = append(r.spectators, member)
	} else {
		if r.hostID == "" {
			member.IsHost = true
			r.hostID = member.UserID
			r.hostName = member.Username
		}
		r.players = append(r.players, member)
	}
	sess.RoomID = r.ID
	info := r.publicInfoLocked()
	r.mu.Unlock()

	r.deps.Publisher.PublishToRoom(r.ID, network.EventPlayerJoined, map[string]interface{}{
		"username": member.Username,
		"room":     info,
	})
	r.deps.Publisher.PublishToSession(sess.ID, network.EventRoomJoined, map[string]interface{}{"room": info})
	r.notifyLobby()

	logger.Log.Infof("%s joined room %s", member.Username, r.ID)
	return nil
}

// Leave removes the member bound to sessionID. Leaving twice, or leaving
// while absent, is a silent no-op. When the host leaves, the first
// remaining player inherits the room.
func (r *Room) Leave(sessionID string) (username string, removed, empty bool) {
	r.mu.Lock()

	for i, p := range r.players {
		if p.SessionID == sessionID {
			username = p.Username
			r.players = append(r.players[:i], r.players[i+1:]...)
			if p.IsHost {
				if len(r.players) > 0 {
					next := r.players[0]
					next.IsHost = true
					r.hostID = next.UserID
					r.hostName = next.Username
				} else {
					// 只剩观战者时房间没有房主，下一个入座的玩家接手
					r.hostID = ""
					r.hostName = ""
				}
			}
			removed = true
			break
		}
	}
	if !removed {
		for i, s := range r.spectators {
			if s.SessionID == sessionID {
				username = s.Username
				r.spectators = append(r.spectators[:i], r.spectators[i+1:]...)
				removed = true
				break
			}
		}
	}
	if !removed {
		r.mu.Unlock()
		return "", false, false
	}

	empty = len(r.players) == 0 && len(r.spectators) == 0
	var info Info
	if !empty {
		info = r.publicInfoLocked()
	}
	r.mu.Unlock()

	r.deps.Publisher.PublishToSession(sessionID, network.EventLeftRoom, nil)
	if !empty {
		r.deps.Publisher.PublishToRoom(r.ID, network.EventPlayerLeft, map[string]interface{}{
			"username": username,
			"room":     info,
		})
	}
	return username, true, empty
}

// SelectRole assigns one of the two exclusive battle roles. A role change
// always clears the player's ready flag.
func (r *Room) SelectRole(sessionID, roleName string) error {
	role := game.Role(roleName)
	if !role.Valid() {
		return ErrInvalidRole
	}

	r.mu.Lock()
	player := r.playerBySessionLocked(sessionID)
	if player == nil {
		r.mu.Unlock()
		return nil
	}
	for _, p := range r.players {
		if p.Role == role && p.SessionID != sessionID {
			r.mu.Unlock()
			return fmt.Errorf("%s %w", role, ErrRoleTaken)
		}
	}
	player.Role = role
	player.IsReady = false
	username := player.Username
	info := r.publicInfoLocked()
	r.mu.Unlock()

	r.deps.Publisher.PublishToRoom(r.ID, network.EventRoleSelected, map[string]interface{}{
		"username": username,
		"role":     role,
		"room":     info,
	})
	return nil
}

// ToggleReady flips the ready flag. When both battle slots are filled,
// role-assigned and ready, an informational all-ready follows; starting is
// still the host's call.
func (r *Room) ToggleReady(sessionID string) error {
	r.mu.Lock()
	player := r.playerBySessionLocked(sessionID)
	if player == nil {
		r.mu.Unlock()
		return nil
	}
	if !player.Role.Valid() {
		r.mu.Unlock()
		return ErrRoleRequired
	}
	player.IsReady = !player.IsReady
	username, ready := player.Username, player.IsReady
	allReady := r.allReadyLocked()
	info := r.publicInfoLocked()
	r.mu.Unlock()

	r.deps.Publisher.PublishToRoom(r.ID, network.EventReadyToggled, map[string]interface{}{
		"username": username,
		"isReady":  ready,
		"room":     info,
	})
	if allReady {
		r.deps.Publisher.PublishToRoom(r.ID, network.EventAllReady, nil)
	}
	return nil
}

// Start begins the match. Host only, and only with two ready role-assigned
// players; the playing state broadcasts the initial snapshot on entry.
func (r *Room) Start(sessionID string) error {
	r.mu.Lock()

	player := r.playerBySessionLocked(sessionID)
	if player == nil || !player.IsHost {
		r.mu.Unlock()
		return ErrNotHost
	}
	if r.status != state.StatusWaiting {
		r.mu.Unlock()
		return ErrGameInProgress
	}
	if len(r.players) != 2 || r.roleAssignedLocked() != 2 {
		r.mu.Unlock()
		return ErrNeedTwoPlayers
	}
	if !r.allReadyLocked() {
		r.mu.Unlock()
		return ErrNotAllReady
	}
	mapDef, ok := game.GetMap(r.settings.MapKey)
	if !ok {
		r.mu.Unlock()
		return ErrUnknownMap
	}

	match := game.NewMatch(mapDef, r.deps.TrustClientPosition)
	r.match = match
	r.status = state.StatusPlaying
	r.mu.Unlock()

	if err := r.machine.ChangeState(state.NewPlayingState(r, match, r.deps.Settler)); err != nil {
		return err
	}
	r.notifyLobby()

	logger.Log.Infof("game started in room %s on map %s", r.ID, r.settings.MapKey)
	return nil
}

// Chat relays a message to the room when chat is allowed, truncated to a
// bounded length. Disallowed chat is dropped, not an error.
func (r *Room) Chat(sessionID, message string) {
	r.mu.Lock()
	if !r.settings.AllowChat {
		r.mu.Unlock()
		return
	}
	member := r.memberBySessionLocked(sessionID)
	if member == nil {
		r.mu.Unlock()
		return
	}
	username := member.Username
	r.mu.Unlock()

	// 按字符截断，不能把多字节字符劈成两半
	if runes := []rune(message); len(runes) > 200 {
		message = string(runes[:200])
	}
	r.deps.Publisher.PublishToRoom(r.ID, network.EventChatMessage, map[string]interface{}{
		"username":  username,
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	})
}

// HandleGameIntent routes an in-match intent to the current state. Intents
// for a room that is not playing, or from someone without a battle slot,
// are dropped silently; stale packets are routine.
func (r *Room) HandleGameIntent(sessionID, event string, data []byte) {
	r.mu.Lock()
	if r.status != state.StatusPlaying {
		r.mu.Unlock()
		return
	}
	player := r.playerBySessionLocked(sessionID)
	if player == nil || !player.Role.Valid() {
		r.mu.Unlock()
		return
	}
	ref := state.PlayerRef{
		SessionID: player.SessionID,
		UserID:    player.UserID,
		Username:  player.Username,
		Role:      player.Role,
	}
	r.mu.Unlock()

	current := r.machine.GetCurrentState()
	if current == nil {
		return
	}
	if err := current.HandleIntent(ref, event, data); err != nil {
		logger.Log.Warnf("room %s: intent %s from %s dropped: %v", r.ID, event, ref.Username, err)
	}
}

// --- locked helpers ---

func (r *Room) playerBySessionLocked(sessionID string) *Player {
	for _, p := range r.players {
		if p.SessionID == sessionID {
			return p
		}
	}
	return nil
}

func (r *Room) memberBySessionLocked(sessionID string) *Player {
	if p := r.playerBySessionLocked(sessionID); p != nil {
		return p
	}
	for _, s := range r.spectators {
		if s.SessionID == sessionID {
			return s
		}
	}
	return nil
}

func (r *Room) memberByUserLocked(userID string) *Player {
	for _, p := range r.players {
		if p.UserID == userID {
			return p
		}
	}
	for _, s := range r.spectators {
		if s.UserID == userID {
			return s
		}
	}
	return nil
}

func (r *Room) roleAssignedLocked() int {
	n := 0
	for _, p := range r.players {
		if p.Role.Valid() {
			n++
		}
	}
	return n
}

func (r *Room) allReadyLocked() bool {
	if len(r.players) != 2 || r.roleAssignedLocked() != 2 {
		return false
	}
	for _, p := range r.players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// --- state.RoomContext ---

func (r *Room) GetID() string {
	return r.ID
}

func (r *Room) PlayerByRole(role game.Role) (state.PlayerRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if p.Role == role {
			return state.PlayerRef{
				SessionID: p.SessionID,
				UserID:    p.UserID,
				Username:  p.Username,
				Role:      p.Role,
			}, true
		}
	}
	return state.PlayerRef{}, false
}

func (r *Room) Publish(event string, payload interface{}) {
	if err := r.deps.Publisher.PublishToRoom(r.ID, event, payload); err != nil {
		logger.Log.Warnf("room %s: publish %s failed: %v", r.ID, event, err)
	}
}

func (r *Room) PublishExcept(sessionID, event string, payload interface{}) {
	if err := r.deps.Publisher.PublishToRoomExcept(r.ID, sessionID, event, payload); err != nil {
		logger.Log.Warnf("room %s: publish %s failed: %v", r.ID, event, err)
	}
}

func (r *Room) ChangeState(newState state.State) error {
	return r.machine.ChangeState(newState)
}

func (r *Room) SetStatus(status string) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}

// ResetToWaiting clears the finished match, un-readies both players and
// reopens the room. Invoked by the finished state's delayed reset.
func (r *Room) ResetToWaiting() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.status = state.StatusWaiting
	r.match = nil
	for _, p := range r.players {
		p.IsReady = false
	}
	info := r.publicInfoLocked()
	r.mu.Unlock()

	if err := r.machine.ChangeState(state.NewWaitingState(r)); err != nil {
		logger.Log.Errorf("room %s: reset transition failed: %v", r.ID, err)
		return
	}
	r.deps.Publisher.PublishToRoom(r.ID, network.EventRoomReset, map[string]interface{}{"room": info})
	r.notifyLobby()
	logger.Log.Infof("room %s reset to waiting", r.ID)
}

func (r *Room) ResetDelay() time.Duration {
	return r.deps.ResetDelay
}

func (r *Room) Timers() *timer.Manager {
	return r.deps.Timers
}

func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// --- accessors ---

// Status returns the lifecycle status string.
func (r *Room) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Match returns the active match, nil outside playing/finished.
func (r *Room) Match() *game.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.match
}

// SessionIDs lists every member's session for the broadcasters.
func (r *Room) SessionIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.players)+len(r.spectators))
	for _, p := range r.players {
		ids = append(ids, p.SessionID)
	}
	for _, s := range r.spectators {
		ids = append(ids, s.SessionID)
	}
	return ids
}

// PlayerCount returns active player and spectator counts.
func (r *Room) PlayerCount() (players, spectators int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players), len(r.spectators)
}

// HostUsername returns the current host's display name.
func (r *Room) HostUsername() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostName
}
