// room/manager.go
package room

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wfunc/chaseserver/game"
	"github.com/wfunc/chaseserver/logger"
	"github.com/wfunc/chaseserver/network"
	"github.com/wfunc/chaseserver/session"
	"github.com/wfunc/chaseserver/state"
	"github.com/wfunc/chaseserver/timer"
)

// ManagerConfig 注册表配置
type ManagerConfig struct {
	ResetDelay          time.Duration // finished -> waiting 的延迟
	RoomTTL             time.Duration // 空闲房间的最长寿命，0 关闭清扫
	TrustClientPosition bool
}

// CreateOptions 建房参数
type CreateOptions struct {
	Name      string
	MapKey    string
	Password  string // 非空则房间为私密
	AllowChat bool
}

// Manager 房间注册表。持有 roomID -> Room 与 sessionID -> roomID 两个索引，
// 后者保证一个会话同一时刻只在一个房间里。
type Manager struct {
	mu           sync.RWMutex
	rooms        map[string]*Room
	sessionRooms map[string]string

	publisher Publisher
	timers    *timer.Manager
	settler   state.Settler
	config    ManagerConfig

	sweepTimer int64
}

// NewManager 创建注册表。publisher 依赖注册表自身解析收件人，
// 构造后再通过 SetPublisher 注入。
func NewManager(timers *timer.Manager, settler state.Settler, config ManagerConfig) *Manager {
	if config.ResetDelay <= 0 {
		config.ResetDelay = 10 * time.Second
	}
	m := &Manager{
		rooms:        make(map[string]*Room),
		sessionRooms: make(map[string]string),
		timers:       timers,
		settler:      settler,
		config:       config,
	}
	if config.RoomTTL > 0 {
		m.sweepTimer = timers.After(time.Minute, time.Minute, m.sweepStale)
	}
	return m
}

// SetPublisher wires the outbound transport. Must be called before any
// room is created.
func (m *Manager) SetPublisher(p Publisher) {
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

// CreateRoom registers a new room with the creator as host and tells the
// creator and the lobby. The session leaves its previous room first.
func (m *Manager) CreateRoom(sess *session.Session, opts CreateOptions) (*Room, error) {
	if _, ok := game.GetMap(opts.MapKey); !ok {
		return nil, ErrUnknownMap
	}

	m.Leave(sess.ID)

	settings := Settings{
		MapKey:    opts.MapKey,
		AllowChat: opts.AllowChat,
	}
	if opts.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		settings.Private = true
		settings.PasswordHash = hash
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = sess.Username + "的房间"
	}

	m.mu.Lock()
	id := m.newRoomIDLocked()
	r := NewRoom(id, name, settings, sess, Deps{
		Publisher:           m.publisher,
		Timers:              m.timers,
		Settler:             m.settler,
		Lobby:               m,
		ResetDelay:          m.config.ResetDelay,
		TrustClientPosition: m.config.TrustClientPosition,
	})
	m.rooms[id] = r
	m.sessionRooms[sess.ID] = id
	m.mu.Unlock()

	m.publisher.PublishToSession(sess.ID, network.EventRoomCreated, map[string]interface{}{"room": r.PublicInfo()})
	// 私密房不进大厅列表，建房也不用刷新大厅
	if !settings.Private {
		m.RoomListChanged()
	}

	logger.Log.Infof("room %s (%s) created by %s", id, name, sess.Username)
	return r, nil
}

// 8 位大写房间码，极小概率碰撞时重取
func (m *Manager) newRoomIDLocked() string {
	for {
		id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		if _, exists := m.rooms[id]; !exists {
			return id
		}
	}
}

// GetRoom looks a room up by its code.
func (m *Manager) GetRoom(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

// RoomBySession returns the room a session is currently in.
func (m *Manager) RoomBySession(sessionID string) (*Room, bool) {
	m.mu.RLock()
	roomID, ok := m.sessionRooms[sessionID]
	if !ok {
		m.mu.RUnlock()
		return nil, false
	}
	r, ok := m.rooms[roomID]
	m.mu.RUnlock()
	return r, ok
}

// Join puts the session into the room, leaving any previous one first.
func (m *Manager) Join(sess *session.Session, roomID, password string) error {
	m.mu.RLock()
	r, ok := m.rooms[strings.ToUpper(roomID)]
	m.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}

	if current, in := m.RoomBySession(sess.ID); in && current.ID != r.ID {
		m.Leave(sess.ID)
	}

	if err := r.Join(sess, password); err != nil {
		return err
	}

	m.mu.Lock()
	m.sessionRooms[sess.ID] = r.ID
	m.mu.Unlock()
	return nil
}

// Leave removes the session from its room, if any. Emptied rooms are torn
// down immediately. Safe to call for sessions that never joined.
func (m *Manager) Leave(sessionID string) {
	m.mu.Lock()
	roomID, ok := m.sessionRooms[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessionRooms, sessionID)
	r := m.rooms[roomID]
	m.mu.Unlock()
	if r == nil {
		return
	}

	username, removed, empty := r.Leave(sessionID)
	if !removed {
		return
	}
	if empty {
		m.RemoveRoom(roomID)
		logger.Log.Infof("room %s removed after %s left", roomID, username)
	}
	m.RoomListChanged()
}

// RemoveRoom closes and unregisters the room along with every session
// index that pointed at it. Idempotent.
func (m *Manager) RemoveRoom(roomID string) {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.rooms, roomID)
	for sid, rid := range m.sessionRooms {
		if rid == roomID {
			delete(m.sessionRooms, sid)
		}
	}
	m.mu.Unlock()

	r.Close()
}

// ListPublicWaiting returns the joinable public rooms for the lobby.
func (m *Manager) ListPublicWaiting() []Info {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	list := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		info := r.PublicInfo()
		if info.Settings.IsPrivate || info.Status != state.StatusWaiting {
			continue
		}
		list = append(list, info)
	}
	return list
}

// RoomListChanged pushes the lobby a fresh public room list.
func (m *Manager) RoomListChanged() {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if p == nil {
		return
	}
	p.PublishToAll(network.EventRoomsUpdated, map[string]interface{}{"rooms": m.ListPublicWaiting()})
}

// Count returns the number of registered rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Stop cancels the background sweep and closes every room.
func (m *Manager) Stop() {
	if m.sweepTimer != 0 {
		m.timers.Remove(m.sweepTimer)
	}
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for id, r := range m.rooms {
		rooms = append(rooms, r)
		delete(m.rooms, id)
	}
	m.sessionRooms = make(map[string]string)
	m.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
}

// 清理超龄且不在局内的房间，防止被遗忘的房间无限堆积
func (m *Manager) sweepStale() {
	cutoff := time.Now().Add(-m.config.RoomTTL)

	m.mu.RLock()
	stale := make([]string, 0)
	for id, r := range m.rooms {
		if r.CreatedAt.Before(cutoff) && r.Status() != state.StatusPlaying {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	if len(stale) == 0 {
		return
	}
	for _, id := range stale {
		logger.Log.Infof("room %s expired, removing", id)
		m.RemoveRoom(id)
	}
	m.RoomListChanged()
}
