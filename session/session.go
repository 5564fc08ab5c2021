// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/chaseserver/network"
)

// Session 一条已升级连接及其绑定的用户身份
type Session struct {
	ID         string
	Conn       network.Connection
	UserID     string
	Username   string
	RoomID     string
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

// Identify binds the authenticated user to the connection.
func (s *Session) Identify(userID, username string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.UserID = userID
	s.Username = username
}

// Identity returns the bound user, ok=false before the hello handshake.
func (s *Session) Identity() (userID, username string, ok bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.UserID, s.Username, s.UserID != ""
}

func (s *Session) Send(event string, payload interface{}) error {
	s.Touch()
	return s.Conn.Send(event, payload)
}

// Touch refreshes the activity timestamp.
func (s *Session) Touch() {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager 会话管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByUserID(userID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.UserID == userID {
			result = append(result, session)
		}
	}
	return result
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// Each calls fn for every session, on a snapshot so fn may send freely.
func (m *Manager) Each(fn func(*Session)) {
	m.mutex.RLock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		snapshot = append(snapshot, s)
	}
	m.mutex.RUnlock()

	for _, s := range snapshot {
		fn(s)
	}
}
