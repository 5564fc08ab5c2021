// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/chaseserver/logger"
	"github.com/wfunc/chaseserver/room"
	"github.com/wfunc/chaseserver/session"
)

// RoomPublisher 本地广播器。通过房间注册表解析收件人会话后逐个下发，
// 单个连接的发送失败只记日志，不中断对其余成员的广播。
type RoomPublisher struct {
	rooms    *room.Manager
	sessions *session.Manager
}

func NewRoomPublisher(rooms *room.Manager, sessions *session.Manager) *RoomPublisher {
	return &RoomPublisher{
		rooms:    rooms,
		sessions: sessions,
	}
}

func (p *RoomPublisher) PublishToRoom(roomID, event string, payload interface{}) error {
	return p.PublishToRoomExcept(roomID, "", event, payload)
}

func (p *RoomPublisher) PublishToRoomExcept(roomID, exceptSessionID, event string, payload interface{}) error {
	r, ok := p.rooms.GetRoom(roomID)
	if !ok {
		return room.ErrRoomNotFound
	}
	for _, sid := range r.SessionIDs() {
		if sid == exceptSessionID {
			continue
		}
		sess, exists := p.sessions.Get(sid)
		if !exists {
			continue
		}
		if err := sess.Send(event, payload); err != nil {
			logger.Log.Debugf("send %s to session %s failed: %v", event, sid, err)
		}
	}
	return nil
}

func (p *RoomPublisher) PublishToSession(sessionID, event string, payload interface{}) error {
	sess, exists := p.sessions.Get(sessionID)
	if !exists {
		return nil
	}
	return sess.Send(event, payload)
}

func (p *RoomPublisher) PublishToAll(event string, payload interface{}) error {
	p.sessions.Each(func(s *session.Session) {
		if err := s.Send(event, payload); err != nil {
			logger.Log.Debugf("send %s to session %s failed: %v", event, s.ID, err)
		}
	})
	return nil
}
