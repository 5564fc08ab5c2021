// broadcast/redis.go
package broadcast

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/chaseserver/logger"
)

const fanoutChannel = "chaseserver:fanout"

// fanoutMessage 跨节点转发的事件封包
type fanoutMessage struct {
	Scope     string          `json:"scope"` // room / session / all
	RoomID    string          `json:"roomId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Except    string          `json:"except,omitempty"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RedisPublisher 多实例部署用的广播器。所有事件先经 Redis pub/sub 转一圈,
// 每个实例的订阅协程再通过本地 RoomPublisher 投递给自己持有的会话。
// 本地直接投递被刻意省略，避免源实例重复收到两份。
type RedisPublisher struct {
	client *redis.Client
	local  *RoomPublisher
}

func NewRedisPublisher(client *redis.Client, local *RoomPublisher) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		local:  local,
	}
}

// Run subscribes to the fanout channel and delivers incoming events until
// ctx is cancelled. Call it once, in its own goroutine.
func (p *RedisPublisher) Run(ctx context.Context) error {
	sub := p.client.Subscribe(ctx, fanoutChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			p.deliver([]byte(msg.Payload))
		}
	}
}

func (p *RedisPublisher) deliver(raw []byte) {
	var msg fanoutMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Log.Warnf("fanout: bad message: %v", err)
		return
	}

	var payload interface{}
	if len(msg.Payload) > 0 {
		payload = msg.Payload
	}

	switch msg.Scope {
	case "room":
		p.local.PublishToRoomExcept(msg.RoomID, msg.Except, msg.Event, payload)
	case "session":
		p.local.PublishToSession(msg.SessionID, msg.Event, payload)
	case "all":
		p.local.PublishToAll(msg.Event, payload)
	default:
		logger.Log.Warnf("fanout: unknown scope %q", msg.Scope)
	}
}

func (p *RedisPublisher) publish(msg fanoutMessage, payload interface{}) error {
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Payload = raw
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.client.Publish(context.Background(), fanoutChannel, raw).Err()
}

func (p *RedisPublisher) PublishToRoom(roomID, event string, payload interface{}) error {
	return p.publish(fanoutMessage{Scope: "room", RoomID: roomID, Event: event}, payload)
}

func (p *RedisPublisher) PublishToRoomExcept(roomID, exceptSessionID, event string, payload interface{}) error {
	return p.publish(fanoutMessage{Scope: "room", RoomID: roomID, Except: exceptSessionID, Event: event}, payload)
}

func (p *RedisPublisher) PublishToSession(sessionID, event string, payload interface{}) error {
	return p.publish(fanoutMessage{Scope: "session", SessionID: sessionID, Event: event}, payload)
}

func (p *RedisPublisher) PublishToAll(event string, payload interface{}) error {
	return p.publish(fanoutMessage{Scope: "all", Event: event}, payload)
}
