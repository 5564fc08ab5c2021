package network

import "encoding/json"

// Envelope 线上统一的消息信封：事件名 + JSON 负载
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client → server intents.
const (
	IntentHello          = "hello"
	IntentHeartbeat      = "heartbeat"
	IntentCreateRoom     = "create-room"
	IntentJoinRoom       = "join-room"
	IntentLeaveRoom      = "leave-room"
	IntentListRooms      = "list-rooms"
	IntentSelectRole     = "select-role"
	IntentToggleReady    = "toggle-ready"
	IntentStartGame      = "start-game"
	IntentPlayerMove     = "player-move"
	IntentPlayerInput    = "player-input"
	IntentCollectCoin    = "collect-coin"
	IntentCollectPowerup = "collect-powerup"
	IntentUseTeleporter  = "use-teleporter"
	IntentPlayerCaught   = "player-caught"
	IntentPlayerEscaped  = "player-escaped"
	IntentRoomChat       = "room-chat"
)

// Server → client events.
const (
	EventWelcome          = "welcome"
	EventError            = "error"
	EventRoomCreated      = "room-created"
	EventRoomJoined       = "room-joined"
	EventPlayerJoined     = "player-joined"
	EventPlayerLeft       = "player-left"
	EventLeftRoom         = "left-room"
	EventRoleSelected     = "role-selected"
	EventReadyToggled     = "ready-toggled"
	EventAllReady         = "all-ready"
	EventGameStarted      = "game-started"
	EventTimeUpdate       = "time-update"
	EventPlayerMoved      = "player-moved"
	EventCoinCollected    = "coin-collected"
	EventPowerupCollected = "powerup-collected"
	EventPowerupEnded     = "powerup-ended"
	EventPlayerTeleported = "player-teleported"
	EventGameEnded        = "game-ended"
	EventRoomReset        = "room-reset"
	EventRoomsUpdated     = "rooms-updated"
	EventChatMessage      = "chat-message"
)
