package room

// Publisher is the transport port the room core emits events through.
// Defined here to break the import cycle between room and broadcast; both
// the websocket push transport and the redis shared-channel transport
// satisfy it.
type Publisher interface {
	PublishToRoom(roomID, event string, payload interface{}) error
	PublishToRoomExcept(roomID, exceptSessionID, event string, payload interface{}) error
	PublishToSession(sessionID, event string, payload interface{}) error
	PublishToAll(event string, payload interface{}) error
}
