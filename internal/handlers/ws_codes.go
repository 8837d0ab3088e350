package handlers

// Application close codes sent on the room websocket.
const (
	BadSubprotocolError  = 3000 // Client did not negotiate the "trivia" subprotocol.
	InvalidTokenError    = 3001 // Host or player token failed verification.
	InvalidRoleError     = 3002 // Unknown role query parameter.
	InvalidRoomCodeError = 3003 // Room code is malformed or the room does not exist.
)
