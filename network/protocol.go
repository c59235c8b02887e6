package network

import (
	"encoding/json"
)

// Client -> server
const (
	MsgTypeCreateRoom = "createRoom"
	MsgTypeJoinRoom   = "joinRoom"
	MsgTypeStartRound = "startRound"
	MsgTypeReset      = "reset"
	MsgTypeAction     = "action"
)

// Server -> client
const (
	MsgTypeYou   = "you"
	MsgTypeRoom  = "room"
	MsgTypeState = "state"
	MsgTypeToast = "toast"
	MsgTypeError = "error"
)

// Message is a decoded client request. Fields that were absent or not
// strings are left empty.
type Message struct {
	Type     string
	Name     string
	PlayerID string
	RoomCode string
	Action   string
}

// Decode parses one inbound frame. It reports false for anything that is not
// a JSON object with a non-empty string "type"; callers drop such frames.
func Decode(raw []byte) (*Message, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}
	msgType := stringField(fields, "type")
	if msgType == "" {
		return nil, false
	}
	return &Message{
		Type:     msgType,
		Name:     stringField(fields, "name"),
		PlayerID: stringField(fields, "playerId"),
		RoomCode: stringField(fields, "roomCode"),
		Action:   stringField(fields, "action"),
	}, true
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Outbound is every server -> client frame.
type Outbound struct {
	Type     string      `json:"type"`
	PlayerID string      `json:"playerId,omitempty"`
	RoomCode string      `json:"roomCode,omitempty"`
	State    interface{} `json:"state,omitempty"`
	Message  string      `json:"message,omitempty"`
}

func You(playerID string) Outbound {
	return Outbound{Type: MsgTypeYou, PlayerID: playerID}
}

func RoomJoined(roomCode string) Outbound {
	return Outbound{Type: MsgTypeRoom, RoomCode: roomCode}
}

func State(state interface{}) Outbound {
	return Outbound{Type: MsgTypeState, State: state}
}

func Toast(message string) Outbound {
	return Outbound{Type: MsgTypeToast, Message: message}
}

func Error(message string) Outbound {
	return Outbound{Type: MsgTypeError, Message: message}
}

func Encode(msg Outbound) ([]byte, error) {
	return json.Marshal(msg)
}
