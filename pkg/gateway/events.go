package gateway

import (
	"encoding/json"

	"m5chat/pkg/models"
)

// Inbound event names (client -> server).
const (
	evtJoin  = "join"
	evtLeave = "leave"
	evtSend  = "send"
)

// Outbound event names (server -> client).
const (
	evtConnected   = "connected"
	evtRoomHistory = "room_history"
	evtUserJoined  = "user_joined"
	evtUserLeft    = "user_left"
	evtNewMessage  = "new_message"
	evtError       = "error"
)

// envelope is the wire frame in both directions: a tag plus a payload whose
// shape depends on the tag.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

type leavePayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

type sendPayload struct {
	Username string `json:"username"`
	Content  string `json:"content"`
	Room     string `json:"room"`
	Type     string `json:"message_type"`
	ImageURL string `json:"image_url,omitempty"`
	VoiceURL string `json:"voice_url,omitempty"`
}

type connectedPayload struct {
	Message string `json:"message"`
}

type historyPayload struct {
	Messages    []models.Message `json:"messages"`
	ActiveUsers []string         `json:"active_users"`
}

// presencePayload is shared by user_joined and user_left.
type presencePayload struct {
	Username    string   `json:"username"`
	Room        string   `json:"room"`
	ActiveUsers []string `json:"active_users"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// encodeEvent marshals an outbound event frame.
func encodeEvent(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		// payloads are plain structs; a marshal failure is a programming error
		raw = []byte("{}")
	}
	frame, _ := json.Marshal(envelope{Event: event, Data: raw})
	return frame
}
