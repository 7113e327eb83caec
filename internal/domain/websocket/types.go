// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection lifecycle (synthesised locally by the realtime layer)
	EventTypeConnect         EventType = "connect"
	EventTypeDisconnect      EventType = "disconnect"
	EventTypeReconnectFailed EventType = "reconnect_failed"

	// Handshake (client -> server)
	EventTypeAuth EventType = "auth"

	// Server -> client
	EventTypeConnectionConfirmed EventType = "connection_confirmed"
	EventTypeNotification        EventType = "notification"
	EventTypeNotificationUpdated EventType = "notification_updated"
	EventTypeWhisperStatusUpdate EventType = "whisper_status_update"
	EventTypeSoulChatCreated     EventType = "soul_chat_created"
	EventTypeUnreadCountsUpdate  EventType = "unread_counts_update"

	// Local hub -> UI bindings
	EventTypeState EventType = "state"
	EventTypeToast EventType = "toast"
	EventTypePing  EventType = "ping"
	EventTypePong  EventType = "pong"
	EventTypeError EventType = "error"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"`
}

// AuthData is the handshake payload sent right after dialing.
type AuthData struct {
	Token string `json:"token"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ToastLevel is the severity of a user-visible transient message.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastInfo    ToastLevel = "info"
)

// ToastData for toast events
type ToastData struct {
	Level   ToastLevel `json:"level"`
	Message string     `json:"message"`
}

// ConnectionData is attached to connect / disconnect events.
type ConnectionData struct {
	Reason  string `json:"reason,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
}

// Helper to create messages
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        ulid.Make().String(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Decode converts the loosely typed Data into target.
func (m *WSMessage) Decode(target interface{}) error {
	if raw, ok := m.Data.(json.RawMessage); ok {
		return json.Unmarshal(raw, target)
	}
	jsonData, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, target)
}

// ParseMessage decodes an incoming frame. Data is kept raw until Decode.
func ParseMessage(data []byte) (*WSMessage, error) {
	var in struct {
		Type      EventType              `json:"type"`
		Event     EventType              `json:"event"`
		Data      json.RawMessage        `json:"data"`
		Metadata  map[string]interface{} `json:"metadata"`
		Timestamp time.Time              `json:"timestamp"`
		ID        string                 `json:"id"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	msg := &WSMessage{
		Type:      in.Type,
		Metadata:  in.Metadata,
		Timestamp: in.Timestamp,
		ID:        in.ID,
	}
	if msg.Type == "" {
		msg.Type = in.Event
	}
	if len(in.Data) > 0 {
		msg.Data = in.Data
	}
	return msg, nil
}
