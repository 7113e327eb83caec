// internal/domain/notification/entity.go
package notification

import (
	"fmt"
	"strings"
	"time"
)

type NotificationType string

const (
	TypeFollow  NotificationType = "FOLLOW"
	TypeLike    NotificationType = "LIKE"
	TypeComment NotificationType = "COMMENT"
	TypeMention NotificationType = "MENTION"
	TypeReply   NotificationType = "REPLY"

	TypeWhisperMessage  NotificationType = "WHISPER_MESSAGE"
	TypeSoulChatMessage NotificationType = "SOUL_CHAT_MESSAGE"

	TypeWhisperRequest   NotificationType = "WHISPER_REQUEST"
	TypeWhisperAccepted  NotificationType = "WHISPER_ACCEPTED"
	TypeWhisperRejected  NotificationType = "WHISPER_REJECTED"
	TypeSoulChatRequest  NotificationType = "SOUL_CHAT_REQUEST"
	TypeSoulChatAccepted NotificationType = "SOUL_CHAT_ACCEPTED"
	TypeSoulChatRejected NotificationType = "SOUL_CHAT_REJECTED"

	TypeSoulMatch NotificationType = "SOUL_MATCH"
	TypeSystem    NotificationType = "SYSTEM"
)

// Family groups notification types by how they affect reconciled state.
type Family string

const (
	FamilySocial          Family = "social"
	FamilyWhisperMessage  Family = "whisper_message"
	FamilySoulChatMessage Family = "soul_chat_message"
	FamilyRequest         Family = "request"
	FamilyOther           Family = "other"
)

// Family classifies the type. Unknown types are FamilyOther.
func (t NotificationType) Family() Family {
	switch t {
	case TypeFollow, TypeLike, TypeComment, TypeMention, TypeReply:
		return FamilySocial
	case TypeWhisperMessage:
		return FamilyWhisperMessage
	case TypeSoulChatMessage:
		return FamilySoulChatMessage
	case TypeWhisperRequest, TypeWhisperAccepted, TypeWhisperRejected,
		TypeSoulChatRequest, TypeSoulChatAccepted, TypeSoulChatRejected:
		return FamilyRequest
	default:
		return FamilyOther
	}
}

// RequestGroup is the dedup family of a relationship-request type: "whisper" or
// "soul_chat". Empty for every other type.
func (t NotificationType) RequestGroup() string {
	switch t {
	case TypeWhisperRequest, TypeWhisperAccepted, TypeWhisperRejected:
		return "whisper"
	case TypeSoulChatRequest, TypeSoulChatAccepted, TypeSoulChatRejected:
		return "soul_chat"
	default:
		return ""
	}
}

// ResolvedType returns the request-family type for an action such as
// ACCEPTED or REJECTED within the same group.
func ResolvedType(group, action string) (NotificationType, bool) {
	action = strings.ToUpper(strings.TrimSpace(action))
	switch group + ":" + action {
	case "whisper:ACCEPTED":
		return TypeWhisperAccepted, true
	case "whisper:REJECTED":
		return TypeWhisperRejected, true
	case "whisper:PENDING", "whisper:REQUEST":
		return TypeWhisperRequest, true
	case "soul_chat:ACCEPTED":
		return TypeSoulChatAccepted, true
	case "soul_chat:REJECTED":
		return TypeSoulChatRejected, true
	case "soul_chat:PENDING", "soul_chat:REQUEST":
		return TypeSoulChatRequest, true
	}
	return "", false
}

// Event is a single server-pushed or server-fetched notification.
type Event struct {
	ID        string                 `json:"id"`
	Type      NotificationType       `json:"type"`
	Message   string                 `json:"message"`
	CreatedAt time.Time              `json:"createdAt"`
	IsRead    bool                   `json:"isRead"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// RequestID returns metadata.requestId (or whisperId for whisper payloads).
func (e Event) RequestID() string {
	if v := metaString(e.Metadata, "requestId"); v != "" {
		return v
	}
	return metaString(e.Metadata, "whisperId")
}

// ThreadID returns metadata.threadId.
func (e Event) ThreadID() string {
	return metaString(e.Metadata, "threadId")
}

// ActorID returns metadata.actorId.
func (e Event) ActorID() string {
	return metaString(e.Metadata, "actorId")
}

// DedupKey is the (type-family, requestId) identity of a request event, or
// empty when the event only dedupes by id.
func (e Event) DedupKey() string {
	group := e.Type.RequestGroup()
	if group == "" {
		return ""
	}
	reqID := e.RequestID()
	if reqID == "" {
		return ""
	}
	return group + ":" + reqID
}

// Clone deep-copies the event, metadata included.
func (e Event) Clone() Event {
	if e.Metadata != nil {
		m := make(map[string]interface{}, len(e.Metadata))
		for k, v := range e.Metadata {
			m[k] = v
		}
		e.Metadata = m
	}
	return e
}

func metaString(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}

// StatusUpdate is the payload of notification_updated and whisper_status_update.
type StatusUpdate struct {
	NotificationID string           `json:"notificationId,omitempty"`
	RequestID      string           `json:"requestId,omitempty"`
	WhisperID      string           `json:"whisperId,omitempty"`
	Group          string           `json:"-"`
	Action         string           `json:"action,omitempty"`
	Status         string           `json:"status,omitempty"`
	Type           NotificationType `json:"type,omitempty"`
	Message        string           `json:"message,omitempty"`
	IsRead         *bool            `json:"isRead,omitempty"`
}

// Request returns the referenced request id.
func (u StatusUpdate) Request() string {
	if u.RequestID != "" {
		return u.RequestID
	}
	return u.WhisperID
}

// Outcome returns the action, falling back to status.
func (u StatusUpdate) Outcome() string {
	if u.Action != "" {
		return u.Action
	}
	return u.Status
}
