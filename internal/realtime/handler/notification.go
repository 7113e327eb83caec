// internal/realtime/handler/notification.go
package handlers

import (
	"context"
	"fmt"

	"soulchat-agent/internal/domain/notification"
	wstypes "soulchat-agent/internal/domain/websocket"
	notificationService "soulchat-agent/internal/service/notification"

	"go.uber.org/zap"
)

// Broadcaster forwards events to local UI bindings.
type Broadcaster interface {
	Broadcast(msg *wstypes.WSMessage)
	Toast(level wstypes.ToastLevel, message string)
}

// NotificationHandler routes realtime events into the notification service.
type NotificationHandler struct {
	notificationService *notificationService.NotificationService
	ui                  Broadcaster
	logger              *zap.Logger
}

func NewNotificationHandler(svc *notificationService.NotificationService, ui Broadcaster, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{
		notificationService: svc,
		ui:                  ui,
		logger:              logger,
	}
}

// SupportedEvents returns events this handler supports
func (h *NotificationHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeConnect,
		wstypes.EventTypeDisconnect,
		wstypes.EventTypeReconnectFailed,
		wstypes.EventTypeConnectionConfirmed,
		wstypes.EventTypeNotification,
		wstypes.EventTypeNotificationUpdated,
		wstypes.EventTypeWhisperStatusUpdate,
		wstypes.EventTypeSoulChatCreated,
		wstypes.EventTypeUnreadCountsUpdate,
	}
}

// HandleEvent processes notification-related events
func (h *NotificationHandler) HandleEvent(ctx context.Context, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeConnect:
		return h.handleConnect(ctx, msg)

	case wstypes.EventTypeDisconnect:
		h.notificationService.SetConnected(false)
		return nil

	case wstypes.EventTypeReconnectFailed:
		h.notificationService.SetConnected(false)
		if h.ui != nil {
			h.ui.Toast(wstypes.ToastInfo, "Live updates are unavailable, refreshing periodically")
		}
		return nil

	case wstypes.EventTypeConnectionConfirmed:
		h.notificationService.SetConnected(true)
		return nil

	case wstypes.EventTypeNotification:
		return h.handleNotification(ctx, msg)

	case wstypes.EventTypeNotificationUpdated:
		return h.handleStatusUpdate(msg, "")

	case wstypes.EventTypeWhisperStatusUpdate:
		return h.handleStatusUpdate(msg, "whisper")

	case wstypes.EventTypeSoulChatCreated:
		h.notificationService.FetchThreadCounts(ctx)
		if h.ui != nil {
			h.ui.Broadcast(msg)
		}
		return nil

	case wstypes.EventTypeUnreadCountsUpdate:
		var update notification.CountsUpdate
		if err := msg.Decode(&update); err != nil {
			return fmt.Errorf("invalid unread counts payload: %w", err)
		}
		h.notificationService.OnCountsUpdate(update)
		return nil

	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

// handleConnect marks the connection live. After a reconnect the counters are
// refetched since pushes may have been missed while down.
func (h *NotificationHandler) handleConnect(ctx context.Context, msg *wstypes.WSMessage) error {
	h.notificationService.SetConnected(true)

	var data wstypes.ConnectionData
	if err := msg.Decode(&data); err == nil && data.Attempt > 0 {
		h.notificationService.FetchUnreadCounts(ctx)
	}
	return nil
}

func (h *NotificationHandler) handleNotification(ctx context.Context, msg *wstypes.WSMessage) error {
	var wrapped struct {
		Notification *notification.Event `json:"notification"`
	}
	if err := msg.Decode(&wrapped); err == nil && wrapped.Notification != nil {
		h.notificationService.OnPush(ctx, *wrapped.Notification)
		return nil
	}

	var ev notification.Event
	if err := msg.Decode(&ev); err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}
	if ev.ID == "" && ev.Type == "" {
		return fmt.Errorf("notification payload has neither id nor type")
	}
	h.notificationService.OnPush(ctx, ev)
	return nil
}

func (h *NotificationHandler) handleStatusUpdate(msg *wstypes.WSMessage, group string) error {
	var update notification.StatusUpdate
	if err := msg.Decode(&update); err != nil {
		return fmt.Errorf("invalid status update payload: %w", err)
	}
	update.Group = group
	if update.NotificationID == "" && update.Request() == "" {
		return fmt.Errorf("status update references no notification")
	}
	h.notificationService.OnStatusUpdate(update)
	return nil
}
