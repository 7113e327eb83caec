// internal/handlers/notification/notification_handler.go
package notification

import (
	"fmt"
	"net/http"
	"strconv"

	"soulchat-agent/internal/domain/notification"
	xerrors "soulchat-agent/internal/pkg/errors"
	"soulchat-agent/internal/pkg/response"
	service "soulchat-agent/internal/service/notification"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

type unreadResponse struct {
	notification.UnreadCounters
	Total int `json:"total"`
}

func newUnreadResponse(c notification.UnreadCounters) unreadResponse {
	return unreadResponse{UnreadCounters: c, Total: c.Total()}
}

// GetNotifications returns the recent buffer, or the buffer merged with the
// REST feed when merged=true.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	var events []notification.Event
	if merged, _ := strconv.ParseBool(c.Query("merged")); merged {
		events = h.notificationService.Feed(c.Request.Context())
	} else {
		events = h.notificationService.Recent()
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			response.ValidationError(c, "invalid limit", fmt.Errorf("limit %q: %w", raw, xerrors.ErrInvalidInput))
			return
		}
		if limit < len(events) {
			events = events[:limit]
		}
	}
	if events == nil {
		events = []notification.Event{}
	}

	response.Success(c, http.StatusOK, "notifications", gin.H{
		"notifications": events,
		"count":         len(events),
	})
}

// GetUnreadCounts returns the three unread counters
func (h *NotificationHandler) GetUnreadCounts(c *gin.Context) {
	response.Success(c, http.StatusOK, "unread counts", newUnreadResponse(h.notificationService.Counters()))
}

// RefreshCounts forces an authoritative refetch of the counters
func (h *NotificationHandler) RefreshCounts(c *gin.Context) {
	if err := h.notificationService.FetchUnreadCounts(c.Request.Context()); err != nil {
		response.FromError(c, "failed to refresh unread counts", err, newUnreadResponse(h.notificationService.Counters()))
		return
	}

	response.Success(c, http.StatusOK, "unread counts refreshed", newUnreadResponse(h.notificationService.Counters()))
}

// MarkAsRead marks a single notification read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id := c.Param("id")
	if err := h.notificationService.MarkNotificationRead(c.Request.Context(), id); err != nil {
		response.FromError(c, "failed to mark notification as read", err)
		return
	}

	response.Success(c, http.StatusOK, "notification marked as read", newUnreadResponse(h.notificationService.Counters()))
}

// MarkThreadRead marks a whisper or soul-chat thread read
func (h *NotificationHandler) MarkThreadRead(c *gin.Context) {
	kind, ok := notification.ParseChatKind(c.Param("kind"))
	if !ok {
		response.ValidationError(c, "unknown thread kind", fmt.Errorf("kind %q: %w", c.Param("kind"), xerrors.ErrInvalidInput))
		return
	}

	if err := h.notificationService.MarkThreadRead(c.Request.Context(), kind, c.Param("id")); err != nil {
		response.FromError(c, "failed to mark thread as read", err)
		return
	}

	response.Success(c, http.StatusOK, "thread marked as read", newUnreadResponse(h.notificationService.Counters()))
}
