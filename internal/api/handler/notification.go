package handler

import (
	"errors"
	"net/http"

	"github.com/swarmpush/swarmpush/internal/api/models"
	"github.com/swarmpush/swarmpush/internal/api/response"
	"github.com/swarmpush/swarmpush/internal/notification"
)

// NotificationHandler exposes the notification inbox.
type NotificationHandler struct {
	inbox *notification.Inbox
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(inbox *notification.Inbox) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// Record handles POST /v1/notifications.
func (h *NotificationHandler) Record(w http.ResponseWriter, r *http.Request) {
	var ev notification.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	stored, err := h.inbox.Record(ev)
	if err != nil {
		if errors.Is(err, notification.ErrEmptyContent) {
			response.BadRequest(w, r, err.Error(), []models.FieldError{
				{Field: "request.content", Message: "title or body is required", Code: "REQUIRED"},
			})
			return
		}
		response.InternalError(w, r, "failed to record notification")
		return
	}
	response.Created(w, r, "/v1/notifications/latest", models.LatestNotification{Notification: &stored})
}

// Latest handles GET /v1/notifications/latest. Notification is null until
// something has been received.
func (h *NotificationHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ev, _ := h.inbox.Latest()
	response.OK(w, r, models.LatestNotification{Notification: ev})
}
