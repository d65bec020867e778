package models

import "github.com/swarmpush/swarmpush/internal/notification"

// LatestNotification wraps the most recently received notification.
type LatestNotification struct {
	Notification *notification.Event `json:"notification"`
}
