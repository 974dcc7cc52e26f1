package domain

import "time"

// NotificationType categorizes a notification.
type NotificationType string

// Notification categories.
const (
	NotificationAchievement NotificationType = "achievement"
	NotificationReminder    NotificationType = "reminder"
	NotificationProgress    NotificationType = "progress"
)

// Valid returns true if the type is a recognized value.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationAchievement, NotificationReminder, NotificationProgress:
		return true
	default:
		return false
	}
}

// Notification is a transient user-facing message. It is never persisted.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}
