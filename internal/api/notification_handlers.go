package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/coursetrack/coursetrack/internal/domain"
)

func (s *Server) registerNotificationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listNotifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/notifications",
		Summary:     "List notifications",
		Description: "Returns recent notifications, newest first, with the unread count",
		Tags:        []string{"Notifications"},
	}, s.handleListNotifications)

	huma.Register(s.api, huma.Operation{
		OperationID:   "markNotificationRead",
		Method:        http.MethodPost,
		Path:          "/api/v1/notifications/{id}/read",
		Summary:       "Mark notification read",
		Description:   "Marks one notification as read",
		Tags:          []string{"Notifications"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleMarkNotificationRead)

	huma.Register(s.api, huma.Operation{
		OperationID:   "markAllNotificationsRead",
		Method:        http.MethodPost,
		Path:          "/api/v1/notifications/read-all",
		Summary:       "Mark all notifications read",
		Description:   "Marks every notification as read",
		Tags:          []string{"Notifications"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleMarkAllNotificationsRead)

	huma.Register(s.api, huma.Operation{
		OperationID:   "clearNotifications",
		Method:        http.MethodDelete,
		Path:          "/api/v1/notifications",
		Summary:       "Clear notifications",
		Description:   "Removes every notification",
		Tags:          []string{"Notifications"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleClearNotifications)
}

// NotificationsResponse contains the notification panel.
type NotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications" doc:"Notifications, newest first"`
	Unread        int                   `json:"unread" doc:"Number of unread notifications"`
}

// NotificationsOutput wraps the notifications response for Huma.
type NotificationsOutput struct {
	Body NotificationsResponse
}

// NotificationPathInput identifies a notification.
type NotificationPathInput struct {
	ID string `path:"id" doc:"Notification ID"`
}

func (s *Server) handleListNotifications(_ context.Context, _ *struct{}) (*NotificationsOutput, error) {
	list := s.notifications.List()
	if list == nil {
		list = []domain.Notification{}
	}
	return &NotificationsOutput{Body: NotificationsResponse{
		Notifications: list,
		Unread:        s.notifications.UnreadCount(),
	}}, nil
}

func (s *Server) handleMarkNotificationRead(_ context.Context, input *NotificationPathInput) (*struct{}, error) {
	if err := s.notifications.MarkRead(input.ID); err != nil {
		return nil, s.toHTTPError(err, "markNotificationRead")
	}
	return nil, nil
}

func (s *Server) handleMarkAllNotificationsRead(_ context.Context, _ *struct{}) (*struct{}, error) {
	s.notifications.MarkAllRead()
	return nil, nil
}

func (s *Server) handleClearNotifications(_ context.Context, _ *struct{}) (*struct{}, error) {
	s.notifications.Clear()
	return nil, nil
}
