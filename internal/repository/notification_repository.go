package repository

import (
	"context"

	"realtime-collab-be/internal/entity"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *entity.Notification) error
	GetNotificationsByDocumentID(ctx context.Context, documentID uuid.UUID, limit, offset int) ([]entity.Notification, int64, error)
	GetUnreadCount(ctx context.Context, documentID uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, notificationID uuid.UUID) error
}
