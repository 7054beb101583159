package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/villebiz/marketplace-server/models"
)

type NotificationLog interface {
	Append(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, reference string) (*models.Notification, error)
	ListForEmail(ctx context.Context, email string) ([]models.Notification, error)
}

type notificationLog struct {
	db *gorm.DB
}

func NewNotificationLog(db *gorm.DB) NotificationLog {
	return &notificationLog{db: db}
}

func (l *notificationLog) Append(ctx context.Context, n *models.Notification) error {
	return l.db.WithContext(ctx).Create(n).Error
}

func (l *notificationLog) Get(ctx context.Context, reference string) (*models.Notification, error) {
	var n models.Notification
	err := l.db.WithContext(ctx).First(&n, "notification_reference = ?", reference).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (l *notificationLog) ListForEmail(ctx context.Context, email string) ([]models.Notification, error) {
	var ns []models.Notification
	err := l.db.WithContext(ctx).Where("to_email = ?", email).Order("sent_on DESC").Find(&ns).Error
	if err != nil {
		return nil, err
	}
	return ns, nil
}
