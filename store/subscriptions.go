package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/villebiz/marketplace-server/models"
)

// Audience narrows a broadcast to a class of subscribers. Admins always
// receive targeted sends so the operator sees what customers see.
type Audience struct {
	ForSellers bool
	ForAdmins  bool
	Email      string
}

type SubscriptionStore interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) error
	Remove(ctx context.Context, endpoint string) error
	ListForAudience(ctx context.Context, audience Audience) ([]models.PushSubscription, error)
}

type subscriptionStore struct {
	db *gorm.DB
}

func NewSubscriptionStore(db *gorm.DB) SubscriptionStore {
	return &subscriptionStore{db: db}
}

func (s *subscriptionStore) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	var existing models.PushSubscription
	err := s.db.WithContext(ctx).First(&existing, "endpoint = ?", sub.Endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(sub).Error
	}
	if err != nil {
		return err
	}
	if existing.Email == sub.Email && existing.Role == sub.Role {
		return nil
	}
	return s.db.WithContext(ctx).Model(&existing).
		Updates(map[string]interface{}{"email": sub.Email, "role": sub.Role}).Error
}

func (s *subscriptionStore) Remove(ctx context.Context, endpoint string) error {
	result := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&models.PushSubscription{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *subscriptionStore) ListForAudience(ctx context.Context, audience Audience) ([]models.PushSubscription, error) {
	q := s.db.WithContext(ctx).Model(&models.PushSubscription{})
	switch {
	case audience.ForAdmins:
		q = q.Where("role = ?", "admin")
	case audience.ForSellers:
		q = q.Where("role IN ?", []string{"admin", "seller"})
	case audience.Email != "":
		q = q.Where("role = ? OR email = ?", "admin", audience.Email)
	}

	var subs []models.PushSubscription
	if err := q.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
