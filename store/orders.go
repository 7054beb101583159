package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/villebiz/marketplace-server/models"
)

// ErrNotFound is returned when a record with the requested reference does not
// exist in any of the stores.
var ErrNotFound = errors.New("record not found")

type OrderStore interface {
	Get(ctx context.Context, reference string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	// UpdateStatus moves the order from one status to another and reports
	// whether the row actually changed. The previous status is part of the
	// WHERE clause so two racing transitions settle exactly once.
	UpdateStatus(ctx context.Context, reference string, from, to models.OrderStatus) (bool, error)
	UpdateDetails(ctx context.Context, reference string, fields map[string]interface{}) (*models.Order, error)
	Delete(ctx context.Context, reference string) error
}

type orderStore struct {
	db *gorm.DB
}

func NewOrderStore(db *gorm.DB) OrderStore {
	return &orderStore{db: db}
}

func (s *orderStore) Get(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).First(&order, "order_reference = ?", reference).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *orderStore) Create(ctx context.Context, order *models.Order) error {
	return s.db.WithContext(ctx).Create(order).Error
}

func (s *orderStore) UpdateStatus(ctx context.Context, reference string, from, to models.OrderStatus) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_reference = ? AND order_status = ?", reference, from).
		Update("order_status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *orderStore) UpdateDetails(ctx context.Context, reference string, fields map[string]interface{}) (*models.Order, error) {
	result := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_reference = ?", reference).
		Updates(fields)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, reference)
}

func (s *orderStore) Delete(ctx context.Context, reference string) error {
	result := s.db.WithContext(ctx).Where("order_reference = ?", reference).Delete(&models.Order{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
