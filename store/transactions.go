package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/villebiz/marketplace-server/models"
)

type TransactionLedger interface {
	// InsertIfAbsent appends the transaction unless one already exists for
	// the same external reference. It reports whether the row was inserted;
	// false means a duplicate delivery. The uniqueness constraint does the
	// dedup so the check is race-free under concurrent callbacks.
	InsertIfAbsent(ctx context.Context, tx *models.Transaction) (bool, error)
	Get(ctx context.Context, externalReference string) (*models.Transaction, error)
	List(ctx context.Context) ([]models.Transaction, error)
}

type transactionLedger struct {
	db *gorm.DB
}

func NewTransactionLedger(db *gorm.DB) TransactionLedger {
	return &transactionLedger{db: db}
}

func (l *transactionLedger) InsertIfAbsent(ctx context.Context, tx *models.Transaction) (bool, error) {
	result := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_reference"}},
		DoNothing: true,
	}).Create(tx)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (l *transactionLedger) Get(ctx context.Context, externalReference string) (*models.Transaction, error) {
	var tx models.Transaction
	err := l.db.WithContext(ctx).First(&tx, "external_reference = ?", externalReference).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (l *transactionLedger) List(ctx context.Context) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := l.db.WithContext(ctx).Order("created_at DESC").Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}
