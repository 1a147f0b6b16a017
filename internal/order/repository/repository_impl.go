package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/medilink/medilink/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order, items []domain.OrderItem) error {
	if order == nil || len(items) == 0 {
		return gorm.ErrInvalidData
	}
	// Items are written explicitly so the association is never upserted behind our back.
	if err := db.WithContext(ctx).Omit("Items").Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND id = ?", userID, id).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *repo) FindByCheckoutSessionID(ctx context.Context, db *gorm.DB, checkoutSessionID string) (*domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).
		Where("stripe_checkout_session_id = ?", checkoutSessionID).
		Order("created_at ASC, id ASC").
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) ListByUserID(ctx context.Context, db *gorm.DB, userID string) ([]domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
