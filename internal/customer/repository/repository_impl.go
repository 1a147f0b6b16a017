package repository

import (
	"context"
	"errors"

	"github.com/medilink/medilink/internal/customer/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.Customer, error) {
	var c domain.Customer
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) (bool, error) {
	if customer == nil {
		return false, gorm.ErrInvalidData
	}
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(customer)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FirstShippingAddress(ctx context.Context, db *gorm.DB, userID string) (*domain.ShippingAddress, error) {
	var items []domain.ShippingAddress
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at ASC, id ASC").
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
