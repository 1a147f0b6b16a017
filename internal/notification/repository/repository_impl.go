package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/medilink/medilink/internal/notification/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	return db.WithContext(ctx).Create(n).Error
}

func (r *repo) ListByUserID(ctx context.Context, db *gorm.DB, userID string, unreadOnly bool) ([]domain.Notification, error) {
	stmt := db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		stmt = stmt.Where("is_read = ?", false)
	}

	var items []domain.Notification
	if err := stmt.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkRead(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("is_read", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
