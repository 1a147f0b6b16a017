package repository

import (
	"context"
	"errors"
	"time"

	"github.com/medilink/medilink/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, sub *domain.Subscription) (bool, error) {
	if sub == nil {
		return false, gorm.ErrInvalidData
	}
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_subscription_id"}},
			DoNothing: true,
		}).
		Create(sub)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByStripeID(ctx context.Context, db *gorm.DB, stripeSubscriptionID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repo) FindActiveByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.Subscription, error) {
	var items []domain.Subscription
	err := db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []domain.Status{
			domain.StatusActive,
			domain.StatusTrialing,
			domain.StatusPastDue,
		}).
		Order("created_at DESC, id DESC").
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

func (r *repo) UpdateRemoteState(ctx context.Context, db *gorm.DB, stripeSubscriptionID string, state domain.RemoteState, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Updates(map[string]any{
			"status":               state.Status,
			"current_period_start": state.CurrentPeriodStart,
			"current_period_end":   state.CurrentPeriodEnd,
			"cancel_at_period_end": state.CancelAtPeriodEnd,
			"canceled_at":          state.CanceledAt,
			"updated_at":           now,
		}).Error
}

func (r *repo) UpdatePeriod(ctx context.Context, db *gorm.DB, stripeSubscriptionID string, start, end *time.Time, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Updates(map[string]any{
			"current_period_start": start,
			"current_period_end":   end,
			"updated_at":           now,
		}).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, stripeSubscriptionID string, status domain.Status, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": now,
		}).Error
}
