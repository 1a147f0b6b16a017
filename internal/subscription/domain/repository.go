package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent relies on the unique stripe_subscription_id index. It reports false when a
	// row already existed, including when a concurrent insert won the race.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, sub *Subscription) (bool, error)
	// FindByStripeID returns nil, nil when no local row mirrors the remote subscription.
	FindByStripeID(ctx context.Context, db *gorm.DB, stripeSubscriptionID string) (*Subscription, error)
	FindActiveByUserID(ctx context.Context, db *gorm.DB, userID string) (*Subscription, error)
	UpdateRemoteState(ctx context.Context, db *gorm.DB, stripeSubscriptionID string, state RemoteState, now time.Time) error
	UpdatePeriod(ctx context.Context, db *gorm.DB, stripeSubscriptionID string, start, end *time.Time, now time.Time) error
	UpdateStatus(ctx context.Context, db *gorm.DB, stripeSubscriptionID string, status Status, now time.Time) error
}
