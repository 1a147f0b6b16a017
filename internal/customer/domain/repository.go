package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// FindByUserID returns nil, nil when the user has never checked out.
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*Customer, error)
	// Insert keeps an existing mapping for the user and reports whether a row was written.
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) (bool, error)
	// FirstShippingAddress returns the user's default address, else their oldest, else nil.
	FirstShippingAddress(ctx context.Context, db *gorm.DB, userID string) (*ShippingAddress, error)
}
