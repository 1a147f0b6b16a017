package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert writes the order and its items; callers pass a transaction so both land together.
	Insert(ctx context.Context, db *gorm.DB, order *Order, items []OrderItem) error
	FindByID(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*Order, error)
	FindByCheckoutSessionID(ctx context.Context, db *gorm.DB, checkoutSessionID string) (*Order, error)
	ListByUserID(ctx context.Context, db *gorm.DB, userID string) ([]Order, error)
}
