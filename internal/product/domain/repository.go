package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("product_not_found")
	ErrInactive  = errors.New("product_inactive")
	ErrInvalidID = errors.New("invalid_product_id")
)

type Repository interface {
	// FindByID returns nil, nil when the product does not exist.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Product, error)
}
