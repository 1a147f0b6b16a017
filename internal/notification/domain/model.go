package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Type string

const (
	TypeOrderUpdate        Type = "order_update"
	TypeSubscriptionUpdate Type = "subscription_update"
)

var (
	ErrNotFound     = errors.New("notification_not_found")
	ErrInvalidInput = errors.New("invalid_notification")
)

type Notification struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID         string        `json:"user_id" gorm:"type:text;not null;index"`
	Type           Type          `json:"type" gorm:"type:varchar(32);not null"`
	Title          string        `json:"title" gorm:"type:text;not null"`
	Message        string        `json:"message" gorm:"type:text;not null"`
	IsRead         bool          `json:"is_read" gorm:"not null"`
	RelatedOrderID *snowflake.ID `json:"related_order_id,omitempty" gorm:"type:bigint"`
	CreatedAt      time.Time     `json:"created_at" gorm:"not null"`
}

func (Notification) TableName() string { return "notifications" }

type CreateInput struct {
	UserID         string
	Type           Type
	Title          string
	Message        string
	RelatedOrderID *snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
	ListByUserID(ctx context.Context, db *gorm.DB, userID string, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (bool, error)
}

// Sink appends user-facing messages. Create joins the caller's transaction when tx is non-nil.
type Sink interface {
	Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*Notification, error)
}

type Service interface {
	Sink
	List(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, userID string, id snowflake.ID) error
}
