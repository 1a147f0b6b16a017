package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrNotFound        = errors.New("order_not_found")
	ErrInvalidQuantity = errors.New("invalid_quantity")
)

// Order is a one-time purchase. TotalAmount equals the sum of its items' TotalPrice when created
// and is not recomputed afterwards.
type Order struct {
	ID                      snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID                  string          `json:"user_id" gorm:"type:text;not null;index"`
	StripePaymentIntentID   string          `json:"stripe_payment_intent_id" gorm:"type:text;not null"`
	StripeCheckoutSessionID string          `json:"stripe_checkout_session_id" gorm:"type:text;not null;index"`
	TotalAmount             decimal.Decimal `json:"total_amount" gorm:"type:numeric(10,2);not null"`
	Currency                string          `json:"currency" gorm:"type:varchar(3);not null"`
	Status                  Status          `json:"status" gorm:"type:varchar(20);not null"`
	TrackingNumber          *string         `json:"tracking_number,omitempty" gorm:"type:text"`
	Notes                   *string         `json:"notes,omitempty" gorm:"type:text"`
	ShippingAddressID       *snowflake.ID   `json:"shipping_address_id,omitempty" gorm:"type:bigint"`
	CreatedAt               time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt               time.Time       `json:"updated_at" gorm:"not null"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID         snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OrderID    snowflake.ID    `json:"order_id" gorm:"not null;index"`
	ProductID  snowflake.ID    `json:"product_id" gorm:"not null"`
	Quantity   int             `json:"quantity" gorm:"not null"`
	UnitPrice  decimal.Decimal `json:"unit_price" gorm:"type:numeric(10,2);not null"`
	TotalPrice decimal.Decimal `json:"total_price" gorm:"type:numeric(10,2);not null"`
	CreatedAt  time.Time       `json:"created_at" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// LineTotal is unitPrice x quantity rounded to cents.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}
