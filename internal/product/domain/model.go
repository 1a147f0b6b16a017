package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Product is a physical QR-code item sold through one-time checkout.
type Product struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name        string          `json:"name" gorm:"type:text;not null"`
	Description *string         `json:"description,omitempty" gorm:"type:text"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"`
	Currency    string          `json:"currency" gorm:"type:varchar(3);not null"`
	IsActive    bool            `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

func (p Product) MarshalJSON() ([]byte, error) {
	type product Product
	return json.Marshal(struct {
		product
		Price string `json:"price"`
	}{product(p), p.Price.StringFixed(2)})
}
