package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Customer links an identity-provider user to the Stripe customer created for them.
type Customer struct {
	UserID           string    `json:"user_id" gorm:"primaryKey;type:text"`
	Email            string    `json:"email" gorm:"type:text;not null"`
	Name             string    `json:"name" gorm:"type:text;not null"`
	StripeCustomerID string    `json:"stripe_customer_id" gorm:"type:text;not null;uniqueIndex"`
	CreatedAt        time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"not null"`
}

func (Customer) TableName() string { return "customers" }

type ShippingAddress struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID     string       `json:"user_id" gorm:"type:text;not null;index"`
	FullName   string       `json:"full_name" gorm:"type:text;not null"`
	Line1      string       `json:"line1" gorm:"type:text;not null"`
	Line2      *string      `json:"line2,omitempty" gorm:"type:text"`
	City       string       `json:"city" gorm:"type:text;not null"`
	State      *string      `json:"state,omitempty" gorm:"type:text"`
	PostalCode string       `json:"postal_code" gorm:"type:text;not null"`
	Country    string       `json:"country" gorm:"type:varchar(2);not null"`
	IsDefault  bool         `json:"is_default" gorm:"not null"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
}

func (ShippingAddress) TableName() string { return "shipping_addresses" }
