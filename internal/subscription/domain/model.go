package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
	TierFamily  Tier = "family"
)

type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodYearly  BillingPeriod = "yearly"
)

// Status mirrors the gateway's subscription lifecycle. Values outside the known set are
// stored as received.
type Status string

const (
	StatusActive            Status = "active"
	StatusTrialing          Status = "trialing"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusPaused            Status = "paused"
)

var (
	ErrInvalidTier   = errors.New("invalid_tier")
	ErrInvalidPeriod = errors.New("invalid_period")
	ErrNotFound      = errors.New("subscription_not_found")
)

type Subscription struct {
	ID                   snowflake.ID  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID               string        `json:"user_id" gorm:"type:text;not null;index"`
	StripeSubscriptionID string        `json:"stripe_subscription_id" gorm:"type:text;not null;uniqueIndex"`
	StripeCustomerID     string        `json:"stripe_customer_id" gorm:"type:text;not null"`
	Tier                 Tier          `json:"tier" gorm:"type:varchar(20);not null"`
	Status               Status        `json:"status" gorm:"type:varchar(32);not null"`
	BillingPeriod        BillingPeriod `json:"billing_period" gorm:"type:varchar(10);not null"`
	CurrentPeriodStart   *time.Time    `json:"current_period_start"`
	CurrentPeriodEnd     *time.Time    `json:"current_period_end"`
	CancelAtPeriodEnd    bool          `json:"cancel_at_period_end" gorm:"not null"`
	CanceledAt           *time.Time    `json:"canceled_at"`
	CreatedAt            time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time     `json:"updated_at" gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

// RemoteState is the subset of the gateway subscription object that local rows mirror.
type RemoteState struct {
	Status             Status
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
}

func ParseTier(raw string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(raw))); t {
	case TierBasic, TierPremium, TierFamily:
		return t, nil
	default:
		return "", ErrInvalidTier
	}
}

func ParseBillingPeriod(raw string) (BillingPeriod, error) {
	switch p := BillingPeriod(strings.ToLower(strings.TrimSpace(raw))); p {
	case BillingPeriodMonthly, BillingPeriodYearly:
		return p, nil
	default:
		return "", ErrInvalidPeriod
	}
}

func (s Status) Known() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusPastDue, StatusCanceled, StatusUnpaid,
		StatusIncomplete, StatusIncompleteExpired, StatusPaused:
		return true
	}
	return false
}
