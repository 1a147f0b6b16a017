package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Outcome describes what processing an event did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// EventRecord journals every verified delivery. It is an audit trail, not a dedupe index.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;index"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Kind            EventKind      `json:"kind" gorm:"type:text;not null"`
	Outcome         Outcome        `json:"outcome" gorm:"type:text;not null"`
	Error           *string        `json:"error,omitempty" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null;index"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

// Result is returned to the transport once an event has been handled.
type Result struct {
	EventID string    `json:"event_id"`
	Type    string    `json:"type"`
	Kind    EventKind `json:"kind"`
	Outcome Outcome   `json:"outcome"`
}
