package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEvent records every processor event the webhook endpoint accepted.
// The unique event id makes exact replays detectable and keeps an audit trail
// of what the processor told us and what we did with it.
type WebhookEvent struct {
	gorm.Model
	StripeEventID string         `json:"stripe_event_id" gorm:"uniqueIndex;not null"`
	Type          string         `json:"type" gorm:"index"`
	Payload       datatypes.JSON `json:"payload"`
	Outcome       string         `json:"outcome"`
	ProcessedAt   *time.Time     `json:"processed_at"`
}
