package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	SponsorshipStatusPending   = "pending"
	SponsorshipStatusActive    = "active"
	SponsorshipStatusCancelled = "cancelled"
	SponsorshipStatusExpired   = "expired"
)

// Sponsorship is the source of truth for one purchased placement period.
// A row is keyed by a payment intent id or a subscription id depending on
// which purchase flow created it. Rows are never deleted; cancelled and
// expired rows remain as the audit trail.
type Sponsorship struct {
	gorm.Model
	ProviderID uint    `json:"provider_id" gorm:"index;not null"`
	Tier       string  `json:"tier" gorm:"not null"`
	Status     string  `json:"status" gorm:"default:'pending';index"`
	AmountPaid float64 `json:"amount_paid"`

	StripePaymentIntentID string `json:"-" gorm:"index"`
	StripeSubscriptionID  string `json:"-" gorm:"index"`
	StripeCustomerID      string `json:"-" gorm:"index"`

	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	CancelledAt *time.Time `json:"cancelled_at"`

	Provider Provider `json:"-" gorm:"foreignKey:ProviderID"`
}

func (s *Sponsorship) IsActive() bool {
	return s.Status == SponsorshipStatusActive
}

func (s *Sponsorship) IsTerminal() bool {
	return s.Status == SponsorshipStatusCancelled || s.Status == SponsorshipStatusExpired
}
