package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProviderStatusPending  = "pending"
	ProviderStatusApproved = "approved"
	ProviderStatusDenied   = "denied"
)

// Provider is a directory listing. The sponsorship_* columns are a projection
// of the provider's most recent Sponsorship; they are written only through the
// entitlement projector, never directly.
type Provider struct {
	gorm.Model
	UserID  uint   `json:"user_id" gorm:"index"`
	Name    string `json:"name" gorm:"not null"`
	Slug    string `json:"slug" gorm:"uniqueIndex;not null"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	LogoURL string `json:"logo_url"`
	Status  string `json:"status" gorm:"default:'pending'"`

	IsSponsored          bool       `json:"is_sponsored" gorm:"default:false;index"`
	SponsoredUntil       *time.Time `json:"sponsored_until"`
	SponsorshipTier      int        `json:"sponsorship_tier" gorm:"default:0"`
	StripeCustomerID     string     `json:"-" gorm:"index"`
	StripeSubscriptionID string     `json:"-" gorm:"index"`

	User         User          `json:"-" gorm:"foreignKey:UserID"`
	Sponsorships []Sponsorship `json:"-"`
}

// CurrentlySponsored re-checks the projection against the clock. A provider
// whose sponsored_until has passed still carries is_sponsored=true until the
// next transition; read paths must use this instead of the raw flag.
func (p *Provider) CurrentlySponsored(now time.Time) bool {
	if !p.IsSponsored {
		return false
	}
	if p.SponsoredUntil == nil {
		return true
	}
	return p.SponsoredUntil.After(now)
}
