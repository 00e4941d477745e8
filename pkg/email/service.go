// pkg/email/service.go
package email

import (
	"time"

	"providerdirectory_backend/internal/model"
	"providerdirectory_backend/pkg/sponsorship"
)

var GlobalEmailService *EmailService

func InitEmailService(apiKey string) error {
	service, err := NewEmailService(apiKey)
	if err != nil {
		return err
	}
	GlobalEmailService = service
	return nil
}

// The EmailService doubles as the sponsorship notification sink.

func (s *EmailService) SponsorshipActivated(provider *model.Provider, sub *model.Sponsorship) error {
	if provider.Email == "" {
		return nil
	}
	info := sponsorship.Catalog[sponsorship.Tier(sub.Tier)]
	endsAt := sub.CreatedAt
	if sub.EndsAt != nil {
		endsAt = *sub.EndsAt
	}
	// A re-activation of a row that started a while ago is a renewal.
	isRenewal := sub.StartsAt != nil && time.Since(*sub.StartsAt) > time.Hour
	return s.SendSponsorshipActivatedEmail(provider.Email, provider.Name, info.Name, sub.AmountPaid, endsAt, isRenewal)
}

func (s *EmailService) SponsorshipCancelled(provider *model.Provider, sub *model.Sponsorship) error {
	if provider.Email == "" {
		return nil
	}
	info := sponsorship.Catalog[sponsorship.Tier(sub.Tier)]
	cancelledAt := sub.UpdatedAt
	if sub.CancelledAt != nil {
		cancelledAt = *sub.CancelledAt
	}
	return s.SendSponsorshipCancelledEmail(provider.Email, provider.Name, info.Name, cancelledAt)
}
