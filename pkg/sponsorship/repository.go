package sponsorship

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"providerdirectory_backend/internal/model"
)

// Repository provides the DB operations the sponsorship service needs. The
// database row is the only synchronization boundary between concurrent
// webhook deliveries, so every transition runs inside InTransaction.
type Repository interface {
	GetProvider(id uint) (*model.Provider, error)
	FindProviderByCustomerID(customerID string) (*model.Provider, error)
	SetProviderCustomerID(providerID uint, customerID string) error
	UpdateProviderEntitlement(providerID uint, snap EntitlementSnapshot) error

	GetSponsorship(id uint) (*model.Sponsorship, error)
	FindByPaymentIntentID(paymentIntentID string) (*model.Sponsorship, error)
	FindBySubscriptionID(subscriptionID string) (*model.Sponsorship, error)
	FindActiveByProviderID(providerID uint) (*model.Sponsorship, error)
	CreateSponsorship(sub *model.Sponsorship) error
	SaveSponsorship(sub *model.Sponsorship) error
	ListActiveSubscriptionBacked() ([]model.Sponsorship, error)

	RecordWebhookEvent(event *model.WebhookEvent) (bool, error)
	MarkWebhookProcessed(eventID uint, outcome string) error

	InTransaction(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetProvider(id uint) (*model.Provider, error) {
	var provider model.Provider
	if err := r.db.First(&provider, id).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *gormRepository) FindProviderByCustomerID(customerID string) (*model.Provider, error) {
	var provider model.Provider
	if err := r.db.Where("stripe_customer_id = ?", customerID).First(&provider).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *gormRepository) SetProviderCustomerID(providerID uint, customerID string) error {
	return r.db.Model(&model.Provider{}).Where("id = ?", providerID).
		Update("stripe_customer_id", customerID).Error
}

// UpdateProviderEntitlement writes the projection columns with an explicit
// column map so zero values (clearing the flags) are written too.
func (r *gormRepository) UpdateProviderEntitlement(providerID uint, snap EntitlementSnapshot) error {
	return r.db.Model(&model.Provider{}).Where("id = ?", providerID).
		Updates(map[string]interface{}{
			"is_sponsored":           snap.IsSponsored,
			"sponsored_until":        snap.SponsoredUntil,
			"sponsorship_tier":       snap.SponsorshipTier,
			"stripe_customer_id":     snap.StripeCustomerID,
			"stripe_subscription_id": snap.StripeSubscriptionID,
		}).Error
}

func (r *gormRepository) GetSponsorship(id uint) (*model.Sponsorship, error) {
	var sub model.Sponsorship
	if err := r.db.First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindByPaymentIntentID(paymentIntentID string) (*model.Sponsorship, error) {
	var sub model.Sponsorship
	if err := r.db.Where("stripe_payment_intent_id = ?", paymentIntentID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindBySubscriptionID(subscriptionID string) (*model.Sponsorship, error) {
	var sub model.Sponsorship
	if err := r.db.Where("stripe_subscription_id = ?", subscriptionID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindActiveByProviderID(providerID uint) (*model.Sponsorship, error) {
	var sub model.Sponsorship
	err := r.db.Where("provider_id = ? AND status = ?", providerID, model.SponsorshipStatusActive).
		Order("created_at DESC").First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateSponsorship(sub *model.Sponsorship) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) SaveSponsorship(sub *model.Sponsorship) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) ListActiveSubscriptionBacked() ([]model.Sponsorship, error) {
	var subs []model.Sponsorship
	err := r.db.Where("status = ? AND stripe_subscription_id <> ''", model.SponsorshipStatusActive).
		Find(&subs).Error
	return subs, err
}

// RecordWebhookEvent inserts the audit row and reports whether the event id
// was seen for the first time. A conflict on the event id means an exact
// replay from the processor.
func (r *gormRepository) RecordWebhookEvent(event *model.WebhookEvent) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	created := tx.RowsAffected > 0
	if !created {
		if err := r.db.Where("stripe_event_id = ?", event.StripeEventID).First(event).Error; err != nil {
			return false, err
		}
	}
	return created, nil
}

func (r *gormRepository) MarkWebhookProcessed(eventID uint, outcome string) error {
	now := time.Now()
	return r.db.Model(&model.WebhookEvent{}).Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"outcome":      outcome,
			"processed_at": &now,
		}).Error
}

func (r *gormRepository) InTransaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

// IsRecordNotFound lets callers outside this package branch on the driver's
// not-found without importing gorm.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
