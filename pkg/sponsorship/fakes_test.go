package sponsorship

import (
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v74"
	"gorm.io/gorm"

	"providerdirectory_backend/internal/model"
	"providerdirectory_backend/pkg/payment"
)

// fakeRepo is an in-memory Repository for tests.
type fakeRepo struct {
	providers    map[uint]*model.Provider
	sponsorships map[uint]*model.Sponsorship
	events       map[string]*model.WebhookEvent
	nextSubID    uint
	nextEventID  uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		providers:    map[uint]*model.Provider{},
		sponsorships: map[uint]*model.Sponsorship{},
		events:       map[string]*model.WebhookEvent{},
	}
}

func (f *fakeRepo) addProvider(p model.Provider) *model.Provider {
	f.providers[p.ID] = &p
	return &p
}

func (f *fakeRepo) GetProvider(id uint) (*model.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) FindProviderByCustomerID(customerID string) (*model.Provider, error) {
	for _, p := range f.providers {
		if p.StripeCustomerID == customerID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SetProviderCustomerID(providerID uint, customerID string) error {
	p, ok := f.providers[providerID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.StripeCustomerID = customerID
	return nil
}

func (f *fakeRepo) UpdateProviderEntitlement(providerID uint, snap EntitlementSnapshot) error {
	p, ok := f.providers[providerID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.IsSponsored = snap.IsSponsored
	p.SponsoredUntil = snap.SponsoredUntil
	p.SponsorshipTier = snap.SponsorshipTier
	p.StripeCustomerID = snap.StripeCustomerID
	p.StripeSubscriptionID = snap.StripeSubscriptionID
	return nil
}

func (f *fakeRepo) GetSponsorship(id uint) (*model.Sponsorship, error) {
	s, ok := f.sponsorships[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) FindByPaymentIntentID(paymentIntentID string) (*model.Sponsorship, error) {
	for _, s := range f.sponsorships {
		if s.StripePaymentIntentID == paymentIntentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindBySubscriptionID(subscriptionID string) (*model.Sponsorship, error) {
	for _, s := range f.sponsorships {
		if s.StripeSubscriptionID == subscriptionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindActiveByProviderID(providerID uint) (*model.Sponsorship, error) {
	var latest *model.Sponsorship
	for _, s := range f.sponsorships {
		if s.ProviderID == providerID && s.Status == model.SponsorshipStatusActive {
			if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
				latest = s
			}
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeRepo) CreateSponsorship(sub *model.Sponsorship) error {
	f.nextSubID++
	sub.ID = f.nextSubID
	sub.CreatedAt = time.Now()
	cp := *sub
	f.sponsorships[sub.ID] = &cp
	return nil
}

func (f *fakeRepo) SaveSponsorship(sub *model.Sponsorship) error {
	if sub.ID == 0 {
		return fmt.Errorf("cannot save sponsorship without id")
	}
	cp := *sub
	f.sponsorships[sub.ID] = &cp
	return nil
}

func (f *fakeRepo) ListActiveSubscriptionBacked() ([]model.Sponsorship, error) {
	var subs []model.Sponsorship
	for _, s := range f.sponsorships {
		if s.Status == model.SponsorshipStatusActive && s.StripeSubscriptionID != "" {
			subs = append(subs, *s)
		}
	}
	return subs, nil
}

func (f *fakeRepo) RecordWebhookEvent(event *model.WebhookEvent) (bool, error) {
	if stored, ok := f.events[event.StripeEventID]; ok {
		*event = *stored
		return false, nil
	}
	f.nextEventID++
	event.ID = f.nextEventID
	cp := *event
	f.events[event.StripeEventID] = &cp
	return true, nil
}

func (f *fakeRepo) MarkWebhookProcessed(eventID uint, outcome string) error {
	for _, ev := range f.events {
		if ev.ID == eventID {
			now := time.Now()
			ev.Outcome = outcome
			ev.ProcessedAt = &now
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) InTransaction(fn func(Repository) error) error {
	return fn(f)
}

// fakeGateway is a canned payment.Gateway for tests.
type fakeGateway struct {
	customers     map[string]*stripe.Customer
	subscriptions map[string]*stripe.Subscription
	intents       map[string]*stripe.PaymentIntent

	lastCheckout     payment.CheckoutSessionParams
	checkoutSessions int
	createdCustomers int
	cancelledSubs    []string
	nextIntent       int

	customerErr error
	checkoutErr error
	intentErr   error
	getSubErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		customers:     map[string]*stripe.Customer{},
		subscriptions: map[string]*stripe.Subscription{},
		intents:       map[string]*stripe.PaymentIntent{},
	}
}

func (g *fakeGateway) GetCustomer(id string) (*stripe.Customer, error) {
	if g.customerErr != nil {
		return nil, g.customerErr
	}
	cust, ok := g.customers[id]
	if !ok {
		return nil, fmt.Errorf("no such customer: %s", id)
	}
	return cust, nil
}

func (g *fakeGateway) CreateCustomer(email, name string) (*stripe.Customer, error) {
	if g.customerErr != nil {
		return nil, g.customerErr
	}
	g.createdCustomers++
	cust := &stripe.Customer{ID: fmt.Sprintf("cus_%d", g.createdCustomers), Email: email, Name: name}
	g.customers[cust.ID] = cust
	return cust, nil
}

func (g *fakeGateway) CreateCheckoutSession(params payment.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if g.checkoutErr != nil {
		return nil, g.checkoutErr
	}
	g.checkoutSessions++
	g.lastCheckout = params
	return &stripe.CheckoutSession{
		ID:  fmt.Sprintf("cs_%d", g.checkoutSessions),
		URL: "https://checkout.stripe.test/pay",
	}, nil
}

func (g *fakeGateway) CreatePaymentIntent(params payment.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	g.nextIntent++
	intent := &stripe.PaymentIntent{
		ID:           fmt.Sprintf("pi_%d", g.nextIntent),
		ClientSecret: fmt.Sprintf("pi_%d_secret", g.nextIntent),
		Amount:       params.AmountCents,
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}
	g.intents[intent.ID] = intent
	return intent, nil
}

func (g *fakeGateway) GetPaymentIntent(id string) (*stripe.PaymentIntent, error) {
	intent, ok := g.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such payment intent: %s", id)
	}
	return intent, nil
}

func (g *fakeGateway) GetSubscription(id string) (*stripe.Subscription, error) {
	if g.getSubErr != nil {
		return nil, g.getSubErr
	}
	sub, ok := g.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription: %s", id)
	}
	return sub, nil
}

func (g *fakeGateway) CancelSubscription(id string) (*stripe.Subscription, error) {
	g.cancelledSubs = append(g.cancelledSubs, id)
	if sub, ok := g.subscriptions[id]; ok {
		sub.Status = stripe.SubscriptionStatusCanceled
		return sub, nil
	}
	return &stripe.Subscription{ID: id, Status: stripe.SubscriptionStatusCanceled}, nil
}

func (g *fakeGateway) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return stripe.Event{}, nil
}
