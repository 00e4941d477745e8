package sponsorship

import (
	"fmt"
	"log"
	"time"

	"providerdirectory_backend/internal/model"
	"providerdirectory_backend/pkg/config"
	"providerdirectory_backend/pkg/payment"

	"github.com/stripe/stripe-go/v74"
)

// Notifier is the outbound notification sink. Implementations must not be
// relied on for correctness: notification failures are logged and never roll
// back an entitlement transition.
type Notifier interface {
	SponsorshipActivated(provider *model.Provider, sub *model.Sponsorship) error
	SponsorshipCancelled(provider *model.Provider, sub *model.Sponsorship) error
}

// Service owns the sponsorship lifecycle: the two purchase initiators, the
// activate/cancel transitions with their entitlement projection, webhook
// event application and the drift reconciliation sweep.
type Service struct {
	repo     Repository
	gateway  payment.Gateway
	stripe   config.StripeConfig
	notifier Notifier
	now      func() time.Time
}

func NewService(repo Repository, gateway payment.Gateway, stripeCfg config.StripeConfig, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		gateway:  gateway,
		stripe:   stripeCfg,
		notifier: notifier,
		now:      time.Now,
	}
}

// StartCheckout creates a hosted checkout session for (tier, period) and
// returns the redirect URL. No sponsorship row is written here; the row is
// created when the processor confirms payment through the webhook.
func (s *Service) StartCheckout(userID, providerID uint, tier Tier, period BillingPeriod) (string, error) {
	if !Purchasable(tier) {
		return "", fmt.Errorf("%w: unknown tier %q", ErrValidation, tier)
	}
	if !ValidPeriod(period) {
		return "", fmt.Errorf("%w: unknown billing period %q", ErrValidation, period)
	}

	priceID, err := s.stripe.Prices.Lookup(string(tier), string(period))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	provider, err := s.authorizedProvider(userID, providerID)
	if err != nil {
		return "", err
	}

	customerID, err := s.ensureCustomer(provider)
	if err != nil {
		return "", err
	}

	sess, err := s.gateway.CreateCheckoutSession(payment.CheckoutSessionParams{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: s.stripe.SuccessURL,
		CancelURL:  s.stripe.CancelURL,
		Metadata: map[string]string{
			"provider_id":    fmt.Sprintf("%d", provider.ID),
			"tier":           string(tier),
			"billing_period": string(period),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: could not create checkout session: %v", ErrProcessor, err)
	}
	return sess.URL, nil
}

// PaymentIntentResult is what the client needs to confirm an in-page payment.
type PaymentIntentResult struct {
	ClientSecret    string
	PaymentIntentID string
	SponsorshipID   uint
	AmountCents     int64
}

// CreatePaymentIntent is the alternate purchase flow: the pending sponsorship
// row is written immediately, keyed by the new intent id, so later webhooks
// and the confirm call can find it. The intent flow bills month to month.
func (s *Service) CreatePaymentIntent(userID, providerID uint, tier Tier) (*PaymentIntentResult, error) {
	if !Purchasable(tier) {
		return nil, fmt.Errorf("%w: unknown tier %q", ErrValidation, tier)
	}

	provider, err := s.authorizedProvider(userID, providerID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.ensureCustomer(provider)
	if err != nil {
		return nil, err
	}

	amount := AmountCents(tier, PeriodMonth)
	intent, err := s.gateway.CreatePaymentIntent(payment.PaymentIntentParams{
		AmountCents: amount,
		CustomerID:  customerID,
		Metadata: map[string]string{
			"provider_id": fmt.Sprintf("%d", provider.ID),
			"tier":        string(tier),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: could not create payment intent: %v", ErrProcessor, err)
	}

	sub := &model.Sponsorship{
		ProviderID:            provider.ID,
		Tier:                  string(tier),
		Status:                model.SponsorshipStatusPending,
		AmountPaid:            Price(tier, PeriodMonth),
		StripePaymentIntentID: intent.ID,
		StripeCustomerID:      customerID,
	}
	if err := s.repo.CreateSponsorship(sub); err != nil {
		return nil, err
	}

	return &PaymentIntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		SponsorshipID:   sub.ID,
		AmountCents:     amount,
	}, nil
}

// ConfirmPayment activates the sponsorship behind a payment intent after
// re-verifying the intent's status with the processor. The client-supplied
// "it succeeded" signal is never trusted on its own.
func (s *Service) ConfirmPayment(paymentIntentID string) (*model.Sponsorship, error) {
	sub, err := s.repo.FindByPaymentIntentID(paymentIntentID)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, fmt.Errorf("%w: no sponsorship for payment intent %s", ErrNotFound, paymentIntentID)
		}
		return nil, err
	}

	intent, err := s.gateway.GetPaymentIntent(paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("%w: could not retrieve payment intent: %v", ErrProcessor, err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%w: payment intent status is %s", ErrPaymentIncomplete, intent.Status)
	}

	if _, err := s.Activate(sub, s.now(), nil, PeriodMonth); err != nil {
		return nil, err
	}
	return sub, nil
}

// CancelForProvider is the explicit cancellation request from the provider's
// owner. The remote subscription is cancelled first so the processor stops
// billing, then the local transition applies.
func (s *Service) CancelForProvider(userID, providerID uint) (*model.Sponsorship, error) {
	if _, err := s.authorizedProvider(userID, providerID); err != nil {
		return nil, err
	}

	sub, err := s.repo.FindActiveByProviderID(providerID)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, fmt.Errorf("%w: no active sponsorship for provider %d", ErrNotFound, providerID)
		}
		return nil, err
	}

	if sub.StripeSubscriptionID != "" {
		if _, err := s.gateway.CancelSubscription(sub.StripeSubscriptionID); err != nil {
			return nil, fmt.Errorf("%w: could not cancel subscription: %v", ErrProcessor, err)
		}
	}

	if _, err := s.Cancel(sub, s.now()); err != nil {
		return nil, err
	}
	return sub, nil
}

// Activate applies the pending→active transition, or refreshes the period of
// an already-active row on renewal. The sponsorship write and the provider
// projection commit in one transaction. Returns false when nothing changed.
func (s *Service) Activate(sub *model.Sponsorship, now time.Time, periodEnd *time.Time, period BillingPeriod) (bool, error) {
	endsAt := TermEnd(now, period)
	if periodEnd != nil {
		endsAt = *periodEnd
	}

	if !applyActivate(sub, now, endsAt) {
		return false, nil
	}

	err := s.repo.InTransaction(func(r Repository) error {
		if err := r.SaveSponsorship(sub); err != nil {
			return err
		}
		return r.UpdateProviderEntitlement(sub.ProviderID, Snapshot(sub))
	})
	if err != nil {
		return false, err
	}

	s.notifyActivated(sub)
	return true, nil
}

// Cancel applies the →cancelled transition. The provider's projection is
// cleared only when it still reflects this sponsorship's tier, so a stale
// cancellation arriving after a renewal cannot clobber a newer entitlement.
// Terminal rows are left untouched and report false.
func (s *Service) Cancel(sub *model.Sponsorship, now time.Time) (bool, error) {
	if !applyCancel(sub, now) {
		return false, nil
	}

	err := s.repo.InTransaction(func(r Repository) error {
		if err := r.SaveSponsorship(sub); err != nil {
			return err
		}
		provider, err := r.GetProvider(sub.ProviderID)
		if err != nil {
			return err
		}
		if provider.SponsorshipTier != Canonical(Tier(sub.Tier)) {
			return nil
		}
		cleared := ClearedSnapshot()
		// The customer linkage survives cancellation; it resolves future
		// purchases and webhooks for this provider.
		cleared.StripeCustomerID = provider.StripeCustomerID
		return r.UpdateProviderEntitlement(provider.ID, cleared)
	})
	if err != nil {
		return false, err
	}

	s.notifyCancelled(sub)
	return true, nil
}

// Reconcile compares locally-active, subscription-backed sponsorships against
// the processor's view and applies corrective transitions: rows the processor
// reports as gone are cancelled, rows with a later period end are extended.
// Pending rows are deliberately skipped; they never activate on their own.
func (s *Service) Reconcile() (cancelled, extended int, err error) {
	subs, err := s.repo.ListActiveSubscriptionBacked()
	if err != nil {
		return 0, 0, err
	}

	for i := range subs {
		sub := &subs[i]
		remote, err := s.gateway.GetSubscription(sub.StripeSubscriptionID)
		if err != nil {
			log.Printf("Reconciliation: could not retrieve subscription %s: %v", sub.StripeSubscriptionID, err)
			continue
		}

		switch remote.Status {
		case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
			changed, err := s.Cancel(sub, s.now())
			if err != nil {
				log.Printf("Reconciliation: could not cancel sponsorship %d: %v", sub.ID, err)
				continue
			}
			if changed {
				cancelled++
			}
		default:
			if remote.CurrentPeriodEnd == 0 {
				continue
			}
			end := time.Unix(remote.CurrentPeriodEnd, 0)
			if sub.EndsAt != nil && end.After(*sub.EndsAt) {
				changed, err := s.Activate(sub, s.now(), &end, PeriodMonth)
				if err != nil {
					log.Printf("Reconciliation: could not extend sponsorship %d: %v", sub.ID, err)
					continue
				}
				if changed {
					extended++
				}
			}
		}
	}
	return cancelled, extended, nil
}

func (s *Service) authorizedProvider(userID, providerID uint) (*model.Provider, error) {
	provider, err := s.repo.GetProvider(providerID)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, fmt.Errorf("%w: provider %d", ErrNotFound, providerID)
		}
		return nil, err
	}
	if provider.UserID != userID {
		return nil, fmt.Errorf("%w: provider %d does not belong to user %d", ErrAuthorization, providerID, userID)
	}
	return provider, nil
}

// ensureCustomer guarantees a usable remote customer object. A stored id is
// re-verified remotely; any remote failure, including not-found, mints a new
// customer and persists its id.
func (s *Service) ensureCustomer(provider *model.Provider) (string, error) {
	if provider.StripeCustomerID != "" {
		if _, err := s.gateway.GetCustomer(provider.StripeCustomerID); err == nil {
			return provider.StripeCustomerID, nil
		}
		log.Printf("Stored customer %s no longer resolves, creating a new one", provider.StripeCustomerID)
	}

	cust, err := s.gateway.CreateCustomer(provider.Email, provider.Name)
	if err != nil {
		return "", fmt.Errorf("%w: could not create customer: %v", ErrProcessor, err)
	}
	if err := s.repo.SetProviderCustomerID(provider.ID, cust.ID); err != nil {
		return "", err
	}
	provider.StripeCustomerID = cust.ID
	return cust.ID, nil
}

func (s *Service) notifyActivated(sub *model.Sponsorship) {
	if s.notifier == nil {
		return
	}
	provider, err := s.repo.GetProvider(sub.ProviderID)
	if err != nil {
		log.Printf("Could not load provider %d for activation email: %v", sub.ProviderID, err)
		return
	}
	go func() {
		if err := s.notifier.SponsorshipActivated(provider, sub); err != nil {
			log.Printf("Could not send sponsorship activation email: %v", err)
		}
	}()
}

func (s *Service) notifyCancelled(sub *model.Sponsorship) {
	if s.notifier == nil {
		return
	}
	provider, err := s.repo.GetProvider(sub.ProviderID)
	if err != nil {
		log.Printf("Could not load provider %d for cancellation email: %v", sub.ProviderID, err)
		return
	}
	go func() {
		if err := s.notifier.SponsorshipCancelled(provider, sub); err != nil {
			log.Printf("Could not send sponsorship cancellation email: %v", err)
		}
	}()
}
