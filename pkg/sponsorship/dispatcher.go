package sponsorship

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v74"
	"gorm.io/datatypes"

	"providerdirectory_backend/internal/model"
)

// Outcome classifies what a webhook event application amounted to. The
// controller maps Applied/Ignored to 200, Malformed to 400 and Unexpected to
// 500 so the processor redelivers only what is worth redelivering.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeIgnored
	OutcomeMalformed
	OutcomeUnexpected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unexpected"
	}
}

// HandleEvent applies one signature-verified processor event. Delivery is
// at-least-once and possibly out of order: exact replays short-circuit on
// the recorded event id, and every handler is idempotent on its own, so a
// duplicate that slips past the dedupe row still converges.
func (s *Service) HandleEvent(event stripe.Event) (Outcome, error) {
	record := &model.WebhookEvent{
		StripeEventID: event.ID,
		Type:          string(event.Type),
		Payload:       datatypes.JSON(event.Data.Raw),
	}
	created, err := s.repo.RecordWebhookEvent(record)
	if err != nil {
		return OutcomeUnexpected, err
	}
	if !created && record.ProcessedAt != nil {
		log.Printf("Webhook event %s already processed, acknowledging replay", event.ID)
		return OutcomeIgnored, nil
	}

	outcome, err := s.dispatch(event)
	if outcome == OutcomeUnexpected {
		// The controller answers 500 and the processor will redeliver. The
		// audit row stays unprocessed so the redelivery runs the handler
		// again instead of short-circuiting as a replay.
		return outcome, err
	}
	if markErr := s.repo.MarkWebhookProcessed(record.ID, outcome.String()); markErr != nil {
		log.Printf("Could not mark webhook event %s as processed: %v", event.ID, markErr)
	}
	return outcome, err
}

func (s *Service) dispatch(event stripe.Event) (Outcome, error) {
	log.Printf("Processing webhook event %s (%s)", event.ID, event.Type)

	switch event.Type {
	case "payment_intent.succeeded":
		return s.handlePaymentIntentSucceeded(event)
	case "payment_intent.payment_failed":
		return s.handlePaymentIntentFailed(event)
	case "customer.subscription.created":
		return s.handleSubscriptionCreated(event)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(event)
	case "invoice.paid":
		return s.handleInvoicePaid(event)
	case "invoice.payment_failed":
		return s.handleInvoicePaymentFailed(event)
	default:
		log.Printf("Unhandled webhook event type %s, acknowledging", event.Type)
		return OutcomeIgnored, nil
	}
}

func (s *Service) handlePaymentIntentSucceeded(event stripe.Event) (Outcome, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return OutcomeMalformed, fmt.Errorf("could not unmarshal payment intent: %w", err)
	}

	sub, outcome, err := s.findByPaymentIntent(intent.ID)
	if sub == nil {
		return outcome, err
	}

	changed, err := s.Activate(sub, s.now(), nil, PeriodMonth)
	if err != nil {
		return OutcomeUnexpected, err
	}
	if !changed {
		log.Printf("Payment intent %s already applied to sponsorship %d", intent.ID, sub.ID)
		return OutcomeIgnored, nil
	}
	return OutcomeApplied, nil
}

func (s *Service) handlePaymentIntentFailed(event stripe.Event) (Outcome, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return OutcomeMalformed, fmt.Errorf("could not unmarshal payment intent: %w", err)
	}

	sub, outcome, err := s.findByPaymentIntent(intent.ID)
	if sub == nil {
		return outcome, err
	}

	changed, err := s.Cancel(sub, s.now())
	if err != nil {
		return OutcomeUnexpected, err
	}
	if !changed {
		return OutcomeIgnored, nil
	}
	return OutcomeApplied, nil
}

// handleSubscriptionCreated derives the tier from the subscription's price
// through the inverse price table and upserts the row keyed by subscription
// id. This path also creates the row for checkout purchases, where nothing
// local exists before the processor confirms.
func (s *Service) handleSubscriptionCreated(event stripe.Event) (Outcome, error) {
	var remote stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &remote); err != nil {
		return OutcomeMalformed, fmt.Errorf("could not unmarshal subscription: %w", err)
	}
	if remote.ID == "" || remote.Items == nil || len(remote.Items.Data) == 0 || remote.Items.Data[0].Price == nil {
		return OutcomeMalformed, fmt.Errorf("subscription event %s carries no price", event.ID)
	}

	priceID := remote.Items.Data[0].Price.ID
	tierName, periodName, ok := s.stripe.Prices.TierForPrice(priceID)
	if !ok {
		log.Printf("Subscription %s references unmapped price %s, ignoring", remote.ID, priceID)
		return OutcomeIgnored, nil
	}
	tier := Tier(tierName)
	period := BillingPeriod(periodName)

	provider, err := s.resolveProvider(&remote)
	if err != nil {
		log.Printf("Could not resolve provider for subscription %s, ignoring: %v", remote.ID, err)
		return OutcomeIgnored, nil
	}

	refreshed := false
	sub, err := s.repo.FindBySubscriptionID(remote.ID)
	if err != nil {
		if !IsRecordNotFound(err) {
			return OutcomeUnexpected, err
		}
		sub = &model.Sponsorship{
			ProviderID:           provider.ID,
			Tier:                 string(tier),
			Status:               model.SponsorshipStatusPending,
			AmountPaid:           Price(tier, period),
			StripeSubscriptionID: remote.ID,
			StripeCustomerID:     customerID(&remote),
		}
		if err := s.repo.CreateSponsorship(sub); err != nil {
			return OutcomeUnexpected, err
		}
	} else {
		refreshed = sub.Tier != string(tier) || sub.AmountPaid != Price(tier, period)
		sub.Tier = string(tier)
		sub.AmountPaid = Price(tier, period)
		if id := customerID(&remote); id != "" && id != sub.StripeCustomerID {
			sub.StripeCustomerID = id
			refreshed = true
		}
	}

	changed, err := s.Activate(sub, s.now(), periodEnd(&remote), period)
	if err != nil {
		return OutcomeUnexpected, err
	}
	if !changed {
		// A tier or customer correction still has to land even when the
		// activation itself is a no-op.
		if refreshed {
			err := s.repo.InTransaction(func(r Repository) error {
				if err := r.SaveSponsorship(sub); err != nil {
					return err
				}
				if sub.IsActive() {
					return r.UpdateProviderEntitlement(sub.ProviderID, Snapshot(sub))
				}
				return nil
			})
			if err != nil {
				return OutcomeUnexpected, err
			}
			return OutcomeApplied, nil
		}
		return OutcomeIgnored, nil
	}
	return OutcomeApplied, nil
}

func (s *Service) handleSubscriptionUpdated(event stripe.Event) (Outcome, error) {
	var remote stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &remote); err != nil {
		return OutcomeMalformed, fmt.Errorf("could not unmarshal subscription: %w", err)
	}

	sub, outcome, err := s.findBySubscription(remote.ID)
	if sub == nil {
		return outcome, err
	}

	switch {
	case remote.Status == stripe.SubscriptionStatusCanceled ||
		remote.Status == stripe.SubscriptionStatusUnpaid ||
		remote.Status == stripe.SubscriptionStatusIncompleteExpired ||
		remote.CancelAtPeriodEnd:
		changed, err := s.Cancel(sub, s.now())
		if err != nil {
			return OutcomeUnexpected, err
		}
		if !changed {
			return OutcomeIgnored, nil
		}
		return OutcomeApplied, nil

	case remote.Status == stripe.SubscriptionStatusActive ||
		remote.Status == stripe.SubscriptionStatusTrialing:
		end := periodEnd(&remote)
		if end == nil {
			// Without a period end there is no term to derive; guessing a
			// billing period here would shorten annual sponsorships.
			log.Printf("Subscription %s update carries no period end, ignoring", remote.ID)
			return OutcomeIgnored, nil
		}
		changed, err := s.Activate(sub, s.now(), end, PeriodMonth)
		if err != nil {
			return OutcomeUnexpected, err
		}
		if !changed {
			return OutcomeIgnored, nil
		}
		return OutcomeApplied, nil

	default:
		log.Printf("Subscription %s update with status %s takes no action", remote.ID, remote.Status)
		return OutcomeIgnored, nil
	}
}

func (s *Service) handleSubscriptionDeleted(event stripe.Event) (Outcome, error) {
	var remote stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &remote); err != nil {
		return OutcomeMalformed, fmt.Errorf("could not unmarshal subscription: %w", err)
	}

	sub, outcome, err := s.findBySubscription(remote.ID)
	if sub == nil {
		return outcome, err
	}

	changed, err := s.Cancel(sub, s.now())
	if err != nil {
		return OutcomeUnexpected, err
	}
	if !changed {
		return OutcomeIgnored, nil
	}
	return OutcomeApplied, nil
}

// handleInvoicePaid is the renewal path: a recurring invoice was paid, so the
// subscription's new period is re-verified with the processor and the local
// row extends to it. A processor failure here is Unexpected on purpose; the
// redelivery retries once the processor is reachable again.
func (s *Service) handleInvoicePaid(event stripe.Event) (Outcome, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return OutcomeMalformed, fmt.Errorf("could not unmarshal invoice: %w", err)
	}
	if invoice.Subscription == nil || invoice.Subscription.ID == "" {
		log.Printf("Invoice %s is not subscription-backed, ignoring", invoice.ID)
		return OutcomeIgnored, nil
	}

	sub, outcome, err := s.findBySubscription(invoice.Subscription.ID)
	if sub == nil {
		return outcome, err
	}

	remote, err := s.gateway.GetSubscription(invoice.Subscription.ID)
	if err != nil {
		return OutcomeUnexpected, fmt.Errorf("%w: could not re-verify subscription %s: %v",
			ErrProcessor, invoice.Subscription.ID, err)
	}

	changed, err := s.Activate(sub, s.now(), periodEnd(remote), PeriodMonth)
	if err != nil {
		return OutcomeUnexpected, err
	}
	if !changed {
		return OutcomeIgnored, nil
	}
	return OutcomeApplied, nil
}

func (s *Service) handleInvoicePaymentFailed(event stripe.Event) (Outcome, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return OutcomeMalformed, fmt.Errorf("could not unmarshal invoice: %w", err)
	}

	// No automatic cancellation on a failed renewal charge; the processor
	// keeps retrying the charge and administrators follow up manually.
	log.Printf("Invoice payment failed for invoice %s (customer %s), no action taken",
		invoice.ID, customerIDFromInvoice(&invoice))
	return OutcomeIgnored, nil
}

// findByPaymentIntent resolves a sponsorship by its natural key, translating
// absence into an acknowledged ignore. Out-of-order delivery legitimately
// references rows that do not exist yet.
func (s *Service) findByPaymentIntent(paymentIntentID string) (*model.Sponsorship, Outcome, error) {
	if paymentIntentID == "" {
		return nil, OutcomeMalformed, fmt.Errorf("event carries no payment intent id")
	}
	sub, err := s.repo.FindByPaymentIntentID(paymentIntentID)
	if err != nil {
		if IsRecordNotFound(err) {
			log.Printf("No sponsorship for payment intent %s, ignoring", paymentIntentID)
			return nil, OutcomeIgnored, nil
		}
		return nil, OutcomeUnexpected, err
	}
	return sub, OutcomeApplied, nil
}

func (s *Service) findBySubscription(subscriptionID string) (*model.Sponsorship, Outcome, error) {
	if subscriptionID == "" {
		return nil, OutcomeMalformed, fmt.Errorf("event carries no subscription id")
	}
	sub, err := s.repo.FindBySubscriptionID(subscriptionID)
	if err != nil {
		if IsRecordNotFound(err) {
			log.Printf("No sponsorship for subscription %s, ignoring", subscriptionID)
			return nil, OutcomeIgnored, nil
		}
		return nil, OutcomeUnexpected, err
	}
	return sub, OutcomeApplied, nil
}

// resolveProvider prefers the provider id stamped into the subscription's
// metadata by the checkout initiator, falling back to the customer linkage.
func (s *Service) resolveProvider(remote *stripe.Subscription) (*model.Provider, error) {
	if idStr, ok := remote.Metadata["provider_id"]; ok && idStr != "" {
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err == nil {
			return s.repo.GetProvider(uint(id))
		}
	}
	if id := customerID(remote); id != "" {
		return s.repo.FindProviderByCustomerID(id)
	}
	return nil, fmt.Errorf("subscription %s carries neither provider metadata nor customer", remote.ID)
}

func customerID(remote *stripe.Subscription) string {
	if remote.Customer == nil {
		return ""
	}
	return remote.Customer.ID
}

func customerIDFromInvoice(invoice *stripe.Invoice) string {
	if invoice.Customer == nil {
		return ""
	}
	return invoice.Customer.ID
}

func periodEnd(remote *stripe.Subscription) *time.Time {
	if remote.CurrentPeriodEnd == 0 {
		return nil
	}
	end := time.Unix(remote.CurrentPeriodEnd, 0)
	return &end
}
