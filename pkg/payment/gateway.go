package payment

import (
	"github.com/stripe/stripe-go/v74"
)

// Gateway abstracts the payment processor operations the sponsorship layer
// needs. Calls are synchronous, blocking network calls; failures surface to
// the caller and are never retried here — the purchaser's browser retries
// the attempt, the processor retries webhook delivery.
type Gateway interface {
	GetCustomer(id string) (*stripe.Customer, error)
	CreateCustomer(email, name string) (*stripe.Customer, error)
	CreateCheckoutSession(params CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CreatePaymentIntent(params PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(id string) (*stripe.PaymentIntent, error)
	GetSubscription(id string) (*stripe.Subscription, error)
	CancelSubscription(id string) (*stripe.Subscription, error)
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type CheckoutSessionParams struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type PaymentIntentParams struct {
	AmountCents int64
	CustomerID  string
	Metadata    map[string]string
}
