package payment

import (
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/customer"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/subscription"
	"github.com/stripe/stripe-go/v74/webhook"
)

// StripeGateway is the production Gateway backed by the Stripe SDK.
type StripeGateway struct {
	webhookSecret string
}

func NewStripeGateway(apiKey, webhookSecret string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{webhookSecret: webhookSecret}
}

func (g *StripeGateway) GetCustomer(id string) (*stripe.Customer, error) {
	return customer.Get(id, nil)
}

func (g *StripeGateway) CreateCustomer(email, name string) (*stripe.Customer, error) {
	return customer.New(&stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	})
}

func (g *StripeGateway) CreateCheckoutSession(params CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	p := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(params.CustomerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		// Copy the metadata onto the subscription too, so every later
		// subscription webhook carries the provider reference.
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: params.Metadata,
		},
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	return session.New(p)
}

func (g *StripeGateway) CreatePaymentIntent(params PaymentIntentParams) (*stripe.PaymentIntent, error) {
	p := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if params.CustomerID != "" {
		p.Customer = stripe.String(params.CustomerID)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	return paymentintent.New(p)
}

func (g *StripeGateway) GetPaymentIntent(id string) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, nil)
}

func (g *StripeGateway) GetSubscription(id string) (*stripe.Subscription, error) {
	return subscription.Get(id, nil)
}

func (g *StripeGateway) CancelSubscription(id string) (*stripe.Subscription, error) {
	return subscription.Cancel(id, nil)
}

func (g *StripeGateway) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, g.webhookSecret)
}
