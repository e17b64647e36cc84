package checkout

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"

	"storefront-service/models"
)

// Authorization is the outcome of authorizing an order's payment.
type Authorization struct {
	Reference string
}

// PaymentAuthorizer runs before the order is persisted. An error aborts
// the submission.
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, order models.Order, idempotencyKey string) (Authorization, error)
}

// CashAuthorizer accepts cash-on-delivery orders as they are.
type CashAuthorizer struct{}

func (CashAuthorizer) Authorize(ctx context.Context, order models.Order, idempotencyKey string) (Authorization, error) {
	return Authorization{}, nil
}

// DeferredAuthorizer is used for online payments when no payment provider
// is configured; the payment is collected later.
type DeferredAuthorizer struct{}

func (DeferredAuthorizer) Authorize(ctx context.Context, order models.Order, idempotencyKey string) (Authorization, error) {
	return Authorization{Reference: "deferred"}, nil
}

// StripeAuthorizer creates a Stripe PaymentIntent for the order total.
type StripeAuthorizer struct {
	currency  string
	newIntent func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func NewStripeAuthorizer(secretKey, currency string) *StripeAuthorizer {
	stripe.Key = secretKey
	return &StripeAuthorizer{currency: currency, newIntent: paymentintent.New}
}

func (s *StripeAuthorizer) Authorize(ctx context.Context, order models.Order, idempotencyKey string) (Authorization, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(models.ToCents(order.Total)),
		Currency: stripe.String(s.currency),
	}
	params.Context = ctx
	params.AddMetadata("user_email", order.UserEmail)
	params.AddMetadata("items", fmt.Sprintf("%d", len(order.Products)))
	if idempotencyKey != "" {
		params.SetIdempotencyKey("checkout-" + idempotencyKey)
	}

	pi, err := s.newIntent(params)
	if err != nil {
		return Authorization{}, fmt.Errorf("create payment intent: %w", err)
	}
	return Authorization{Reference: pi.ID}, nil
}

// Payments picks the authorizer for a payment method.
type Payments struct {
	Cash   PaymentAuthorizer
	Online PaymentAuthorizer
}

// DefaultPayments uses Stripe for online payments when a key is given and
// defers them otherwise.
func DefaultPayments(stripeKey, currency string) Payments {
	p := Payments{Cash: CashAuthorizer{}, Online: DeferredAuthorizer{}}
	if stripeKey != "" {
		p.Online = NewStripeAuthorizer(stripeKey, currency)
	}
	return p
}

func (p Payments) For(method models.PaymentMethod) PaymentAuthorizer {
	if method == models.PaymentOnline && p.Online != nil {
		return p.Online
	}
	if method == models.PaymentCash && p.Cash != nil {
		return p.Cash
	}
	return CashAuthorizer{}
}
