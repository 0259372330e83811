package subscription

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	portalsession "github.com/stripe/stripe-go/v84/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/customerbalancetransaction"
	"github.com/stripe/stripe-go/v84/price"
	stripesub "github.com/stripe/stripe-go/v84/subscription"

	pkgstripe "github.com/amouradev/amoura-backend/pkg/stripe"
)

// StripeBillingClient exposes the subset of Stripe operations required by
// the subscription service and the webhook sync.
type StripeBillingClient interface {
	Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	Update(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewPortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	NewCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	GetPrice(ctx context.Context, id string) (*stripe.Price, error)
	CreditBalance(ctx context.Context, params *stripe.CustomerBalanceTransactionParams) (*stripe.CustomerBalanceTransaction, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the initialized Stripe client so the subscription
// service can be tested.
func NewStripeClient(api *pkgstripe.Client) StripeBillingClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params == nil {
		params = &stripe.SubscriptionParams{}
	}
	params.Context = ctx
	return stripesub.Get(id, params)
}

func (w *stripeClientWrapper) Update(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params != nil {
		params.Context = ctx
	}
	return stripesub.Update(id, params)
}

func (w *stripeClientWrapper) NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return checkoutsession.New(params)
}

func (w *stripeClientWrapper) NewPortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return portalsession.New(params)
}

func (w *stripeClientWrapper) NewCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.New(params)
}

func (w *stripeClientWrapper) GetPrice(ctx context.Context, id string) (*stripe.Price, error) {
	return price.Get(id, &stripe.PriceParams{Params: stripe.Params{Context: ctx}})
}

func (w *stripeClientWrapper) CreditBalance(ctx context.Context, params *stripe.CustomerBalanceTransactionParams) (*stripe.CustomerBalanceTransaction, error) {
	if params != nil {
		params.Context = ctx
	}
	return customerbalancetransaction.New(params)
}
