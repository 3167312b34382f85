package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/subsyncapp/subsync/internal/pkg/env"
)

// StripeGateway implements Gateway against Stripe. The API client is an
// injected instance, not the package-global key, so tests and multi-tenant
// setups can scope it.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a gateway with an explicit secret key and
// webhook signing secret.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

// NewStripeGatewayFromEnv creates a gateway from environment configuration.
func NewStripeGatewayFromEnv() *StripeGateway {
	return NewStripeGateway(
		env.GetEnv("STRIPE_SECRET_KEY", ""),
		env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
	)
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string, userID uint) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatUint(uint64(userID), 10))

	cus, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create customer: %w", err)
	}
	return cus.ID, nil
}

func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	if _, err := g.api.PaymentMethods.Attach(paymentMethodID, params); err != nil {
		return fmt.Errorf("stripe: attach payment method: %w", err)
	}
	return nil
}

func (g *StripeGateway) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	params.Context = ctx
	if _, err := g.api.Customers.Update(customerID, params); err != nil {
		return fmt.Errorf("stripe: set default payment method: %w", err)
	}
	return nil
}

// CreateSubscription starts a remote subscription with incomplete payment
// behavior: no charge happens until the client confirms the payment intent
// with the returned secret.
func (g *StripeGateway) CreateSubscription(ctx context.Context, customerID, priceID string, trialDays int) (*RemoteSubscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			PaymentMethodTypes:       stripe.StringSlice([]string{"card"}),
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.Context = ctx
	if trialDays > 0 {
		params.TrialPeriodDays = stripe.Int64(int64(trialDays))
	}
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := g.api.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create subscription: %w", err)
	}

	remote := remoteFromStripeSubscription(sub)
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		remote.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return remote, nil
}

func (g *StripeGateway) UpdateSubscription(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) (*RemoteSubscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancelAtPeriodEnd),
	}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: update subscription: %w", err)
	}
	return remoteFromStripeSubscription(sub), nil
}

func (g *StripeGateway) CreateProduct(ctx context.Context, name, description string) (string, error) {
	params := &stripe.ProductParams{
		Name: stripe.String(name),
	}
	params.Context = ctx
	if description != "" {
		params.Description = stripe.String(description)
	}
	product, err := g.api.Products.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create product: %w", err)
	}
	return product.ID, nil
}

func (g *StripeGateway) UpdateProduct(ctx context.Context, productID, name, description string) error {
	params := &stripe.ProductParams{}
	params.Context = ctx
	if name != "" {
		params.Name = stripe.String(name)
	}
	if description != "" {
		params.Description = stripe.String(description)
	}
	if _, err := g.api.Products.Update(productID, params); err != nil {
		return fmt.Errorf("stripe: update product: %w", err)
	}
	return nil
}

func (g *StripeGateway) ArchiveProduct(ctx context.Context, productID string) error {
	params := &stripe.ProductParams{Active: stripe.Bool(false)}
	params.Context = ctx
	if _, err := g.api.Products.Update(productID, params); err != nil {
		return fmt.Errorf("stripe: archive product: %w", err)
	}
	return nil
}

func (g *StripeGateway) CreatePrice(ctx context.Context, productID string, unitAmount int64, interval string, trialDays int) (string, error) {
	recurring := &stripe.PriceRecurringParams{
		Interval: stripe.String(strings.ToLower(interval)),
	}
	if trialDays > 0 {
		recurring.TrialPeriodDays = stripe.Int64(int64(trialDays))
	}
	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(unitAmount),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		Recurring:  recurring,
	}
	params.Context = ctx
	price, err := g.api.Prices.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create price: %w", err)
	}
	return price.ID, nil
}

func (g *StripeGateway) ArchivePrice(ctx context.Context, priceID string) error {
	params := &stripe.PriceParams{Active: stripe.Bool(false)}
	params.Context = ctx
	if _, err := g.api.Prices.Update(priceID, params); err != nil {
		return fmt.Errorf("stripe: archive price: %w", err)
	}
	return nil
}

// VerifyWebhook validates the Stripe-Signature header against the raw body.
func (g *StripeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	ev, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSignature, err.Error())
	}
	return &Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Payload: ev.Data.Raw,
	}, nil
}

func (g *StripeGateway) ParseSubscription(ev *Event) (*RemoteSubscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(ev.Payload, &sub); err != nil {
		return nil, fmt.Errorf("stripe: decode subscription event %s: %w", ev.ID, err)
	}
	return remoteFromStripeSubscription(&sub), nil
}

func (g *StripeGateway) ParseInvoiceSubscriptionID(ev *Event) (string, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(ev.Payload, &inv); err != nil {
		return "", fmt.Errorf("stripe: decode invoice event %s: %w", ev.ID, err)
	}
	if inv.Subscription == nil {
		return "", nil
	}
	return inv.Subscription.ID, nil
}

func remoteFromStripeSubscription(sub *stripe.Subscription) *RemoteSubscription {
	remote := &RemoteSubscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		remote.CustomerID = sub.Customer.ID
	}
	remote.TrialStart = unixPtr(sub.TrialStart)
	remote.TrialEnd = unixPtr(sub.TrialEnd)
	remote.CanceledAt = unixPtr(sub.CanceledAt)
	return remote
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
