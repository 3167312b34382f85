package billing

import (
	"context"
	"time"
)

// RemoteSubscription is the processor-reported subscription snapshot. Both
// direct API responses and webhook payloads normalize to this shape before
// anything else in the system sees them.
type RemoteSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	// ClientSecret is the confirmation secret the client needs to finish
	// payment-method setup. Only populated on creation.
	ClientSecret string
}

// Event is a verified processor webhook event.
type Event struct {
	ID      string
	Type    string
	Payload []byte
}

// Gateway is the capability surface over the external billing processor.
// It is the only code permitted to talk to the processor, and it exposes
// exactly these operations rather than the processor's full client.
//
// Calls are blocking I/O and must be treated as non-idempotent on the wire:
// retrying a failed CreateSubscription blindly creates a second remote
// subscription. The only safe retry boundary is customer reuse: callers
// persist the customer id before any further remote call.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name string, userID uint) (string, error)
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	CreateSubscription(ctx context.Context, customerID, priceID string, trialDays int) (*RemoteSubscription, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) (*RemoteSubscription, error)

	CreateProduct(ctx context.Context, name, description string) (string, error)
	UpdateProduct(ctx context.Context, productID, name, description string) error
	ArchiveProduct(ctx context.Context, productID string) error
	CreatePrice(ctx context.Context, productID string, unitAmount int64, interval string, trialDays int) (string, error)
	ArchivePrice(ctx context.Context, priceID string) error

	// VerifyWebhook checks the payload signature and returns the decoded
	// event. It must be called on the exact unparsed request body.
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
	// ParseSubscription decodes a subscription object carried by ev.
	ParseSubscription(ev *Event) (*RemoteSubscription, error)
	// ParseInvoiceSubscriptionID extracts the subscription id an invoice
	// event refers to; empty when the invoice is not subscription-bound.
	ParseInvoiceSubscriptionID(ev *Event) (string, error)
}
