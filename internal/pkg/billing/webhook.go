package billing

import (
	"context"
	"fmt"

	"github.com/subsyncapp/subsync/app/models"
)

// Processor event types this system reacts to. Everything else is verified,
// recorded, and acknowledged without applying a transition.
const (
	eventSubscriptionCreated = "customer.subscription.created"
	eventSubscriptionUpdated = "customer.subscription.updated"
	eventSubscriptionDeleted = "customer.subscription.deleted"
	eventPaymentSucceeded    = "invoice.payment_succeeded"
	eventPaymentFailed       = "invoice.payment_failed"
	eventTrialWillEnd        = "customer.subscription.trial_will_end"
)

// Ingest processes one webhook delivery exactly once despite at-least-once,
// possibly concurrent redelivery:
//
//  1. verify the signature on the raw body; nothing is persisted before
//     this step
//  2. consult the ledger; an already-recorded event id is a successful no-op
//  3. dispatch the transition (idempotent overwrites, per-subscription lock)
//  4. record the event id, after the mutation succeeded
//
// A crash between 3 and 4 means the event is reapplied on redelivery, which
// is safe precisely because step 3 overwrites instead of merging. Within a
// process, concurrent deliveries of the same event id are serialized by a
// keyed mutex; across processes the ledger's primary key settles the race.
func (s *Service) Ingest(ctx context.Context, payload []byte, signatureHeader string) error {
	ev, err := s.gateway.VerifyWebhook(payload, signatureHeader)
	if err != nil {
		return err
	}

	s.eventLocks.Lock(ev.ID)
	defer s.eventLocks.Unlock(ev.ID)

	processed, err := s.events.Exists(ev.ID)
	if err != nil {
		return fmt.Errorf("ledger lookup: %w", err)
	}
	if processed {
		return nil
	}

	if err := s.dispatch(ctx, ev); err != nil {
		return err
	}

	if _, err := s.events.CreateIfNotExists(&models.WebhookEvent{ID: ev.ID, Type: ev.Type}); err != nil {
		return fmt.Errorf("ledger record: %w", err)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, ev *Event) error {
	switch ev.Type {
	case eventSubscriptionCreated, eventSubscriptionUpdated, eventSubscriptionDeleted:
		remote, err := s.gateway.ParseSubscription(ev)
		if err != nil {
			return err
		}
		return s.ApplySubscriptionSnapshot(ctx, remote)

	case eventPaymentSucceeded, eventPaymentFailed:
		subscriptionID, err := s.gateway.ParseInvoiceSubscriptionID(ev)
		if err != nil {
			return err
		}
		if subscriptionID == "" {
			return nil
		}
		return s.ApplyPaymentOutcome(ctx, subscriptionID, ev.Type == eventPaymentSucceeded)

	case eventTrialWillEnd:
		remote, err := s.gateway.ParseSubscription(ev)
		if err != nil {
			return err
		}
		s.announceTrialEnding(remote.ID)
		return nil

	default:
		return nil
	}
}
