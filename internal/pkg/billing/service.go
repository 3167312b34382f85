package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/subsyncapp/subsync/app/models"
	"github.com/subsyncapp/subsync/app/repository"
)

// Notifier delivers user-facing notifications about subscription events.
// Implementations must not block; failures are the notifier's problem, not
// the lifecycle's.
type Notifier interface {
	NotifyTrialWillEnd(user *models.User, sub *models.Subscription)
}

// Service orchestrates the subscription lifecycle: creation against the
// remote processor, cancellation/resumption, and webhook-driven
// reconciliation of the local record.
type Service struct {
	gateway  Gateway
	users    repository.UserRepository
	plans    repository.PlanRepository
	subs     repository.SubscriptionRepository
	events   repository.WebhookEventRepository
	notifier Notifier

	subLocks   *keyedMutex
	eventLocks *keyedMutex
}

// NewService creates a lifecycle service from injected dependencies.
// notifier may be nil.
func NewService(
	gateway Gateway,
	users repository.UserRepository,
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	events repository.WebhookEventRepository,
	notifier Notifier,
) *Service {
	return &Service{
		gateway:    gateway,
		users:      users,
		plans:      plans,
		subs:       subs,
		events:     events,
		notifier:   notifier,
		subLocks:   newKeyedMutex(),
		eventLocks: newKeyedMutex(),
	}
}

// CreateResult is the outcome of a successful subscription creation.
type CreateResult struct {
	Subscription *models.Subscription
	// ClientSecret must be handed to the client to confirm the initial
	// payment intent; empty when the processor required no confirmation.
	ClientSecret string
}

// CreateSubscription provisions a remote subscription for the user on the
// given plan and persists the local record.
//
// Validation failures (missing plan/user, existing entitling subscription)
// never touch the remote processor. After the customer id is persisted, any
// remote failure surfaces as a wrapped upstream error and the caller may
// retry; the persisted customer id is what makes the retry safe.
func (s *Service) CreateSubscription(ctx context.Context, userID, planID uint, paymentMethodID string) (*CreateResult, error) {
	plan, err := s.plans.GetByID(planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if !plan.IsActive {
		return nil, ErrPlanNotFound
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if _, err := s.subs.FindEntitledByUser(userID); err == nil {
		return nil, ErrActiveSubscriptionExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing subscription: %w", err)
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.gateway.AttachPaymentMethod(ctx, customerID, paymentMethodID); err != nil {
		return nil, fmt.Errorf("billing gateway: %w", err)
	}
	if err := s.gateway.SetDefaultPaymentMethod(ctx, customerID, paymentMethodID); err != nil {
		return nil, fmt.Errorf("billing gateway: %w", err)
	}

	remote, err := s.gateway.CreateSubscription(ctx, customerID, plan.StripePriceID, plan.TrialDays)
	if err != nil {
		return nil, fmt.Errorf("billing gateway: %w", err)
	}

	sub := &models.Subscription{
		UserID:               userID,
		PlanID:               plan.ID,
		StripeSubscriptionID: remote.ID,
		StripeCustomerID:     customerID,
		Status:               MapRemoteStatus(remote.Status),
		CurrentPeriodStart:   remote.CurrentPeriodStart,
		CurrentPeriodEnd:     remote.CurrentPeriodEnd,
		TrialStart:           remote.TrialStart,
		TrialEnd:             remote.TrialEnd,
		CancelAtPeriodEnd:    remote.CancelAtPeriodEnd,
	}
	if err := s.subs.Create(sub); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent creation won the store-level uniqueness race.
			return nil, ErrActiveSubscriptionExists
		}
		return nil, fmt.Errorf("persist subscription: %w", err)
	}
	sub.Plan = plan

	return &CreateResult{Subscription: sub, ClientSecret: remote.ClientSecret}, nil
}

// ensureCustomer lazily provisions a remote customer for the user. The id
// is persisted before returning so a retry after a later partial failure
// reuses it instead of creating a duplicate remote customer.
func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.HasBillingCustomer() {
		return *user.StripeCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, user.Email, user.Name, user.ID)
	if err != nil {
		return "", fmt.Errorf("billing gateway: %w", err)
	}
	if err := s.users.SetStripeCustomerID(user.ID, customerID); err != nil {
		return "", fmt.Errorf("persist customer id: %w", err)
	}
	user.StripeCustomerID = &customerID
	return customerID, nil
}

// ListForUser returns all of a user's subscriptions, newest first.
func (s *Service) ListForUser(userID uint) ([]models.Subscription, error) {
	return s.subs.ListByUser(userID)
}

// GetForUser returns a single subscription scoped to its owner.
func (s *Service) GetForUser(uuid string, userID uint) (*models.Subscription, error) {
	sub, err := s.subs.GetByUUIDAndUser(uuid, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// Cancel flags or terminates a subscription. With cancelAtPeriodEnd the
// local status is untouched until the processor confirms the period end via
// webhook; the flag itself is informational, not a disguised status.
// Immediate cancellation transitions to CANCELED right away.
func (s *Service) Cancel(ctx context.Context, userID uint, uuid string, cancelAtPeriodEnd bool) (*models.Subscription, error) {
	sub, err := s.GetForUser(uuid, userID)
	if err != nil {
		return nil, err
	}
	if sub.IsTerminal() {
		return nil, ErrAlreadyCanceled
	}

	if _, err := s.gateway.UpdateSubscription(ctx, sub.StripeSubscriptionID, cancelAtPeriodEnd); err != nil {
		return nil, fmt.Errorf("billing gateway: %w", err)
	}

	s.subLocks.Lock(sub.StripeSubscriptionID)
	defer s.subLocks.Unlock(sub.StripeSubscriptionID)

	// The processor emits an updated/deleted event as soon as the remote
	// call lands, so reconciliation may have rewritten the row while the
	// call was in flight. Work from the current row, never the pre-call
	// copy, or a stale write here could resurrect a terminal subscription.
	sub, err = s.GetForUser(uuid, userID)
	if err != nil {
		return nil, err
	}
	if sub.IsTerminal() {
		return sub, nil
	}

	sub.CancelAtPeriodEnd = cancelAtPeriodEnd
	if cancelAtPeriodEnd {
		sub.CanceledAt = nil
	} else {
		now := time.Now()
		sub.Status = models.SubscriptionStatusCanceled
		sub.CanceledAt = &now
	}
	if err := s.subs.Update(sub); err != nil {
		return nil, fmt.Errorf("persist subscription: %w", err)
	}
	return sub, nil
}

// Resume clears the cancel-at-period-end flag. A subscription that already
// reached CANCELED is terminal and cannot be resurrected.
func (s *Service) Resume(ctx context.Context, userID uint, uuid string) (*models.Subscription, error) {
	sub, err := s.GetForUser(uuid, userID)
	if err != nil {
		return nil, err
	}
	if sub.IsTerminal() {
		return nil, ErrAlreadyCanceled
	}
	if !sub.CancelAtPeriodEnd {
		return nil, ErrNotScheduledForCancel
	}

	if _, err := s.gateway.UpdateSubscription(ctx, sub.StripeSubscriptionID, false); err != nil {
		return nil, fmt.Errorf("billing gateway: %w", err)
	}

	s.subLocks.Lock(sub.StripeSubscriptionID)
	defer s.subLocks.Unlock(sub.StripeSubscriptionID)

	// Re-load under the lock; a concurrently reconciled terminal row must
	// not be overwritten with the pre-call copy.
	sub, err = s.GetForUser(uuid, userID)
	if err != nil {
		return nil, err
	}
	if sub.IsTerminal() {
		return nil, ErrAlreadyCanceled
	}

	sub.CancelAtPeriodEnd = false
	sub.CanceledAt = nil
	if err := s.subs.Update(sub); err != nil {
		return nil, fmt.Errorf("persist subscription: %w", err)
	}
	return sub, nil
}

// ApplySubscriptionSnapshot reconciles the local record with a
// processor-reported snapshot. This is a full overwrite, not a merge: the
// processor owns billing state and the local row is a cache. Applying the
// same snapshot twice yields the same final state, which is what makes
// webhook redelivery after a crash safe.
//
// A snapshot for an unknown subscription id is ignored: the processor
// shares its event channel with record types this system doesn't track.
func (s *Service) ApplySubscriptionSnapshot(ctx context.Context, remote *RemoteSubscription) error {
	s.subLocks.Lock(remote.ID)
	defer s.subLocks.Unlock(remote.ID)

	sub, err := s.subs.GetByStripeID(remote.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load subscription: %w", err)
	}
	if sub.IsTerminal() {
		return nil
	}

	sub.Status = MapRemoteStatus(remote.Status)
	sub.CurrentPeriodStart = remote.CurrentPeriodStart
	sub.CurrentPeriodEnd = remote.CurrentPeriodEnd
	sub.TrialStart = remote.TrialStart
	sub.TrialEnd = remote.TrialEnd
	sub.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
	sub.CanceledAt = remote.CanceledAt

	if err := s.subs.Update(sub); err != nil {
		return fmt.Errorf("persist subscription: %w", err)
	}
	return nil
}

// ApplyPaymentOutcome pins the status after an invoice event: a confirmed
// charge forces ACTIVE, a failed one forces PAST_DUE, regardless of the
// previously cached status. This resolves the race where the period
// rollover snapshot and the invoice event arrive in either order.
func (s *Service) ApplyPaymentOutcome(ctx context.Context, stripeSubscriptionID string, succeeded bool) error {
	s.subLocks.Lock(stripeSubscriptionID)
	defer s.subLocks.Unlock(stripeSubscriptionID)

	sub, err := s.subs.GetByStripeID(stripeSubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load subscription: %w", err)
	}
	if sub.IsTerminal() {
		return nil
	}

	if succeeded {
		sub.Status = models.SubscriptionStatusActive
	} else {
		sub.Status = models.SubscriptionStatusPastDue
	}
	if err := s.subs.Update(sub); err != nil {
		return fmt.Errorf("persist subscription: %w", err)
	}
	return nil
}

// announceTrialEnding hands the reminder off to the notifier. Lookups and
// delivery failures are logged, never propagated: notification is a side
// effect that must not fail the transition.
func (s *Service) announceTrialEnding(stripeSubscriptionID string) {
	if s.notifier == nil {
		return
	}
	sub, err := s.subs.GetByStripeID(stripeSubscriptionID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("billing: trial reminder lookup failed for %s: %v", stripeSubscriptionID, err)
		}
		return
	}
	user, err := s.users.GetByID(sub.UserID)
	if err != nil {
		log.Printf("billing: trial reminder user lookup failed for %s: %v", stripeSubscriptionID, err)
		return
	}
	s.notifier.NotifyTrialWillEnd(user, sub)
}
