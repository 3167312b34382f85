package billing

import "errors"

// Client errors. These are reported with enough context to act and are
// never retried automatically. Everything else coming out of this package
// wraps an upstream gateway or store failure.
var (
	ErrPlanNotFound             = errors.New("plan not found or inactive")
	ErrUserNotFound             = errors.New("user not found")
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrActiveSubscriptionExists = errors.New("user already has an active subscription")
	ErrAlreadyCanceled          = errors.New("subscription already canceled")
	ErrNotScheduledForCancel    = errors.New("subscription is not scheduled to cancel")
	ErrPlanHasSubscribers       = errors.New("plan has active subscriptions")
	ErrInvalidSignature         = errors.New("invalid webhook signature")
)

// IsClientError reports whether err belongs to the caller-fault taxonomy.
func IsClientError(err error) bool {
	for _, sentinel := range []error{
		ErrPlanNotFound,
		ErrUserNotFound,
		ErrSubscriptionNotFound,
		ErrActiveSubscriptionExists,
		ErrAlreadyCanceled,
		ErrNotScheduledForCancel,
		ErrPlanHasSubscribers,
		ErrInvalidSignature,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
