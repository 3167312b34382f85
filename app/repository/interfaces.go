package repository

import (
	"github.com/subsyncapp/subsync/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	// SetStripeCustomerID persists the remote customer binding. It must be
	// durable before any further remote calls so that a retry after partial
	// failure reuses the customer instead of creating a duplicate.
	SetStripeCustomerID(userID uint, customerID string) error
}

// PlanRepository defines the interface for plan catalog persistence
type PlanRepository interface {
	Create(plan *models.Plan) error
	GetByID(id uint) (*models.Plan, error)
	List(activeOnly bool) ([]models.Plan, error)
	Update(plan *models.Plan) error
	Delete(id uint) error
	// CountSubscriptionsInStatus counts subscriptions referencing the plan
	// whose status is one of the given values.
	CountSubscriptionsInStatus(planID uint, statuses []string) (int64, error)
}

// SubscriptionRepository defines the interface for subscription persistence.
// Create and Update return gorm.ErrDuplicatedKey when the one-entitling-
// subscription-per-user unique index rejects the write; callers surface
// that as a conflict, not a crash.
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByUUID(uuid string) (*models.Subscription, error)
	GetByUUIDAndUser(uuid string, userID uint) (*models.Subscription, error)
	GetByStripeID(stripeSubscriptionID string) (*models.Subscription, error)
	// FindEntitledByUser returns the user's ACTIVE or TRIALING subscription,
	// or gorm.ErrRecordNotFound.
	FindEntitledByUser(userID uint) (*models.Subscription, error)
	ListByUser(userID uint) ([]models.Subscription, error)
	Update(sub *models.Subscription) error
}

// WebhookEventRepository is the append-only idempotency ledger.
type WebhookEventRepository interface {
	Exists(id string) (bool, error)
	// CreateIfNotExists inserts the ledger row, reporting whether this call
	// created it. A duplicate key is not an error: the insert losing the
	// race is the correctness mechanism for concurrent deliveries.
	CreateIfNotExists(event *models.WebhookEvent) (bool, error)
}
