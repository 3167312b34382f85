package repository

import (
	"gorm.io/gorm"

	"github.com/subsyncapp/subsync/app/models"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create inserts a new subscription row. The unique index on the
// active-user mirror column makes this fail with gorm.ErrDuplicatedKey when
// the user already holds an entitling subscription, closing the
// check-then-create race at the store level.
func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// GetByUUID retrieves a subscription by its public UUID
func (r *subscriptionRepository) GetByUUID(uuid string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("Plan").Where("uuid = ?", uuid).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByUUIDAndUser retrieves a subscription by UUID scoped to its owner
func (r *subscriptionRepository) GetByUUIDAndUser(uuid string, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("Plan").
		Where("uuid = ? AND user_id = ?", uuid, userID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByStripeID retrieves a subscription by its remote subscription id
func (r *subscriptionRepository) GetByStripeID(stripeSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("Plan").Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindEntitledByUser returns the user's ACTIVE or TRIALING subscription.
func (r *subscriptionRepository) FindEntitledByUser(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.
		Where("user_id = ? AND status IN ?", userID,
			[]string{models.SubscriptionStatusActive, models.SubscriptionStatusTrialing}).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByUser returns all subscriptions for a user, newest first
func (r *subscriptionRepository) ListByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

// Update persists changes to an existing subscription
func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}
