package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Local subscription statuses, mapped 1:1 from the processor-reported
// status. CANCELED is terminal: once reached, no further transitions apply.
const (
	SubscriptionStatusIncomplete        = "INCOMPLETE"
	SubscriptionStatusIncompleteExpired = "INCOMPLETE_EXPIRED"
	SubscriptionStatusTrialing          = "TRIALING"
	SubscriptionStatusActive            = "ACTIVE"
	SubscriptionStatusPastDue           = "PAST_DUE"
	SubscriptionStatusCanceled          = "CANCELED"
	SubscriptionStatusUnpaid            = "UNPAID"
)

// Subscription mirrors the remote billing processor's subscription record.
// The remote side is the source of truth for billing state; this row is a
// cache that webhook reconciliation overwrites wholesale.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UUID                 string     `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID               uint       `gorm:"not null;index" json:"user_id"`
	PlanID               uint       `gorm:"not null;index" json:"plan_id"`
	Plan                 *Plan      `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"stripe_subscription_id"`
	StripeCustomerID     string     `gorm:"type:varchar(191);not null;index" json:"stripe_customer_id"`
	Status               string     `gorm:"type:varchar(32);not null;default:'INCOMPLETE';index" json:"status"`
	CurrentPeriodStart   time.Time  `gorm:"type:timestamp;not null" json:"current_period_start"`
	CurrentPeriodEnd     time.Time  `gorm:"type:timestamp;not null" json:"current_period_end"`
	TrialStart           *time.Time `gorm:"type:timestamp;default:null" json:"trial_start,omitempty"`
	TrialEnd             *time.Time `gorm:"type:timestamp;default:null" json:"trial_end,omitempty"`
	CancelAtPeriodEnd    bool       `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CanceledAt           *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	// ActiveUserID mirrors UserID while the status is ACTIVE or TRIALING and
	// is NULL otherwise. MySQL has no partial unique indexes, so the unique
	// index on this column is what enforces at most one entitling
	// subscription per user at the store level. Maintained in BeforeSave.
	ActiveUserID *uint     `gorm:"uniqueIndex;default:null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether the subscription currently grants product
// access.
func (s *Subscription) IsEntitling() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// IsTerminal reports whether the subscription has reached its final state.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusCanceled
}

// BeforeSave assigns the public UUID on first persist and keeps the
// active-user mirror column in sync with the status.
func (s *Subscription) BeforeSave(tx *gorm.DB) error {
	if s.UUID == "" {
		s.UUID = uuid.NewString()
	}
	if s.IsEntitling() {
		userID := s.UserID
		s.ActiveUserID = &userID
	} else {
		s.ActiveUserID = nil
	}
	return nil
}
