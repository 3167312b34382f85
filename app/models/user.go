package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// User is the local identity a subscription belongs to. Authentication
// itself (signup, login, password reset) lives outside this service; here a
// user is resolved from an API key and bound to a remote billing customer.
type User struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email      string `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Role       string `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status     string `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	APIKeyHash string `gorm:"type:varchar(64);index" json:"-"`
	// StripeCustomerID is set lazily on the first subscription attempt and
	// reused for the user's lifetime. Once set it is never rewritten, so a
	// retried creation call cannot provision a duplicate remote customer.
	StripeCustomerID *string        `gorm:"type:varchar(191);default:null;index" json:"-"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// HasBillingCustomer reports whether a remote billing customer is already
// provisioned for this user.
func (u *User) HasBillingCustomer() bool {
	return u.StripeCustomerID != nil && *u.StripeCustomerID != ""
}

// HashAPIKey returns the storable hash for a raw API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
