package models

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	PlanIntervalMonth = "MONTH"
	PlanIntervalYear  = "YEAR"
)

// Plan is a purchasable subscription plan bound to a remote product/price
// pair. Price changes never mutate the remote price in place: a new price is
// provisioned and the reference swapped, so already-billed subscriptions
// keep their original amount.
type Plan struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Description string `gorm:"type:text" json:"description" validate:"max=1000"`
	// Price is the amount per billing interval in minor currency units.
	Price           int64  `gorm:"not null" json:"price" validate:"gte=0"`
	Interval        string `gorm:"type:varchar(10);not null;default:'MONTH'" json:"interval" validate:"oneof=MONTH YEAR"`
	TrialDays       int    `gorm:"not null;default:0" json:"trial_days" validate:"gte=0,lte=365"`
	IsActive        bool   `gorm:"not null;default:true;index" json:"is_active"`
	StripePriceID   string `gorm:"type:varchar(191);not null;index" json:"stripe_price_id"`
	StripeProductID string `gorm:"type:varchar(191);not null;index" json:"stripe_product_id"`
	// FeaturesJSON holds the marketing feature list as a JSON array.
	FeaturesJSON string    `gorm:"column:features;type:text" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Plan) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// Features decodes the stored feature list. A missing or malformed value
// yields an empty list rather than an error; features are display-only.
func (p *Plan) Features() []string {
	if p.FeaturesJSON == "" {
		return []string{}
	}
	var features []string
	if err := json.Unmarshal([]byte(p.FeaturesJSON), &features); err != nil {
		return []string{}
	}
	return features
}

// SetFeatures encodes and stores the feature list.
func (p *Plan) SetFeatures(features []string) error {
	if features == nil {
		features = []string{}
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return err
	}
	p.FeaturesJSON = string(raw)
	return nil
}
