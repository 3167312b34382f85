package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/subsyncapp/subsync/app/models"
	"github.com/subsyncapp/subsync/app/repository"
)

// entitlingStatuses are the statuses that make a plan "in use" for catalog
// administration purposes.
var entitlingStatuses = []string{
	models.SubscriptionStatusActive,
	models.SubscriptionStatusTrialing,
}

// PlanService administers the plan catalog and its remote product/price
// counterparts.
type PlanService struct {
	gateway Gateway
	plans   repository.PlanRepository
}

// NewPlanService creates a plan catalog service.
func NewPlanService(gateway Gateway, plans repository.PlanRepository) *PlanService {
	return &PlanService{gateway: gateway, plans: plans}
}

// CreatePlanInput is the payload for plan creation.
type CreatePlanInput struct {
	Name        string   `json:"name" validate:"required,min=2,max=150"`
	Description string   `json:"description" validate:"max=1000"`
	Price       int64    `json:"price" validate:"gte=0"`
	Interval    string   `json:"interval" validate:"oneof=MONTH YEAR"`
	TrialDays   int      `json:"trial_days" validate:"gte=0,lte=365"`
	Features    []string `json:"features" validate:"dive,max=200"`
}

// UpdatePlanInput carries partial plan updates; nil fields are untouched.
type UpdatePlanInput struct {
	Name        *string  `json:"name" validate:"omitempty,min=2,max=150"`
	Description *string  `json:"description" validate:"omitempty,max=1000"`
	Price       *int64   `json:"price" validate:"omitempty,gte=0"`
	Interval    *string  `json:"interval" validate:"omitempty,oneof=MONTH YEAR"`
	TrialDays   *int     `json:"trial_days" validate:"omitempty,gte=0,lte=365"`
	IsActive    *bool    `json:"is_active"`
	Features    []string `json:"features" validate:"omitempty,dive,max=200"`
}

// Create provisions the remote product and price, then persists the plan.
func (s *PlanService) Create(ctx context.Context, in CreatePlanInput) (*models.Plan, error) {
	if err := validator.New().Struct(in); err != nil {
		return nil, err
	}

	productID, err := s.gateway.CreateProduct(ctx, in.Name, in.Description)
	if err != nil {
		return nil, fmt.Errorf("billing gateway: %w", err)
	}
	priceID, err := s.gateway.CreatePrice(ctx, productID, in.Price, in.Interval, in.TrialDays)
	if err != nil {
		return nil, fmt.Errorf("billing gateway: %w", err)
	}

	plan := &models.Plan{
		Name:            in.Name,
		Description:     in.Description,
		Price:           in.Price,
		Interval:        in.Interval,
		TrialDays:       in.TrialDays,
		IsActive:        true,
		StripePriceID:   priceID,
		StripeProductID: productID,
	}
	if err := plan.SetFeatures(in.Features); err != nil {
		return nil, err
	}
	if err := s.plans.Create(plan); err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}
	return plan, nil
}

// Get returns a plan by id.
func (s *PlanService) Get(id uint) (*models.Plan, error) {
	plan, err := s.plans.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

// List returns plans, newest first.
func (s *PlanService) List(activeOnly bool) ([]models.Plan, error) {
	return s.plans.List(activeOnly)
}

// Update applies partial changes. Name and description propagate to the
// remote product. A price or interval change while entitling subscriptions
// reference the plan is rejected: previously billed amounts must not move.
// Otherwise the old remote price is archived and a fresh one provisioned;
// remote prices are immutable, the reference is what gets swapped.
func (s *PlanService) Update(ctx context.Context, id uint, in UpdatePlanInput) (*models.Plan, error) {
	if err := validator.New().Struct(in); err != nil {
		return nil, err
	}

	plan, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	priceChanged := (in.Price != nil && *in.Price != plan.Price) ||
		(in.Interval != nil && *in.Interval != plan.Interval)

	if priceChanged {
		count, err := s.plans.CountSubscriptionsInStatus(id, entitlingStatuses)
		if err != nil {
			return nil, fmt.Errorf("count subscriptions: %w", err)
		}
		if count > 0 {
			return nil, ErrPlanHasSubscribers
		}
	}

	if in.Name != nil {
		plan.Name = *in.Name
	}
	if in.Description != nil {
		plan.Description = *in.Description
	}
	if in.Name != nil || in.Description != nil {
		if err := s.gateway.UpdateProduct(ctx, plan.StripeProductID, plan.Name, plan.Description); err != nil {
			return nil, fmt.Errorf("billing gateway: %w", err)
		}
	}

	if in.TrialDays != nil {
		plan.TrialDays = *in.TrialDays
	}
	if priceChanged {
		if in.Price != nil {
			plan.Price = *in.Price
		}
		if in.Interval != nil {
			plan.Interval = *in.Interval
		}
		if err := s.gateway.ArchivePrice(ctx, plan.StripePriceID); err != nil {
			return nil, fmt.Errorf("billing gateway: %w", err)
		}
		priceID, err := s.gateway.CreatePrice(ctx, plan.StripeProductID, plan.Price, plan.Interval, plan.TrialDays)
		if err != nil {
			return nil, fmt.Errorf("billing gateway: %w", err)
		}
		plan.StripePriceID = priceID
	}

	if in.IsActive != nil {
		plan.IsActive = *in.IsActive
	}
	if in.Features != nil {
		if err := plan.SetFeatures(in.Features); err != nil {
			return nil, err
		}
	}

	if err := s.plans.Update(plan); err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}
	return plan, nil
}

// Delete removes a plan without entitling subscribers, archiving the remote
// product rather than destroying billing history. Plans with entitling
// subscribers cannot be deleted; deactivate them instead.
func (s *PlanService) Delete(ctx context.Context, id uint) error {
	plan, err := s.Get(id)
	if err != nil {
		return err
	}

	count, err := s.plans.CountSubscriptionsInStatus(id, entitlingStatuses)
	if err != nil {
		return fmt.Errorf("count subscriptions: %w", err)
	}
	if count > 0 {
		return ErrPlanHasSubscribers
	}

	if err := s.gateway.ArchiveProduct(ctx, plan.StripeProductID); err != nil {
		return fmt.Errorf("billing gateway: %w", err)
	}
	if err := s.plans.Delete(id); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}
