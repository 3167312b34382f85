package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/subsyncapp/subsync/app/models"
	"github.com/subsyncapp/subsync/internal/pkg/billing"
)

// Controller bundles the injected services behind the HTTP handlers.
type Controller struct {
	subscriptions *billing.Service
	plans         *billing.PlanService
}

// New creates the controller set from injected services.
func New(subscriptions *billing.Service, plans *billing.PlanService) *Controller {
	return &Controller{subscriptions: subscriptions, plans: plans}
}

// statusForBillingError maps the billing error taxonomy onto HTTP statuses.
// Anything outside the client-error set is an internal failure.
func statusForBillingError(err error) int {
	switch {
	case errors.Is(err, billing.ErrPlanNotFound),
		errors.Is(err, billing.ErrUserNotFound),
		errors.Is(err, billing.ErrSubscriptionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, billing.ErrActiveSubscriptionExists),
		errors.Is(err, billing.ErrPlanHasSubscribers):
		return fiber.StatusConflict
	case errors.Is(err, billing.ErrAlreadyCanceled),
		errors.Is(err, billing.ErrNotScheduledForCancel),
		errors.Is(err, billing.ErrInvalidSignature):
		return fiber.StatusBadRequest
	default:
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return fiber.StatusUnprocessableEntity
		}
		return fiber.StatusInternalServerError
	}
}

// respondError writes the error with its mapped status. Internal failures
// get a generic message so upstream details never leak to clients.
func respondError(c *fiber.Ctx, err error) error {
	status := statusForBillingError(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		message = "internal server error"
	}
	return c.Status(status).JSON(fiber.Map{"error": true, "message": message})
}

// planJSON renders a plan with its decoded feature list.
func planJSON(p *models.Plan) fiber.Map {
	return fiber.Map{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"price":       p.Price,
		"interval":    p.Interval,
		"trial_days":  p.TrialDays,
		"is_active":   p.IsActive,
		"features":    p.Features(),
		"created_at":  p.CreatedAt,
		"updated_at":  p.UpdatedAt,
	}
}
