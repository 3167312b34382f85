package controllers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/subsyncapp/subsync/internal/pkg/usercontext"
)

type createSubscriptionRequest struct {
	PlanID          uint   `json:"plan_id" validate:"required"`
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}

type cancelSubscriptionRequest struct {
	CancelAtPeriodEnd *bool `json:"cancel_at_period_end"`
}

// HandleCreateSubscription starts a subscription for the authenticated
// user. The response carries the client confirmation secret needed to
// finish payment-method setup on the client side.
func (ct *Controller) HandleCreateSubscription(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "invalid request body"})
	}
	if err := validator.New().Struct(req); err != nil {
		return respondError(c, err)
	}

	result, err := ct.subscriptions.CreateSubscription(c.Context(), userID, req.PlanID, req.PaymentMethodID)
	if err != nil {
		return respondError(c, err)
	}

	message := "Subscription created."
	if plan := result.Subscription.Plan; plan != nil && plan.TrialDays > 0 {
		message = fmt.Sprintf("Subscription created. %d-day trial started.", plan.TrialDays)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"subscription":  result.Subscription,
		"client_secret": result.ClientSecret,
		"message":       message,
	})
}

// HandleListMySubscriptions returns the authenticated user's
// subscriptions, newest first.
func (ct *Controller) HandleListMySubscriptions(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	subs, err := ct.subscriptions.ListForUser(userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"subscriptions": subs})
}

// HandleGetSubscription returns one of the user's subscriptions by UUID.
func (ct *Controller) HandleGetSubscription(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	sub, err := ct.subscriptions.GetForUser(c.Params("uuid"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": sub})
}

// HandleCancelSubscription cancels at period end by default; immediate
// cancellation happens only when cancel_at_period_end is explicitly false.
func (ct *Controller) HandleCancelSubscription(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	var req cancelSubscriptionRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "invalid request body"})
	}
	cancelAtPeriodEnd := true
	if req.CancelAtPeriodEnd != nil {
		cancelAtPeriodEnd = *req.CancelAtPeriodEnd
	}

	sub, err := ct.subscriptions.Cancel(c.Context(), userID, c.Params("uuid"), cancelAtPeriodEnd)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": sub})
}

// HandleResumeSubscription clears a pending cancel-at-period-end flag.
func (ct *Controller) HandleResumeSubscription(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	sub, err := ct.subscriptions.Resume(c.Context(), userID, c.Params("uuid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": sub})
}
