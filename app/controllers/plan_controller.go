package controllers

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/subsyncapp/subsync/internal/pkg/billing"
	"github.com/subsyncapp/subsync/internal/pkg/cache"
)

const (
	activePlansCacheKey = "plans:active"
	activePlansCacheTTL = 5 * time.Minute
)

// HandleListPlans returns the plan catalog, newest first. The default
// listing covers active plans only and is served from cache; ?all=1
// includes inactive plans and bypasses the cache. Inactive plans carry no
// purchasable state, so exposing them on the public route is acceptable.
func (ct *Controller) HandleListPlans(c *fiber.Ctx) error {
	wantAll := c.QueryBool("all")

	if !wantAll {
		if cached, err := cache.Get(activePlansCacheKey); err == nil && cached != "" {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.SendString(cached)
		}
	}

	plans, err := ct.plans.List(!wantAll)
	if err != nil {
		return respondError(c, err)
	}

	items := make([]fiber.Map, 0, len(plans))
	for i := range plans {
		items = append(items, planJSON(&plans[i]))
	}
	body := fiber.Map{"plans": items}

	if !wantAll {
		if raw, err := json.Marshal(body); err == nil {
			if err := cache.Set(activePlansCacheKey, string(raw), activePlansCacheTTL); err != nil {
				log.Printf("plan cache write failed: %v", err)
			}
		}
	}
	return c.JSON(body)
}

// HandleGetPlan returns a single plan by id.
func (ct *Controller) HandleGetPlan(c *fiber.Ctx) error {
	id, err := parsePlanID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "invalid plan id"})
	}

	plan, err := ct.plans.Get(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"plan": planJSON(plan)})
}

// HandleCreatePlan provisions a new plan (admin only).
func (ct *Controller) HandleCreatePlan(c *fiber.Ctx) error {
	var in billing.CreatePlanInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "invalid request body"})
	}

	plan, err := ct.plans.Create(c.Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	invalidatePlanCache()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"plan": planJSON(plan)})
}

// HandleUpdatePlan applies partial plan changes (admin only).
func (ct *Controller) HandleUpdatePlan(c *fiber.Ctx) error {
	id, err := parsePlanID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "invalid plan id"})
	}

	var in billing.UpdatePlanInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "invalid request body"})
	}

	plan, err := ct.plans.Update(c.Context(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	invalidatePlanCache()
	return c.JSON(fiber.Map{"plan": planJSON(plan)})
}

// HandleDeletePlan removes a plan without active subscribers (admin only).
func (ct *Controller) HandleDeletePlan(c *fiber.Ctx) error {
	id, err := parsePlanID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "invalid plan id"})
	}

	if err := ct.plans.Delete(c.Context(), id); err != nil {
		return respondError(c, err)
	}
	invalidatePlanCache()
	return c.JSON(fiber.Map{"message": "plan deleted"})
}

func parsePlanID(c *fiber.Ctx) (uint, error) {
	raw, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(raw), nil
}

func invalidatePlanCache() {
	if err := cache.Delete(activePlansCacheKey); err != nil {
		log.Printf("plan cache invalidation failed: %v", err)
	}
}
