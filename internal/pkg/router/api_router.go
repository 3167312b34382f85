package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/subsyncapp/subsync/app/controllers"
	"github.com/subsyncapp/subsync/internal/pkg/middleware"
)

type ApiRouter struct {
	controller *controllers.Controller
}

func NewApiRouter(c *controllers.Controller) *ApiRouter {
	return &ApiRouter{controller: c}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	v1 := api.Group("/v1")

	// Public catalog
	v1.Get("/plans", h.controller.HandleListPlans)
	v1.Get("/plans/:id", h.controller.HandleGetPlan)

	// Authenticated subscription API
	authed := v1.Group("", middleware.APIKeyAuthMiddleware())
	authed.Post("/subscriptions", h.controller.HandleCreateSubscription)
	authed.Get("/subscriptions", h.controller.HandleListMySubscriptions)
	authed.Get("/subscriptions/:uuid", h.controller.HandleGetSubscription)
	authed.Post("/subscriptions/:uuid/cancel", h.controller.HandleCancelSubscription)
	authed.Post("/subscriptions/:uuid/resume", h.controller.HandleResumeSubscription)

	// Plan administration
	admin := v1.Group("", middleware.APIKeyAuthMiddleware(), middleware.RequireAdminMiddleware())
	admin.Post("/plans", h.controller.HandleCreatePlan)
	admin.Patch("/plans/:id", h.controller.HandleUpdatePlan)
	admin.Delete("/plans/:id", h.controller.HandleDeletePlan)
}
