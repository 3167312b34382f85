package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/subsyncapp/subsync/app/controllers"
)

type HttpRouter struct {
	controller *controllers.Controller
}

func NewHttpRouter(c *controllers.Controller) *HttpRouter {
	return &HttpRouter{controller: c}
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", h.controller.HandleHealth)

	// Raw-body webhook endpoint; no rate limiter, no auth. The signature
	// is the authentication.
	app.Post("/webhooks/stripe", h.controller.HandleStripeWebhook)
}
