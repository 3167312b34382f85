package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/subsyncapp/subsync/app/controllers"
)

// Router installs a set of routes onto the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter wires all route groups. The webhook router is installed
// outside the rate-limited API group: the processor's retry behavior must
// never be throttled.
func InstallRouter(app *fiber.App, c *controllers.Controller) {
	setup(app, NewHttpRouter(c), NewApiRouter(c))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
