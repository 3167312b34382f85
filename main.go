package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/subsyncapp/subsync/app/controllers"
	"github.com/subsyncapp/subsync/app/repository"
	"github.com/subsyncapp/subsync/internal/pkg/billing"
	"github.com/subsyncapp/subsync/internal/pkg/cache"
	"github.com/subsyncapp/subsync/internal/pkg/database"
	"github.com/subsyncapp/subsync/internal/pkg/env"
	"github.com/subsyncapp/subsync/internal/pkg/jobqueue"
	"github.com/subsyncapp/subsync/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	// BACKGROUND JOBS
	queue := jobqueue.NewQueue(2)
	jobqueue.RegisterTrialReminderProcessor(queue)
	queue.Start()

	// BILLING
	gateway := billing.NewStripeGatewayFromEnv()
	subscriptions := billing.NewService(
		gateway,
		repos.User,
		repos.Plan,
		repos.Subscription,
		repos.WebhookEvent,
		jobqueue.NewTrialNotifier(queue),
	)
	plans := billing.NewPlanService(gateway, repos.Plan)

	app := fiber.New(fiber.Config{
		AppName: "subsync",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app, controllers.New(subscriptions, plans))

	return app
}
