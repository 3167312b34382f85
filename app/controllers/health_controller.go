package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/subsyncapp/subsync/internal/pkg/database"
)

// HandleHealth reports process and database liveness.
func (ct *Controller) HandleHealth(c *fiber.Ctx) error {
	dbStatus := "up"
	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			dbStatus = "down"
		}
	} else {
		dbStatus = "down"
	}

	status := fiber.StatusOK
	if dbStatus != "up" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   "ok",
		"database": dbStatus,
	})
}
