package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/subsyncapp/subsync/internal/pkg/billing"
)

// HandleStripeWebhook receives processor events. The raw body is passed to
// signature verification untouched; parsing it first would invalidate the
// signature. Duplicate deliveries are acknowledged with 200 like any other
// success; the processor must not retry what we have already applied.
func (ct *Controller) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	if err := ct.subscriptions.Ingest(c.Context(), rawBody, signature); err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		log.Printf("webhook processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}
