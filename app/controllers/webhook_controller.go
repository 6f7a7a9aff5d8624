package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/vkarlsson/vardera/internal/pkg/payments"
)

// HandlePaymentWebhook receives plan and credit events from the payment
// provider. Replays are acknowledged with 200 so the provider stops retrying.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	err := paymentService.HandleWebhook(c.Body(), c.Get("X-Webhook-Signature"))
	if err == nil {
		return c.SendStatus(fiber.StatusOK)
	}

	if errors.Is(err, payments.ErrDuplicateEvent) {
		return c.SendStatus(fiber.StatusOK)
	}
	if errors.Is(err, payments.ErrInvalidSignature) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid signature",
		})
	}

	log.Errorf("[Webhook] payment event failed: %v", err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}
