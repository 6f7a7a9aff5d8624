package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/vkarlsson/vardera/internal/pkg/valuation"
)

// ValuationRequest is the quick-estimate body. Images carries the uploaded
// payloads only to be counted; the estimator does not inspect them.
type ValuationRequest struct {
	Text   string   `json:"text"`
	Images []string `json:"images"`
}

// HandleAPIValuation serves the instant heuristic estimate.
func HandleAPIValuation(c *fiber.Ctx) error {
	var req ValuationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}

	estimate, err := valuation.Calculate(valuation.Input{
		Text:       req.Text,
		ImageCount: len(req.Images),
	})
	if err != nil {
		if errors.Is(err, valuation.ErrNoInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Please provide text or images for valuation.",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An error occurred during the valuation process.",
		})
	}

	return c.JSON(estimate)
}
