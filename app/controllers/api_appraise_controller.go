package controllers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vkarlsson/vardera/app/models"
	"github.com/vkarlsson/vardera/app/repository"
	"github.com/vkarlsson/vardera/internal/pkg/aiclient"
	"github.com/vkarlsson/vardera/internal/pkg/appraisal"
	"github.com/vkarlsson/vardera/internal/pkg/entitlements"
	"github.com/vkarlsson/vardera/internal/pkg/usercontext"
)

// AppraiseRequest is the JSON submission body. Images are data URLs or raw
// base64 payloads.
type AppraiseRequest struct {
	Images      []string `json:"images"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
}

// HandleAPIAppraise runs an appraisal for a JSON client.
func HandleAPIAppraise(c *fiber.Ctx) error {
	var req AppraiseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}

	if req.Description == "" || req.Category == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Description and category are required",
		})
	}
	if len(req.Images) > maxImagesPerAppraisal {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("at most %d images per appraisal", maxImagesPerAppraisal),
		})
	}

	in := appraisal.SubmitInput{
		Category:    req.Category,
		Description: req.Description,
	}
	if userID := usercontext.GetUserID(c); userID != 0 {
		in.UserID = &userID
	}

	for i, encoded := range req.Images {
		data, mime, err := decodeImagePayload(encoded)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("image %d: %v", i, err),
			})
		}
		in.Images = append(in.Images, appraisal.ImageUpload{
			Data:     data,
			FileName: fmt.Sprintf("image-%d%s", i, extensionFor(mime)),
			MimeType: mime,
		})
	}

	record, err := appraisalService.Submit(c.UserContext(), in)
	if err != nil {
		return apiSubmitError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    appraisalPayload(record),
	})
}

// HandleAPIAppraisalStatus returns the lifecycle state and, once completed,
// the result of one appraisal.
func HandleAPIAppraisalStatus(c *fiber.Ctx) error {
	uuid := c.Params("uuid")

	record, err := repository.GetGlobalFactory().GetAppraisalRepository().GetByUUID(uuid)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "appraisal not found",
		})
	}

	if record.UserID != nil && *record.UserID != usercontext.GetUserID(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "not your appraisal",
		})
	}

	resp := fiber.Map{
		"uuid":   record.UUID,
		"status": record.Status,
	}
	switch record.Status {
	case models.AppraisalStatusCompleted, models.AppraisalStatusExpertReview:
		resp["data"] = appraisalPayload(record)
	case models.AppraisalStatusFailed:
		resp["failure_reason"] = record.FailureReason
	}

	return c.JSON(resp)
}

func appraisalPayload(record *models.Appraisal) fiber.Map {
	payload := fiber.Map{
		"uuid":                 record.UUID,
		"itemIdentification":   record.ItemIdentification,
		"currency":             record.Currency,
		"conditionAssessment":  record.ConditionAssessment,
		"conditionRating":      record.ConditionRating,
		"valuationMethodology": record.ValuationMethodology,
		"marketContext":        record.MarketContext,
		"marketType":           record.MarketType,
		"recommendations":      record.Recommendations,
		"requiresExpertReview": record.RequiresExpertReview,
	}
	if record.EstimatedValueLow != nil {
		payload["estimatedValueLow"] = *record.EstimatedValueLow
	}
	if record.EstimatedValueHigh != nil {
		payload["estimatedValueHigh"] = *record.EstimatedValueHigh
	}
	if record.ConfidenceScore != nil {
		payload["confidenceScore"] = *record.ConfidenceScore
	}
	return payload
}

func apiSubmitError(c *fiber.Ctx, err error) error {
	if errors.Is(err, entitlements.ErrLimitReached) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "appraisal limit reached",
		})
	}

	var vErr *aiclient.ValidationError
	if errors.As(err, &vErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": vErr.Error(),
		})
	}

	var tErr *aiclient.TransportError
	if errors.As(err, &tErr) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "Failed to process appraisal",
			"details": "analysis provider unavailable",
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Failed to process appraisal",
		"details": err.Error(),
	})
}

// decodeImagePayload accepts a data URL or a bare base64 string.
func decodeImagePayload(encoded string) ([]byte, string, error) {
	mime := "image/png"
	payload := encoded

	if strings.HasPrefix(encoded, "data:") {
		parts := strings.SplitN(encoded, ",", 2)
		if len(parts) != 2 {
			return nil, "", errors.New("malformed data URL")
		}
		if strings.Contains(parts[0], "image/jpeg") {
			mime = "image/jpeg"
		}
		payload = parts[1]
	} else if strings.Contains(encoded, "image/jpeg") {
		mime = "image/jpeg"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", errors.New("invalid base64 payload")
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty image")
	}
	return data, mime, nil
}

func extensionFor(mime string) string {
	if mime == "image/jpeg" {
		return ".jpg"
	}
	return ".png"
}
