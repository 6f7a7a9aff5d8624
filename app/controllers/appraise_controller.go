package controllers

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"

	"github.com/vkarlsson/vardera/app/models"
	"github.com/vkarlsson/vardera/app/repository"
	"github.com/vkarlsson/vardera/internal/pkg/aiclient"
	"github.com/vkarlsson/vardera/internal/pkg/appraisal"
	"github.com/vkarlsson/vardera/internal/pkg/constants"
	"github.com/vkarlsson/vardera/internal/pkg/entitlements"
	"github.com/vkarlsson/vardera/internal/pkg/env"
	"github.com/vkarlsson/vardera/internal/pkg/metrics/counter"
	"github.com/vkarlsson/vardera/internal/pkg/security"
	"github.com/vkarlsson/vardera/internal/pkg/upload"
	"github.com/vkarlsson/vardera/internal/pkg/usercontext"
	"github.com/vkarlsson/vardera/internal/pkg/viewmodel"
)

const maxImagesPerAppraisal = 5

var appraisalCategories = []string{
	"vintage-watches",
	"jewelry",
	"art",
	"coins-stamps",
	"antiques",
	"memorabilia",
	"other",
}

// HandleAppraiseNew renders the submission form. The form is disabled when
// the user has no appraisals left; the authoritative check still happens on
// submit.
func HandleAppraiseNew(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	var decision *entitlements.Decision
	var checkErr error
	if userID != 0 {
		decision, checkErr = evaluator.Check(userID)
		if checkErr != nil {
			log.Errorf("[Appraise] entitlement check for %d: %v", userID, checkErr)
		}
	}

	data := fiber.Map{
		"Layout":     layoutFor(c, "appraise"),
		"Csrf":       c.Locals("csrf"),
		"Categories": appraisalCategories,
		"MaxImages":  maxImagesPerAppraisal,
	}
	for k, v := range appraiseFormGate(decision, checkErr) {
		data[k] = v
	}

	return c.Render("appraise/new", data, "layouts/main")
}

// appraiseFormGate maps the entitlement pre-check outcome onto the form
// state. When the check itself fails the form is disabled rather than
// opened, with a note that the service is temporarily unavailable.
func appraiseFormGate(decision *entitlements.Decision, err error) fiber.Map {
	switch {
	case err != nil:
		return fiber.Map{"Allowed": false, "Unavailable": true}
	case decision == nil:
		// Anonymous visitor, no quota to report
		return fiber.Map{"Allowed": true}
	default:
		return fiber.Map{
			"Allowed":          decision.Allowed,
			"PlanRemaining":    decision.PlanRemaining,
			"CreditsRemaining": decision.CreditsRemaining,
		}
	}
}

// HandleAppraiseSubmit accepts the multipart form and runs the appraisal.
func HandleAppraiseSubmit(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	in := appraisal.SubmitInput{
		Category:    c.FormValue("category"),
		Description: c.FormValue("description"),
	}
	if userID != 0 {
		in.UserID = &userID
	}

	form, err := c.MultipartForm()
	if err != nil {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "Could not read the submitted form",
		}).Redirect(constants.AppraiseRoute)
	}

	files := form.File["images"]
	if len(files) > maxImagesPerAppraisal {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("At most %d photos per appraisal", maxImagesPerAppraisal),
		}).Redirect(constants.AppraiseRoute)
	}

	for _, fh := range files {
		if fh.Size > upload.MaxImageBytes {
			return flash.WithError(c, fiber.Map{
				"type":    "error",
				"message": fmt.Sprintf("%s is too large (max 10 MB)", fh.Filename),
			}).Redirect(constants.AppraiseRoute)
		}

		f, err := fh.Open()
		if err != nil {
			return flash.WithError(c, fiber.Map{
				"type":    "error",
				"message": fmt.Sprintf("Could not read %s", fh.Filename),
			}).Redirect(constants.AppraiseRoute)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return flash.WithError(c, fiber.Map{
				"type":    "error",
				"message": fmt.Sprintf("Could not read %s", fh.Filename),
			}).Redirect(constants.AppraiseRoute)
		}

		head := data
		if len(head) > 512 {
			head = head[:512]
		}
		mime, err := upload.ValidateImageBySniff(fh.Filename, head)
		if err != nil {
			return flash.WithError(c, fiber.Map{
				"type":    "error",
				"message": err.Error(),
			}).Redirect(constants.AppraiseRoute)
		}

		in.Images = append(in.Images, appraisal.ImageUpload{
			Data:     data,
			FileName: fh.Filename,
			MimeType: mime,
		})
	}

	result, err := appraisalService.Submit(c.UserContext(), in)
	if err != nil {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": submitErrorMessage(err),
		}).Redirect(constants.AppraiseRoute)
	}

	return c.Redirect(constants.AppraiseRoute+"/"+result.UUID, fiber.StatusSeeOther)
}

// HandleAppraiseDetail renders one appraisal. Owners see it directly; anyone
// else needs a valid share token.
func HandleAppraiseDetail(c *fiber.Ctx) error {
	uuid := c.Params("uuid")

	record, err := repository.GetGlobalFactory().GetAppraisalRepository().GetByUUID(uuid)
	if err != nil {
		return c.Status(fiber.StatusNotFound).Render("errors/404", fiber.Map{
			"Layout": layoutFor(c, "not-found"),
		}, "layouts/main")
	}

	isOwner := record.UserID != nil && *record.UserID == usercontext.GetUserID(c)
	if !isOwner && record.UserID != nil {
		token := c.Query("share")
		claims, err := security.VerifyShareToken(token, env.GetEnv("APP_SECRET", ""))
		if err != nil || claims.AppraisalUUID != uuid {
			return c.Status(fiber.StatusForbidden).Render("errors/403", fiber.Map{
				"Layout": layoutFor(c, "forbidden"),
			}, "layouts/main")
		}
	}

	if err := counter.AddAppraisalView(record.ID); err != nil {
		log.Warnf("[Appraise] view counter for %d: %v", record.ID, err)
	}

	return c.Render("appraise/detail", fiber.Map{
		"Layout":    layoutFor(c, "appraisal"),
		"Csrf":      c.Locals("csrf"),
		"Appraisal": buildAppraisalView(c, record, isOwner),
	}, "layouts/main")
}

// HandleAppraiseReanalyze runs a fresh analysis over a completed appraisal.
func HandleAppraiseReanalyze(c *fiber.Ctx) error {
	uuid := c.Params("uuid")

	record, err := repository.GetGlobalFactory().GetAppraisalRepository().GetByUUID(uuid)
	if err != nil {
		return c.Status(fiber.StatusNotFound).SendString("appraisal not found")
	}
	if record.UserID == nil || *record.UserID != usercontext.GetUserID(c) {
		return c.Status(fiber.StatusForbidden).SendString("only the owner can re-analyze")
	}

	if _, err := appraisalService.Reanalyze(c.UserContext(), record.ID); err != nil {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": submitErrorMessage(err),
		}).Redirect(constants.AppraiseRoute + "/" + uuid)
	}

	return flash.WithSuccess(c, fiber.Map{
		"type":    "success",
		"message": "A fresh analysis has been added to this appraisal",
	}).Redirect(constants.AppraiseRoute + "/" + uuid)
}

func buildAppraisalView(c *fiber.Ctx, record *models.Appraisal, isOwner bool) viewmodel.Appraisal {
	vm := viewmodel.Appraisal{
		UUID:                 record.UUID,
		Category:             record.Category,
		Description:          record.ItemDescription,
		Status:               record.Status,
		InProgress:           !record.IsTerminal(),
		ItemIdentification:   record.ItemIdentification,
		Currency:             record.Currency,
		ConditionAssessment:  record.ConditionAssessment,
		ConditionRating:      record.ConditionRating,
		ValuationMethodology: record.ValuationMethodology,
		MarketContext:        record.MarketContext,
		MarketType:           record.MarketType,
		Recommendations:      record.Recommendations,
		RequiresExpertReview: record.RequiresExpertReview,
		FailureReason:        record.FailureReason,
		SubmittedAt:          record.CreatedAt.Format("2006-01-02 15:04"),
		ViewCount:            record.ViewCount,
		CanReanalyze:         isOwner && record.Status == models.AppraisalStatusCompleted,
	}
	if record.EstimatedValueLow != nil {
		vm.EstimatedValueLow = *record.EstimatedValueLow
	}
	if record.EstimatedValueHigh != nil {
		vm.EstimatedValueHigh = *record.EstimatedValueHigh
	}
	if record.ConfidenceScore != nil {
		vm.ConfidenceScore = *record.ConfidenceScore
	}
	if record.CompletedAt != nil {
		vm.CompletedAt = record.CompletedAt.Format("2006-01-02 15:04")
	}

	for _, img := range record.Images {
		entry := viewmodel.AppraisalImage{
			URL:          blobStore.PublicURL(img.StoragePath),
			FileName:     img.FileName,
			IsPrimary:    img.IsPrimary,
			DisplayOrder: img.DisplayOrder,
		}
		if img.CameraModel != nil {
			entry.CameraModel = *img.CameraModel
		}
		if img.TakenAt != nil {
			entry.TakenAt = img.TakenAt.Format("2006-01-02")
		}
		vm.Images = append(vm.Images, entry)
	}

	if isOwner {
		if token, err := security.GenerateShareToken(record.UUID, 7*24*time.Hour, env.GetEnv("APP_SECRET", "")); err == nil {
			vm.ShareURL = fmt.Sprintf("%s/appraise/%s?share=%s",
				env.GetEnv("PUBLIC_DOMAIN", ""), record.UUID, token)
		}
	}

	return vm
}

// submitErrorMessage maps service errors to the messages shown on the form.
func submitErrorMessage(err error) string {
	if errors.Is(err, entitlements.ErrLimitReached) {
		return "You have used all appraisals of your plan. Upgrade or buy credits to continue."
	}

	var vErr *aiclient.ValidationError
	if errors.As(err, &vErr) {
		return fmt.Sprintf("Please check the %s field: %s", vErr.Field, vErr.Reason)
	}

	var tErr *aiclient.TransportError
	if errors.As(err, &tErr) {
		return "The analysis service is currently unavailable. Please try again in a few minutes."
	}

	var pErr *aiclient.ParseError
	if errors.As(err, &pErr) {
		return "We could not produce a reliable valuation for this item. Try clearer photos or a more detailed description."
	}

	return "Something went wrong with your appraisal. Please try again."
}
