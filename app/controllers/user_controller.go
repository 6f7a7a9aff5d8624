package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/vkarlsson/vardera/app/models"
	"github.com/vkarlsson/vardera/app/repository"
	"github.com/vkarlsson/vardera/internal/pkg/database"
	"github.com/vkarlsson/vardera/internal/pkg/entitlements"
	"github.com/vkarlsson/vardera/internal/pkg/usercontext"
	"github.com/vkarlsson/vardera/internal/pkg/utils"
	"github.com/vkarlsson/vardera/internal/pkg/viewmodel"
)

const dashboardPageSize = 12

// HandleUserDashboard lists the user's appraisals with their usage box.
func HandleUserDashboard(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * dashboardPageSize

	repo := repository.GetGlobalFactory().GetAppraisalRepository()

	appraisals, err := repo.GetByUserID(userID, offset, dashboardPageSize)
	if err != nil {
		log.Errorf("[Dashboard] list appraisals for %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("could not load your appraisals")
	}
	total, err := repo.CountByUserID(userID)
	if err != nil {
		log.Errorf("[Dashboard] count appraisals for %d: %v", userID, err)
	}

	entries := make([]viewmodel.DashboardEntry, 0, len(appraisals))
	for i := range appraisals {
		entries = append(entries, dashboardEntry(&appraisals[i]))
	}

	var email string
	if user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userID); err == nil {
		email = user.Email
	}

	totalPages := int((total + dashboardPageSize - 1) / dashboardPageSize)

	return c.Render("user/dashboard", fiber.Map{
		"Layout":      layoutFor(c, "dashboard"),
		"Appraisals":  entries,
		"Entitlement": entitlementBox(userID),
		"AvatarURL":   utils.GetGravatarURL(email, 80),
		"Page":        page,
		"PrevPage":    page - 1,
		"NextPage":    page + 1,
		"TotalPages":  totalPages,
		"Total":       total,
	}, "layouts/main")
}

func dashboardEntry(a *models.Appraisal) viewmodel.DashboardEntry {
	entry := viewmodel.DashboardEntry{
		UUID:               a.UUID,
		ItemIdentification: a.ItemIdentification,
		Category:           a.Category,
		Status:             a.Status,
		Currency:           a.Currency,
		SubmittedAt:        a.CreatedAt.Format("2006-01-02"),
	}
	if entry.ItemIdentification == "" {
		entry.ItemIdentification = a.ItemDescription
	}
	if a.EstimatedValueLow != nil {
		entry.EstimatedValueLow = *a.EstimatedValueLow
	}
	if a.EstimatedValueHigh != nil {
		entry.EstimatedValueHigh = *a.EstimatedValueHigh
	}
	if primary := a.PrimaryImage(); primary != nil {
		entry.ThumbnailURL = blobStore.PublicURL(primary.StoragePath)
	}
	return entry
}

func entitlementBox(userID uint) viewmodel.Entitlement {
	box := viewmodel.Entitlement{Plan: "free"}

	var usage models.UsageTracking
	if err := database.GetDB().Where("user_id = ?", userID).First(&usage).Error; err == nil {
		box.Plan = usage.Plan
		box.Used = usage.AppraisalsUsed
		box.Limit = usage.AppraisalsLimit
		box.Unlimited = usage.IsUnlimited()
	}

	entRepo := entitlements.NewRepository(database.GetDB())
	if grants, err := entRepo.ListCredits(userID); err == nil {
		box.CreditsRemaining = models.SumCreditsRemaining(grants)
	}

	return box
}
