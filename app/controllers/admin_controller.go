package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"

	"github.com/vkarlsson/vardera/app/models"
	"github.com/vkarlsson/vardera/app/repository"
	"github.com/vkarlsson/vardera/internal/pkg/database"
	"github.com/vkarlsson/vardera/internal/pkg/entitlements"
	"github.com/vkarlsson/vardera/internal/pkg/statistics"
	"github.com/vkarlsson/vardera/internal/pkg/usercontext"
)

// HandleAdminDashboard shows totals and the status breakdown.
func HandleAdminDashboard(c *fiber.Ctx) error {
	stats := statistics.GetStatisticsData()

	statusCounts := map[string]int64{}
	rows, err := database.GetDB().Model(&models.Appraisal{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Rows()
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var status string
			var count int64
			if err := rows.Scan(&status, &count); err == nil {
				statusCounts[status] = count
			}
		}
	}

	return c.Render("admin/dashboard", fiber.Map{
		"Layout":          layoutFor(c, "admin"),
		"TotalAppraisals": stats.TotalAppraisals,
		"TodayAppraisals": stats.TodayAppraisals,
		"TotalUsers":      stats.TotalUsers,
		"StatusCounts":    statusCounts,
	}, "layouts/main")
}

// HandleAdminUsers lists registered users.
func HandleAdminUsers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	const pageSize = 25

	var users []models.User
	if err := database.GetDB().
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error; err != nil {
		log.Errorf("[Admin] list users: %v", err)
		return c.Status(fiber.StatusInternalServerError).SendString("could not load users")
	}

	return c.Render("admin/users", fiber.Map{
		"Layout": layoutFor(c, "admin-users"),
		"Csrf":   c.Locals("csrf"),
		"Users":  users,
		"Page":   page,
	}, "layouts/main")
}

// HandleAdminUserUpdatePlan switches a user's subscription plan.
func HandleAdminUserUpdatePlan(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("invalid user id")
	}

	plan := entitlements.NormalizePlan(c.FormValue("plan"))
	if err := entitlements.NewRepository(database.GetDB()).SetPlan(uint(userID), plan); err != nil {
		log.Errorf("[Admin] set plan for %d: %v", userID, err)
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "plan update failed",
		}).Redirect("/admin/users")
	}

	return flash.WithSuccess(c, fiber.Map{
		"type":    "success",
		"message": "Plan updated",
	}).Redirect("/admin/users")
}

// HandleAdminUserGrantCredits adds complimentary appraisal credits.
func HandleAdminUserGrantCredits(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("invalid user id")
	}
	count, err := strconv.Atoi(c.FormValue("credits"))
	if err != nil || count <= 0 {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "credit count must be a positive number",
		}).Redirect("/admin/users")
	}

	repo := entitlements.NewRepository(database.GetDB())
	if _, err := repo.GrantCredits(uint(userID), count, models.CreditSourceGrant, ""); err != nil {
		log.Errorf("[Admin] grant credits for %d: %v", userID, err)
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "credit grant failed",
		}).Redirect("/admin/users")
	}

	return flash.WithSuccess(c, fiber.Map{
		"type":    "success",
		"message": "Credits granted",
	}).Redirect("/admin/users")
}

// HandleAdminExpertQueue lists completed appraisals flagged for expert review.
func HandleAdminExpertQueue(c *fiber.Ctx) error {
	var flagged []models.Appraisal
	if err := database.GetDB().
		Where("status = ? AND requires_expert_review = ?", models.AppraisalStatusCompleted, true).
		Order("created_at ASC").
		Limit(50).
		Find(&flagged).Error; err != nil {
		log.Errorf("[Admin] expert queue: %v", err)
		return c.Status(fiber.StatusInternalServerError).SendString("could not load queue")
	}

	return c.Render("admin/expert_queue", fiber.Map{
		"Layout":     layoutFor(c, "admin-expert-queue"),
		"Csrf":       c.Locals("csrf"),
		"Appraisals": flagged,
	}, "layouts/main")
}

// HandleAdminExpertReview records a manual review verdict on a flagged
// appraisal and moves it to the expert_review state.
func HandleAdminExpertReview(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	notes := c.FormValue("notes")

	repo := repository.GetGlobalFactory().GetAppraisalRepository()
	record, err := repo.GetByUUID(uuid)
	if err != nil {
		return c.Status(fiber.StatusNotFound).SendString("appraisal not found")
	}

	if err := repo.UpdateStatus(record.ID, models.AppraisalStatusCompleted, models.AppraisalStatusExpertReview); err != nil {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "only completed appraisals can enter expert review",
		}).Redirect("/admin/expert-queue")
	}

	entry := &models.ValuationHistory{
		AppraisalID:  record.ID,
		AnalysisType: models.AnalysisTypeExpertReview,
		AnalysisData: models.JSON("{}"),
		PerformedBy:  usercontext.GetName(c),
		Notes:        notes,
	}
	if err := repo.AppendHistory(entry); err != nil {
		log.Errorf("[Admin] expert review history for %d: %v", record.ID, err)
	}

	return flash.WithSuccess(c, fiber.Map{
		"type":    "success",
		"message": "Expert review recorded",
	}).Redirect("/admin/expert-queue")
}
