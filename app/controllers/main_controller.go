package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vkarlsson/vardera/internal/pkg/entitlements"
	"github.com/vkarlsson/vardera/internal/pkg/statistics"
	"github.com/vkarlsson/vardera/internal/pkg/viewmodel"
)

// HandleStart renders the landing page with live numbers.
func HandleStart(c *fiber.Ctx) error {
	stats := statistics.GetStatisticsData()

	layout := layoutFor(c, "home")
	layout.OGViewModel = &viewmodel.OpenGraph{
		Title:       "Vardera - AI appraisals for collectibles",
		Description: "Upload photos of your collectible and get an AI valuation in seconds.",
		URL:         "/",
	}

	return c.Render("main/index", fiber.Map{
		"Layout":          layout,
		"TotalAppraisals": stats.TotalAppraisals,
		"TodayAppraisals": stats.TodayAppraisals,
		"TotalUsers":      stats.TotalUsers,
	}, "layouts/main")
}

// HandlePricing renders the plan comparison page.
func HandlePricing(c *fiber.Ctx) error {
	return c.Render("main/pricing", fiber.Map{
		"Layout":       layoutFor(c, "pricing"),
		"FreeLimit":    entitlements.MonthlyAllowance(entitlements.PlanFree),
		"PremiumLimit": entitlements.MonthlyAllowance(entitlements.PlanPremium),
	}, "layouts/main")
}

// HandleAbout renders the static about page.
func HandleAbout(c *fiber.Ctx) error {
	return c.Render("main/about", fiber.Map{
		"Layout": layoutFor(c, "about"),
	}, "layouts/main")
}

// HandlePhotoValuationTool renders the quick estimate tool. The tool posts to
// the mock valuation API and renders the result client-side.
func HandlePhotoValuationTool(c *fiber.Ctx) error {
	return c.Render("main/photo_valuation", fiber.Map{
		"Layout": layoutFor(c, "photo-valuation"),
		"Csrf":   c.Locals("csrf"),
	}, "layouts/main")
}

// HandleContact renders the static contact page.
func HandleContact(c *fiber.Ctx) error {
	return c.Render("main/contact", fiber.Map{
		"Layout": layoutFor(c, "contact"),
	}, "layouts/main")
}

// HandlePrivacy renders the privacy policy.
func HandlePrivacy(c *fiber.Ctx) error {
	return c.Render("main/privacy", fiber.Map{
		"Layout": layoutFor(c, "privacy"),
	}, "layouts/main")
}
