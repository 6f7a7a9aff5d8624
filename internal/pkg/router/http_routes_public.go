package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/vkarlsson/vardera/app/controllers"
	"github.com/vkarlsson/vardera/internal/pkg/constants"
	"github.com/vkarlsson/vardera/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Static marketing pages
	app.Get("/about", loggedInMiddleware, controllers.HandleAbout)
	app.Get(constants.PricingRoute, loggedInMiddleware, controllers.HandlePricing)
	app.Get("/contact", loggedInMiddleware, controllers.HandleContact)
	app.Get("/privacy", loggedInMiddleware, controllers.HandlePrivacy)

	// Quick estimate tool
	app.Get("/tools/photo-valuation", loggedInMiddleware, controllers.HandlePhotoValuationTool)

	// Account activation via mailed link
	app.Get("/activate", loggedInMiddleware, controllers.HandleActivate)

	// Auth
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Social OAuth
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)

	// Payment provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/payments", controllers.HandlePaymentWebhook)
}
