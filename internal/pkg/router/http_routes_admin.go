package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vkarlsson/vardera/app/controllers"
	"github.com/vkarlsson/vardera/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/", controllers.HandleAdminDashboard)

	// User management
	adminGroup.Get("/users", controllers.HandleAdminUsers)
	adminGroup.Post("/users/update-plan/:id", controllers.HandleAdminUserUpdatePlan)
	adminGroup.Post("/users/grant-credits/:id", controllers.HandleAdminUserGrantCredits)

	// Expert review queue
	adminGroup.Get("/expert-queue", controllers.HandleAdminExpertQueue)
	adminGroup.Post("/expert-queue/:uuid/review", controllers.HandleAdminExpertReview)
}
