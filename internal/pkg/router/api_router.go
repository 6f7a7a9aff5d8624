package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/vkarlsson/vardera/app/controllers"
	"github.com/vkarlsson/vardera/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	v1.Post("/valuation", controllers.HandleAPIValuation)
	v1.Post("/appraise", middleware.RequireAPISessionAuth, controllers.HandleAPIAppraise)
	v1.Get("/appraise/:uuid", middleware.RequireAPISessionAuth, controllers.HandleAPIAppraisalStatus)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
