package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/vkarlsson/vardera/app/controllers"
	"github.com/vkarlsson/vardera/internal/pkg/constants"
	"github.com/vkarlsson/vardera/internal/pkg/env"
	"github.com/vkarlsson/vardera/internal/pkg/middleware"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get(constants.HomeRoute, loggedInMiddleware, controllers.HandleStart)

	group.Get(constants.LoginRoute, loggedInMiddleware, controllers.HandleAuthLogin)
	group.Post(constants.LoginRoute, loggedInMiddleware, controllers.HandleAuthLogin)
	group.Get(constants.RegisterRoute, loggedInMiddleware, controllers.HandleAuthRegister)
	group.Post(constants.RegisterRoute, loggedInMiddleware, controllers.HandleAuthRegister)
	group.Get(constants.ForgotPasswordRoute, loggedInMiddleware, controllers.HandleForgotPassword)
	group.Post(constants.ForgotPasswordRoute, loggedInMiddleware, controllers.HandleForgotPassword)
	group.Get(constants.ResetPasswordRoute, loggedInMiddleware, controllers.HandleResetPassword)
	group.Post(constants.ResetPasswordRoute, loggedInMiddleware, controllers.HandleResetPassword)

	// Appraisal flow. The detail page is reachable without a session when a
	// valid share token is presented.
	group.Get(constants.AppraiseRoute, loggedInMiddleware, controllers.HandleAppraiseNew)
	group.Post(constants.AppraiseRoute, middleware.RequireAuth, controllers.HandleAppraiseSubmit)
	group.Get(constants.AppraiseRoute+"/:uuid", loggedInMiddleware, controllers.HandleAppraiseDetail)
	group.Post(constants.AppraiseRoute+"/:uuid/reanalyze", middleware.RequireAuth, controllers.HandleAppraiseReanalyze)

	// User area
	group.Get(constants.DashboardRoute, middleware.RequireAuth, controllers.HandleUserDashboard)
}
