package constants

// Static route constants
const (
	HomeRoute           = "/"
	AppraiseRoute       = "/appraise"
	DashboardRoute      = "/dashboard"
	PricingRoute        = "/pricing"
	LoginRoute          = "/login"
	RegisterRoute       = "/register"
	ForgotPasswordRoute = "/forgot-password"
	ResetPasswordRoute  = "/reset-password"
)
