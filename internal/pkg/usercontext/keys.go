package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	AuthKey          = "authenticated"
	KeyUserID        = "user_id"
	KeyUserName      = "user_name"
	KeyIsAdmin       = "isAdmin"
	KeyPlan          = "plan"
	KeyFromProtected = "from_protected"
)
