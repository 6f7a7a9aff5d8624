package controllers

import (
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/vkarlsson/vardera/internal/pkg/appraisal"
	"github.com/vkarlsson/vardera/internal/pkg/entitlements"
	"github.com/vkarlsson/vardera/internal/pkg/payments"
	"github.com/vkarlsson/vardera/internal/pkg/storage"
	"github.com/vkarlsson/vardera/internal/pkg/usercontext"
	"github.com/vkarlsson/vardera/internal/pkg/viewmodel"
)

const (
	AUTH_KEY       string = "authenticated"
	USER_ID        string = "user_id"
	USER_NAME      string = "user_name"
	USER_IS_ADMIN  string = "isAdmin"
	FROM_PROTECTED string = "from_protected"
)

// Shared service instances, wired once at startup.
var (
	setupOnce        sync.Once
	appraisalService *appraisal.Service
	evaluator        *entitlements.Evaluator
	paymentService   *payments.Service
	blobStore        storage.BlobStore
)

// Initialize wires the controllers to their services. Must run before the
// router serves traffic.
func Initialize(svc *appraisal.Service, eval *entitlements.Evaluator, pay *payments.Service, blobs storage.BlobStore) {
	setupOnce.Do(func() {
		appraisalService = svc
		evaluator = eval
		paymentService = pay
		blobStore = blobs
	})
}

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(FROM_PROTECTED); protectedValue != nil {
		fromProtected = protectedValue.(bool)
	}

	return fromProtected
}

// ExtractUserName gets the display name from Locals (set by middleware)
func ExtractUserName(c *fiber.Ctx) string {
	if userNameValue := c.Locals(USER_NAME); userNameValue != nil {
		if userName, ok := userNameValue.(string); ok {
			return userName
		}
	}

	return ""
}

// layoutFor builds the shared layout view model for a page.
func layoutFor(c *fiber.Ctx, page string) viewmodel.Layout {
	ctx := usercontext.GetUserContext(c)
	return viewmodel.Layout{
		Page:          page,
		FromProtected: ctx.IsLoggedIn,
		Msg:           flash.Get(c),
		Username:      ctx.Name,
		IsAdmin:       ctx.IsAdmin,
		Plan:          ctx.Plan,
	}
}

// GetClientIP determines the actual client IP address considering proxies
func GetClientIP(c *fiber.Ctx) string {
	if cfIP := c.Get("CF-Connecting-IP"); cfIP != "" {
		return cfIP
	}

	if xff := c.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	return c.IP()
}
