package tenantcontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/karobarhq/karobar/internal/pkg/rbac"
)

// TenantContext is the resolved identity of a request: who the user is,
// which organization the request acts on, the role the user holds there and
// the plan the organization is currently entitled to.
type TenantContext struct {
	UserID     uint      `json:"user_id"`
	Email      string    `json:"email"`
	OrgID      uint      `json:"organization_id"`
	OrgName    string    `json:"organization_name"`
	Role       rbac.Role `json:"role"`
	Plan       string    `json:"plan"`
	IsLoggedIn bool      `json:"is_logged_in"`
}

// Get retrieves the tenant context from the fiber context.
// Returns an anonymous context if none is set.
func Get(c *fiber.Ctx) TenantContext {
	if ctx := c.Locals(KeyContext); ctx != nil {
		return ctx.(TenantContext)
	}
	return TenantContext{IsLoggedIn: false, Role: rbac.RoleStaff}
}

// Set stores the tenant context on the fiber context for downstream
// handlers.
func Set(c *fiber.Ctx, tc TenantContext) {
	c.Locals(KeyContext, tc)
}

// IsLoggedIn checks if the current request carries an authenticated user.
func IsLoggedIn(c *fiber.Ctx) bool {
	return Get(c).IsLoggedIn
}

// GetUserID returns the current user's ID, or 0 if not logged in.
func GetUserID(c *fiber.Ctx) uint {
	return Get(c).UserID
}

// GetOrgID returns the organization the request acts on, or 0.
func GetOrgID(c *fiber.Ctx) uint {
	return Get(c).OrgID
}

// GetRole returns the role the user holds in the current organization.
func GetRole(c *fiber.Ctx) rbac.Role {
	return Get(c).Role
}
