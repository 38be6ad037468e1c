package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/karobarhq/karobar/internal/pkg/constants"
	"github.com/karobarhq/karobar/internal/pkg/rbac"
	"github.com/karobarhq/karobar/internal/pkg/tenantcontext"
)

// RequireAuth ensures a logged-in web session; redirects to /login if missing.
func RequireAuth(c *fiber.Ctx) error {
	if !tenantcontext.IsLoggedIn(c) {
		return c.Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAPISessionAuth ensures a logged-in session for API routes and
// returns JSON 401 instead of a redirect.
func RequireAPISessionAuth(c *fiber.Ctx) error {
	if !tenantcontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RequireOperation gates a route on the RBAC policy table for the caller's
// role in the active organization.
func RequireOperation(op rbac.Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tc := tenantcontext.Get(c)
		if !tc.IsLoggedIn {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "login required",
			})
		}
		if ok, reason := rbac.Allow(tc.Role, op); !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": reason,
			})
		}
		return c.Next()
	}
}
