package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/karobarhq/karobar/app/models"
	"github.com/karobarhq/karobar/internal/pkg/billing"
	"github.com/karobarhq/karobar/internal/pkg/database"
	"github.com/karobarhq/karobar/internal/pkg/rbac"
	"github.com/karobarhq/karobar/internal/pkg/session"
	"github.com/karobarhq/karobar/internal/pkg/tenantcontext"
)

// TenantContextMiddleware resolves the full tenant context for every request:
// session user, active organization, membership role and current plan. The
// subscription expiry check runs here, so a lapsed plan is downgraded before
// any handler sees the context. Role resolution fails closed: a user with no
// readable membership row and no cached role acts as STAFF.
func TenantContextMiddleware(billingSvc *billing.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		anonymous := func() error {
			tenantcontext.Set(c, tenantcontext.TenantContext{
				IsLoggedIn: false,
				Role:       rbac.RoleStaff,
			})
			return c.Next()
		}

		sess, err := session.GetSessionStore().Get(c)
		if err != nil {
			return anonymous()
		}

		rawUserID := sess.Get(tenantcontext.KeyUserID)
		userID, ok := rawUserID.(uint)
		if !ok || userID == 0 {
			return anonymous()
		}

		db := database.GetDB()
		if db == nil {
			return anonymous()
		}

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			return anonymous()
		}
		if !user.IsActive() {
			return anonymous()
		}

		orgID := user.OrganizationID
		org, err := models.FindOrganizationByID(db, orgID)
		if err != nil {
			return anonymous()
		}

		// Lapsed subscriptions downgrade on the request that observes them.
		plan := org.Plan
		if sub, err := billingSvc.CheckExpiry(orgID); err == nil {
			plan = sub.Plan
		} else {
			log.Warnf("expiry check for org %d failed: %v", orgID, err)
		}

		role := rbac.ParseRole(user.Role)
		if m, err := models.FindMembership(db, userID, orgID); err == nil {
			role = rbac.ParseRole(m.Role)
		}

		tenantcontext.Set(c, tenantcontext.TenantContext{
			UserID:     userID,
			Email:      user.Email,
			OrgID:      orgID,
			OrgName:    org.Name,
			Role:       role,
			Plan:       plan,
			IsLoggedIn: true,
		})
		c.Locals(tenantcontext.AuthKey, true)

		return c.Next()
	}
}
