package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/karobarhq/karobar/app/models"
	"github.com/karobarhq/karobar/internal/pkg/database"
	"github.com/karobarhq/karobar/internal/pkg/tenantcontext"
)

// HandleGetAccount returns the authenticated user's profile together with
// the active organization, role, plan and current usage.
func HandleGetAccount(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	var user models.User
	if err := db.First(&user, tc.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return jsonInternalError(c, "Failed to load user")
	}

	usage, err := QuotaService().Usage(tc.OrgID)
	if err != nil {
		return jsonInternalError(c, "Failed to load usage")
	}

	return c.JSON(fiber.Map{
		"id":            user.ID,
		"full_name":     user.FullName,
		"email":         user.Email,
		"status":        user.Status,
		"role":          string(tc.Role),
		"created_at":    user.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at": formatTimePtr(user.LastLoginAt),
		"organization": fiber.Map{
			"id":   tc.OrgID,
			"name": tc.OrgName,
			"plan": tc.Plan,
		},
		"usage": fiber.Map{
			"invoices_created":   usage.InvoicesCreated,
			"customers_created":  usage.CustomersCreated,
			"team_members_added": usage.TeamMembersAdded,
			"api_calls_used":     usage.APICallsUsed,
		},
	})
}

// HandleListOrganizations returns every organization the user belongs to.
func HandleListOrganizations(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	memberships, err := models.ListMemberships(db, tc.UserID)
	if err != nil {
		return jsonInternalError(c, "Failed to load memberships")
	}

	out := make([]fiber.Map, 0, len(memberships))
	for _, m := range memberships {
		org, err := models.FindOrganizationByID(db, m.OrganizationID)
		if err != nil {
			continue
		}
		out = append(out, fiber.Map{
			"id":     org.ID,
			"name":   org.Name,
			"plan":   org.Plan,
			"role":   m.Role,
			"active": org.ID == tc.OrgID,
		})
	}

	return c.JSON(fiber.Map{"organizations": out})
}

// HandleSwitchOrganization changes the user's active organization. The user
// must hold a membership in the target organization; role and primary tenant
// are synced from the membership row.
func HandleSwitchOrganization(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)

	var req struct {
		OrganizationID uint `json:"organization_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.OrganizationID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "organization_id is required")
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	m, err := models.FindMembership(db, tc.UserID, req.OrganizationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusForbidden, "forbidden", "You are not a member of this organization")
		}
		return jsonInternalError(c, "Failed to load membership")
	}

	var user models.User
	if err := db.First(&user, tc.UserID).Error; err != nil {
		return jsonInternalError(c, "Failed to load user")
	}

	if err := models.SetPrimaryOrganization(db, &user, m); err != nil {
		return jsonInternalError(c, "Failed to switch organization")
	}

	return c.JSON(fiber.Map{
		"organization_id": m.OrganizationID,
		"role":            m.Role,
	})
}
