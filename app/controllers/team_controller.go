package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/karobarhq/karobar/app/models"
	"github.com/karobarhq/karobar/internal/pkg/database"
	"github.com/karobarhq/karobar/internal/pkg/metrics"
	"github.com/karobarhq/karobar/internal/pkg/quota"
	"github.com/karobarhq/karobar/internal/pkg/rbac"
	"github.com/karobarhq/karobar/internal/pkg/tenantcontext"
)

// HandleListTeam returns the members of the active organization.
func HandleListTeam(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	var members []models.OrganizationMember
	if err := db.Where("organization_id = ?", tc.OrgID).Find(&members).Error; err != nil {
		return jsonInternalError(c, "Failed to load members")
	}

	out := make([]fiber.Map, 0, len(members))
	for _, m := range members {
		var user models.User
		if err := db.First(&user, m.UserID).Error; err != nil {
			continue
		}
		out = append(out, fiber.Map{
			"user_id":   m.UserID,
			"full_name": user.FullName,
			"email":     user.Email,
			"role":      m.Role,
			"joined_at": m.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{"members": out})
}

// HandleAddTeamMember invites a user into the active organization. Only
// OWNER and ADMIN may add members, and the team_members quota applies. A
// user unknown to the system is created with the given credentials; an
// existing user just gains a membership.
func HandleAddTeamMember(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)

	if ok, reason := rbac.Allow(tc.Role, rbac.OpMemberAdd); !ok {
		return jsonError(c, fiber.StatusForbidden, "forbidden", reason)
	}

	var req struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}

	role := rbac.ParseRole(req.Role)
	if role == rbac.RoleOwner {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "An organization has exactly one OWNER")
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var user models.User
	newUser := false
	err := db.Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if len(req.Password) < 8 {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Password must be at least 8 characters")
		}
		u, err := models.CreateUser(req.FullName, email, req.Password, tc.OrgID, string(role))
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid user data")
		}
		user = *u
		newUser = true
	case err != nil:
		return jsonInternalError(c, "Failed to look up user")
	default:
		if _, err := models.FindMembership(db, user.ID, tc.OrgID); err == nil {
			return jsonError(c, fiber.StatusConflict, "conflict", "User is already a member")
		}
	}

	member := &models.OrganizationMember{
		OrganizationID: tc.OrgID,
		Role:           string(role),
	}

	// Account, membership and counter commit as one unit; a refused quota
	// rolls all three back.
	org := &models.Organization{ID: tc.OrgID, Plan: tc.Plan}
	ok, reason, err := QuotaService().Consume(org, models.FeatureTeamMembers, func(r quota.Repository) error {
		if newUser {
			if err := r.CreateRecord(&user); err != nil {
				return err
			}
		}
		member.UserID = user.ID
		return r.CreateRecord(member)
	})
	if err != nil {
		return jsonInternalError(c, "Failed to add team member")
	}
	if !ok {
		metrics.QuotaDenials.WithLabelValues(models.FeatureTeamMembers).Inc()
		return jsonError(c, fiber.StatusPaymentRequired, "quota_exceeded", reason)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user_id":         user.ID,
		"email":           user.Email,
		"organization_id": tc.OrgID,
		"role":            member.Role,
	})
}

// HandleRemoveTeamMember removes a membership. Self-removal is always
// denied; ADMIN may not remove OWNER or ADMIN members.
func HandleRemoveTeamMember(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)

	targetID, err := c.ParamsInt("userID")
	if err != nil || targetID <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid user id")
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	m, err := models.FindMembership(db, uint(targetID), tc.OrgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Membership not found")
		}
		return jsonInternalError(c, "Failed to load membership")
	}

	self := uint(targetID) == tc.UserID
	if ok, reason := rbac.AllowMemberRemoval(tc.Role, rbac.ParseRole(m.Role), self); !ok {
		return jsonError(c, fiber.StatusForbidden, "forbidden", reason)
	}

	if err := db.Delete(m).Error; err != nil {
		return jsonInternalError(c, "Failed to remove membership")
	}

	return c.JSON(fiber.Map{"message": "member removed"})
}
