package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/karobarhq/karobar/app/models"
	"github.com/karobarhq/karobar/internal/pkg/database"
	"github.com/karobarhq/karobar/internal/pkg/rbac"
	"github.com/karobarhq/karobar/internal/pkg/session"
)

type registerRequest struct {
	OrganizationName string `json:"organization_name"`
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleAuthRegister creates a new tenant: the organization with its default
// subscription and usage row, the owner account and the OWNER membership,
// all in one transaction.
func HandleAuthRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if len(req.Password) < 8 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Password must be at least 8 characters")
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	var count int64
	db.Model(&models.User{}).Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).Count(&count)
	if count > 0 {
		return jsonError(c, fiber.StatusConflict, "conflict", "Email already registered")
	}

	org := &models.Organization{
		Name: strings.TrimSpace(req.OrganizationName),
		Slug: slugify(req.OrganizationName),
	}
	var user *models.User

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := models.CreateOrganization(tx, org); err != nil {
			return err
		}

		u, err := models.CreateUser(req.FullName, strings.ToLower(strings.TrimSpace(req.Email)), req.Password, org.ID, string(rbac.RoleOwner))
		if err != nil {
			return err
		}
		if err := tx.Create(u).Error; err != nil {
			return err
		}

		member := &models.OrganizationMember{
			UserID:         u.ID,
			OrganizationID: org.ID,
			Role:           string(rbac.RoleOwner),
		}
		if err := tx.Create(member).Error; err != nil {
			return err
		}

		user = u
		return nil
	})
	if err != nil {
		if isDuplicateKey(err) {
			return jsonError(c, fiber.StatusConflict, "conflict", "Organization name or email is already taken")
		}
		return jsonInternalError(c, "Registration failed")
	}

	if err := startSession(c, user.ID); err != nil {
		return jsonInternalError(c, "Session could not be created")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":              user.ID,
		"email":           user.Email,
		"organization_id": org.ID,
		"role":            user.Role,
		"plan":            org.Plan,
	})
}

// HandleAuthLogin authenticates by email and password and starts a session.
func HandleAuthLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	// notice: in production you should not inform the user
	// with detailed messages about login failures
	var user models.User
	result := db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid credentials")
		}
		return jsonInternalError(c, "Login failed")
	}

	if !user.CheckPassword(req.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid credentials")
	}
	if !user.IsActive() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Account disabled")
	}

	if err := startSession(c, user.ID); err != nil {
		return jsonInternalError(c, "Session could not be created")
	}

	db.Model(&user).Update("last_login_at", time.Now())

	return c.JSON(fiber.Map{
		"id":              user.ID,
		"email":           user.Email,
		"organization_id": user.OrganizationID,
		"role":            user.Role,
	})
}

// HandleAuthLogout destroys the session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		_ = sess.Destroy()
	}
	return c.JSON(fiber.Map{"message": "logged out"})
}

func startSession(c *fiber.Ctx, userID uint) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}
	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, userID)
	return sess.Save()
}

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, s)
	return strings.Trim(s, "-")
}
