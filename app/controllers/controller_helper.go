package controllers

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/karobarhq/karobar/internal/pkg/billing"
	"github.com/karobarhq/karobar/internal/pkg/database"
	"github.com/karobarhq/karobar/internal/pkg/quota"
)

// Session keys shared with the tenant context middleware.
const (
	AUTH_KEY string = "authenticated"
	USER_ID  string = "user_id"
)

var (
	billingOnce sync.Once
	billingSvc  *billing.Service

	quotaOnce sync.Once
	quotaSvc  *quota.Service
)

// BillingService returns the process-wide billing service, built lazily from
// the shared database handle.
func BillingService() *billing.Service {
	billingOnce.Do(func() {
		billingSvc = billing.NewServiceFromDB(database.GetDB())
	})
	return billingSvc
}

// QuotaService returns the process-wide quota service.
func QuotaService() *quota.Service {
	quotaOnce.Do(func() {
		quotaSvc = quota.NewService(quota.NewRepository(database.GetDB()))
	})
	return quotaSvc
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func jsonInternalError(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", message)
}

// isDuplicateKey reports whether err is a unique-index violation. The MySQL
// error text is checked alongside the GORM sentinel because error
// translation is not enabled on the shared handle.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "Duplicate entry")
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
