package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/karobarhq/karobar/app/models"
	"github.com/karobarhq/karobar/internal/pkg/metrics"
	"github.com/karobarhq/karobar/internal/pkg/metrics/counter"
	"github.com/karobarhq/karobar/internal/pkg/quota"
	"github.com/karobarhq/karobar/internal/pkg/tenantcontext"
)

// APIQuotaMiddleware enforces the per-plan api_calls quota on API routes.
// The check reads the flushed usage row, the increment goes through the
// batched redis counter, so counts can lag by one flush interval. That slack
// is acceptable for a soft quota.
func APIQuotaMiddleware(quotaSvc *quota.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tc := tenantcontext.Get(c)
		if !tc.IsLoggedIn {
			return c.Next()
		}

		org := &models.Organization{ID: tc.OrgID, Plan: tc.Plan}
		ok, reason, err := quotaSvc.CanAdd(org, models.FeatureAPICalls)
		if err != nil {
			// Fail closed: a broken quota store must not grant free calls.
			log.Errorf("api quota check for org %d failed: %v", tc.OrgID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "Quota check failed",
			})
		}
		if !ok {
			metrics.QuotaDenials.WithLabelValues(models.FeatureAPICalls).Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "quota_exceeded",
				"message": reason,
			})
		}

		if err := counter.AddAPICall(tc.OrgID); err != nil {
			log.Warnf("api call count for org %d not recorded: %v", tc.OrgID, err)
		}
		return c.Next()
	}
}
