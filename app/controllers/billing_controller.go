package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/karobarhq/karobar/app/models"
	"github.com/karobarhq/karobar/internal/pkg/billing"
	"github.com/karobarhq/karobar/internal/pkg/constants"
	"github.com/karobarhq/karobar/internal/pkg/quota"
	"github.com/karobarhq/karobar/internal/pkg/rbac"
	"github.com/karobarhq/karobar/internal/pkg/tenantcontext"
)

// HandleGetPricing returns the public plan catalogue with prices and limits.
func HandleGetPricing(c *fiber.Ctx) error {
	plans := make([]fiber.Map, 0, len(billing.PlanPrices))
	for _, plan := range []string{models.PlanFree, models.PlanBasic, models.PlanPro} {
		limits := fiber.Map{}
		for _, feature := range []string{
			models.FeatureInvoices,
			models.FeatureCustomers,
			models.FeatureTeamMembers,
			models.FeatureAPICalls,
		} {
			limit, err := QuotaService().GetLimit(plan, feature)
			if err != nil {
				continue
			}
			if limit.IsUnlimited() {
				limits[feature] = "unlimited"
			} else {
				limits[feature] = limit.Value()
			}
		}
		plans = append(plans, fiber.Map{
			"plan":      plan,
			"price_npr": billing.PlanPrices[plan],
			"limits":    limits,
		})
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// HandleGetSubscription returns the tenant's subscription after a lazy
// expiry check.
func HandleGetSubscription(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)

	sub, err := BillingService().CheckExpiry(tc.OrgID)
	if err != nil {
		return jsonInternalError(c, "Failed to load subscription")
	}

	return c.JSON(fiber.Map{
		"organization_id": sub.OrganizationID,
		"plan":            sub.Plan,
		"is_active":       sub.IsActive,
		"is_trial":        sub.IsTrial,
		"start_date":      sub.StartDate,
		"end_date":        sub.EndDate,
		"trial_end":       sub.TrialEnd,
	})
}

// HandleUpgradePlan requests a plan change for the tenant. Trial switches
// and FREE downgrades apply immediately; paid plans answer with a payment
// intent the client completes at the provider's checkout.
func HandleUpgradePlan(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)
	if rbac.Rank(tc.Role) < rbac.Rank(rbac.RoleAdmin) {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Only OWNER or ADMIN may change the plan")
	}

	var req struct {
		Plan     string `json:"plan"`
		Provider string `json:"provider"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}

	res, err := BillingService().UpgradePlan(c.Context(), tc.OrgID, req.Plan, req.Provider)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidPlan):
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Unknown plan")
		case errors.Is(err, billing.ErrInvalidProvider):
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Unknown payment provider")
		}
		return jsonInternalError(c, "Plan change failed")
	}

	if res.Applied {
		return c.JSON(fiber.Map{
			"status": "applied",
			"plan":   res.Plan,
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":         "payment_required",
		"plan":           res.Intent.Plan,
		"provider":       res.Intent.Provider,
		"amount":         res.Intent.Amount,
		"transaction_id": res.Intent.TransactionID,
		"redirect_url":   res.Intent.RedirectURL,
		"payload":        res.Intent.Payload,
	})
}

// HandleVerifyPayment settles a payment attempt from an API client. The
// response status mirrors the outcome: 200 on success, 202 while the
// provider answer is inconclusive, 402 on a terminal failure.
func HandleVerifyPayment(c *fiber.Ctx) error {
	var req struct {
		TransactionID string `json:"transaction_id"`
		ReferenceID   string `json:"reference_id"`
		Amount        int    `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil || req.TransactionID == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "transaction_id is required")
	}

	outcome, err := BillingService().VerifyAndActivate(c.Context(), req.TransactionID, req.ReferenceID, req.Amount)
	if err != nil {
		if errors.Is(err, billing.ErrTransactionNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Transaction not found")
		}
		return jsonInternalError(c, "Verification failed")
	}
	return writeOutcome(c, outcome)
}

// HandleEsewaSuccess is the browser return URL after an eSewa checkout.
// eSewa appends oid (our transaction id), refId and amt to the query.
func HandleEsewaSuccess(c *fiber.Ctx) error {
	transactionID := c.Query("oid")
	referenceID := c.Query("refId")
	amount := 0
	if amt := c.Query("amt"); amt != "" {
		if f, err := strconv.ParseFloat(amt, 64); err == nil {
			amount = int(f)
		}
	}

	if transactionID == "" {
		fm := fiber.Map{"type": "error", "message": "Payment reference missing."}
		return flash.WithError(c, fm).Redirect(constants.BillingRoute)
	}

	outcome, err := BillingService().VerifyAndActivate(c.Context(), transactionID, referenceID, amount)
	if err != nil {
		fm := fiber.Map{"type": "error", "message": "Payment could not be verified."}
		return flash.WithError(c, fm).Redirect(constants.BillingRoute)
	}

	switch outcome {
	case billing.OutcomeSuccess:
		fm := fiber.Map{"type": "success", "message": "Payment confirmed. Your plan is active."}
		return flash.WithSuccess(c, fm).Redirect(constants.BillingRoute)
	case billing.OutcomePending:
		fm := fiber.Map{"type": "info", "message": "Payment is being confirmed. Check back shortly."}
		return flash.WithInfo(c, fm).Redirect(constants.BillingRoute)
	default:
		fm := fiber.Map{"type": "error", "message": "Payment was not accepted."}
		return flash.WithError(c, fm).Redirect(constants.BillingRoute)
	}
}

// HandleEsewaFailure is the browser return URL when the user cancels or the
// checkout fails. The transaction stays PENDING; verification remains
// possible if money actually moved.
func HandleEsewaFailure(c *fiber.Ctx) error {
	fm := fiber.Map{"type": "error", "message": "Payment was cancelled."}
	return flash.WithError(c, fm).Redirect(constants.BillingRoute)
}

// HandleKhaltiCallback settles a Khalti widget payment. The widget posts the
// token and our transaction id after the user completes the checkout.
func HandleKhaltiCallback(c *fiber.Ctx) error {
	var req struct {
		TransactionID string `json:"transaction_id"`
		Token         string `json:"token"`
		Amount        int    `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil || req.TransactionID == "" || req.Token == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "transaction_id and token are required")
	}

	// Khalti reports paisa; the ledger holds NPR.
	amountNPR := req.Amount / 100

	outcome, err := BillingService().VerifyAndActivate(c.Context(), req.TransactionID, req.Token, amountNPR)
	if err != nil {
		if errors.Is(err, billing.ErrTransactionNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Transaction not found")
		}
		return jsonInternalError(c, "Verification failed")
	}
	return writeOutcome(c, outcome)
}

// HandleBillingStatus is the browser landing page after a provider
// redirect: it surfaces the flash message from the callback together with
// the current subscription state.
func HandleBillingStatus(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)

	sub, err := BillingService().CheckExpiry(tc.OrgID)
	if err != nil {
		return jsonInternalError(c, "Failed to load subscription")
	}

	resp := fiber.Map{
		"plan":      sub.Plan,
		"is_active": sub.IsActive,
		"is_trial":  sub.IsTrial,
		"end_date":  sub.EndDate,
	}
	if fm := flash.Get(c); len(fm) > 0 {
		resp["flash"] = fm
	}
	return c.JSON(resp)
}

// HandlePaymentHistory returns the tenant's payment transactions, newest
// first.
func HandlePaymentHistory(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)

	txs, err := BillingService().ListTransactions(tc.OrgID)
	if err != nil {
		return jsonInternalError(c, "Failed to load payment history")
	}
	return c.JSON(fiber.Map{"transactions": txs})
}

// HandleGetQuota reports current usage against the tenant's plan limits.
func HandleGetQuota(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)

	usage, err := QuotaService().Usage(tc.OrgID)
	if err != nil {
		return jsonInternalError(c, "Failed to load usage")
	}

	features := fiber.Map{}
	for feature, used := range map[string]int{
		models.FeatureInvoices:    usage.InvoicesCreated,
		models.FeatureCustomers:   usage.CustomersCreated,
		models.FeatureTeamMembers: usage.TeamMembersAdded,
		models.FeatureAPICalls:    usage.APICallsUsed,
	} {
		limit, err := QuotaService().GetLimit(tc.Plan, feature)
		if err != nil {
			if errors.Is(err, quota.ErrUnknownFeature) {
				continue
			}
			return jsonInternalError(c, "Failed to resolve limits")
		}
		entry := fiber.Map{"used": used}
		if limit.IsUnlimited() {
			entry["limit"] = "unlimited"
		} else {
			entry["limit"] = limit.Value()
		}
		features[feature] = entry
	}

	return c.JSON(fiber.Map{
		"plan":     tc.Plan,
		"features": features,
	})
}

func writeOutcome(c *fiber.Ctx, outcome billing.Outcome) error {
	switch outcome {
	case billing.OutcomeSuccess:
		return c.JSON(fiber.Map{"status": "success"})
	case billing.OutcomePending:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "pending"})
	default:
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"status": "failed"})
	}
}
