package billing

import (
	"strings"

	"github.com/karobarhq/karobar/app/models"
)

// PlanPrices is the price table in NPR. FREE costs nothing; requesting it
// is a downgrade, never a payment.
var PlanPrices = map[string]int{
	models.PlanFree:  0,
	models.PlanBasic: 2500,
	models.PlanPro:   3900,
}

// NormalizePlan upper-cases and trims a client-supplied plan code.
func NormalizePlan(plan string) string {
	return strings.ToUpper(strings.TrimSpace(plan))
}

// NormalizeProvider upper-cases and trims a client-supplied provider code.
func NormalizeProvider(provider string) string {
	return strings.ToUpper(strings.TrimSpace(provider))
}

// PriceFor resolves the price of a plan, rejecting unknown codes.
func PriceFor(plan string) (int, error) {
	price, ok := PlanPrices[plan]
	if !ok {
		return 0, ErrInvalidPlan
	}
	return price, nil
}
