// Package quota enforces per-tenant resource ceilings derived from the
// tenant's plan. Limits resolve through the plan_limits table first so
// operators can tune them without a deploy, with a compiled fallback table
// for pairs that have no row.
//
// Consistency level: check-then-increment is not atomic across concurrent
// requests (read committed, no cross-request lock). Two simultaneous
// creates can both pass CanAdd before either increments, so counters may
// overshoot the limit by a small margin. This soft-quota behavior is
// deliberate; do not tighten it without a storage-level conditional update.
package quota

import (
	"errors"
	"fmt"

	"github.com/karobarhq/karobar/app/models"
)

// Limit is the normalized limit value. The two raw representations of
// "no ceiling" (-1 rows, absent constants) both collapse into the unlimited
// variant here and never leak upward.
type Limit struct {
	unlimited bool
	n         int
}

// Limited returns a bounded limit.
func Limited(n int) Limit { return Limit{n: n} }

// Unlimited returns the no-ceiling sentinel.
func Unlimited() Limit { return Limit{unlimited: true} }

// IsUnlimited reports whether the limit has no ceiling.
func (l Limit) IsUnlimited() bool { return l.unlimited }

// Value returns the bounded value; meaningless when IsUnlimited.
func (l Limit) Value() int { return l.n }

// Allows reports whether a counter at current may be incremented.
func (l Limit) Allows(current int) bool {
	return l.unlimited || current < l.n
}

// fallbackLimits mirrors the authoritative defaults seeded into the
// plan_limits table. PRO has no ceilings.
var fallbackLimits = map[string]map[string]Limit{
	models.PlanFree: {
		models.FeatureInvoices:    Limited(10),
		models.FeatureCustomers:   Limited(5),
		models.FeatureTeamMembers: Limited(1),
		models.FeatureAPICalls:    Limited(100),
	},
	models.PlanBasic: {
		models.FeatureInvoices:    Limited(1000),
		models.FeatureCustomers:   Limited(50),
		models.FeatureTeamMembers: Limited(3),
		models.FeatureAPICalls:    Limited(10000),
	},
	models.PlanPro: {
		models.FeatureInvoices:    Unlimited(),
		models.FeatureCustomers:   Unlimited(),
		models.FeatureTeamMembers: Unlimited(),
		models.FeatureAPICalls:    Unlimited(),
	},
}

// ErrUnknownFeature is returned for feature keys outside the known set.
var ErrUnknownFeature = errors.New("unknown quota feature")

// Service resolves limits and performs quota checks against usage counters.
type Service struct {
	repo Repository
}

// NewService creates a quota service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetLimit resolves the effective limit for (plan, feature): plan_limits row
// first, compiled fallback second. Row values of models.UnlimitedLimit
// normalize to the unlimited sentinel.
func (s *Service) GetLimit(plan, feature string) (Limit, error) {
	row, err := s.repo.FindPlanLimit(plan, feature)
	if err == nil {
		if row.Limit == models.UnlimitedLimit {
			return Unlimited(), nil
		}
		return Limited(row.Limit), nil
	}
	if !errors.Is(err, ErrLimitNotFound) {
		return Limit{}, err
	}

	if planTable, ok := fallbackLimits[plan]; ok {
		if l, ok := planTable[feature]; ok {
			return l, nil
		}
	}
	return Limit{}, fmt.Errorf("%w: %s/%s", ErrUnknownFeature, plan, feature)
}

// CanAdd reports whether the tenant may create one more resource of the
// given feature. On refusal the returned reason is suitable for direct use
// in API responses.
func (s *Service) CanAdd(org *models.Organization, feature string) (bool, string, error) {
	limit, err := s.GetLimit(org.Plan, feature)
	if err != nil {
		return false, "", err
	}
	if limit.IsUnlimited() {
		return true, "", nil
	}

	usage, err := s.repo.GetUsage(org.ID)
	if err != nil {
		return false, "", err
	}
	current, err := counterFor(usage, feature)
	if err != nil {
		return false, "", err
	}
	if current < limit.Value() {
		return true, "", nil
	}
	return false, fmt.Sprintf("Reached %s limit (%d). Upgrade your plan.", feature, limit.Value()), nil
}

// Increment re-checks the quota and, if still permitted, increments and
// persists the counter. A false return means the quota is exhausted and the
// caller must treat the operation as refused, not ignore it.
func (s *Service) Increment(org *models.Organization, feature string) (bool, error) {
	ok, _, err := s.CanAdd(org, feature)
	if err != nil || !ok {
		return false, err
	}
	return true, s.bump(org.ID, feature)
}

func (s *Service) bump(orgID uint, feature string) error {
	usage, err := s.repo.GetUsage(orgID)
	if err != nil {
		return err
	}
	switch feature {
	case models.FeatureInvoices:
		usage.InvoicesCreated++
	case models.FeatureCustomers:
		usage.CustomersCreated++
	case models.FeatureTeamMembers:
		usage.TeamMembersAdded++
	case models.FeatureAPICalls:
		usage.APICallsUsed++
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	return s.repo.SaveUsage(usage)
}

// errQuotaExhausted aborts the Consume transaction so fn's writes roll back.
var errQuotaExhausted = errors.New("quota exhausted")

// Consume runs fn and the counter increment as one transaction. When the
// re-check inside the transaction refuses, fn's writes are rolled back and
// Consume returns (false, reason, nil), so two requests racing past an
// earlier CanAdd cannot leave a resource behind without a counter slot.
func (s *Service) Consume(org *models.Organization, feature string, fn func(Repository) error) (bool, string, error) {
	var refusal string
	err := s.repo.WithinTransaction(func(r Repository) error {
		if err := fn(r); err != nil {
			return err
		}
		tx := NewService(r)
		ok, reason, err := tx.CanAdd(org, feature)
		if err != nil {
			return err
		}
		if !ok {
			refusal = reason
			return errQuotaExhausted
		}
		return tx.bump(org.ID, feature)
	})
	if errors.Is(err, errQuotaExhausted) {
		return false, refusal, nil
	}
	if err != nil {
		return false, "", err
	}
	return true, "", nil
}

// Usage returns the raw counters for a tenant.
func (s *Service) Usage(orgID uint) (*models.Usage, error) {
	return s.repo.GetUsage(orgID)
}

// ResetAllAPICalls zeroes api_calls_used for every tenant. Invoked by the
// periodic reset command; cadence is operator-defined and not time-critical.
func (s *Service) ResetAllAPICalls() error {
	return s.repo.ResetAllAPICalls()
}

func counterFor(u *models.Usage, feature string) (int, error) {
	switch feature {
	case models.FeatureInvoices:
		return u.InvoicesCreated, nil
	case models.FeatureCustomers:
		return u.CustomersCreated, nil
	case models.FeatureTeamMembers:
		return u.TeamMembersAdded, nil
	case models.FeatureAPICalls:
		return u.APICallsUsed, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
}
