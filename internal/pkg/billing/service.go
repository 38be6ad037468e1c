package billing

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/karobarhq/karobar/app/models"
	"github.com/karobarhq/karobar/internal/pkg/metrics"
)

// Service owns the subscription state machine and the payment transaction
// ledger: plan upgrades, gateway verification, plan activation and lazy
// expiry all go through here.
type Service struct {
	repo     Repository
	gateways map[string]Gateway
	now      func() time.Time
}

// NewService creates a billing service from an injected repository and
// gateway set.
func NewService(repo Repository, gateways ...Gateway) *Service {
	m := make(map[string]Gateway, len(gateways))
	for _, g := range gateways {
		m[g.Provider()] = g
	}
	return &Service{repo: repo, gateways: m, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle with the
// eSewa and Khalti gateways configured from the environment.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), NewESewaClientFromEnv(), NewKhaltiClientFromEnv())
}

// UpgradePlan handles a plan-change request for a tenant.
//
// Inside an active trial any plan applies immediately and payment-free.
// Downgrades to FREE are always immediate. Paid plans create an independent
// PENDING transaction per call; repeated initiations deliberately do not
// dedupe in-flight intents, each callback settles its own transaction id.
func (s *Service) UpgradePlan(ctx context.Context, orgID uint, plan, provider string) (*UpgradeResult, error) {
	_ = ctx
	plan = NormalizePlan(plan)
	if !models.ValidPlan(plan) {
		return nil, ErrInvalidPlan
	}
	price, err := PriceFor(plan)
	if err != nil {
		return nil, err
	}

	org, err := s.repo.GetOrganization(orgID)
	if err != nil {
		return nil, err
	}
	sub, err := s.repo.GetSubscriptionByOrg(orgID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if sub.InTrial(now) {
		if err := s.applyPlan(sub, org, plan); err != nil {
			return nil, err
		}
		return &UpgradeResult{Applied: true, Plan: plan}, nil
	}

	if plan == models.PlanFree || price == 0 {
		sub.IsActive = true
		sub.EndDate = nil
		if err := s.applyPlan(sub, org, models.PlanFree); err != nil {
			return nil, err
		}
		return &UpgradeResult{Applied: true, Plan: models.PlanFree}, nil
	}

	provider = NormalizeProvider(provider)
	gateway, ok := s.gateways[provider]
	if !ok {
		return nil, ErrInvalidProvider
	}

	tx := &models.PaymentTransaction{
		OrganizationID: orgID,
		Plan:           plan,
		Provider:       provider,
		Amount:         price,
		Status:         models.PaymentStatusPending,
		TransactionID:  uuid.NewString(),
	}
	if err := s.repo.CreateTransaction(tx); err != nil {
		return nil, err
	}

	redirectURL, payload := gateway.InitiatePayload(tx.TransactionID, plan, price)
	return &UpgradeResult{
		Plan: plan,
		Intent: &PaymentIntent{
			TransactionID: tx.TransactionID,
			Plan:          plan,
			Provider:      provider,
			Amount:        price,
			RedirectURL:   redirectURL,
			Payload:       payload,
		},
	}, nil
}

// VerifyAndActivate resolves a payment attempt. Terminal transactions are
// answered idempotently without side effects. For PENDING transactions the
// gateway is consulted: transient failures leave the row PENDING, explicit
// rejections and amount mismatches flip it to FAILED, and a confirmed
// payment commits status, reference id, subscription promotion, the
// organization plan mirror and the api-call reset as one unit.
func (s *Service) VerifyAndActivate(ctx context.Context, transactionID, referenceID string, observedAmount int) (Outcome, error) {
	tx, err := s.repo.GetTransactionByTransactionID(transactionID)
	if err != nil {
		return "", err
	}

	switch tx.Status {
	case models.PaymentStatusSuccess:
		return OutcomeSuccess, nil
	case models.PaymentStatusFailed:
		return OutcomeFailed, nil
	}

	if observedAmount > 0 && observedAmount != tx.Amount {
		log.Warnf("payment %s amount mismatch at callback: ledger=%d observed=%d",
			tx.TransactionID, tx.Amount, observedAmount)
		return s.failTransaction(tx, referenceID)
	}

	gateway, ok := s.gateways[tx.Provider]
	if !ok {
		return "", ErrInvalidProvider
	}

	result := gateway.Verify(ctx, tx.TransactionID, tx.Amount, referenceID)
	if !result.OK {
		if IsTransient(result.Message) {
			log.Warnf("payment %s verification deferred: %s", tx.TransactionID, result.Message)
			metrics.PaymentVerifications.WithLabelValues(tx.Provider, string(OutcomePending)).Inc()
			return OutcomePending, nil
		}
		log.Infof("payment %s rejected: %s", tx.TransactionID, result.Message)
		return s.failTransaction(tx, referenceID)
	}

	err = s.repo.WithinTransaction(func(r Repository) error {
		tx.Status = models.PaymentStatusSuccess
		tx.ReferenceID = referenceID
		if err := r.SaveTransaction(tx); err != nil {
			return err
		}
		return s.activatePlan(r, tx)
	})
	if err != nil {
		return "", err
	}

	metrics.PaymentVerifications.WithLabelValues(tx.Provider, string(OutcomeSuccess)).Inc()
	metrics.PlanActivations.WithLabelValues(tx.Plan).Inc()
	return OutcomeSuccess, nil
}

// CheckExpiry lazily resolves stale subscriptions: a paid plan past its end
// date or a lapsed trial downgrades to FREE, with the organization mirror
// updated in the same transaction. Nothing is written when nothing changed.
func (s *Service) CheckExpiry(orgID uint) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByOrg(orgID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	changed := false

	if sub.PaidPeriodExpired(now) {
		sub.Plan = models.PlanFree
		sub.IsActive = false
		changed = true
	}
	if sub.TrialExpired(now) {
		sub.IsTrial = false
		if sub.Plan != models.PlanFree {
			sub.Plan = models.PlanFree
			sub.IsActive = false
		}
		changed = true
	}

	if !changed {
		return sub, nil
	}

	err = s.repo.WithinTransaction(func(r Repository) error {
		if err := r.SaveSubscription(sub); err != nil {
			return err
		}
		return s.mirrorPlan(r, sub.OrganizationID, sub.Plan)
	})
	if err != nil {
		return nil, err
	}
	metrics.SubscriptionDowngrades.Inc()
	return sub, nil
}

// ListTransactions returns the tenant's payment history, newest first.
func (s *Service) ListTransactions(orgID uint) ([]models.PaymentTransaction, error) {
	return s.repo.ListTransactionsByOrg(orgID)
}

// applyPlan writes an immediate (payment-free) plan switch and its mirror.
func (s *Service) applyPlan(sub *models.Subscription, org *models.Organization, plan string) error {
	return s.repo.WithinTransaction(func(r Repository) error {
		sub.Plan = plan
		if err := r.SaveSubscription(sub); err != nil {
			return err
		}
		org.Plan = plan
		return r.SaveOrganization(org)
	})
}

// activatePlan promotes the subscription for a verified payment: 30-day
// entitlement window, trial cleared, organization mirror updated and
// api_calls_used reset. Runs inside the caller's transaction.
func (s *Service) activatePlan(r Repository, tx *models.PaymentTransaction) error {
	sub, err := r.GetSubscriptionByOrg(tx.OrganizationID)
	if err != nil {
		return err
	}

	now := s.now()
	end := now.Add(models.PaidPeriod)
	sub.Plan = tx.Plan
	sub.IsActive = true
	sub.IsTrial = false
	sub.StartDate = now
	sub.EndDate = &end
	if err := r.SaveSubscription(sub); err != nil {
		return err
	}

	if err := s.mirrorPlan(r, tx.OrganizationID, tx.Plan); err != nil {
		return err
	}
	return r.ResetAPICallUsage(tx.OrganizationID)
}

func (s *Service) mirrorPlan(r Repository, orgID uint, plan string) error {
	org, err := r.GetOrganization(orgID)
	if err != nil {
		return err
	}
	org.Plan = plan
	return r.SaveOrganization(org)
}

func (s *Service) failTransaction(tx *models.PaymentTransaction, referenceID string) (Outcome, error) {
	tx.Status = models.PaymentStatusFailed
	tx.ReferenceID = referenceID
	if err := s.repo.SaveTransaction(tx); err != nil {
		return "", err
	}
	metrics.PaymentVerifications.WithLabelValues(tx.Provider, string(OutcomeFailed)).Inc()
	return OutcomeFailed, nil
}
