package models

import "time"

// Plan codes are a closed set; anything else is rejected at the API boundary.
const (
	PlanFree  = "FREE"
	PlanBasic = "BASIC"
	PlanPro   = "PRO"
)

// TrialPeriod is the payment-free window granted to every new tenant.
// PaidPeriod is the entitlement window stamped on successful payment.
const (
	TrialPeriod = 7 * 24 * time.Hour
	PaidPeriod  = 30 * 24 * time.Hour
)

// Subscription is the per-tenant plan record, one row per organization.
// It is mutated only by the expiry check, the plan activation transaction
// and explicit downgrade requests.
type Subscription struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OrganizationID uint       `gorm:"not null;uniqueIndex" json:"organization_id"`
	Plan           string     `gorm:"type:varchar(20);not null;default:'FREE'" json:"plan"`
	IsActive       bool       `gorm:"default:true" json:"is_active"`
	IsTrial        bool       `gorm:"default:false" json:"is_trial"`
	StartDate      time.Time  `gorm:"autoCreateTime" json:"start_date"`
	EndDate        *time.Time `gorm:"type:timestamp;default:null" json:"end_date,omitempty"`
	TrialEnd       *time.Time `gorm:"type:timestamp;default:null" json:"trial_end,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewDefaultSubscription builds the subscription every tenant starts with:
// FREE plan, active, with a trial window of TrialPeriod from now.
func NewDefaultSubscription(orgID uint, now time.Time) *Subscription {
	trialEnd := now.Add(TrialPeriod)
	return &Subscription{
		OrganizationID: orgID,
		Plan:           PlanFree,
		IsActive:       true,
		IsTrial:        true,
		StartDate:      now,
		TrialEnd:       &trialEnd,
	}
}

// InTrial reports whether the tenant is inside an active trial window.
// During the trial any plan may be selected without payment.
func (s *Subscription) InTrial(now time.Time) bool {
	return s.IsTrial && s.IsActive && s.TrialEnd != nil && s.TrialEnd.After(now)
}

// PaidPeriodExpired reports whether a paid plan's entitlement window has
// lapsed. FREE never expires.
func (s *Subscription) PaidPeriodExpired(now time.Time) bool {
	return s.Plan != PlanFree && s.EndDate != nil && s.EndDate.Before(now)
}

// TrialExpired reports whether the trial window has lapsed.
func (s *Subscription) TrialExpired(now time.Time) bool {
	return s.IsTrial && s.TrialEnd != nil && s.TrialEnd.Before(now)
}

// ValidPlan reports whether the plan code belongs to the closed set.
func ValidPlan(plan string) bool {
	switch plan {
	case PlanFree, PlanBasic, PlanPro:
		return true
	}
	return false
}
