package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultSubscription(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sub := NewDefaultSubscription(42, now)

	assert.Equal(t, uint(42), sub.OrganizationID)
	assert.Equal(t, PlanFree, sub.Plan)
	assert.True(t, sub.IsActive)
	assert.True(t, sub.IsTrial)
	require.NotNil(t, sub.TrialEnd)
	assert.Equal(t, now.Add(TrialPeriod), *sub.TrialEnd)
	assert.Nil(t, sub.EndDate)
}

func TestSubscriptionInTrial(t *testing.T) {
	now := time.Now()
	sub := NewDefaultSubscription(1, now)

	assert.True(t, sub.InTrial(now.Add(time.Hour)))
	assert.False(t, sub.InTrial(now.Add(TrialPeriod+time.Minute)))

	sub.IsActive = false
	assert.False(t, sub.InTrial(now))
}

func TestSubscriptionPaidPeriodExpired(t *testing.T) {
	now := time.Now()
	yesterday := now.Add(-24 * time.Hour)

	sub := &Subscription{Plan: PlanPro, EndDate: &yesterday}
	assert.True(t, sub.PaidPeriodExpired(now))

	free := &Subscription{Plan: PlanFree, EndDate: &yesterday}
	assert.False(t, free.PaidPeriodExpired(now))

	open := &Subscription{Plan: PlanPro}
	assert.False(t, open.PaidPeriodExpired(now))
}

func TestSubscriptionTrialExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&Subscription{IsTrial: true, TrialEnd: &past}).TrialExpired(now))
	assert.False(t, (&Subscription{IsTrial: true, TrialEnd: &future}).TrialExpired(now))
	assert.False(t, (&Subscription{IsTrial: false, TrialEnd: &past}).TrialExpired(now))
}

func TestValidPlan(t *testing.T) {
	for _, plan := range []string{PlanFree, PlanBasic, PlanPro} {
		assert.True(t, ValidPlan(plan))
	}
	assert.False(t, ValidPlan("GOLD"))
	assert.False(t, ValidPlan("pro"))
	assert.False(t, ValidPlan(""))
}
