package models

import "time"

// UnlimitedLimit is the row-level sentinel for "no ceiling".
const UnlimitedLimit = -1

// Quota feature keys. The same keys appear in PlanLimit rows and in the
// compiled fallback table inside internal/pkg/quota.
const (
	FeatureInvoices    = "invoices"
	FeatureCustomers   = "customers"
	FeatureTeamMembers = "team_members"
	FeatureAPICalls    = "api_calls"
)

// PlanLimit is the operator-tunable limit table: (plan, feature) -> limit.
// A value of UnlimitedLimit means no ceiling. When no row exists for a
// pair, the quota package falls back to its compiled constant table.
type PlanLimit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Plan      string    `gorm:"type:varchar(20);not null;index:ux_plan_limits_plan_feature,unique,priority:1" json:"plan"`
	Feature   string    `gorm:"type:varchar(50);not null;index:ux_plan_limits_plan_feature,unique,priority:2" json:"feature"`
	Limit     int       `gorm:"column:limit_value;not null;default:0" json:"limit"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
