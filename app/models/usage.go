package models

import "time"

// Usage holds the per-tenant counters consulted by quota checks. Counters
// only ever increase, except APICallsUsed which is reset on plan activation
// and by the periodic reset command.
type Usage struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OrganizationID   uint      `gorm:"not null;uniqueIndex" json:"organization_id"`
	InvoicesCreated  int       `gorm:"not null;default:0" json:"invoices_created"`
	CustomersCreated int       `gorm:"not null;default:0" json:"customers_created"`
	TeamMembersAdded int       `gorm:"not null;default:0" json:"team_members_added"`
	APICallsUsed     int       `gorm:"not null;default:0" json:"api_calls_used"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewUsage builds the zeroed usage row created alongside a tenant.
func NewUsage(orgID uint) *Usage {
	return &Usage{OrganizationID: orgID}
}
