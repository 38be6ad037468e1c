package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	InvoiceStatusDraft = "DRAFT"
	InvoiceStatusSent  = "SENT"
	InvoiceStatusPaid  = "PAID"
)

// Invoice is a tenant-scoped invoice. Creating one consumes the "invoices"
// quota; amounts are integers in the smallest currency unit.
type Invoice struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OrganizationID uint           `gorm:"not null;index" json:"organization_id"`
	ClientID       uint           `gorm:"index" json:"client_id"`
	Number         string         `gorm:"type:varchar(50);not null" json:"number"`
	Status         string         `gorm:"type:varchar(20);not null;default:'DRAFT'" json:"status"`
	TotalAmount    int            `gorm:"not null;default:0" json:"total_amount"`
	IssuedAt       *time.Time     `gorm:"type:timestamp;default:null" json:"issued_at,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
