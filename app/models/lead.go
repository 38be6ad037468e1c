package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	LeadStatusNew       = "NEW"
	LeadStatusContacted = "CONTACTED"
	LeadStatusQualified = "QUALIFIED"
	LeadStatusWon       = "WON"
	LeadStatusLost      = "LOST"
)

// Lead is a CRM prospect scoped to one tenant.
type Lead struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OrganizationID uint           `gorm:"not null;index" json:"organization_id"`
	Name           string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Email          string         `gorm:"type:varchar(200);default:''" json:"email" validate:"omitempty,email"`
	Phone          string         `gorm:"type:varchar(30);default:''" json:"phone"`
	Status         string         `gorm:"type:varchar(20);not null;default:'NEW'" json:"status"`
	Notes          string         `gorm:"type:text" json:"notes"`
	CreatedByID    uint           `gorm:"index" json:"created_by_id"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
