package models

import (
	"time"

	"gorm.io/gorm"
)

// Client is a CRM customer scoped to one tenant. Creating one consumes the
// "customers" quota.
type Client struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OrganizationID uint           `gorm:"not null;index" json:"organization_id"`
	Name           string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Email          string         `gorm:"type:varchar(200);default:''" json:"email" validate:"omitempty,email"`
	Phone          string         `gorm:"type:varchar(30);default:''" json:"phone"`
	Address        string         `gorm:"type:varchar(255);default:''" json:"address"`
	PANNumber      string         `gorm:"type:varchar(30);default:''" json:"pan_number"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
