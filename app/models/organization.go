package models

import (
	"time"

	"gorm.io/gorm"
)

// Organization is the tenant root. Every business entity belongs to exactly
// one organization. Plan is a denormalized mirror of Subscription.Plan for
// fast reads; it is only written inside the same transaction that writes the
// subscription (see ActivatePlan / CheckExpiry in internal/pkg/billing).
type Organization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Slug      string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"slug" validate:"required,min=2,max=150"`
	Email     string    `gorm:"type:varchar(200);default:''" json:"email" validate:"omitempty,email"`
	Phone     string    `gorm:"type:varchar(30);default:''" json:"phone"`
	Plan      string    `gorm:"type:varchar(20);not null;default:'FREE'" json:"plan"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreateOrganization persists a new tenant together with its default
// subscription (FREE, 7-day trial) and a zeroed usage row. The three inserts
// share one transaction so a tenant can never be observed without them.
func CreateOrganization(db *gorm.DB, org *Organization) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if org.Plan == "" {
			org.Plan = PlanFree
		}
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		sub := NewDefaultSubscription(org.ID, time.Now())
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		usage := NewUsage(org.ID)
		return tx.Create(usage).Error
	})
}

// FindOrganizationByID loads a tenant by primary key.
func FindOrganizationByID(db *gorm.DB, id uint) (*Organization, error) {
	var org Organization
	if err := db.First(&org, id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}
