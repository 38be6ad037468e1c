package models

import (
	"time"

	"gorm.io/gorm"
)

// OrganizationMember binds a user to a tenant with a role. A user may belong
// to several tenants with independent roles; the (user, organization) pair is
// unique.
type OrganizationMember struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index:ux_org_members_user_org,unique,priority:1" json:"user_id"`
	OrganizationID uint      `gorm:"not null;index:ux_org_members_user_org,unique,priority:2" json:"organization_id"`
	Role           string    `gorm:"type:varchar(20);not null;default:'STAFF'" json:"role"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindMembership loads the membership row for a (user, organization) pair.
func FindMembership(db *gorm.DB, userID, orgID uint) (*OrganizationMember, error) {
	var m OrganizationMember
	err := db.Where("user_id = ? AND organization_id = ?", userID, orgID).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMemberships returns all memberships of a user.
func ListMemberships(db *gorm.DB, userID uint) ([]OrganizationMember, error) {
	var ms []OrganizationMember
	err := db.Where("user_id = ?", userID).Find(&ms).Error
	return ms, err
}

// SetPrimaryOrganization switches the user's primary tenant and syncs the
// denormalized role from the membership row. Every code path that changes a
// user's primary organization must go through here; there is no implicit
// hook keeping the fields consistent.
func SetPrimaryOrganization(db *gorm.DB, user *User, m *OrganizationMember) error {
	user.OrganizationID = m.OrganizationID
	user.Role = m.Role
	return db.Model(user).Updates(map[string]interface{}{
		"organization_id": m.OrganizationID,
		"role":            m.Role,
	}).Error
}
