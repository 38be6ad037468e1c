package models

import "time"

// Payment providers supported for plan upgrades.
const (
	PaymentProviderEsewa  = "ESEWA"
	PaymentProviderKhalti = "KHALTI"
)

// Payment transaction lifecycle. SUCCESS and FAILED are terminal; a
// transaction never leaves either state. Transient verification errors keep
// a transaction PENDING so the caller can retry later.
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
)

// PaymentTransaction is the append-mostly record of a payment attempt and
// the durable source of truth for whether an attempt was processed.
// TransactionID is the externally visible unique identifier handed to the
// provider; ReferenceID is assigned by the provider on completion.
type PaymentTransaction struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"not null;index" json:"organization_id"`
	Plan           string    `gorm:"type:varchar(20);not null" json:"plan"`
	Provider       string    `gorm:"type:varchar(20);not null" json:"provider"`
	Amount         int       `gorm:"not null" json:"amount"`
	Status         string    `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	TransactionID  string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"transaction_id"`
	ReferenceID    string    `gorm:"type:varchar(191);default:''" json:"reference_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Terminal reports whether the transaction reached a final state.
func (t *PaymentTransaction) Terminal() bool {
	return t.Status == PaymentStatusSuccess || t.Status == PaymentStatusFailed
}

// ValidPaymentProvider reports whether the provider code is recognised.
func ValidPaymentProvider(provider string) bool {
	switch provider {
	case PaymentProviderEsewa, PaymentProviderKhalti:
		return true
	}
	return false
}
