package billing

import (
	"errors"

	"github.com/karobarhq/karobar/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the billing service. The plan
// activation path runs inside WithinTransaction so the transaction row,
// subscription, organization mirror and usage reset commit together.
type Repository interface {
	GetOrganization(id uint) (*models.Organization, error)
	SaveOrganization(org *models.Organization) error
	GetSubscriptionByOrg(orgID uint) (*models.Subscription, error)
	SaveSubscription(sub *models.Subscription) error
	CreateTransaction(tx *models.PaymentTransaction) error
	GetTransactionByTransactionID(transactionID string) (*models.PaymentTransaction, error)
	SaveTransaction(tx *models.PaymentTransaction) error
	ListTransactionsByOrg(orgID uint) ([]models.PaymentTransaction, error)
	ResetAPICallUsage(orgID uint) error
	WithinTransaction(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetOrganization(id uint) (*models.Organization, error) {
	return models.FindOrganizationByID(r.db, id)
}

func (r *gormRepository) SaveOrganization(org *models.Organization) error {
	return r.db.Save(org).Error
}

func (r *gormRepository) GetSubscriptionByOrg(orgID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("organization_id = ?", orgID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) CreateTransaction(tx *models.PaymentTransaction) error {
	return r.db.Create(tx).Error
}

func (r *gormRepository) GetTransactionByTransactionID(transactionID string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.db.Where("transaction_id = ?", transactionID).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *gormRepository) SaveTransaction(tx *models.PaymentTransaction) error {
	return r.db.Save(tx).Error
}

func (r *gormRepository) ListTransactionsByOrg(orgID uint) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := r.db.Where("organization_id = ?", orgID).
		Order("created_at DESC").Find(&txs).Error
	return txs, err
}

func (r *gormRepository) ResetAPICallUsage(orgID uint) error {
	return r.db.Model(&models.Usage{}).Where("organization_id = ?", orgID).
		Update("api_calls_used", 0).Error
}

func (r *gormRepository) WithinTransaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
