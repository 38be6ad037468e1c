package quota

import (
	"errors"

	"github.com/karobarhq/karobar/app/models"
	"gorm.io/gorm"
)

// ErrLimitNotFound signals that no plan_limits row exists for a pair; the
// service then consults the compiled fallback table.
var ErrLimitNotFound = errors.New("plan limit row not found")

// Repository provides DB operations used by the quota service. Consume
// runs the caller's writes and the counter move inside WithinTransaction so
// a metered resource can never outlive its refused counter slot.
type Repository interface {
	FindPlanLimit(plan, feature string) (*models.PlanLimit, error)
	GetUsage(orgID uint) (*models.Usage, error)
	SaveUsage(u *models.Usage) error
	ResetAllAPICalls() error
	CreateRecord(value interface{}) error
	WithinTransaction(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a quota repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindPlanLimit(plan, feature string) (*models.PlanLimit, error) {
	var row models.PlanLimit
	err := r.db.Where("plan = ? AND feature = ?", plan, feature).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLimitNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *gormRepository) GetUsage(orgID uint) (*models.Usage, error) {
	var usage models.Usage
	err := r.db.Where("organization_id = ?", orgID).First(&usage).Error
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

func (r *gormRepository) SaveUsage(u *models.Usage) error {
	return r.db.Save(u).Error
}

func (r *gormRepository) ResetAllAPICalls() error {
	return r.db.Model(&models.Usage{}).Where("api_calls_used > 0").
		Update("api_calls_used", 0).Error
}

func (r *gormRepository) CreateRecord(value interface{}) error {
	return r.db.Create(value).Error
}

func (r *gormRepository) WithinTransaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

// SeedPlanLimits writes the compiled fallback table into plan_limits,
// leaving existing rows untouched so operator overrides survive reseeding.
func SeedPlanLimits(db *gorm.DB) error {
	for plan, features := range fallbackLimits {
		for feature, limit := range features {
			value := models.UnlimitedLimit
			if !limit.IsUnlimited() {
				value = limit.Value()
			}
			row := models.PlanLimit{Plan: plan, Feature: feature, Limit: value}
			err := db.Where("plan = ? AND feature = ?", plan, feature).
				FirstOrCreate(&row).Error
			if err != nil {
				return err
			}
		}
	}
	return nil
}
