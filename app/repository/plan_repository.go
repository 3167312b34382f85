package repository

import (
	"gorm.io/gorm"

	"github.com/subsyncapp/subsync/app/models"
)

// planRepository implements the PlanRepository interface
type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository instance
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

// Create creates a new plan in the database
func (r *planRepository) Create(plan *models.Plan) error {
	return r.db.Create(plan).Error
}

// GetByID retrieves a plan by its ID
func (r *planRepository) GetByID(id uint) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.First(&plan, id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// List returns plans ordered newest first, optionally active only.
func (r *planRepository) List(activeOnly bool) ([]models.Plan, error) {
	var plans []models.Plan
	query := r.db.Order("created_at DESC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&plans).Error
	return plans, err
}

// Update persists changes to an existing plan
func (r *planRepository) Update(plan *models.Plan) error {
	return r.db.Save(plan).Error
}

// Delete removes a plan by ID
func (r *planRepository) Delete(id uint) error {
	return r.db.Delete(&models.Plan{}, id).Error
}

// CountSubscriptionsInStatus counts subscriptions on the plan in any of the
// given statuses.
func (r *planRepository) CountSubscriptionsInStatus(planID uint, statuses []string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).
		Where("plan_id = ? AND status IN ?", planID, statuses).
		Count(&count).Error
	return count, err
}
