package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/subsyncapp/subsync/app/models"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// Exists reports whether the event id is already in the ledger.
func (r *webhookEventRepository) Exists(id string) (bool, error) {
	var count int64
	err := r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateIfNotExists inserts the ledger row unless it already exists.
// RowsAffected tells which concurrent delivery actually wrote the row.
func (r *webhookEventRepository) CreateIfNotExists(event *models.WebhookEvent) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
