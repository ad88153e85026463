package history

import (
	"context"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"gorm.io/gorm"
)

type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

func (r *GormRepo) Append(ctx context.Context, e models.LeadHistory) error {
	return r.db.WithContext(ctx).Create(&e).Error
}

func (r *GormRepo) ListByLead(ctx context.Context, leadID string) ([]models.LeadHistory, error) {
	var entries []models.LeadHistory
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *GormRepo) DeleteByLead(ctx context.Context, leadID string) error {
	return r.db.WithContext(ctx).Where("lead_id = ?", leadID).Delete(&models.LeadHistory{}).Error
}
