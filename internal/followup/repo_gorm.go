package followup

import (
	"context"
	"errors"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"gorm.io/gorm"
)

type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

func (r *GormRepo) GetByLead(ctx context.Context, leadID string) (models.FollowUpSchedule, error) {
	var s models.FollowUpSchedule
	err := r.db.WithContext(ctx).First(&s, "lead_id = ?", leadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.FollowUpSchedule{}, ErrNotFound
	}
	return s, err
}

func (r *GormRepo) Create(ctx context.Context, s models.FollowUpSchedule) error {
	return r.db.WithContext(ctx).Create(&s).Error
}

func (r *GormRepo) Update(ctx context.Context, s models.FollowUpSchedule) error {
	return r.db.WithContext(ctx).Save(&s).Error
}

func (r *GormRepo) ListArmed(ctx context.Context) ([]models.FollowUpSchedule, error) {
	var out []models.FollowUpSchedule
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusArmed).
		Order("armed_at ASC").
		Find(&out).Error
	return out, err
}
