package leads

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

func (r *GormRepo) Create(ctx context.Context, lead models.Lead) error {
	return r.db.WithContext(ctx).Create(&lead).Error
}

func (r *GormRepo) Get(ctx context.Context, id string) (models.Lead, error) {
	var lead models.Lead
	err := r.db.WithContext(ctx).First(&lead, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *GormRepo) List(ctx context.Context, filter ListFilter) ([]models.Lead, error) {
	q := r.db.WithContext(ctx).Model(&models.Lead{})
	if filter.Unit != "" {
		q = q.Where("unit = ?", filter.Unit)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var out []models.Lead
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *GormRepo) Update(ctx context.Context, lead models.Lead) error {
	return r.db.WithContext(ctx).Save(&lead).Error
}

func (r *GormRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.Lead{}, "id = ?", id).Error
}

func (r *GormRepo) FindByPhone(ctx context.Context, unit string, variants []string) ([]models.Lead, error) {
	if len(variants) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx).Where("phone IN ?", variants)
	if unit != "" {
		q = q.Where("unit = ?", unit)
	}
	var out []models.Lead
	err := q.Find(&out).Error
	return out, err
}
