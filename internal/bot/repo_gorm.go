package bot

import (
	"context"
	"errors"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/phone"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

func (r *GormRepo) GetSession(ctx context.Context, conversationID string) (models.BotSession, error) {
	var s models.BotSession
	err := r.db.WithContext(ctx).First(&s, "conversation_id = ?", conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.BotSession{}, ErrSessionNotFound
	}
	return s, err
}

func (r *GormRepo) SaveSession(ctx context.Context, s models.BotSession) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}},
			UpdateAll: true,
		}).
		Create(&s).Error
}

func (r *GormRepo) ActiveQuestions(ctx context.Context) ([]models.BotQuestion, error) {
	var out []models.BotQuestion
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("position ASC").
		Find(&out).Error
	return out, err
}

func (r *GormRepo) Settings(ctx context.Context) (models.BotSettings, error) {
	var s models.BotSettings
	err := r.db.WithContext(ctx).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultSettings(), nil
	}
	return s, err
}

func (r *GormRepo) IsVIP(ctx context.Context, canonicalPhone string) (bool, error) {
	variants := phone.Variants(canonicalPhone)
	if len(variants) == 0 {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.VIPNumber{}).
		Where("phone IN ?", variants).
		Count(&count).Error
	return count > 0, err
}

func (r *GormRepo) MaterialsByUnit(ctx context.Context, unit string) ([]models.Material, error) {
	var out []models.Material
	err := r.db.WithContext(ctx).
		Where("unit = ?", unit).
		Order("position ASC").
		Find(&out).Error
	return out, err
}

func (r *GormRepo) CreateVisitIntent(ctx context.Context, v models.VisitIntent) error {
	return r.db.WithContext(ctx).Create(&v).Error
}

func defaultSettings() models.BotSettings {
	return models.BotSettings{
		Enabled:             false,
		SendDelaySeconds:    3,
		FollowUp1DelayHours: 24,
		FollowUp2Enabled:    true,
		FollowUp2DelayHours: 48,
	}
}
