package conversations

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

func (r *GormRepo) Create(ctx context.Context, c models.Conversation) error {
	return r.db.WithContext(ctx).Create(&c).Error
}

func (r *GormRepo) Get(ctx context.Context, id string) (models.Conversation, error) {
	var c models.Conversation
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Conversation{}, ErrNotFound
	}
	return c, err
}

func (r *GormRepo) GetByInstancePhone(ctx context.Context, instanceID, canonicalPhone string) (models.Conversation, error) {
	var c models.Conversation
	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND phone = ?", instanceID, canonicalPhone).
		Order("created_at ASC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Conversation{}, ErrNotFound
	}
	return c, err
}

func (r *GormRepo) List(ctx context.Context) ([]models.Conversation, error) {
	var out []models.Conversation
	err := r.db.WithContext(ctx).Order("last_message_at DESC").Find(&out).Error
	return out, err
}

func (r *GormRepo) Update(ctx context.Context, c models.Conversation) error {
	return r.db.WithContext(ctx).Save(&c).Error
}

func (r *GormRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.Conversation{}, "id = ?", id).Error
}

func (r *GormRepo) CreateMessage(ctx context.Context, m models.Message) error {
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *GormRepo) GetMessageByExternalID(ctx context.Context, externalID string) (models.Message, error) {
	var m models.Message
	err := r.db.WithContext(ctx).First(&m, "external_id = ?", externalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Message{}, ErrNotFound
	}
	return m, err
}

func (r *GormRepo) UpdateMessageStatus(ctx context.Context, messageID, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("status", status).Error
}

func (r *GormRepo) MessagesByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *GormRepo) ReassignMessages(ctx context.Context, fromConversationID, toConversationID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", fromConversationID).
		Update("conversation_id", toConversationID).Error
}
