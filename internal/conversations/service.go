// Package conversations owns chat threads and their messages: creation on
// first contact, idempotent message intake, delivery-status progression and
// the list-rendering snapshot.
package conversations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/phone"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/ws"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("conversations: not found")
)

// Repository is the persistence contract for conversations and their
// messages. Messages are append-only; UpdateMessageStatus is the only
// message mutation.
type Repository interface {
	Create(ctx context.Context, c models.Conversation) error
	Get(ctx context.Context, id string) (models.Conversation, error)
	GetByInstancePhone(ctx context.Context, instanceID, canonicalPhone string) (models.Conversation, error)
	List(ctx context.Context) ([]models.Conversation, error)
	Update(ctx context.Context, c models.Conversation) error
	Delete(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, m models.Message) error
	GetMessageByExternalID(ctx context.Context, externalID string) (models.Message, error)
	UpdateMessageStatus(ctx context.Context, messageID, status string) error
	MessagesByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	ReassignMessages(ctx context.Context, fromConversationID, toConversationID string) error
}

type Service struct {
	repo     Repository
	notifier ws.Notifier
	logger   *zap.Logger
	clock    func() time.Time
}

func NewService(repo Repository, notifier ws.Notifier, logger *zap.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logger: logger, clock: time.Now}
}

func (s *Service) Get(ctx context.Context, id string) (models.Conversation, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]models.Conversation, error) {
	return s.repo.List(ctx)
}

func (s *Service) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return s.repo.MessagesByConversation(ctx, conversationID)
}

// Ensure returns the conversation for (instance, phone), creating it on the
// first inbound or outbound event for an unseen address.
func (s *Service) Ensure(ctx context.Context, instanceID, rawPhone, name, unit string) (models.Conversation, error) {
	canonical := phone.Canonical(rawPhone)
	if canonical == "" {
		return models.Conversation{}, fmt.Errorf("conversations: empty phone")
	}

	conv, err := s.repo.GetByInstancePhone(ctx, instanceID, canonical)
	if err == nil {
		if name != "" && conv.Name == "" {
			conv.Name = name
			if err := s.repo.Update(ctx, conv); err != nil {
				return models.Conversation{}, fmt.Errorf("update name: %w", err)
			}
		}
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.Conversation{}, err
	}

	conv = models.Conversation{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		Phone:      canonical,
		Name:       name,
		Unit:       unit,
		CreatedAt:  s.clock().UTC(),
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return models.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("instance_id", instanceID))
	s.notifier.Publish(ws.EventConversationUpdated, conv)
	return conv, nil
}

// RecordInput describes one message event from the gateway.
type RecordInput struct {
	ConversationID string
	ExternalID     *string
	FromMe         bool
	Type           string
	Content        string
	MediaURL       string
	Timestamp      time.Time
}

// Record appends a message, tolerating gateway retries: when an external id
// is present and already stored, the existing row is returned untouched.
// The conversation snapshot and unread counter are refreshed on insert.
func (s *Service) Record(ctx context.Context, in RecordInput) (models.Message, error) {
	if in.ExternalID != nil && *in.ExternalID != "" {
		existing, err := s.repo.GetMessageByExternalID(ctx, *in.ExternalID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return models.Message{}, err
		}
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.clock().UTC()
	}
	msgType := in.Type
	if msgType == "" {
		msgType = "text"
	}
	status := models.MessageStatusPending
	if !in.FromMe {
		// Inbound messages already reached us.
		status = models.MessageStatusDelivered
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: in.ConversationID,
		ExternalID:     in.ExternalID,
		FromMe:         in.FromMe,
		Type:           msgType,
		Content:        in.Content,
		MediaURL:       in.MediaURL,
		Status:         status,
		Timestamp:      ts,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return models.Message{}, fmt.Errorf("create message: %w", err)
	}

	conv, err := s.repo.Get(ctx, in.ConversationID)
	if err != nil {
		return models.Message{}, err
	}
	conv.LastMessageContent = snapshotContent(msg)
	conv.LastMessageFromMe = msg.FromMe
	conv.LastMessageAt = &msg.Timestamp
	if !msg.FromMe {
		conv.UnreadCount++
	}
	if err := s.repo.Update(ctx, conv); err != nil {
		return models.Message{}, fmt.Errorf("update snapshot: %w", err)
	}

	s.notifier.Publish(ws.EventMessageCreated, msg)
	s.notifier.Publish(ws.EventConversationUpdated, conv)
	return msg, nil
}

// statusRank orders delivery statuses; transitions never move backward.
var statusRank = map[string]int{
	models.MessageStatusPending:   0,
	models.MessageStatusSent:      1,
	models.MessageStatusDelivered: 2,
	models.MessageStatusRead:      3,
}

// ApplyStatus moves a message's delivery status forward. Stale or unknown
// updates are ignored, not errors: the gateway may replay them out of order.
func (s *Service) ApplyStatus(ctx context.Context, externalID, status string) error {
	newRank, ok := statusRank[status]
	if !ok {
		s.logger.Warn("ignoring unknown delivery status", zap.String("status", status))
		return nil
	}
	msg, err := s.repo.GetMessageByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if statusRank[msg.Status] >= newRank {
		return nil
	}
	if err := s.repo.UpdateMessageStatus(ctx, msg.ID, status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// MarkRead zeroes the unread counter.
func (s *Service) MarkRead(ctx context.Context, id string) (models.Conversation, error) {
	return s.patch(ctx, id, func(c *models.Conversation) { c.UnreadCount = 0 })
}

// ToggleFavorite flips the favorite flag.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (models.Conversation, error) {
	return s.patch(ctx, id, func(c *models.Conversation) { c.Favorite = !c.Favorite })
}

// SetBotEnabled overrides the instance-level bot policy for one
// conversation. This is also how a human takes over from the bot.
func (s *Service) SetBotEnabled(ctx context.Context, id string, enabled bool) (models.Conversation, error) {
	return s.patch(ctx, id, func(c *models.Conversation) { c.BotEnabled = &enabled })
}

func (s *Service) patch(ctx context.Context, id string, mutate func(*models.Conversation)) (models.Conversation, error) {
	conv, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Conversation{}, err
	}
	mutate(&conv)
	if err := s.repo.Update(ctx, conv); err != nil {
		return models.Conversation{}, err
	}
	s.notifier.Publish(ws.EventConversationUpdated, conv)
	return conv, nil
}

// RefreshSnapshot recomputes the last-message snapshot from the stored
// message set, newest timestamp first. Used after merges.
func (s *Service) RefreshSnapshot(ctx context.Context, id string) error {
	conv, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	msgs, err := s.repo.MessagesByConversation(ctx, id)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		conv.LastMessageContent = ""
		conv.LastMessageFromMe = false
		conv.LastMessageAt = nil
	} else {
		last := msgs[len(msgs)-1]
		conv.LastMessageContent = snapshotContent(last)
		conv.LastMessageFromMe = last.FromMe
		conv.LastMessageAt = &last.Timestamp
	}
	return s.repo.Update(ctx, conv)
}

func snapshotContent(m models.Message) string {
	if m.Type == "text" || m.Content != "" {
		return m.Content
	}
	return "[" + m.Type + "]"
}
