package conversations

import (
	"context"
	"sort"
	"sync"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu            sync.Mutex
	conversations map[string]models.Conversation
	messages      map[string]models.Message
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string]models.Message),
	}
}

func (r *MemoryRepo) Create(_ context.Context, c models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[c.ID] = c
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return models.Conversation{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetByInstancePhone(_ context.Context, instanceID, canonicalPhone string) (models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []models.Conversation
	for _, c := range r.conversations {
		if c.InstanceID == instanceID && c.Phone == canonicalPhone {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return models.Conversation{}, ErrNotFound
	}
	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt.Before(found[j].CreatedAt) })
	return found[0], nil
}

func (r *MemoryRepo) List(_ context.Context) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Conversation
	for _, c := range r.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].LastMessageAt, out[j].LastMessageAt
		if ti == nil {
			return false
		}
		if tj == nil {
			return true
		}
		return ti.After(*tj)
	})
	return out, nil
}

func (r *MemoryRepo) Update(_ context.Context, c models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[c.ID]; !ok {
		return ErrNotFound
	}
	r.conversations[c.ID] = c
	return nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conversations, id)
	return nil
}

func (r *MemoryRepo) CreateMessage(_ context.Context, m models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[m.ID] = m
	return nil
}

func (r *MemoryRepo) GetMessageByExternalID(_ context.Context, externalID string) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ExternalID != nil && *m.ExternalID == externalID {
			return m, nil
		}
	}
	return models.Message{}, ErrNotFound
}

func (r *MemoryRepo) UpdateMessageStatus(_ context.Context, messageID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	m.Status = status
	r.messages[messageID] = m
	return nil
}

func (r *MemoryRepo) MessagesByConversation(_ context.Context, conversationID string) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *MemoryRepo) ReassignMessages(_ context.Context, fromConversationID, toConversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.messages {
		if m.ConversationID == fromConversationID {
			m.ConversationID = toConversationID
			r.messages[id] = m
		}
	}
	return nil
}

// FailingRepo wraps MemoryRepo and fails ReassignMessages with ReassignErr
// when set. Tests use it to exercise merge abort behavior.
type FailingRepo struct {
	*MemoryRepo
	ReassignErr error
}

func (r *FailingRepo) ReassignMessages(ctx context.Context, from, to string) error {
	if r.ReassignErr != nil {
		return r.ReassignErr
	}
	return r.MemoryRepo.ReassignMessages(ctx, from, to)
}
