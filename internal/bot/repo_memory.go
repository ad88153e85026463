package bot

import (
	"context"
	"sort"
	"sync"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/phone"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu           sync.Mutex
	sessions     map[string]models.BotSession // keyed by conversation id
	Questions    []models.BotQuestion
	Config       models.BotSettings
	VIPs         []string
	Materials    []models.Material
	VisitIntents []models.VisitIntent
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		sessions: make(map[string]models.BotSession),
		Config:   defaultSettings(),
	}
}

func (r *MemoryRepo) GetSession(_ context.Context, conversationID string) (models.BotSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[conversationID]
	if !ok {
		return models.BotSession{}, ErrSessionNotFound
	}
	return s, nil
}

func (r *MemoryRepo) SaveSession(_ context.Context, s models.BotSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ConversationID] = s
	return nil
}

func (r *MemoryRepo) ActiveQuestions(_ context.Context) ([]models.BotQuestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BotQuestion
	for _, q := range r.Questions {
		if q.Enabled {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *MemoryRepo) Settings(_ context.Context) (models.BotSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Config, nil
}

func (r *MemoryRepo) IsVIP(_ context.Context, canonicalPhone string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, vip := range r.VIPs {
		if phone.Matches(vip, canonicalPhone) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) MaterialsByUnit(_ context.Context, unit string) ([]models.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Material
	for _, m := range r.Materials {
		if m.Unit == unit {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *MemoryRepo) CreateVisitIntent(_ context.Context, v models.VisitIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.VisitIntents = append(r.VisitIntents, v)
	return nil
}
