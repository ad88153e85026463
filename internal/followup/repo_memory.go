package followup

import (
	"context"
	"sort"
	"sync"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	scheds map[string]models.FollowUpSchedule // keyed by lead id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{scheds: make(map[string]models.FollowUpSchedule)}
}

func (r *MemoryRepo) GetByLead(_ context.Context, leadID string) (models.FollowUpSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scheds[leadID]
	if !ok {
		return models.FollowUpSchedule{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepo) Create(_ context.Context, s models.FollowUpSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheds[s.LeadID] = s
	return nil
}

func (r *MemoryRepo) Update(_ context.Context, s models.FollowUpSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scheds[s.LeadID]; !ok {
		return ErrNotFound
	}
	r.scheds[s.LeadID] = s
	return nil
}

func (r *MemoryRepo) ListArmed(_ context.Context) ([]models.FollowUpSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FollowUpSchedule
	for _, s := range r.scheds {
		if s.Status == StatusArmed {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArmedAt.Before(out[j].ArmedAt) })
	return out, nil
}
