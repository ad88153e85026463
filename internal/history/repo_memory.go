package history

import (
	"context"
	"sync"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []models.LeadHistory
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Append(_ context.Context, e models.LeadHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRepo) ListByLead(_ context.Context, leadID string) ([]models.LeadHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.LeadHistory
	for _, e := range r.entries {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryRepo) DeleteByLead(_ context.Context, leadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.LeadID != leadID {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	return nil
}

// All returns a copy of every entry, in append order.
func (r *MemoryRepo) All() []models.LeadHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.LeadHistory(nil), r.entries...)
}
