package leads

import (
	"context"
	"sort"
	"sync"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	leads map[string]models.Lead
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{leads: make(map[string]models.Lead)}
}

func (r *MemoryRepo) Create(_ context.Context, lead models.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[lead.ID] = lead
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.leads[id]
	if !ok {
		return models.Lead{}, ErrNotFound
	}
	return lead, nil
}

func (r *MemoryRepo) List(_ context.Context, filter ListFilter) ([]models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Lead
	for _, lead := range r.leads {
		if filter.Unit != "" && lead.Unit != filter.Unit {
			continue
		}
		if filter.Status != "" && lead.Status != filter.Status {
			continue
		}
		out = append(out, lead)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Update(_ context.Context, lead models.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[lead.ID]; !ok {
		return ErrNotFound
	}
	r.leads[lead.ID] = lead
	return nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.leads, id)
	return nil
}

func (r *MemoryRepo) FindByPhone(_ context.Context, unit string, variants []string) ([]models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vs := map[string]bool{}
	for _, v := range variants {
		vs[v] = true
	}
	var out []models.Lead
	for _, lead := range r.leads {
		if unit != "" && lead.Unit != unit {
			continue
		}
		if vs[lead.Phone] {
			out = append(out, lead)
		}
	}
	return out, nil
}
