// Package history is the shared audit primitive. Every mutating operation
// in the core (pipeline moves, bot qualification, linking, follow-ups)
// writes through it, so state transitions stay reconstructable after the
// fact. Entries are append-only.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/google/uuid"
)

var ErrInvalidEntry = errors.New("history: invalid entry")

// Repository is the persistence contract for history entries. It is
// append-only: no update or delete of individual entries is provided.
// DeleteByLead exists solely so that deleting a lead and its audit trail can
// be treated as one logical operation.
type Repository interface {
	Append(ctx context.Context, e models.LeadHistory) error
	ListByLead(ctx context.Context, leadID string) ([]models.LeadHistory, error)
	DeleteByLead(ctx context.Context, leadID string) error
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Record appends one audit entry. actor is nil for system/bot actions.
func (s *Service) Record(ctx context.Context, leadID string, actor *string, action, oldValue, newValue string) error {
	if leadID == "" || action == "" {
		return ErrInvalidEntry
	}
	return s.repo.Append(ctx, models.LeadHistory{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		UserID:    actor,
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		CreatedAt: s.clock().UTC(),
	})
}

func (s *Service) ListByLead(ctx context.Context, leadID string) ([]models.LeadHistory, error) {
	return s.repo.ListByLead(ctx, leadID)
}

// DeleteByLead removes a lead's trail ahead of the lead row itself.
func (s *Service) DeleteByLead(ctx context.Context, leadID string) error {
	return s.repo.DeleteByLead(ctx, leadID)
}

// Has reports whether an entry with the given action exists for the lead.
func (s *Service) Has(ctx context.Context, leadID, action string) (bool, error) {
	entries, err := s.repo.ListByLead(ctx, leadID)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Action == action {
			return true, nil
		}
	}
	return false, nil
}
