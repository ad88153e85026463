// Package leads owns the canonical lead entity and its ordered status
// pipeline. Every mutation records its prior value in the audit trail
// before the write is applied.
package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/history"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/phone"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/ws"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound          = errors.New("leads: not found")
	ErrInvalidStatus     = errors.New("leads: unknown status")
	ErrInvalidTransition = errors.New("leads: transition not allowed")
	ErrInvalidLead       = errors.New("leads: invalid lead")
)

// linearOrder is the navigable subsequence of the pipeline. Terminal and
// transferido statuses sit outside it.
var linearOrder = []string{
	models.StatusNovo,
	models.StatusEmContato,
	models.StatusOrcamentoEnviado,
	models.StatusAguardandoResposta,
}

// History action labels.
const (
	ActionLeadCreated          = "lead_created"
	ActionStatusChanged        = "status_changed"
	ActionNameUpdated          = "name_updated"
	ActionNotesUpdated         = "notes_updated"
	ActionQualificationUpdated = "qualification_updated"
	ActionLeadDeleted          = "lead_deleted"
)

type Repository interface {
	Create(ctx context.Context, lead models.Lead) error
	Get(ctx context.Context, id string) (models.Lead, error)
	List(ctx context.Context, filter ListFilter) ([]models.Lead, error)
	Update(ctx context.Context, lead models.Lead) error
	Delete(ctx context.Context, id string) error
	// FindByPhone returns leads in a unit matching any of the phone
	// variants. Unit may be empty to search all units.
	FindByPhone(ctx context.Context, unit string, variants []string) ([]models.Lead, error)
}

type ListFilter struct {
	Unit   string
	Status string
}

type Service struct {
	repo     Repository
	history  *history.Service
	notifier ws.Notifier
	logger   *zap.Logger
	clock    func() time.Time

	// locks serializes read-before-write per lead so a history entry never
	// records a stale prior value.
	locks sync.Map
}

func NewService(repo Repository, hist *history.Service, notifier ws.Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		history:  hist,
		notifier: notifier,
		logger:   logger,
		clock:    time.Now,
	}
}

func (s *Service) lock(leadID string) func() {
	v, _ := s.locks.LoadOrStore(leadID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

type CreateInput struct {
	Name          string
	Phone         string
	Unit          string
	Month         string
	DayPreference string
	GuestCount    int
	Notes         string
	AssignedTo    *string
}

// Create persists a new lead in status novo and records the creation entry.
func (s *Service) Create(ctx context.Context, in CreateInput, actor *string) (models.Lead, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Lead{}, ErrInvalidLead
	}

	lead := models.Lead{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Phone:         phone.Canonical(in.Phone),
		Unit:          in.Unit,
		Month:         in.Month,
		DayPreference: in.DayPreference,
		GuestCount:    in.GuestCount,
		Notes:         in.Notes,
		Status:        models.StatusNovo,
		AssignedTo:    in.AssignedTo,
		CreatedAt:     s.clock().UTC(),
	}
	if err := s.repo.Create(ctx, lead); err != nil {
		return models.Lead{}, fmt.Errorf("create lead: %w", err)
	}
	if err := s.history.Record(ctx, lead.ID, actor, ActionLeadCreated, "", lead.Name); err != nil {
		return models.Lead{}, fmt.Errorf("record creation: %w", err)
	}
	s.notifier.Publish(ws.EventLeadCreated, lead)
	return lead, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Lead, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.Lead, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) History(ctx context.Context, id string) ([]models.LeadHistory, error) {
	return s.history.ListByLead(ctx, id)
}

// MoveForward advances a lead one column. No-op at the last linear column;
// leads outside the linear subsequence cannot be navigated.
func (s *Service) MoveForward(ctx context.Context, id string, actor *string) (models.Lead, error) {
	return s.moveAdjacent(ctx, id, actor, +1)
}

// MoveBackward is the mirror of MoveForward; no-op at the first column.
func (s *Service) MoveBackward(ctx context.Context, id string, actor *string) (models.Lead, error) {
	return s.moveAdjacent(ctx, id, actor, -1)
}

func (s *Service) moveAdjacent(ctx context.Context, id string, actor *string, delta int) (models.Lead, error) {
	unlock := s.lock(id)
	defer unlock()

	lead, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Lead{}, err
	}
	idx := linearIndex(lead.Status)
	if idx < 0 {
		return models.Lead{}, fmt.Errorf("%w: %s is not in the linear pipeline", ErrInvalidTransition, lead.Status)
	}
	next := idx + delta
	if next < 0 || next >= len(linearOrder) {
		return lead, nil
	}
	return s.applyStatus(ctx, lead, linearOrder[next], actor)
}

// MoveTo sets an explicit status, validated against the allowed-transition
// set: terminal statuses accept no further moves, everything else may move
// to any known status (regressions included, each producing its own entry).
func (s *Service) MoveTo(ctx context.Context, id, status string, actor *string) (models.Lead, error) {
	if !knownStatus(status) {
		return models.Lead{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	unlock := s.lock(id)
	defer unlock()

	lead, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Lead{}, err
	}
	if lead.Status == status {
		return lead, nil
	}
	if isTerminal(lead.Status) {
		return models.Lead{}, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, lead.Status)
	}
	return s.applyStatus(ctx, lead, status, actor)
}

// applyStatus writes the history entry with the freshly read prior value,
// then applies the mutation. Callers hold the per-lead lock.
func (s *Service) applyStatus(ctx context.Context, lead models.Lead, status string, actor *string) (models.Lead, error) {
	old := lead.Status
	if err := s.history.Record(ctx, lead.ID, actor, ActionStatusChanged, old, status); err != nil {
		return models.Lead{}, fmt.Errorf("record status change: %w", err)
	}
	lead.Status = status
	if err := s.repo.Update(ctx, lead); err != nil {
		return models.Lead{}, fmt.Errorf("apply status change: %w", err)
	}
	s.logger.Info("lead status changed",
		zap.String("lead_id", lead.ID),
		zap.String("from", old),
		zap.String("to", status))
	s.notifier.Publish(ws.EventLeadUpdated, lead)
	return lead, nil
}

// UpdateName renames the lead, auditing old and new values.
func (s *Service) UpdateName(ctx context.Context, id, name string, actor *string) (models.Lead, error) {
	if strings.TrimSpace(name) == "" {
		return models.Lead{}, ErrInvalidLead
	}
	return s.updateField(ctx, id, actor, ActionNameUpdated,
		func(l *models.Lead) (string, string) {
			old := l.Name
			l.Name = name
			return old, name
		})
}

// UpdateNotes replaces the free-text notes.
func (s *Service) UpdateNotes(ctx context.Context, id, notes string, actor *string) (models.Lead, error) {
	return s.updateField(ctx, id, actor, ActionNotesUpdated,
		func(l *models.Lead) (string, string) {
			old := l.Notes
			l.Notes = notes
			return old, notes
		})
}

type Qualification struct {
	Month         string
	DayPreference string
	GuestCount    int
}

// UpdateQualification rewrites the interview answers kept on the lead.
func (s *Service) UpdateQualification(ctx context.Context, id string, q Qualification, actor *string) (models.Lead, error) {
	return s.updateField(ctx, id, actor, ActionQualificationUpdated,
		func(l *models.Lead) (string, string) {
			old := qualificationString(l.Month, l.DayPreference, l.GuestCount)
			l.Month = q.Month
			l.DayPreference = q.DayPreference
			l.GuestCount = q.GuestCount
			return old, qualificationString(q.Month, q.DayPreference, q.GuestCount)
		})
}

func (s *Service) updateField(ctx context.Context, id string, actor *string, action string, mutate func(*models.Lead) (string, string)) (models.Lead, error) {
	unlock := s.lock(id)
	defer unlock()

	lead, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Lead{}, err
	}
	old, newValue := mutate(&lead)
	if old == newValue {
		return lead, nil
	}
	if err := s.history.Record(ctx, lead.ID, actor, action, old, newValue); err != nil {
		return models.Lead{}, fmt.Errorf("record %s: %w", action, err)
	}
	if err := s.repo.Update(ctx, lead); err != nil {
		return models.Lead{}, fmt.Errorf("apply %s: %w", action, err)
	}
	s.notifier.Publish(ws.EventLeadUpdated, lead)
	return lead, nil
}

// Delete removes the audit trail first, then the lead, so no entry is ever
// left referencing a nonexistent subject.
func (s *Service) Delete(ctx context.Context, id string, actor *string) error {
	unlock := s.lock(id)
	defer unlock()

	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.history.DeleteByLead(ctx, id); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	s.notifier.Publish(ws.EventLeadDeleted, map[string]string{"id": id})
	return nil
}

func linearIndex(status string) int {
	for i, st := range linearOrder {
		if st == status {
			return i
		}
	}
	return -1
}

func isTerminal(status string) bool {
	return status == models.StatusFechado || status == models.StatusPerdido
}

func knownStatus(status string) bool {
	if linearIndex(status) >= 0 {
		return true
	}
	switch status {
	case models.StatusFechado, models.StatusPerdido, models.StatusTransferido:
		return true
	}
	return false
}

func qualificationString(month, day string, guests int) string {
	return fmt.Sprintf("mes=%s dia=%s convidados=%d", month, day, guests)
}
