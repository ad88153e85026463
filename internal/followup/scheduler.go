// Package followup re-engages leads that chose "analyze later": one message
// after a first configurable delay, a second one measured from the original
// arming event. Each stage fires at most once per lead; the sent marker is
// written only after confirmed dispatch, so a failed send stays retryable
// without risk of duplicate delivery.
package followup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/config"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/conversations"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/history"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/leads"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/whatsapp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("followup: schedule not found")

// History action labels; their presence marks a stage as dispatched.
const (
	ActionStage1Sent = "followup_1_sent"
	ActionStage2Sent = "followup_2_sent"
	ActionCancelled  = "followup_cancelled"
)

// Schedule statuses.
const (
	StatusArmed     = "armed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type Repository interface {
	GetByLead(ctx context.Context, leadID string) (models.FollowUpSchedule, error)
	Create(ctx context.Context, s models.FollowUpSchedule) error
	Update(ctx context.Context, s models.FollowUpSchedule) error
	ListArmed(ctx context.Context) ([]models.FollowUpSchedule, error)
}

// SettingsSource provides the admin-configured delays and templates.
type SettingsSource interface {
	Settings(ctx context.Context) (models.BotSettings, error)
}

type Service struct {
	repo     Repository
	leadRepo leads.Repository
	convs    *conversations.Service
	convRepo conversations.Repository
	settings SettingsSource
	sender   whatsapp.Sender
	history  *history.Service
	cfg      *config.Config
	logger   *zap.Logger
	clock    func() time.Time
}

func NewService(repo Repository, leadRepo leads.Repository, convs *conversations.Service, convRepo conversations.Repository, settings SettingsSource, sender whatsapp.Sender, hist *history.Service, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		leadRepo: leadRepo,
		convs:    convs,
		convRepo: convRepo,
		settings: settings,
		sender:   sender,
		history:  hist,
		cfg:      cfg,
		logger:   logger,
		clock:    time.Now,
	}
}

// Arm schedules the two stages for a lead. Arming is idempotent: an
// existing schedule is returned untouched, keeping the original armed_at as
// the anchor both stages are measured from.
func (s *Service) Arm(ctx context.Context, leadID string) (models.FollowUpSchedule, error) {
	existing, err := s.repo.GetByLead(ctx, leadID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.FollowUpSchedule{}, err
	}

	sched := models.FollowUpSchedule{
		ID:      uuid.NewString(),
		LeadID:  leadID,
		ArmedAt: s.clock().UTC(),
		Status:  StatusArmed,
	}
	if err := s.repo.Create(ctx, sched); err != nil {
		return models.FollowUpSchedule{}, fmt.Errorf("arm follow-up: %w", err)
	}
	s.logger.Info("follow-up armed", zap.String("lead_id", leadID))
	return sched, nil
}

// RunDue evaluates every armed schedule against now. It is driven by an
// external periodic trigger (ticker or API call); each invocation is an
// independent unit of work and safe to repeat.
func (s *Service) RunDue(ctx context.Context, now time.Time) error {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	delay1 := time.Duration(clamp(settings.FollowUp1DelayHours, s.cfg.FollowUp1MinHours, s.cfg.FollowUp1MaxHours)) * time.Hour
	delay2 := time.Duration(clamp(settings.FollowUp2DelayHours, s.cfg.FollowUp2MinHours, s.cfg.FollowUp2MaxHours)) * time.Hour

	scheds, err := s.repo.ListArmed(ctx)
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}

	for _, sched := range scheds {
		if err := s.evaluate(ctx, sched, settings, now, delay1, delay2); err != nil {
			s.logger.Error("follow-up evaluation failed",
				zap.String("lead_id", sched.LeadID),
				zap.Error(err))
		}
	}
	return nil
}

func (s *Service) evaluate(ctx context.Context, sched models.FollowUpSchedule, settings models.BotSettings, now time.Time, delay1, delay2 time.Duration) error {
	lead, err := s.leadRepo.Get(ctx, sched.LeadID)
	if err != nil {
		return err
	}

	// The lead advancing past novo means it responded or a human picked it
	// up; re-engagement is off.
	if lead.Status != models.StatusNovo {
		sched.Status = StatusCancelled
		if err := s.repo.Update(ctx, sched); err != nil {
			return err
		}
		return s.history.Record(ctx, lead.ID, nil, ActionCancelled, "", lead.Status)
	}

	if sched.Stage1SentAt == nil {
		if now.Before(sched.ArmedAt.Add(delay1)) {
			return nil
		}
		// Stage 2 waits for the next evaluation even if also due, so the
		// stages can never arrive out of order.
		return s.dispatch(ctx, &sched, lead, 1, settings.FollowUp1Template, now)
	}

	// Stage 2 is anchored on armed_at, not on stage 1's send time.
	if settings.FollowUp2Enabled && sched.Stage2SentAt == nil && !now.Before(sched.ArmedAt.Add(delay2)) {
		if err := s.dispatch(ctx, &sched, lead, 2, settings.FollowUp2Template, now); err != nil {
			return err
		}
		sched.Status = StatusCompleted
		return s.repo.Update(ctx, sched)
	}

	if !settings.FollowUp2Enabled && sched.Stage1SentAt != nil {
		sched.Status = StatusCompleted
		return s.repo.Update(ctx, sched)
	}
	return nil
}

// dispatch sends one stage and only then writes the sent marker and the
// audit entry. A send failure leaves the marker unset for the next run.
func (s *Service) dispatch(ctx context.Context, sched *models.FollowUpSchedule, lead models.Lead, stage int, template string, now time.Time) error {
	if template == "" {
		return fmt.Errorf("stage %d template not configured", stage)
	}

	instance := s.instanceForUnit(lead.Unit)
	if instance == nil {
		return fmt.Errorf("no instance configured for unit %q", lead.Unit)
	}

	body := Render(template, lead)
	if err := s.sender.SendText(ctx, *instance, lead.Phone, body); err != nil {
		return fmt.Errorf("send stage %d: %w", stage, err)
	}

	sent := now.UTC()
	action := ActionStage1Sent
	if stage == 1 {
		sched.Stage1SentAt = &sent
	} else {
		sched.Stage2SentAt = &sent
		action = ActionStage2Sent
	}
	if err := s.repo.Update(ctx, *sched); err != nil {
		return fmt.Errorf("mark stage %d sent: %w", stage, err)
	}
	if err := s.history.Record(ctx, lead.ID, nil, action, "", body); err != nil {
		return fmt.Errorf("record stage %d: %w", stage, err)
	}

	s.recordOutbound(ctx, instance.ID, lead.Phone, body, sent)
	s.logger.Info("follow-up sent",
		zap.String("lead_id", lead.ID),
		zap.Int("stage", stage))
	return nil
}

// recordOutbound persists the follow-up into the lead's conversation when
// one exists. Best-effort: the stage already dispatched.
func (s *Service) recordOutbound(ctx context.Context, instanceID, phone, body string, ts time.Time) {
	conv, err := s.convRepo.GetByInstancePhone(ctx, instanceID, phone)
	if err != nil {
		return
	}
	if _, err := s.convs.Record(ctx, conversations.RecordInput{
		ConversationID: conv.ID,
		FromMe:         true,
		Type:           "text",
		Content:        body,
		Timestamp:      ts,
	}); err != nil {
		s.logger.Warn("record follow-up message", zap.Error(err))
	}
}

func (s *Service) instanceForUnit(unit string) *config.Instance {
	for i := range s.cfg.Instances {
		if s.cfg.Instances[i].Unit == unit {
			return &s.cfg.Instances[i]
		}
	}
	return nil
}

// Render interpolates lead attributes into a follow-up template using the
// same fixed placeholder set the bot messages use.
func Render(template string, lead models.Lead) string {
	vars := map[string]string{
		"nome":       lead.Name,
		"unidade":    lead.Unit,
		"mes":        lead.Month,
		"dia":        lead.DayPreference,
		"convidados": strconv.Itoa(lead.GuestCount),
	}
	out := template
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
