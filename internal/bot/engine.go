// Package bot drives a contact through the scripted qualification dialog:
// ordered questions, collected answers, the existing-customer branch and
// the post-completion next-step menu. The session pointer only ever
// advances after the next outbound send succeeds, so a delivery failure can
// never make the script skip a step.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/config"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/conversations"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/followup"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/history"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/leads"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/linker"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/phone"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/whatsapp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrMissingTemplate means an admin-configured text is absent. Fatal to the
// single send attempt; the session keeps its position for manual recovery.
var ErrMissingTemplate = errors.New("bot: configured message text missing")

// Well-known step keys. The step order itself is admin-configured; tipo is
// special only in that its answer feeds the existing-customer branch.
const (
	StepNome       = "nome"
	StepTipo       = "tipo"
	StepMes        = "mes"
	StepDia        = "dia"
	StepConvidados = "convidados"

	// stepMenu is the synthetic position after the last question, waiting
	// for the next-step menu reply.
	stepMenu = "menu"
)

// Session statuses.
const (
	SessionActive      = "active"
	SessionCompleted   = "completed"
	SessionTransferred = "transferred"
)

// History action labels written by the engine.
const (
	ActionVisitRequested = "visit_requested"
	ActionAnalyzeLater   = "analyze_later"
)

// Menu tokens form a closed set; anything else is left for a human.
const (
	menuVisit     = "1"
	menuQuestions = "2"
	menuAnalyze   = "3"
)

type Engine struct {
	repo      Repository
	convs     *conversations.Service
	leads     *leads.Service
	linker    *linker.Service
	followups *followup.Service
	hist      *history.Service
	sender    whatsapp.Sender
	cfg       *config.Config
	logger    *zap.Logger
	clock     func() time.Time

	// sleep separates sequenced material sends; swapped out in tests.
	sleep func(time.Duration)
}

func NewEngine(repo Repository, convs *conversations.Service, leadSvc *leads.Service, link *linker.Service, followups *followup.Service, hist *history.Service, sender whatsapp.Sender, cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		repo:      repo,
		convs:     convs,
		leads:     leadSvc,
		linker:    link,
		followups: followups,
		hist:      hist,
		sender:    sender,
		cfg:       cfg,
		logger:    logger,
		clock:     time.Now,
		sleep:     time.Sleep,
	}
}

// HandleInbound processes one inbound text message for a conversation.
// Errors are surfaced for logging but never advance or destroy the session.
func (e *Engine) HandleInbound(ctx context.Context, conv models.Conversation, text string) error {
	settings, err := e.repo.Settings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applies, err := e.applies(ctx, settings, conv)
	if err != nil {
		return err
	}
	if !applies {
		return nil
	}

	steps, err := e.repo.ActiveQuestions(ctx)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	if len(steps) == 0 {
		return nil
	}

	sess, err := e.repo.GetSession(ctx, conv.ID)
	if errors.Is(err, ErrSessionNotFound) {
		// First qualifying inbound from an unqualified contact: only start
		// a script for conversations not already attached to a lead.
		if conv.LeadID != nil {
			return nil
		}
		return e.startSession(ctx, conv, steps)
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess.Status != SessionActive {
		return nil
	}

	if sess.CurrentStep == stepMenu {
		return e.handleMenu(ctx, conv, sess, settings, text)
	}
	return e.advance(ctx, conv, sess, settings, steps, text)
}

// applies implements the gate: (global enabled OR test number) AND not VIP
// AND conversation flag not explicitly off.
func (e *Engine) applies(ctx context.Context, settings models.BotSettings, conv models.Conversation) (bool, error) {
	if !settings.Enabled && !phone.Matches(conv.Phone, settings.TestNumber) {
		return false, nil
	}
	vip, err := e.repo.IsVIP(ctx, conv.Phone)
	if err != nil {
		return false, fmt.Errorf("vip lookup: %w", err)
	}
	if vip {
		return false, nil
	}
	if conv.BotEnabled != nil {
		return *conv.BotEnabled, nil
	}
	return e.cfg.InstanceBotDefault, nil
}

func (e *Engine) startSession(ctx context.Context, conv models.Conversation, steps []models.BotQuestion) error {
	first := steps[0]
	if err := e.send(ctx, conv, Render(first.Question, e.vars(conv, nil, ""))); err != nil {
		return err
	}
	sess := models.BotSession{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		CurrentStep:    first.StepKey,
		Answers:        "{}",
		Status:         SessionActive,
		CreatedAt:      e.clock().UTC(),
	}
	if err := e.repo.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	e.logger.Info("bot session started",
		zap.String("conversation_id", conv.ID),
		zap.String("step", first.StepKey))
	return nil
}

// advance consumes the inbound answer for the current step and moves on.
func (e *Engine) advance(ctx context.Context, conv models.Conversation, sess models.BotSession, settings models.BotSettings, steps []models.BotQuestion, answer string) error {
	idx := stepIndex(steps, sess.CurrentStep)
	if idx < 0 {
		// The active question set changed under the session. Hold position
		// for manual recovery rather than guessing.
		e.logger.Error("session step no longer configured",
			zap.String("conversation_id", conv.ID),
			zap.String("step", sess.CurrentStep))
		return nil
	}
	step := steps[idx]

	answers := parseAnswers(sess.Answers)
	answers[step.StepKey] = strings.TrimSpace(answer)

	// Existing-customer branch: short-circuit to transfer, bot off.
	if step.StepKey == StepTipo && classifyExistingCustomer(settings, answer) {
		return e.transfer(ctx, conv, sess, settings, answers)
	}

	vars := e.vars(conv, answers, strings.TrimSpace(answer))
	if step.Confirmation != "" {
		if err := e.send(ctx, conv, Render(step.Confirmation, vars)); err != nil {
			return err
		}
	}

	if idx+1 < len(steps) {
		next := steps[idx+1]
		if err := e.send(ctx, conv, Render(next.Question, vars)); err != nil {
			return err
		}
		sess.CurrentStep = next.StepKey
		sess.Answers = marshalAnswers(answers)
		if err := e.repo.SaveSession(ctx, sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return nil
	}

	return e.complete(ctx, conv, sess, settings, answers)
}

// transfer ends the session for an existing customer: the transfer text
// goes out, the conversation's bot flag is switched off and a human takes
// over. The remaining steps never run for this contact.
func (e *Engine) transfer(ctx context.Context, conv models.Conversation, sess models.BotSession, settings models.BotSettings, answers map[string]string) error {
	if settings.TransferMessage == "" {
		return ErrMissingTemplate
	}
	if err := e.send(ctx, conv, Render(settings.TransferMessage, e.vars(conv, answers, ""))); err != nil {
		return err
	}
	if _, err := e.convs.SetBotEnabled(ctx, conv.ID, false); err != nil {
		return fmt.Errorf("disable bot: %w", err)
	}
	sess.Status = SessionTransferred
	sess.Answers = marshalAnswers(answers)
	if err := e.repo.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	e.logger.Info("session transferred to human", zap.String("conversation_id", conv.ID))
	return nil
}

// complete turns the collected answers into a lead, links the conversation,
// emits completion + menu and leaves the session waiting on the menu reply.
// The lead is created and linked before anything goes out: a failed send
// holds the session at the last question, and the retry reuses the lead
// already attached to the conversation instead of creating a second one.
func (e *Engine) complete(ctx context.Context, conv models.Conversation, sess models.BotSession, settings models.BotSettings, answers map[string]string) error {
	if settings.CompletionMessage == "" || settings.MenuMessage == "" {
		return ErrMissingTemplate
	}

	lead, err := e.qualifiedLead(ctx, conv, answers)
	if err != nil {
		return err
	}

	vars := e.vars(conv, answers, "")
	if err := e.send(ctx, conv, Render(settings.CompletionMessage, vars)); err != nil {
		return err
	}
	if err := e.send(ctx, conv, Render(settings.MenuMessage, vars)); err != nil {
		return err
	}

	sess.CurrentStep = stepMenu
	sess.Answers = marshalAnswers(answers)
	if err := e.repo.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	e.logger.Info("qualification completed",
		zap.String("conversation_id", conv.ID),
		zap.String("lead_id", lead.ID))

	if settings.AutoSendMaterials {
		guests := parseGuests(answers[StepConvidados])
		go e.SendMaterials(context.WithoutCancel(ctx), conv, settings, lead.Name, guests)
	}
	return nil
}

// qualifiedLead returns the lead the completed script belongs to. When the
// conversation is already linked (a previous completion attempt got that
// far) the existing lead is reused. An earlier attempt that created a lead
// but failed the link leaves an unlinked lead with this phone, which
// LinkByPhone picks up. Only when neither exists is a new lead created.
func (e *Engine) qualifiedLead(ctx context.Context, conv models.Conversation, answers map[string]string) (models.Lead, error) {
	if conv.LeadID != nil {
		lead, err := e.leads.Get(ctx, *conv.LeadID)
		if err != nil {
			return models.Lead{}, fmt.Errorf("load linked lead: %w", err)
		}
		return lead, nil
	}

	linked, err := e.linker.LinkByPhone(ctx, conv.ID)
	switch {
	case err == nil:
		lead, err := e.leads.Get(ctx, *linked.LeadID)
		if err != nil {
			return models.Lead{}, fmt.Errorf("load linked lead: %w", err)
		}
		return lead, nil
	case errors.Is(err, linker.ErrNoMatch), errors.Is(err, linker.ErrAmbiguous):
	default:
		return models.Lead{}, fmt.Errorf("link lead: %w", err)
	}

	lead, err := e.leads.Create(ctx, leads.CreateInput{
		Name:          answers[StepNome],
		Phone:         conv.Phone,
		Unit:          conv.Unit,
		Month:         answers[StepMes],
		DayPreference: answers[StepDia],
		GuestCount:    parseGuests(answers[StepConvidados]),
	}, nil)
	if err != nil {
		return models.Lead{}, fmt.Errorf("create lead: %w", err)
	}
	if _, err := e.linker.LinkSystem(ctx, conv.ID, lead.ID); err != nil {
		return models.Lead{}, fmt.Errorf("link lead: %w", err)
	}
	return lead, nil
}

// handleMenu resolves the next-step menu reply from its closed token set.
// Unrecognized input is not new qualification data: it is left untouched
// for human attention.
func (e *Engine) handleMenu(ctx context.Context, conv models.Conversation, sess models.BotSession, settings models.BotSettings, reply string) error {
	if conv.LeadID == nil {
		e.logger.Error("menu reply without linked lead", zap.String("conversation_id", conv.ID))
		return nil
	}
	leadID := *conv.LeadID
	answers := parseAnswers(sess.Answers)
	vars := e.vars(conv, answers, "")

	switch strings.TrimSpace(reply) {
	case menuVisit:
		if settings.VisitMessage == "" {
			return ErrMissingTemplate
		}
		if err := e.send(ctx, conv, Render(settings.VisitMessage, vars)); err != nil {
			return err
		}
		if err := e.repo.CreateVisitIntent(ctx, models.VisitIntent{
			ID:        uuid.NewString(),
			LeadID:    leadID,
			CreatedAt: e.clock().UTC(),
		}); err != nil {
			return fmt.Errorf("create visit intent: %w", err)
		}
		if err := e.hist.Record(ctx, leadID, nil, ActionVisitRequested, "", ""); err != nil {
			return fmt.Errorf("record visit: %w", err)
		}
		return e.closeSession(ctx, sess, answers)

	case menuQuestions:
		// Hand-off: a human answers the open questions.
		if _, err := e.convs.SetBotEnabled(ctx, conv.ID, false); err != nil {
			return fmt.Errorf("disable bot: %w", err)
		}
		return e.closeSession(ctx, sess, answers)

	case menuAnalyze:
		if settings.AnalyzeMessage != "" {
			if err := e.send(ctx, conv, Render(settings.AnalyzeMessage, vars)); err != nil {
				return err
			}
		}
		if _, err := e.followups.Arm(ctx, leadID); err != nil {
			return fmt.Errorf("arm follow-up: %w", err)
		}
		if err := e.hist.Record(ctx, leadID, nil, ActionAnalyzeLater, "", ""); err != nil {
			return fmt.Errorf("record analyze later: %w", err)
		}
		return e.closeSession(ctx, sess, answers)
	}

	return nil
}

func (e *Engine) closeSession(ctx context.Context, sess models.BotSession, answers map[string]string) error {
	sess.Status = SessionCompleted
	sess.Answers = marshalAnswers(answers)
	if err := e.repo.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// send delivers one outbound text and persists it on success.
func (e *Engine) send(ctx context.Context, conv models.Conversation, body string) error {
	if body == "" {
		return ErrMissingTemplate
	}
	instance := e.cfg.InstanceByID(conv.InstanceID)
	if instance == nil {
		return fmt.Errorf("bot: unknown instance %q", conv.InstanceID)
	}
	if err := e.sender.SendText(ctx, *instance, conv.Phone, body); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if _, err := e.convs.Record(ctx, conversations.RecordInput{
		ConversationID: conv.ID,
		FromMe:         true,
		Type:           "text",
		Content:        body,
		Timestamp:      e.clock().UTC(),
	}); err != nil {
		e.logger.Warn("persist outbound message", zap.Error(err))
	}
	return nil
}

// vars builds the interpolation context from the collected answers.
func (e *Engine) vars(conv models.Conversation, answers map[string]string, lastAnswer string) map[string]string {
	vars := map[string]string{"unidade": conv.Unit}
	for k, v := range answers {
		vars[k] = v
	}
	if lastAnswer != "" {
		vars["resposta"] = lastAnswer
	}
	return vars
}

// classifyExistingCustomer applies the admin-configured keyword list to the
// tipo reply. Classification is configuration, not code: an empty list
// never matches.
func classifyExistingCustomer(settings models.BotSettings, reply string) bool {
	reply = strings.ToLower(strings.TrimSpace(reply))
	if reply == "" {
		return false
	}
	for _, kw := range strings.Split(settings.CustomerKeywords, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(reply, kw) {
			return true
		}
	}
	return false
}

func stepIndex(steps []models.BotQuestion, key string) int {
	for i, s := range steps {
		if s.StepKey == key {
			return i
		}
	}
	return -1
}

func parseAnswers(raw string) map[string]string {
	answers := map[string]string{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &answers); err != nil {
			return map[string]string{}
		}
	}
	return answers
}

func marshalAnswers(answers map[string]string) string {
	data, err := json.Marshal(answers)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func parseGuests(raw string) int {
	digits := strings.Builder{}
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}
