package followup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/config"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/conversations"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/history"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/leads"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/ws"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSettings struct {
	s models.BotSettings
}

func (f *fakeSettings) Settings(context.Context) (models.BotSettings, error) {
	return f.s, nil
}

type fakeSender struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeSender) SendText(_ context.Context, _ config.Instance, _ string, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, body)
	return nil
}

func (f *fakeSender) SendImage(context.Context, config.Instance, string, string, string) error {
	return nil
}
func (f *fakeSender) SendAudio(context.Context, config.Instance, string, string) error { return nil }
func (f *fakeSender) SendDocument(context.Context, config.Instance, string, string, string, string) error {
	return nil
}
func (f *fakeSender) SendVideo(context.Context, config.Instance, string, string, string) error {
	return nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fixture struct {
	svc      *Service
	repo     *MemoryRepo
	leads    *leads.MemoryRepo
	sender   *fakeSender
	settings *fakeSettings
	hist     *history.MemoryRepo
	convs    *conversations.Service
}

func testSettings() models.BotSettings {
	return models.BotSettings{
		FollowUp1DelayHours: 24,
		FollowUp2Enabled:    true,
		FollowUp2DelayHours: 48,
		FollowUp1Template:   "Oi {nome}, ainda pensando na festa na unidade {unidade}?",
		FollowUp2Template:   "Última chance, {nome}!",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{
		Instances:         []config.Instance{{ID: "inst1", Unit: "centro"}},
		FollowUp1MinHours: 1,
		FollowUp1MaxHours: 72,
		FollowUp2MinHours: 24,
		FollowUp2MaxHours: 96,
	}
	repo := NewMemoryRepo()
	leadRepo := leads.NewMemoryRepo()
	histRepo := history.NewMemoryRepo()
	convRepo := conversations.NewMemoryRepo()
	convs := conversations.NewService(convRepo, ws.NopNotifier{}, logger)
	sender := &fakeSender{}
	settings := &fakeSettings{s: testSettings()}
	svc := NewService(repo, leadRepo, convs, convRepo, settings, sender, history.NewService(histRepo), cfg, logger)
	return &fixture{
		svc:      svc,
		repo:     repo,
		leads:    leadRepo,
		sender:   sender,
		settings: settings,
		hist:     histRepo,
		convs:    convs,
	}
}

func (f *fixture) newLead(t *testing.T, status string) models.Lead {
	t.Helper()
	lead := models.Lead{
		ID:     uuid.NewString(),
		Name:   "Maria",
		Phone:  "5511999990000",
		Unit:   "centro",
		Status: status,
	}
	require.NoError(t, f.leads.Create(context.Background(), lead))
	return lead
}

func (f *fixture) actions(leadID string) []string {
	var out []string
	for _, e := range f.hist.All() {
		if e.LeadID == leadID {
			out = append(out, e.Action)
		}
	}
	return out
}

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestArmIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.newLead(t, models.StatusNovo)
	f.svc.clock = func() time.Time { return t0 }

	first, err := f.svc.Arm(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArmed, first.Status)
	assert.Equal(t, t0, first.ArmedAt)

	f.svc.clock = func() time.Time { return t0.Add(5 * time.Hour) }
	again, err := f.svc.Arm(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	// Re-arming keeps the original anchor.
	assert.Equal(t, t0, again.ArmedAt)
}

func TestStage1FiresAfterDelay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.newLead(t, models.StatusNovo)
	f.svc.clock = func() time.Time { return t0 }
	_, err := f.svc.Arm(ctx, lead.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.RunDue(ctx, t0.Add(23*time.Hour)))
	assert.Empty(t, f.sender.sent())

	require.NoError(t, f.svc.RunDue(ctx, t0.Add(24*time.Hour)))
	sent := f.sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Oi Maria, ainda pensando na festa na unidade centro?", sent[0])

	sched, err := f.repo.GetByLead(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, sched.Stage1SentAt)
	assert.Nil(t, sched.Stage2SentAt)
	assert.Contains(t, f.actions(lead.ID), ActionStage1Sent)
}

func TestStage1SendsAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.newLead(t, models.StatusNovo)
	f.svc.clock = func() time.Time { return t0 }
	_, err := f.svc.Arm(ctx, lead.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.RunDue(ctx, t0.Add(25*time.Hour)))
	require.NoError(t, f.svc.RunDue(ctx, t0.Add(26*time.Hour)))
	assert.Len(t, f.sender.sent(), 1)
}

func TestStage2AnchoredOnArmedAtNotStage1Send(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.newLead(t, models.StatusNovo)
	f.svc.clock = func() time.Time { return t0 }
	_, err := f.svc.Arm(ctx, lead.ID)
	require.NoError(t, err)

	// Stage 1 goes out late, at armed_at+40h.
	require.NoError(t, f.svc.RunDue(ctx, t0.Add(40*time.Hour)))
	require.Len(t, f.sender.sent(), 1)

	// Stage 2 is due at armed_at+48h, not stage1_sent_at+48h.
	require.NoError(t, f.svc.RunDue(ctx, t0.Add(48*time.Hour)))
	sent := f.sender.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Última chance, Maria!", sent[1])

	sched, err := f.repo.GetByLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, sched.Status)
	assert.Contains(t, f.actions(lead.ID), ActionStage2Sent)
}

func TestStagesNeverArriveOutOfOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.newLead(t, models.StatusNovo)
	f.svc.clock = func() time.Time { return t0 }
	_, err := f.svc.Arm(ctx, lead.ID)
	require.NoError(t, err)

	// Both stages overdue in one pass: only stage 1 goes out.
	require.NoError(t, f.svc.RunDue(ctx, t0.Add(100*time.Hour)))
	require.Len(t, f.sender.sent(), 1)
	assert.Contains(t, f.sender.sent()[0], "Oi Maria")

	require.NoError(t, f.svc.RunDue(ctx, t0.Add(101*time.Hour)))
	assert.Len(t, f.sender.sent(), 2)
}

func TestCancelledWhenLeadLeavesNovo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.newLead(t, models.StatusNovo)
	f.svc.clock = func() time.Time { return t0 }
	_, err := f.svc.Arm(ctx, lead.ID)
	require.NoError(t, err)

	lead.Status = models.StatusEmContato
	require.NoError(t, f.leads.Update(ctx, lead))

	require.NoError(t, f.svc.RunDue(ctx, t0.Add(30*time.Hour)))
	assert.Empty(t, f.sender.sent())

	sched, err := f.repo.GetByLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, sched.Status)
	assert.Contains(t, f.actions(lead.ID), ActionCancelled)
}

func TestFailedSendStaysRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.newLead(t, models.StatusNovo)
	f.svc.clock = func() time.Time { return t0 }
	_, err := f.svc.Arm(ctx, lead.ID)
	require.NoError(t, err)

	f.sender.err = errors.New("gateway timeout")
	require.NoError(t, f.svc.RunDue(ctx, t0.Add(25*time.Hour)))

	sched, err := f.repo.GetByLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, sched.Stage1SentAt)
	assert.Equal(t, StatusArmed, sched.Status)
	assert.NotContains(t, f.actions(lead.ID), ActionStage1Sent)

	f.sender.err = nil
	require.NoError(t, f.svc.RunDue(ctx, t0.Add(26*time.Hour)))
	assert.Len(t, f.sender.sent(), 1)
}

func TestStage2Disabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.newLead(t, models.StatusNovo)
	f.settings.s.FollowUp2Enabled = false
	f.svc.clock = func() time.Time { return t0 }
	_, err := f.svc.Arm(ctx, lead.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.RunDue(ctx, t0.Add(25*time.Hour)))
	require.NoError(t, f.svc.RunDue(ctx, t0.Add(200*time.Hour)))
	assert.Len(t, f.sender.sent(), 1)

	sched, err := f.repo.GetByLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, sched.Status)
}

func TestDelaysClampedToConfiguredBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.newLead(t, models.StatusNovo)
	f.settings.s.FollowUp1DelayHours = 500
	f.svc.clock = func() time.Time { return t0 }
	_, err := f.svc.Arm(ctx, lead.ID)
	require.NoError(t, err)

	// 500h clamps down to the 72h ceiling.
	require.NoError(t, f.svc.RunDue(ctx, t0.Add(72*time.Hour)))
	assert.Len(t, f.sender.sent(), 1)
}

func TestDispatchRecordsIntoExistingConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.newLead(t, models.StatusNovo)
	conv, err := f.convs.Ensure(ctx, "inst1", lead.Phone, "Maria", "centro")
	require.NoError(t, err)

	f.svc.clock = func() time.Time { return t0 }
	_, err = f.svc.Arm(ctx, lead.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.RunDue(ctx, t0.Add(25*time.Hour)))

	msgs, err := f.convs.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].FromMe)
	assert.Contains(t, msgs[0].Content, "Oi Maria")
}

func TestRenderUsesLeadAttributes(t *testing.T) {
	lead := models.Lead{Name: "Maria", Unit: "centro", Month: "março", DayPreference: "sábado", GuestCount: 40}
	out := Render("{nome} / {unidade} / {mes} / {dia} / {convidados} / {desconhecido}", lead)
	assert.Equal(t, "Maria / centro / março / sábado / 40 / {desconhecido}", out)
}
