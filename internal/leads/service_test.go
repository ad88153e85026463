package leads

import (
	"context"
	"testing"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/history"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *history.MemoryRepo) {
	t.Helper()
	histRepo := history.NewMemoryRepo()
	return NewService(NewMemoryRepo(), history.NewService(histRepo), ws.NopNotifier{}, zap.NewNop()), histRepo
}

func mustCreate(t *testing.T, svc *Service, name string) models.Lead {
	t.Helper()
	lead, err := svc.Create(context.Background(), CreateInput{
		Name:  name,
		Phone: "5511999990000",
		Unit:  "centro",
	}, nil)
	require.NoError(t, err)
	return lead
}

func entriesFor(t *testing.T, svc *Service, leadID, action string) []models.LeadHistory {
	t.Helper()
	all, err := svc.History(context.Background(), leadID)
	require.NoError(t, err)
	var out []models.LeadHistory
	for _, e := range all {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func TestCreateStartsAtNovoAndAudits(t *testing.T) {
	svc, _ := newTestService(t)
	lead := mustCreate(t, svc, "Maria")

	assert.Equal(t, models.StatusNovo, lead.Status)
	assert.Equal(t, "5511999990000", lead.Phone)
	created := entriesFor(t, svc, lead.ID, ActionLeadCreated)
	require.Len(t, created, 1)
	assert.Equal(t, "Maria", created[0].NewValue)
	assert.Nil(t, created[0].UserID)
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateInput{Name: "   "}, nil)
	assert.ErrorIs(t, err, ErrInvalidLead)
}

func TestMoveForwardWalksPipelineWithOneEntryPerMove(t *testing.T) {
	svc, _ := newTestService(t)
	lead := mustCreate(t, svc, "Maria")
	ctx := context.Background()
	actor := "user-1"

	lead, err := svc.MoveForward(ctx, lead.ID, &actor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEmContato, lead.Status)

	lead, err = svc.MoveForward(ctx, lead.ID, &actor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOrcamentoEnviado, lead.Status)

	changes := entriesFor(t, svc, lead.ID, ActionStatusChanged)
	require.Len(t, changes, 2)
	assert.Equal(t, models.StatusNovo, changes[0].OldValue)
	assert.Equal(t, models.StatusEmContato, changes[0].NewValue)
	assert.Equal(t, models.StatusEmContato, changes[1].OldValue)
	assert.Equal(t, models.StatusOrcamentoEnviado, changes[1].NewValue)
	assert.Equal(t, &actor, changes[0].UserID)
}

func TestMoveForwardNoOpAtLastLinearColumn(t *testing.T) {
	svc, _ := newTestService(t)
	lead := mustCreate(t, svc, "Maria")
	ctx := context.Background()

	var err error
	for i := 0; i < 3; i++ {
		lead, err = svc.MoveForward(ctx, lead.ID, nil)
		require.NoError(t, err)
	}
	require.Equal(t, models.StatusAguardandoResposta, lead.Status)

	lead, err = svc.MoveForward(ctx, lead.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAguardandoResposta, lead.Status)
	assert.Len(t, entriesFor(t, svc, lead.ID, ActionStatusChanged), 3)
}

func TestMoveBackwardNoOpAtNovo(t *testing.T) {
	svc, _ := newTestService(t)
	lead := mustCreate(t, svc, "Maria")

	lead, err := svc.MoveBackward(context.Background(), lead.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNovo, lead.Status)
	assert.Empty(t, entriesFor(t, svc, lead.ID, ActionStatusChanged))
}

func TestAdjacentMovesRejectedOutsideLinearPipeline(t *testing.T) {
	svc, _ := newTestService(t)
	lead := mustCreate(t, svc, "Maria")
	ctx := context.Background()

	_, err := svc.MoveTo(ctx, lead.ID, models.StatusTransferido, nil)
	require.NoError(t, err)

	_, err = svc.MoveForward(ctx, lead.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.MoveBackward(ctx, lead.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMoveToValidation(t *testing.T) {
	svc, _ := newTestService(t)
	lead := mustCreate(t, svc, "Maria")
	ctx := context.Background()

	_, err := svc.MoveTo(ctx, lead.ID, "arquivado", nil)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	// Same-status moves change nothing and write nothing.
	same, err := svc.MoveTo(ctx, lead.ID, models.StatusNovo, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNovo, same.Status)
	assert.Empty(t, entriesFor(t, svc, lead.ID, ActionStatusChanged))
}

func TestTerminalStatusesAcceptNoFurtherMoves(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, terminal := range []string{models.StatusFechado, models.StatusPerdido} {
		lead := mustCreate(t, svc, "Maria")
		_, err := svc.MoveTo(ctx, lead.ID, terminal, nil)
		require.NoError(t, err)

		_, err = svc.MoveTo(ctx, lead.ID, models.StatusNovo, nil)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
}

func TestMoveToAllowsRegression(t *testing.T) {
	svc, _ := newTestService(t)
	lead := mustCreate(t, svc, "Maria")
	ctx := context.Background()

	_, err := svc.MoveTo(ctx, lead.ID, models.StatusOrcamentoEnviado, nil)
	require.NoError(t, err)
	lead, err = svc.MoveTo(ctx, lead.ID, models.StatusEmContato, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEmContato, lead.Status)
	assert.Len(t, entriesFor(t, svc, lead.ID, ActionStatusChanged), 2)
}

func TestFieldUpdatesAuditOldAndNew(t *testing.T) {
	svc, _ := newTestService(t)
	lead := mustCreate(t, svc, "Maria")
	ctx := context.Background()
	actor := "user-1"

	lead, err := svc.UpdateName(ctx, lead.ID, "Maria Silva", &actor)
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", lead.Name)
	renames := entriesFor(t, svc, lead.ID, ActionNameUpdated)
	require.Len(t, renames, 1)
	assert.Equal(t, "Maria", renames[0].OldValue)
	assert.Equal(t, "Maria Silva", renames[0].NewValue)

	lead, err = svc.UpdateNotes(ctx, lead.ID, "prefere sábado", &actor)
	require.NoError(t, err)
	assert.Equal(t, "prefere sábado", lead.Notes)
	require.Len(t, entriesFor(t, svc, lead.ID, ActionNotesUpdated), 1)

	lead, err = svc.UpdateQualification(ctx, lead.ID, Qualification{Month: "março", DayPreference: "sábado", GuestCount: 40}, &actor)
	require.NoError(t, err)
	assert.Equal(t, 40, lead.GuestCount)
	require.Len(t, entriesFor(t, svc, lead.ID, ActionQualificationUpdated), 1)
}

func TestUnchangedFieldUpdateWritesNothing(t *testing.T) {
	svc, _ := newTestService(t)
	lead := mustCreate(t, svc, "Maria")

	_, err := svc.UpdateName(context.Background(), lead.ID, "Maria", nil)
	require.NoError(t, err)
	assert.Empty(t, entriesFor(t, svc, lead.ID, ActionNameUpdated))
}

func TestDeleteRemovesLeadAndTrail(t *testing.T) {
	svc, histRepo := newTestService(t)
	lead := mustCreate(t, svc, "Maria")
	ctx := context.Background()
	_, err := svc.MoveForward(ctx, lead.ID, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, lead.ID, nil))

	_, err = svc.Get(ctx, lead.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	for _, e := range histRepo.All() {
		assert.NotEqual(t, lead.ID, e.LeadID)
	}
}

func TestDeleteUnknownLead(t *testing.T) {
	svc, _ := newTestService(t)
	assert.ErrorIs(t, svc.Delete(context.Background(), "missing", nil), ErrNotFound)
}
