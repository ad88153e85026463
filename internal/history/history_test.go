package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAppendsEntry(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	actor := "user-1"
	require.NoError(t, svc.Record(context.Background(), "lead-1", &actor, "status_changed", "novo", "em_contato"))

	entries, err := svc.ListByLead(context.Background(), "lead-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "status_changed", entries[0].Action)
	assert.Equal(t, "novo", entries[0].OldValue)
	assert.Equal(t, "em_contato", entries[0].NewValue)
	assert.Equal(t, &actor, entries[0].UserID)
	assert.Equal(t, now, entries[0].CreatedAt)
	assert.NotEmpty(t, entries[0].ID)
}

func TestRecordValidatesSubjectAndAction(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	assert.ErrorIs(t, svc.Record(context.Background(), "", nil, "x", "", ""), ErrInvalidEntry)
	assert.ErrorIs(t, svc.Record(context.Background(), "lead-1", nil, "", "", ""), ErrInvalidEntry)
}

func TestHas(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, "lead-1", nil, "followup_1_sent", "", "body"))

	ok, err := svc.Has(ctx, "lead-1", "followup_1_sent")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Has(ctx, "lead-1", "followup_2_sent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteByLeadRemovesOnlyThatTrail(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, "lead-1", nil, "lead_created", "", "a"))
	require.NoError(t, svc.Record(ctx, "lead-2", nil, "lead_created", "", "b"))

	require.NoError(t, svc.DeleteByLead(ctx, "lead-1"))

	gone, err := svc.ListByLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Empty(t, gone)
	kept, err := svc.ListByLead(ctx, "lead-2")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}
