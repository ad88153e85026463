package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/conversations"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/history"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/leads"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/linker"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type convFixture struct {
	router *gin.Engine
	convs  *conversations.Service
	leads  *leads.Service
}

func newConvFixture(t *testing.T) *convFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	hist := history.NewService(history.NewMemoryRepo())
	convRepo := conversations.NewMemoryRepo()
	convs := conversations.NewService(convRepo, ws.NopNotifier{}, logger)
	leadRepo := leads.NewMemoryRepo()
	leadSvc := leads.NewService(leadRepo, hist, ws.NopNotifier{}, logger)
	link := linker.NewService(convRepo, leadRepo, convs, hist, ws.NopNotifier{}, logger)
	handler := NewConversationHandler(convs, link)

	router := gin.New()
	router.GET("/api/conversations", handler.List)
	router.GET("/api/conversations/:id/messages", handler.Messages)
	router.POST("/api/conversations/:id/read", handler.MarkRead)
	router.POST("/api/conversations/:id/favorite", handler.ToggleFavorite)
	router.PUT("/api/conversations/:id/bot", handler.SetBotFlag)
	router.POST("/api/conversations/:id/link", handler.Link)
	router.POST("/api/conversations/:id/unlink", handler.Unlink)
	router.GET("/api/conversations/duplicates", handler.Duplicates)
	router.POST("/api/conversations/merge", handler.Merge)

	return &convFixture{router: router, convs: convs, leads: leadSvc}
}

func (f *convFixture) do(t *testing.T, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestListEmptyIsJSONArray(t *testing.T) {
	f := newConvFixture(t)
	rec := f.do(t, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestMarkReadEndpoint(t *testing.T) {
	f := newConvFixture(t)
	ctx := context.Background()
	conv, err := f.convs.Ensure(ctx, "inst1", "5511999990000", "Maria", "centro")
	require.NoError(t, err)
	_, err = f.convs.Record(ctx, conversations.RecordInput{ConversationID: conv.ID, Content: "oi"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out models.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Zero(t, out.UnreadCount)
}

func TestMarkReadUnknownConversation(t *testing.T) {
	f := newConvFixture(t)
	rec := f.do(t, http.MethodPost, "/api/conversations/missing/read", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetBotFlagRequiresExplicitValue(t *testing.T) {
	f := newConvFixture(t)
	ctx := context.Background()
	conv, err := f.convs.Ensure(ctx, "inst1", "5511999990000", "", "centro")
	require.NoError(t, err)

	rec := f.do(t, http.MethodPut, "/api/conversations/"+conv.ID+"/bot", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/conversations/"+conv.ID+"/bot", map[string]interface{}{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	var out models.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out.BotEnabled)
	assert.False(t, *out.BotEnabled)
}

func TestLinkAndUnlinkEndpoints(t *testing.T) {
	f := newConvFixture(t)
	ctx := context.Background()
	conv, err := f.convs.Ensure(ctx, "inst1", "5511999990000", "", "centro")
	require.NoError(t, err)
	lead, err := f.leads.Create(ctx, leads.CreateInput{Name: "Maria", Phone: "5511999990000", Unit: "centro"}, nil)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/link", map[string]string{
		"lead_id": lead.ID,
		"user_id": "user-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var out models.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out.LeadID)
	assert.Equal(t, lead.ID, *out.LeadID)

	rec = f.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/unlink", map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Nil(t, out.LeadID)
}

func TestMergeEndpoint(t *testing.T) {
	f := newConvFixture(t)
	ctx := context.Background()
	primary, err := f.convs.Ensure(ctx, "inst1", "5511999990000", "", "centro")
	require.NoError(t, err)
	secondary, err := f.convs.Ensure(ctx, "inst1", "5511988880000", "", "centro")
	require.NoError(t, err)
	_, err = f.convs.Record(ctx, conversations.RecordInput{ConversationID: secondary.ID, Content: "oi"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/conversations/merge", map[string]interface{}{
		"primary_id":    primary.ID,
		"secondary_ids": []string{secondary.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	msgs, err := f.convs.Messages(ctx, primary.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	_, err = f.convs.Get(ctx, secondary.ID)
	assert.ErrorIs(t, err, conversations.ErrNotFound)
}

func TestMergeUnknownPrimaryReturns404(t *testing.T) {
	f := newConvFixture(t)
	rec := f.do(t, http.MethodPost, "/api/conversations/merge", map[string]interface{}{
		"primary_id":    "missing",
		"secondary_ids": []string{"also-missing"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
