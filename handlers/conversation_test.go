package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/genesoftai/genesoft-core-api-sub001/models"
	"github.com/genesoftai/genesoft-core-api-sub001/store"
	"github.com/genesoftai/genesoft-core-api-sub001/workflows"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRouter wires the read and validation paths; workflow-backed
// mutations need a running DBOS context and are exercised in the
// workflows package instead.
func newTestRouter(st store.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewConversationHandler(st, nil, workflows.NewConversationWorkflows(st, nil, nil, ""))

	router := gin.New()
	api := router.Group("/api")
	api.GET("/conversations", handler.ListConversations)
	api.GET("/conversations/:id", handler.GetConversation)
	api.POST("/talk", handler.Talk)
	return router
}

func seedConversation(t *testing.T, st *store.MemoryStore) models.Conversation {
	t.Helper()
	ctx := context.Background()

	conv, err := st.CreateConversation(ctx, uuid.New(), nil, nil)
	require.NoError(t, err)
	_, err = st.AppendMessage(ctx, conv.ID, models.SenderUser, "user-1", "Hi", "text")
	require.NoError(t, err)
	_, err = st.AppendMessage(ctx, conv.ID, models.SenderAIAgent, "genesoft-agent", "Hello!", "text")
	require.NoError(t, err)
	return conv
}

func TestGetConversation(t *testing.T) {
	st := store.NewMemoryStore()
	conv := seedConversation(t, st)
	router := newTestRouter(st)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+conv.ID.String(), nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body models.ConversationWithMessages
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, conv.ID, body.Conversation.ID)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, models.SenderUser, body.Messages[0].SenderType)
	assert.Equal(t, models.SenderAIAgent, body.Messages[1].SenderType)
}

func TestGetConversationNotFound(t *testing.T) {
	router := newTestRouter(store.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+uuid.NewString(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetConversationBadID(t *testing.T) {
	router := newTestRouter(store.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/not-a-uuid", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListConversationsByProject(t *testing.T) {
	st := store.NewMemoryStore()
	conv := seedConversation(t, st)
	seedConversation(t, st)
	router := newTestRouter(st)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations?project_id="+conv.ProjectID.String(), nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body []models.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, conv.ID, body[0].ID)
}

func TestListConversationsBadFilter(t *testing.T) {
	router := newTestRouter(store.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations?page_id=nope", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTalkRequiresTarget(t *testing.T) {
	router := newTestRouter(store.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/talk", strings.NewReader(`{"content":"Hi"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTalkRequiresContent(t *testing.T) {
	router := newTestRouter(store.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/talk", strings.NewReader(`{"project_id":"`+uuid.NewString()+`"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
