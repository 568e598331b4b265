package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/genesoftai/genesoft-core-api-sub001/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(srv *httptest.Server) *AnthropicAgent {
	return &AnthropicAgent{
		apiKey:     "test-key",
		baseURL:    srv.URL,
		client:     srv.Client(),
		retryDelay: time.Millisecond,
	}
}

func TestConverseMapsHistoryAndDocuments(t *testing.T) {
	var captured anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "Here is a plan."}},
		})
	}))
	defer srv.Close()

	agent := newTestAgent(srv)
	reply, err := agent.Converse(context.Background(), AgentContext{
		History: []models.Message{
			{SenderType: models.SenderUser, Content: "Build a checkout page"},
			{SenderType: models.SenderAIAgent, Content: "What payment methods?"},
			{SenderType: models.SenderUser, Content: "Cards only"},
		},
		Documents: []string{"Project: Storefront", "Latest iteration: type=page_development status=todo"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Here is a plan.", reply)

	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "assistant", captured.Messages[1].Role)
	assert.Equal(t, "user", captured.Messages[2].Role)
	assert.Contains(t, captured.System, "Project: Storefront")
	assert.Contains(t, captured.System, "Latest iteration")
}

func TestConverseAPIErrorNotRetried(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "rate_limit_error", "message": "overloaded"},
		})
	}))
	defer srv.Close()

	agent := newTestAgent(srv)
	_, err := agent.Converse(context.Background(), AgentContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
	assert.Equal(t, 1, requests)
}

func TestConverseRetriesServerErrors(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "Recovered."}},
		})
	}))
	defer srv.Close()

	agent := newTestAgent(srv)
	reply, err := agent.Converse(context.Background(), AgentContext{})
	require.NoError(t, err)
	assert.Equal(t, "Recovered.", reply)
	assert.Equal(t, 3, requests)
}

func TestConverseGivesUpAfterBoundedRetries(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("backend down"))
	}))
	defer srv.Close()

	agent := newTestAgent(srv)
	_, err := agent.Converse(context.Background(), AgentContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, converseAttempts, requests)
}

func TestConverseEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"content": []any{}})
	}))
	defer srv.Close()

	agent := newTestAgent(srv)
	_, err := agent.Converse(context.Background(), AgentContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}
