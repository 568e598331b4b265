package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendEmail(t *testing.T) {
	var captured Email
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email-1"})
	}))
	defer srv.Close()

	mailer := &ResendMailer{apiKey: "test-key", baseURL: srv.URL, client: srv.Client()}
	err := mailer.Send(context.Background(), Email{
		From:    "notifications@genesoft.ai",
		To:      []string{"owner@example.com"},
		Subject: "Development iteration started for Checkout",
		HTML:    "<p>Sprint 1</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"owner@example.com"}, captured.To)
	assert.Contains(t, captured.Subject, "Checkout")
}

func TestSendEmailAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from address"}`))
	}))
	defer srv.Close()

	mailer := &ResendMailer{apiKey: "test-key", baseURL: srv.URL, client: srv.Client()}
	err := mailer.Send(context.Background(), Email{To: []string{"x@example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 422")
}
