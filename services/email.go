package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const resendAPIURL = "https://api.resend.com/emails"

// Email is one outbound transactional email.
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Mailer sends transactional email. Lifecycle operations treat send
// failures as best-effort: logged and swallowed, never propagated.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// ResendMailer implements Mailer against the Resend API.
type ResendMailer struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewResendMailer creates a new Resend-backed mailer.
func NewResendMailer(apiKey string) *ResendMailer {
	return &ResendMailer{
		apiKey:  apiKey,
		baseURL: resendAPIURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Send delivers one email.
func (m *ResendMailer) Send(ctx context.Context, email Email) error {
	jsonBody, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
