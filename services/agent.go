package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/genesoftai/genesoft-core-api-sub001/models"
)

const (
	anthropicAPIURL = "https://api.anthropic.com/v1/messages"
	anthropicModel  = "claude-sonnet-4-20250514"

	converseAttempts   = 3
	converseRetryDelay = 500 * time.Millisecond
)

// AgentContext is the bounded context handed to the agent for one turn:
// the full ordered message history plus opaque contextual documents
// (project documentation, latest iteration status) supplied by the caller.
type AgentContext struct {
	History   []models.Message
	Documents []string
}

// Agent is the LLM-backed responder consulted during message relay.
type Agent interface {
	Converse(ctx context.Context, agentCtx AgentContext) (string, error)
}

// AnthropicAgent implements Agent against the Anthropic Messages API.
type AnthropicAgent struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	retryDelay time.Duration
}

// NewAnthropicAgent creates a new Anthropic-backed agent.
func NewAnthropicAgent(apiKey string) *AnthropicAgent {
	return &AnthropicAgent{
		apiKey:  apiKey,
		baseURL: anthropicAPIURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		retryDelay: converseRetryDelay,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Converse sends the assembled context to Claude and returns the reply
// text. Transport failures and 5xx responses are retried a bounded number
// of times; API-level errors are surfaced immediately.
func (a *AnthropicAgent) Converse(ctx context.Context, agentCtx AgentContext) (string, error) {
	messages := make([]anthropicMessage, 0, len(agentCtx.History))
	for _, msg := range agentCtx.History {
		role := "user"
		if msg.SenderType == models.SenderAIAgent {
			role = "assistant"
		}
		messages = append(messages, anthropicMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	reqBody := anthropicRequest{
		Model:     anthropicModel,
		MaxTokens: 4096,
		System:    strings.Join(agentCtx.Documents, "\n\n"),
		Messages:  messages,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < converseAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(a.retryDelay * time.Duration(attempt)):
			}
		}

		body, retryable, err := a.send(ctx, jsonBody)
		if err != nil {
			lastErr = err
			if retryable {
				continue
			}
			return "", err
		}

		var anthropicResp anthropicResponse
		if err := json.Unmarshal(body, &anthropicResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal response: %w", err)
		}

		if anthropicResp.Error != nil {
			return "", fmt.Errorf("anthropic API error: %s", anthropicResp.Error.Message)
		}

		if len(anthropicResp.Content) == 0 {
			return "", fmt.Errorf("empty response from Anthropic")
		}

		return anthropicResp.Content[0].Text, nil
	}
	return "", lastErr
}

// send performs one request attempt and reports whether a failure is worth
// retrying.
func (a *AnthropicAgent) send(ctx context.Context, jsonBody []byte) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, false, nil
}
