package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation status values. Transitions are forward-only:
// active -> submitted, active -> archived.
const (
	ConversationActive    = "active"
	ConversationSubmitted = "submitted"
	ConversationArchived  = "archived"
)

// Message sender types.
const (
	SenderUser    = "user"
	SenderAIAgent = "ai_agent"
)

// Iteration types minted by conversation submission. The iterations table
// also admits project_creation and feedback iterations, which other flows
// own (see schema.sql).
const (
	IterationPageDevelopment    = "page_development"
	IterationFeatureDevelopment = "feature_development"
)

// Conversation is a dialogue thread scoped to a project and optionally to
// one page or one feature. Scope fields never change after creation.
type Conversation struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   uuid.UUID  `json:"project_id"`
	PageID      *uuid.UUID `json:"page_id,omitempty"`
	FeatureID   *uuid.UUID `json:"feature_id,omitempty"`
	Name        *string    `json:"name,omitempty"`
	Status      string     `json:"status"`
	IterationID *uuid.UUID `json:"iteration_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Message is one turn in a conversation. Messages are immutable and
// ordered by creation time.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderType     string    `json:"sender_type"` // "user" or "ai_agent"
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// Iteration is a unit of development work spawned from a submitted
// conversation.
type Iteration struct {
	ID             uuid.UUID  `json:"id"`
	ProjectID      uuid.UUID  `json:"project_id"`
	PageID         *uuid.UUID `json:"page_id,omitempty"`
	FeatureID      *uuid.UUID `json:"feature_id,omitempty"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	Status         string     `json:"status"`
	Type           string     `json:"type"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Project holds the read-only metadata used for agent context and
// submission notifications.
type Project struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
}

// Page is a page of a project.
type Page struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
}

// Feature is a feature of a project.
type Feature struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
}

// User is an organization member who receives submission notifications.
type User struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Email          string    `json:"email"`
}

// CreateConversationRequest is the request body for creating a conversation.
type CreateConversationRequest struct {
	ProjectID uuid.UUID  `json:"project_id" binding:"required"`
	PageID    *uuid.UUID `json:"page_id"`
	FeatureID *uuid.UUID `json:"feature_id"`
}

// TalkRequest is the request body for relaying a message to the agent.
// ConversationID is optional; when absent a new conversation is created
// from the scope fields.
type TalkRequest struct {
	ConversationID *uuid.UUID `json:"conversation_id"`
	ProjectID      *uuid.UUID `json:"project_id"`
	PageID         *uuid.UUID `json:"page_id"`
	FeatureID      *uuid.UUID `json:"feature_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content" binding:"required"`
}

// SubmitRequest is the request body for submitting a conversation.
type SubmitRequest struct {
	Name string `json:"name" binding:"required"`
}

// ConversationWithMessages is the response for conversation reads and for
// the talk operation.
type ConversationWithMessages struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}

// SubmitResponse is the response for a successful submission.
type SubmitResponse struct {
	Conversation Conversation `json:"conversation"`
	Successor    Conversation `json:"successor"`
	Iteration    Iteration    `json:"iteration"`
}
