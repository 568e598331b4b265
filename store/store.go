package store

import (
	"context"
	"errors"

	"github.com/genesoftai/genesoft-core-api-sub001/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ConversationFilter selects conversations by one or more scope fields.
type ConversationFilter struct {
	ProjectID   *uuid.UUID
	PageID      *uuid.UUID
	FeatureID   *uuid.UUID
	IterationID *uuid.UUID
}

// Store is the persistence boundary for the conversation lifecycle.
// Conversation status may only be changed through the conditional
// MarkSubmitted/MarkArchived operations; both report false when the row
// was not in the active state, which is what makes concurrent submissions
// resolve to a single winner. SetConversationIteration is likewise
// conditional on no iteration being stamped yet, so at most one iteration
// is ever attached to a conversation.
type Store interface {
	CreateConversation(ctx context.Context, projectID uuid.UUID, pageID, featureID *uuid.UUID) (models.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (models.Conversation, error)
	ListConversations(ctx context.Context, filter ConversationFilter) ([]models.Conversation, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, name string) (bool, error)
	SetConversationIteration(ctx context.Context, id, iterationID uuid.UUID) (bool, error)
	MarkArchived(ctx context.Context, id uuid.UUID) (bool, error)

	AppendMessage(ctx context.Context, conversationID uuid.UUID, senderType, senderID, content, messageType string) (models.Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)

	CreateIteration(ctx context.Context, projectID uuid.UUID, pageID, featureID *uuid.UUID, conversationID uuid.UUID, iterationType string) (models.Iteration, error)
	DeleteIteration(ctx context.Context, id uuid.UUID) error
	LatestIterationByProject(ctx context.Context, projectID uuid.UUID) (models.Iteration, error)

	GetProject(ctx context.Context, id uuid.UUID) (models.Project, error)
	GetPage(ctx context.Context, id uuid.UUID) (models.Page, error)
	GetFeature(ctx context.Context, id uuid.UUID) (models.Feature, error)
	ListUsersByOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.User, error)
}
