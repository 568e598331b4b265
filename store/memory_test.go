package store

import (
	"context"
	"testing"

	"github.com/genesoftai/genesoft-core-api-sub001/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkSubmittedIsConditional(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, uuid.New(), nil, nil)
	require.NoError(t, err)

	won, err := s.MarkSubmitted(ctx, conv.ID, "first")
	require.NoError(t, err)
	assert.True(t, won)

	// A second flip finds no active row.
	won, err = s.MarkSubmitted(ctx, conv.ID, "second")
	require.NoError(t, err)
	assert.False(t, won)

	refetched, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationSubmitted, refetched.Status)
	require.NotNil(t, refetched.Name)
	assert.Equal(t, "first", *refetched.Name)
}

func TestMarkArchivedIsConditional(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, uuid.New(), nil, nil)
	require.NoError(t, err)

	won, err := s.MarkArchived(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.MarkArchived(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, won)

	won, err = s.MarkSubmitted(ctx, conv.ID, "late")
	require.NoError(t, err)
	assert.False(t, won, "archived conversations must not become submitted")
}

func TestSetConversationIterationIsConditional(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	projectID := uuid.New()
	conv, err := s.CreateConversation(ctx, projectID, nil, nil)
	require.NoError(t, err)

	first, err := s.CreateIteration(ctx, projectID, nil, nil, conv.ID, models.IterationPageDevelopment)
	require.NoError(t, err)
	second, err := s.CreateIteration(ctx, projectID, nil, nil, conv.ID, models.IterationPageDevelopment)
	require.NoError(t, err)

	won, err := s.SetConversationIteration(ctx, conv.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, won)

	// A second stamp finds the slot taken.
	won, err = s.SetConversationIteration(ctx, conv.ID, second.ID)
	require.NoError(t, err)
	assert.False(t, won)

	refetched, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, refetched.IterationID)
	assert.Equal(t, first.ID, *refetched.IterationID)

	// The loser's iteration can be discarded.
	require.NoError(t, s.DeleteIteration(ctx, second.ID))
	latest, err := s.LatestIterationByProject(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)
}

func TestMessagesOrderedByCreation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, uuid.New(), nil, nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := s.AppendMessage(ctx, conv.ID, models.SenderUser, "u", "m", "text")
		require.NoError(t, err)
	}

	messages, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 20)
	for i := 1; i < len(messages); i++ {
		assert.True(t, messages[i].CreatedAt.After(messages[i-1].CreatedAt),
			"timestamps must be strictly increasing")
	}
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.AppendMessage(context.Background(), uuid.New(), models.SenderUser, "u", "m", "text")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversationsFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	projectID := uuid.New()
	pageID := uuid.New()
	featureID := uuid.New()

	pageConv, err := s.CreateConversation(ctx, projectID, &pageID, nil)
	require.NoError(t, err)
	featureConv, err := s.CreateConversation(ctx, projectID, nil, &featureID)
	require.NoError(t, err)
	_, err = s.CreateConversation(ctx, uuid.New(), nil, nil)
	require.NoError(t, err)

	byProject, err := s.ListConversations(ctx, ConversationFilter{ProjectID: &projectID})
	require.NoError(t, err)
	assert.Len(t, byProject, 2)
	// Newest first.
	assert.Equal(t, featureConv.ID, byProject[0].ID)
	assert.Equal(t, pageConv.ID, byProject[1].ID)

	byPage, err := s.ListConversations(ctx, ConversationFilter{PageID: &pageID})
	require.NoError(t, err)
	require.Len(t, byPage, 1)
	assert.Equal(t, pageConv.ID, byPage[0].ID)

	it, err := s.CreateIteration(ctx, projectID, &pageID, nil, pageConv.ID, models.IterationPageDevelopment)
	require.NoError(t, err)
	won, err := s.SetConversationIteration(ctx, pageConv.ID, it.ID)
	require.NoError(t, err)
	require.True(t, won)

	byIteration, err := s.ListConversations(ctx, ConversationFilter{IterationID: &it.ID})
	require.NoError(t, err)
	require.Len(t, byIteration, 1)
	assert.Equal(t, pageConv.ID, byIteration[0].ID)
}

func TestLatestIterationByProject(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	projectID := uuid.New()
	_, err := s.LatestIterationByProject(ctx, projectID)
	assert.ErrorIs(t, err, ErrNotFound)

	conv, err := s.CreateConversation(ctx, projectID, nil, nil)
	require.NoError(t, err)

	_, err = s.CreateIteration(ctx, projectID, nil, nil, conv.ID, models.IterationPageDevelopment)
	require.NoError(t, err)
	second, err := s.CreateIteration(ctx, projectID, nil, nil, conv.ID, models.IterationFeatureDevelopment)
	require.NoError(t, err)

	latest, err := s.LatestIterationByProject(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestLookups(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	orgID := uuid.New()
	project := models.Project{ID: uuid.New(), OrganizationID: orgID, Name: "p", Description: "d"}
	s.SeedProject(project)
	s.SeedUser(models.User{ID: uuid.New(), OrganizationID: orgID, Email: "a@example.com"})
	s.SeedUser(models.User{ID: uuid.New(), OrganizationID: orgID, Email: "b@example.com"})

	got, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project, got)

	_, err = s.GetProject(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	users, err := s.ListUsersByOrganization(ctx, orgID)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = s.ListUsersByOrganization(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, users)
}
