package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/genesoftai/genesoft-core-api-sub001/models"
	"github.com/genesoftai/genesoft-core-api-sub001/store"
	"github.com/genesoftai/genesoft-core-api-sub001/workflows"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConversationHandler handles conversation lifecycle HTTP requests.
type ConversationHandler struct {
	store     store.Store
	dbosCtx   dbos.DBOSContext
	workflows *workflows.ConversationWorkflows
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(st store.Store, dbosCtx dbos.DBOSContext, wf *workflows.ConversationWorkflows) *ConversationHandler {
	return &ConversationHandler{
		store:     st,
		dbosCtx:   dbosCtx,
		workflows: wf,
	}
}

// respondError maps lifecycle errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	var collaboratorErr *workflows.CollaboratorError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, workflows.ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, gin.H{"error": "Conversation already submitted"})
	case errors.Is(err, workflows.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "Conversation is not active"})
	case errors.Is(err, workflows.ErrInvalidScope):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Conversation must be scoped to a page or feature"})
	case errors.As(err, &collaboratorErr):
		log.Printf("collaborator failure: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": collaboratorErr.Collaborator + " unavailable"})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// CreateConversation creates a new conversation using a durable workflow.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	input := workflows.CreateConversationInput{
		ProjectID: req.ProjectID,
		PageID:    req.PageID,
		FeatureID: req.FeatureID,
	}
	handle, err := dbos.RunWorkflow(h.dbosCtx, h.workflows.CreateConversationWorkflow, input)
	if err != nil {
		log.Printf("Failed to start CreateConversation workflow: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create conversation"})
		return
	}

	conv, err := handle.GetResult()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// GetConversation retrieves a conversation and its ordered messages.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return
	}

	conv, err := h.store.GetConversation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	messages, err := h.store.ListMessages(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ConversationWithMessages{
		Conversation: conv,
		Messages:     messages,
	})
}

// ListConversations lists conversations filtered by scope query params.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	filter := store.ConversationFilter{}
	for param, target := range map[string]**uuid.UUID{
		"project_id":   &filter.ProjectID,
		"page_id":      &filter.PageID,
		"feature_id":   &filter.FeatureID,
		"iteration_id": &filter.IterationID,
	} {
		value := c.Query(param)
		if value == "" {
			continue
		}
		id, err := uuid.Parse(value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + param})
			return
		}
		*target = &id
	}

	conversations, err := h.store.ListConversations(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// ArchiveConversation archives an active conversation using a durable
// workflow.
func (h *ConversationHandler) ArchiveConversation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return
	}

	handle, err := dbos.RunWorkflow(h.dbosCtx, h.workflows.ArchiveWorkflow, id)
	if err != nil {
		log.Printf("Failed to start Archive workflow: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive conversation"})
		return
	}

	conv, err := handle.GetResult()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// Talk relays a user message to the agent using a durable workflow.
func (h *ConversationHandler) Talk(c *gin.Context) {
	var req models.TalkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.ConversationID == nil && req.ProjectID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id or project_id is required"})
		return
	}

	input := workflows.TalkInput{
		ConversationID: req.ConversationID,
		ProjectID:      req.ProjectID,
		PageID:         req.PageID,
		FeatureID:      req.FeatureID,
		SenderID:       req.SenderID,
		Content:        req.Content,
	}
	handle, err := dbos.RunWorkflow(h.dbosCtx, h.workflows.TalkWorkflow, input)
	if err != nil {
		log.Printf("Failed to start Talk workflow: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to relay message"})
		return
	}

	result, err := handle.GetResult()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SubmitConversation submits a conversation into a development iteration
// using a durable workflow.
func (h *ConversationHandler) SubmitConversation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return
	}

	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	input := workflows.SubmitInput{
		ConversationID: id,
		Name:           req.Name,
	}
	handle, err := dbos.RunWorkflow(h.dbosCtx, h.workflows.SubmitWorkflow, input)
	if err != nil {
		log.Printf("Failed to start Submit workflow: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit conversation"})
		return
	}

	result, err := handle.GetResult()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
