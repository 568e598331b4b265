package workflows

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/genesoftai/genesoft-core-api-sub001/models"
	"github.com/genesoftai/genesoft-core-api-sub001/services"
	"github.com/genesoftai/genesoft-core-api-sub001/store"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/google/uuid"
)

const agentSenderID = "genesoft-agent"

// ConversationWorkflows owns the conversation lifecycle: creation, message
// relay, submission into a development iteration, and archival. All status
// changes go through these operations; callers never mutate conversation
// rows directly.
type ConversationWorkflows struct {
	store     store.Store
	agent     services.Agent
	mailer    services.Mailer
	emailFrom string
}

// NewConversationWorkflows creates a new ConversationWorkflows instance.
func NewConversationWorkflows(st store.Store, agent services.Agent, mailer services.Mailer, emailFrom string) *ConversationWorkflows {
	return &ConversationWorkflows{
		store:     st,
		agent:     agent,
		mailer:    mailer,
		emailFrom: emailFrom,
	}
}

// CreateConversationInput is the scope for a new conversation. PageID and
// FeatureID are mutually exclusive; both nil means a project-level
// conversation.
type CreateConversationInput struct {
	ProjectID uuid.UUID
	PageID    *uuid.UUID
	FeatureID *uuid.UUID
}

// TalkInput contains one user turn. ConversationID is optional; when nil a
// new conversation is created from the scope fields first.
type TalkInput struct {
	ConversationID *uuid.UUID
	ProjectID      *uuid.UUID
	PageID         *uuid.UUID
	FeatureID      *uuid.UUID
	SenderID       string
	Content        string
}

// SubmitInput names a conversation and the submission it becomes.
type SubmitInput struct {
	ConversationID uuid.UUID
	Name           string
}

// Create starts a new active conversation after validating its scope
// references.
func (w *ConversationWorkflows) Create(ctx context.Context, input CreateConversationInput) (models.Conversation, error) {
	if input.PageID != nil && input.FeatureID != nil {
		return models.Conversation{}, ErrInvalidScope
	}
	if _, err := w.store.GetProject(ctx, input.ProjectID); err != nil {
		return models.Conversation{}, fmt.Errorf("project %s: %w", input.ProjectID, err)
	}
	if input.PageID != nil {
		if _, err := w.store.GetPage(ctx, *input.PageID); err != nil {
			return models.Conversation{}, fmt.Errorf("page %s: %w", *input.PageID, err)
		}
	}
	if input.FeatureID != nil {
		if _, err := w.store.GetFeature(ctx, *input.FeatureID); err != nil {
			return models.Conversation{}, fmt.Errorf("feature %s: %w", *input.FeatureID, err)
		}
	}
	return w.store.CreateConversation(ctx, input.ProjectID, input.PageID, input.FeatureID)
}

// Talk relays one user message to the agent. The user message is appended
// before the agent is consulted, so it survives an agent failure; the
// agent's reply is appended as a second message on success.
func (w *ConversationWorkflows) Talk(ctx context.Context, input TalkInput) (models.ConversationWithMessages, error) {
	var out models.ConversationWithMessages

	conv, err := w.resolveConversation(ctx, input)
	if err != nil {
		return out, err
	}

	if _, err := w.store.AppendMessage(ctx, conv.ID, models.SenderUser, input.SenderID, input.Content, "text"); err != nil {
		return out, err
	}

	agentCtx, err := w.assembleContext(ctx, conv)
	if err != nil {
		return out, err
	}

	reply, err := w.askAgent(ctx, agentCtx)
	if err != nil {
		return out, err
	}

	if _, err := w.store.AppendMessage(ctx, conv.ID, models.SenderAIAgent, agentSenderID, reply, "text"); err != nil {
		return out, err
	}

	messages, err := w.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return out, err
	}
	out.Conversation = conv
	out.Messages = messages
	return out, nil
}

// Submit moves an active page- or feature-scoped conversation to
// submitted, spawns exactly one development iteration plus a successor
// conversation with the same scope, and notifies the organization by
// best-effort email. A conversation stuck submitted with no iteration
// stamped (an earlier attempt died between the flip and the stamp) is
// completed rather than rejected.
func (w *ConversationWorkflows) Submit(ctx context.Context, input SubmitInput) (models.SubmitResponse, error) {
	var out models.SubmitResponse

	conv, err := w.loadForSubmission(ctx, input.ConversationID)
	if err != nil {
		return out, err
	}

	if err := w.claimSubmission(ctx, conv, input.Name); err != nil {
		return out, err
	}

	iteration, err := w.spawnIteration(ctx, conv)
	if err != nil {
		return out, err
	}

	w.notifySubmission(ctx, conv, w.submissionName(conv, input.Name))

	successor, err := w.store.CreateConversation(ctx, conv.ProjectID, conv.PageID, conv.FeatureID)
	if err != nil {
		return out, err
	}

	submitted, err := w.store.GetConversation(ctx, conv.ID)
	if err != nil {
		return out, err
	}

	out.Conversation = submitted
	out.Successor = successor
	out.Iteration = iteration
	return out, nil
}

// Archive moves an active conversation to archived. Submitted and archived
// conversations cannot be archived.
func (w *ConversationWorkflows) Archive(ctx context.Context, id uuid.UUID) (models.Conversation, error) {
	won, err := w.store.MarkArchived(ctx, id)
	if err != nil {
		return models.Conversation{}, err
	}
	if !won {
		if _, err := w.store.GetConversation(ctx, id); err != nil {
			return models.Conversation{}, err
		}
		return models.Conversation{}, ErrInvalidState
	}
	return w.store.GetConversation(ctx, id)
}

// resolveConversation loads the target conversation or creates one from
// the request scope.
func (w *ConversationWorkflows) resolveConversation(ctx context.Context, input TalkInput) (models.Conversation, error) {
	if input.ConversationID != nil {
		return w.store.GetConversation(ctx, *input.ConversationID)
	}
	if input.ProjectID == nil {
		return models.Conversation{}, ErrInvalidScope
	}
	return w.Create(ctx, CreateConversationInput{
		ProjectID: *input.ProjectID,
		PageID:    input.PageID,
		FeatureID: input.FeatureID,
	})
}

// assembleContext gathers the ordered message history plus the contextual
// documents the agent sees: project documentation and the status of the
// most recent iteration for the project.
func (w *ConversationWorkflows) assembleContext(ctx context.Context, conv models.Conversation) (services.AgentContext, error) {
	messages, err := w.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return services.AgentContext{}, err
	}

	documents := []string{}
	project, err := w.store.GetProject(ctx, conv.ProjectID)
	if err != nil {
		return services.AgentContext{}, err
	}
	documents = append(documents, fmt.Sprintf("Project: %s\n%s", project.Name, project.Description))

	iteration, err := w.store.LatestIterationByProject(ctx, conv.ProjectID)
	if err == nil {
		documents = append(documents, fmt.Sprintf("Latest iteration: type=%s status=%s", iteration.Type, iteration.Status))
	} else if !errors.Is(err, store.ErrNotFound) {
		return services.AgentContext{}, err
	}

	return services.AgentContext{History: messages, Documents: documents}, nil
}

// askAgent consults the agent, tagging failures with the collaborator
// taxonomy.
func (w *ConversationWorkflows) askAgent(ctx context.Context, agentCtx services.AgentContext) (string, error) {
	reply, err := w.agent.Converse(ctx, agentCtx)
	if err != nil {
		return "", &CollaboratorError{Collaborator: "agent", Err: err}
	}
	return reply, nil
}

// loadForSubmission fetches the conversation and applies the submission
// guards. A submitted conversation with no iteration stamped passes: its
// status flip committed but the rest of the submission never ran, and the
// caller is allowed to finish it.
func (w *ConversationWorkflows) loadForSubmission(ctx context.Context, id uuid.UUID) (models.Conversation, error) {
	conv, err := w.store.GetConversation(ctx, id)
	if err != nil {
		return models.Conversation{}, err
	}
	if conv.Status == models.ConversationArchived {
		return models.Conversation{}, ErrInvalidState
	}
	if conv.Status == models.ConversationSubmitted && conv.IterationID != nil {
		return models.Conversation{}, ErrAlreadySubmitted
	}
	if conv.PageID == nil && conv.FeatureID == nil {
		return models.Conversation{}, ErrInvalidScope
	}
	return conv, nil
}

// claimSubmission flips the conversation to submitted. Under two racing
// submissions only one update matches status=active, so the loser never
// reaches iteration creation. Resumed submissions hold the flip already.
func (w *ConversationWorkflows) claimSubmission(ctx context.Context, conv models.Conversation, name string) error {
	if conv.Status == models.ConversationSubmitted {
		return nil
	}
	won, err := w.store.MarkSubmitted(ctx, conv.ID, name)
	if err != nil {
		return err
	}
	if !won {
		return w.submissionConflict(ctx, conv.ID)
	}
	return nil
}

// spawnIteration creates the iteration for a claimed submission and stamps
// it on the conversation. The stamp is conditional on no iteration being
// attached yet; a loser discards its iteration so at most one survives.
func (w *ConversationWorkflows) spawnIteration(ctx context.Context, conv models.Conversation) (models.Iteration, error) {
	iterationType := models.IterationFeatureDevelopment
	if conv.PageID != nil {
		iterationType = models.IterationPageDevelopment
	}
	iteration, err := w.store.CreateIteration(ctx, conv.ProjectID, conv.PageID, conv.FeatureID, conv.ID, iterationType)
	if err != nil {
		return models.Iteration{}, &CollaboratorError{Collaborator: "iteration service", Err: err}
	}

	won, err := w.store.SetConversationIteration(ctx, conv.ID, iteration.ID)
	if err != nil {
		return models.Iteration{}, err
	}
	if !won {
		if derr := w.store.DeleteIteration(ctx, iteration.ID); derr != nil {
			log.Printf("failed to discard extra iteration %s: %v", iteration.ID, derr)
		}
		return models.Iteration{}, ErrAlreadySubmitted
	}
	return iteration, nil
}

// submissionName prefers the name persisted by the original flip when a
// submission is being resumed.
func (w *ConversationWorkflows) submissionName(conv models.Conversation, name string) string {
	if conv.Name != nil {
		return *conv.Name
	}
	return name
}

// submissionConflict reports why a conditional submission update matched no
// row.
func (w *ConversationWorkflows) submissionConflict(ctx context.Context, id uuid.UUID) error {
	conv, err := w.store.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if conv.Status == models.ConversationArchived {
		return ErrInvalidState
	}
	return ErrAlreadySubmitted
}

// notifySubmission emails every organization member about the new
// iteration. Failures are logged and swallowed; notification must never
// fail or roll back a submission.
func (w *ConversationWorkflows) notifySubmission(ctx context.Context, conv models.Conversation, name string) {
	project, err := w.store.GetProject(ctx, conv.ProjectID)
	if err != nil {
		log.Printf("submission notification skipped: project lookup failed: %v", err)
		return
	}

	scopeName := ""
	if conv.PageID != nil {
		page, err := w.store.GetPage(ctx, *conv.PageID)
		if err != nil {
			log.Printf("submission notification skipped: page lookup failed: %v", err)
			return
		}
		scopeName = page.Name
	} else if conv.FeatureID != nil {
		feature, err := w.store.GetFeature(ctx, *conv.FeatureID)
		if err != nil {
			log.Printf("submission notification skipped: feature lookup failed: %v", err)
			return
		}
		scopeName = feature.Name
	}

	users, err := w.store.ListUsersByOrganization(ctx, project.OrganizationID)
	if err != nil {
		log.Printf("submission notification skipped: user lookup failed: %v", err)
		return
	}
	if len(users) == 0 {
		return
	}

	to := make([]string, 0, len(users))
	for _, u := range users {
		to = append(to, u.Email)
	}

	email := services.Email{
		From:    w.emailFrom,
		To:      to,
		Subject: fmt.Sprintf("Development iteration started for %s", scopeName),
		HTML: fmt.Sprintf("<p>A new development iteration <strong>%s</strong> has started for <strong>%s</strong> in project <strong>%s</strong>.</p>",
			name, scopeName, project.Name),
	}
	if err := w.mailer.Send(ctx, email); err != nil {
		log.Printf("submission notification failed: %v", err)
	}
}

// CreateConversationWorkflow creates a conversation durably.
func (w *ConversationWorkflows) CreateConversationWorkflow(ctx dbos.DBOSContext, input CreateConversationInput) (models.Conversation, error) {
	return dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Conversation, error) {
		return w.Create(stepCtx, input)
	})
}

// TalkWorkflow relays a user message durably. Each effect is its own step,
// so a recovered workflow resumes from the last completed one; the user's
// message is checkpointed before the agent is consulted.
func (w *ConversationWorkflows) TalkWorkflow(ctx dbos.DBOSContext, input TalkInput) (models.ConversationWithMessages, error) {
	var out models.ConversationWithMessages

	// Step 1: Load or create the target conversation
	conv, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Conversation, error) {
		return w.resolveConversation(stepCtx, input)
	})
	if err != nil {
		return out, err
	}

	// Step 2: Append the user's message
	_, err = dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Message, error) {
		return w.store.AppendMessage(stepCtx, conv.ID, models.SenderUser, input.SenderID, input.Content, "text")
	})
	if err != nil {
		return out, err
	}

	// Step 3: Assemble the agent context
	agentCtx, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (services.AgentContext, error) {
		return w.assembleContext(stepCtx, conv)
	})
	if err != nil {
		return out, err
	}

	// Step 4: Consult the agent
	reply, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (string, error) {
		return w.askAgent(stepCtx, agentCtx)
	})
	if err != nil {
		return out, err
	}

	// Step 5: Append the agent's reply
	_, err = dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Message, error) {
		return w.store.AppendMessage(stepCtx, conv.ID, models.SenderAIAgent, agentSenderID, reply, "text")
	})
	if err != nil {
		return out, err
	}

	// Step 6: Read back the updated log
	messages, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) ([]models.Message, error) {
		return w.store.ListMessages(stepCtx, conv.ID)
	})
	if err != nil {
		return out, err
	}

	out.Conversation = conv
	out.Messages = messages
	return out, nil
}

// SubmitWorkflow submits a conversation durably. The status flip is its
// own checkpointed step, so a recovered workflow resumes with iteration
// creation instead of re-entering the guard; a fresh retry of a
// half-finished submission completes it through the loadForSubmission
// resume path.
func (w *ConversationWorkflows) SubmitWorkflow(ctx dbos.DBOSContext, input SubmitInput) (models.SubmitResponse, error) {
	var out models.SubmitResponse

	// Step 1: Load and guard the conversation
	conv, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Conversation, error) {
		return w.loadForSubmission(stepCtx, input.ConversationID)
	})
	if err != nil {
		return out, err
	}

	// Step 2: Flip status to submitted (first writer wins)
	_, err = dbos.RunAsStep(ctx, func(stepCtx context.Context) (bool, error) {
		return true, w.claimSubmission(stepCtx, conv, input.Name)
	})
	if err != nil {
		return out, err
	}

	// Step 3: Create and stamp the iteration
	iteration, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Iteration, error) {
		return w.spawnIteration(stepCtx, conv)
	})
	if err != nil {
		return out, err
	}

	// Step 4: Best-effort notification
	_, err = dbos.RunAsStep(ctx, func(stepCtx context.Context) (bool, error) {
		w.notifySubmission(stepCtx, conv, w.submissionName(conv, input.Name))
		return true, nil
	})
	if err != nil {
		return out, err
	}

	// Step 5: Spawn the successor conversation
	successor, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Conversation, error) {
		return w.store.CreateConversation(stepCtx, conv.ProjectID, conv.PageID, conv.FeatureID)
	})
	if err != nil {
		return out, err
	}

	// Step 6: Read back the submitted conversation
	submitted, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Conversation, error) {
		return w.store.GetConversation(stepCtx, conv.ID)
	})
	if err != nil {
		return out, err
	}

	out.Conversation = submitted
	out.Successor = successor
	out.Iteration = iteration
	return out, nil
}

// ArchiveWorkflow archives a conversation durably.
func (w *ConversationWorkflows) ArchiveWorkflow(ctx dbos.DBOSContext, id uuid.UUID) (models.Conversation, error) {
	return dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Conversation, error) {
		return w.Archive(stepCtx, id)
	})
}
