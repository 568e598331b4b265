package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/genesoftai/genesoft-core-api-sub001/models"
	"github.com/google/uuid"
)

// PostgresStore implements Store over a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore on an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func nullUUID(p *uuid.UUID) uuid.NullUUID {
	if p == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *p, Valid: true}
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	u := n.UUID
	return &u
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

const conversationColumns = "id, project_id, page_id, feature_id, name, status, iteration_id, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (models.Conversation, error) {
	var (
		conv        models.Conversation
		pageID      uuid.NullUUID
		featureID   uuid.NullUUID
		name        sql.NullString
		iterationID uuid.NullUUID
	)
	err := row.Scan(&conv.ID, &conv.ProjectID, &pageID, &featureID, &name, &conv.Status, &iterationID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return models.Conversation{}, err
	}
	conv.PageID = uuidPtr(pageID)
	conv.FeatureID = uuidPtr(featureID)
	conv.Name = stringPtr(name)
	conv.IterationID = uuidPtr(iterationID)
	return conv, nil
}

// CreateConversation inserts a new active conversation for the given scope.
func (s *PostgresStore) CreateConversation(ctx context.Context, projectID uuid.UUID, pageID, featureID *uuid.UUID) (models.Conversation, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, project_id, page_id, feature_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $6)",
		id, projectID, nullUUID(pageID), nullUUID(featureID), models.ConversationActive, now)
	if err != nil {
		return models.Conversation{}, err
	}

	return models.Conversation{
		ID:        id,
		ProjectID: projectID,
		PageID:    pageID,
		FeatureID: featureID,
		Status:    models.ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetConversation retrieves a conversation by id.
func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (models.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id = $1", id)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrNotFound
	}
	return conv, err
}

// ListConversations lists conversations matching the filter, newest first.
func (s *PostgresStore) ListConversations(ctx context.Context, filter ConversationFilter) ([]models.Conversation, error) {
	query := "SELECT " + conversationColumns + " FROM conversations WHERE 1=1"
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.ProjectID != nil {
		query += " AND project_id = " + next(*filter.ProjectID)
	}
	if filter.PageID != nil {
		query += " AND page_id = " + next(*filter.PageID)
	}
	if filter.FeatureID != nil {
		query += " AND feature_id = " + next(*filter.FeatureID)
	}
	if filter.IterationID != nil {
		query += " AND iteration_id = " + next(*filter.IterationID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// MarkSubmitted flips an active conversation to submitted and records the
// submission name. Returns false without touching the row when the
// conversation is not active, so the first of two racing submissions wins.
func (s *PostgresStore) MarkSubmitted(ctx context.Context, id uuid.UUID, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET status = $1, name = $2, updated_at = $3 WHERE id = $4 AND status = $5",
		models.ConversationSubmitted, name, time.Now().UTC(), id, models.ConversationActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetConversationIteration stamps the iteration spawned by a submission.
// Returns false without touching the row when an iteration is already
// stamped, so racing completions attach at most one iteration.
func (s *PostgresStore) SetConversationIteration(ctx context.Context, id, iterationID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET iteration_id = $1, updated_at = $2 WHERE id = $3 AND iteration_id IS NULL",
		iterationID, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkArchived flips an active conversation to archived. Returns false when
// the conversation is not active.
func (s *PostgresStore) MarkArchived(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4",
		models.ConversationArchived, time.Now().UTC(), id, models.ConversationActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AppendMessage saves a message to the conversation log.
func (s *PostgresStore) AppendMessage(ctx context.Context, conversationID uuid.UUID, senderType, senderID, content, messageType string) (models.Message, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, sender_type, sender_id, content, message_type, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		id, conversationID, senderType, senderID, content, messageType, now)
	if err != nil {
		return models.Message{}, err
	}

	return models.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderType:     senderType,
		SenderID:       senderID,
		Content:        content,
		MessageType:    messageType,
		CreatedAt:      now,
	}, nil
}

// ListMessages retrieves all messages for a conversation, oldest first.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, conversation_id, sender_type, sender_id, content, message_type, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC",
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderType, &msg.SenderID, &msg.Content, &msg.MessageType, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CreateIteration inserts a new iteration in the todo state.
func (s *PostgresStore) CreateIteration(ctx context.Context, projectID uuid.UUID, pageID, featureID *uuid.UUID, conversationID uuid.UUID, iterationType string) (models.Iteration, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO iterations (id, project_id, page_id, feature_id, conversation_id, status, type, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		id, projectID, nullUUID(pageID), nullUUID(featureID), conversationID, "todo", iterationType, now)
	if err != nil {
		return models.Iteration{}, err
	}

	return models.Iteration{
		ID:             id,
		ProjectID:      projectID,
		PageID:         pageID,
		FeatureID:      featureID,
		ConversationID: conversationID,
		Status:         "todo",
		Type:           iterationType,
		CreatedAt:      now,
	}, nil
}

// DeleteIteration removes an iteration that lost the stamp race and was
// never attached to a conversation.
func (s *PostgresStore) DeleteIteration(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM iterations WHERE id = $1", id)
	return err
}

// LatestIterationByProject returns the most recently created iteration for
// a project, or ErrNotFound when the project has none.
func (s *PostgresStore) LatestIterationByProject(ctx context.Context, projectID uuid.UUID) (models.Iteration, error) {
	var (
		it        models.Iteration
		pageID    uuid.NullUUID
		featureID uuid.NullUUID
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, project_id, page_id, feature_id, conversation_id, status, type, created_at FROM iterations WHERE project_id = $1 ORDER BY created_at DESC LIMIT 1",
		projectID).
		Scan(&it.ID, &it.ProjectID, &pageID, &featureID, &it.ConversationID, &it.Status, &it.Type, &it.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Iteration{}, ErrNotFound
	}
	if err != nil {
		return models.Iteration{}, err
	}
	it.PageID = uuidPtr(pageID)
	it.FeatureID = uuidPtr(featureID)
	return it, nil
}

// GetProject retrieves a project by id.
func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID) (models.Project, error) {
	var p models.Project
	err := s.db.QueryRowContext(ctx,
		"SELECT id, organization_id, name, description FROM projects WHERE id = $1", id).
		Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, ErrNotFound
	}
	return p, err
}

// GetPage retrieves a page by id.
func (s *PostgresStore) GetPage(ctx context.Context, id uuid.UUID) (models.Page, error) {
	var p models.Page
	err := s.db.QueryRowContext(ctx,
		"SELECT id, project_id, name FROM pages WHERE id = $1", id).
		Scan(&p.ID, &p.ProjectID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Page{}, ErrNotFound
	}
	return p, err
}

// GetFeature retrieves a feature by id.
func (s *PostgresStore) GetFeature(ctx context.Context, id uuid.UUID) (models.Feature, error) {
	var f models.Feature
	err := s.db.QueryRowContext(ctx,
		"SELECT id, project_id, name FROM features WHERE id = $1", id).
		Scan(&f.ID, &f.ProjectID, &f.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Feature{}, ErrNotFound
	}
	return f, err
}

// ListUsersByOrganization lists the members of an organization.
func (s *PostgresStore) ListUsersByOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, organization_id, email FROM users WHERE organization_id = $1", organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.OrganizationID, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
