package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/genesoftai/genesoft-core-api-sub001/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by the test suites. It mirrors the
// conditional-update semantics of PostgresStore, including server-assigned
// strictly increasing creation timestamps.
type MemoryStore struct {
	mu sync.Mutex

	conversations map[uuid.UUID]models.Conversation
	messages      map[uuid.UUID][]models.Message
	iterations    map[uuid.UUID]models.Iteration
	projects      map[uuid.UUID]models.Project
	pages         map[uuid.UUID]models.Page
	features      map[uuid.UUID]models.Feature
	users         map[uuid.UUID][]models.User

	lastClock time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: map[uuid.UUID]models.Conversation{},
		messages:      map[uuid.UUID][]models.Message{},
		iterations:    map[uuid.UUID]models.Iteration{},
		projects:      map[uuid.UUID]models.Project{},
		pages:         map[uuid.UUID]models.Page{},
		features:      map[uuid.UUID]models.Feature{},
		users:         map[uuid.UUID][]models.User{},
	}
}

// now returns a strictly increasing timestamp. Callers must hold mu.
func (s *MemoryStore) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.lastClock) {
		t = s.lastClock.Add(time.Microsecond)
	}
	s.lastClock = t
	return t
}

// SeedProject registers a project for lookups.
func (s *MemoryStore) SeedProject(p models.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

// SeedPage registers a page for lookups.
func (s *MemoryStore) SeedPage(p models.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[p.ID] = p
}

// SeedFeature registers a feature for lookups.
func (s *MemoryStore) SeedFeature(f models.Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features[f.ID] = f
}

// SeedUser registers an organization member.
func (s *MemoryStore) SeedUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.OrganizationID] = append(s.users[u.OrganizationID], u)
}

func (s *MemoryStore) CreateConversation(_ context.Context, projectID uuid.UUID, pageID, featureID *uuid.UUID) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv := models.Conversation{
		ID:        uuid.New(),
		ProjectID: projectID,
		PageID:    pageID,
		FeatureID: featureID,
		Status:    models.ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv
	return conv, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id uuid.UUID) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return models.Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (s *MemoryStore) ListConversations(_ context.Context, filter ConversationFilter) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := []models.Conversation{}
	for _, conv := range s.conversations {
		if filter.ProjectID != nil && conv.ProjectID != *filter.ProjectID {
			continue
		}
		if filter.PageID != nil && (conv.PageID == nil || *conv.PageID != *filter.PageID) {
			continue
		}
		if filter.FeatureID != nil && (conv.FeatureID == nil || *conv.FeatureID != *filter.FeatureID) {
			continue
		}
		if filter.IterationID != nil && (conv.IterationID == nil || *conv.IterationID != *filter.IterationID) {
			continue
		}
		matches = append(matches, conv)
	}
	// Newest first, matching the SQL ORDER BY.
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

func (s *MemoryStore) MarkSubmitted(_ context.Context, id uuid.UUID, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.Status != models.ConversationActive {
		return false, nil
	}
	conv.Status = models.ConversationSubmitted
	conv.Name = &name
	conv.UpdatedAt = s.now()
	s.conversations[id] = conv
	return true, nil
}

func (s *MemoryStore) SetConversationIteration(_ context.Context, id, iterationID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.IterationID != nil {
		return false, nil
	}
	conv.IterationID = &iterationID
	conv.UpdatedAt = s.now()
	s.conversations[id] = conv
	return true, nil
}

func (s *MemoryStore) MarkArchived(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.Status != models.ConversationActive {
		return false, nil
	}
	conv.Status = models.ConversationArchived
	conv.UpdatedAt = s.now()
	s.conversations[id] = conv
	return true, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, conversationID uuid.UUID, senderType, senderID, content, messageType string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return models.Message{}, ErrNotFound
	}
	msg := models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderType:     senderType,
		SenderID:       senderID,
		Content:        content,
		MessageType:    messageType,
		CreatedAt:      s.now(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	return msg, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]models.Message, len(s.messages[conversationID]))
	copy(messages, s.messages[conversationID])
	return messages, nil
}

func (s *MemoryStore) CreateIteration(_ context.Context, projectID uuid.UUID, pageID, featureID *uuid.UUID, conversationID uuid.UUID, iterationType string) (models.Iteration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := models.Iteration{
		ID:             uuid.New(),
		ProjectID:      projectID,
		PageID:         pageID,
		FeatureID:      featureID,
		ConversationID: conversationID,
		Status:         "todo",
		Type:           iterationType,
		CreatedAt:      s.now(),
	}
	s.iterations[it.ID] = it
	return it, nil
}

func (s *MemoryStore) DeleteIteration(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.iterations, id)
	return nil
}

func (s *MemoryStore) LatestIterationByProject(_ context.Context, projectID uuid.UUID) (models.Iteration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest models.Iteration
	found := false
	for _, it := range s.iterations {
		if it.ProjectID != projectID {
			continue
		}
		if !found || it.CreatedAt.After(latest.CreatedAt) {
			latest = it
			found = true
		}
	}
	if !found {
		return models.Iteration{}, ErrNotFound
	}
	return latest, nil
}

// IterationCount reports how many iterations exist for a project. Test
// helper for the at-most-one-iteration-per-submission property.
func (s *MemoryStore) IterationCount(projectID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, it := range s.iterations {
		if it.ProjectID == projectID {
			n++
		}
	}
	return n
}

func (s *MemoryStore) GetProject(_ context.Context, id uuid.UUID) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return models.Project{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) GetPage(_ context.Context, id uuid.UUID) (models.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[id]
	if !ok {
		return models.Page{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) GetFeature(_ context.Context, id uuid.UUID) (models.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.features[id]
	if !ok {
		return models.Feature{}, ErrNotFound
	}
	return f, nil
}

func (s *MemoryStore) ListUsersByOrganization(_ context.Context, organizationID uuid.UUID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, len(s.users[organizationID]))
	copy(users, s.users[organizationID])
	return users, nil
}
