package store

import (
	"sort"
	"sync"
	"time"

	"github.com/carebridge/leadflow/internal/models"
)

// InMemoryStore is a mutex-guarded Store for tests and single-process
// deployments without a database.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.ConversationSession
	messages []models.ChatMessage
	leads    map[string]models.Lead
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]models.ConversationSession),
		leads:    make(map[string]models.Lead),
	}
}

// CreateSession persists a new conversation session.
func (s *InMemoryStore) CreateSession(session models.ConversationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.CollectedData = session.CollectedData.Clone()
	s.sessions[session.ID] = session
	return nil
}

// GetSession retrieves a session by id, nil if missing.
func (s *InMemoryStore) GetSession(id string) (*models.ConversationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	session.CollectedData = session.CollectedData.Clone()
	return &session, nil
}

// FindActiveSessionByToken retrieves the active session for a visitor token.
func (s *InMemoryStore) FindActiveSessionByToken(token string) (*models.ConversationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.VisitorToken == token && session.Status == models.SessionStatusActive {
			session.CollectedData = session.CollectedData.Clone()
			return &session, nil
		}
	}
	return nil, nil
}

// UpdateSession persists the session's mutable fields as one unit.
func (s *InMemoryStore) UpdateSession(session models.ConversationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return models.ErrSessionNotFound
	}
	session.CollectedData = session.CollectedData.Clone()
	s.sessions[session.ID] = session
	return nil
}

// AppendMessage adds one transcript entry.
func (s *InMemoryStore) AppendMessage(message models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

// ListMessages returns a session's transcript ordered by creation time, ties
// broken by insertion order.
func (s *InMemoryStore) ListMessages(sessionID string) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ChatMessage
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CreateLead persists a CRM lead after validating required fields.
func (s *InMemoryStore) CreateLead(lead models.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[lead.ID] = lead
	return nil
}

// GetLead retrieves a lead by id, nil if missing.
func (s *InMemoryStore) GetLead(id string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[id]
	if !ok {
		return nil, nil
	}
	return &lead, nil
}

// MarkAbandonedBefore flips idle active sessions to abandoned.
func (s *InMemoryStore) MarkAbandonedBefore(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, session := range s.sessions {
		if session.Status == models.SessionStatusActive && session.LastActivityAt.Before(cutoff) {
			session.Status = models.SessionStatusAbandoned
			s.sessions[id] = session
			count++
		}
	}
	return count, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
