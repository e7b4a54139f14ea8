// Package sessions holds conversation state: a volatile checkpoint
// store feeding the agent's prompt context, and an optional SQL
// archive for durable chat history.
package sessions

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one conversation turn.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage builds a message with a fresh id and timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Store is the checkpoint store consulted on every pipeline run.
// Unknown session ids are created implicitly on append.
type Store interface {
	// AppendMessages appends msgs to the session in order.
	AppendMessages(sessionID string, msgs ...Message) error

	// Messages returns the most recent limit messages in
	// chronological order. limit <= 0 returns all.
	Messages(sessionID string, limit int) ([]Message, error)

	// Count returns the number of messages in the session.
	Count(sessionID string) (int, error)

	// Delete removes the session and its messages.
	Delete(sessionID string) error

	// SessionCount returns the number of live sessions.
	SessionCount() int
}

// MemoryStore keeps checkpoints in process memory. A single lock
// spans each read-modify-write so concurrent appends to one session
// keep their total order.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Message
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Message)}
}

// AppendMessages appends msgs, creating the session when absent.
func (s *MemoryStore) AppendMessages(sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msgs...)
	return nil
}

// Messages returns the trailing limit messages in order.
func (s *MemoryStore) Messages(sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.sessions[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Count returns the number of checkpointed messages.
func (s *MemoryStore) Count(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID]), nil
}

// Delete removes the session. Deleting an unknown session is a no-op.
func (s *MemoryStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// SessionCount returns the number of live sessions.
func (s *MemoryStore) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
